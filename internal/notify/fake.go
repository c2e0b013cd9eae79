package notify

import (
	"context"
	"sync"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
)

// FakeNotifier records every Send call in-process, for tests.
type FakeNotifier struct {
	mu  sync.Mutex
	got []model.RecognitionResults
	Err error
}

func (n *FakeNotifier) Send(_ context.Context, results model.RecognitionResults) error {
	if n.Err != nil {
		return n.Err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, results)
	return nil
}

// Sent returns every RecognitionResults handed to Send so far.
func (n *FakeNotifier) Sent() []model.RecognitionResults {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.RecognitionResults(nil), n.got...)
}
