package detector

import (
	"context"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
)

// FakeClient is an in-process Client for tests: it returns a canned set of
// boxes regardless of input, or Err if set.
type FakeClient struct {
	Boxes []Box
	Err   error
}

func (c *FakeClient) Detect(_ context.Context, _ model.Frame) ([]Box, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Boxes, nil
}

func (c *FakeClient) Close() error { return nil }
