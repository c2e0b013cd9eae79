// Package detector talks to the object-detection model server. The model
// itself — weights, architecture, inference runtime — is explicitly out of
// scope; this package only defines the network boundary to it.
package detector

import (
	"context"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
)

// Client sends an encoded frame to the detection service and returns the
// labeled boxes it found.
type Client interface {
	Detect(ctx context.Context, frame model.Frame) ([]Box, error)
	Close() error
}

// Box is one labeled bounding box, in pixel coordinates against the source
// frame, before the recognizer crops and re-encodes it into a model.Detection.
type Box struct {
	Label      string
	Confidence float32
	X0, Y0     int
	X1, Y1     int
}
