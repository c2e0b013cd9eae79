// Package model holds the data types shared by every service in the pipeline:
// the wire contracts carried on the bus and the persisted database shapes.
package model

import (
	"time"
)

// PictureType identifies the image codec used for a frame or a cropped detection.
//
// The pipeline standardizes on PNG end-to-end: the extractor encodes frames as PNG,
// and the recognizer re-encodes crops as PNG. No WebP encoder exists anywhere in the
// dependency surface available to this module, so PictureTypeWebP is never produced,
// and decoding a WebP-tagged payload returns an error.
type PictureType string

const (
	PictureTypePNG  PictureType = "image/png"
	PictureTypeWebP PictureType = "image/webp"
)

// Frame is a single sampled, encoded image in flight between the extractor and a
// recognizer. It is never persisted.
type Frame struct {
	FrameID     string
	MonitorID   *string
	Picture     []byte
	PictureType PictureType
	CreatedAt   time.Time
}

// Detection is one labeled bounding box produced by the recognizer for a single
// frame, carrying its own cropped and re-encoded image.
type Detection struct {
	FrameID     string      `json:"frame_id"`
	MonitorID   *string     `json:"monitor_id"`
	Label       string      `json:"label"`
	Confidence  float32     `json:"confidence"`
	Picture     []byte      `json:"picture"`
	PictureType PictureType `json:"picture_type"`
	CreatedAt   time.Time   `json:"created_at"`
}

// RecognitionResults is the batch of detections produced for one input frame. It is
// always emitted, even when empty.
type RecognitionResults struct {
	Results []Detection `json:"results"`
}

// Monitor is a logical camera identity. A nil ID denotes the "unattributed" bucket
// and is never persisted — it only ever appears in query responses.
type Monitor struct {
	ID *string
}

// Entity is the persisted form of a detection.
type Entity struct {
	ID         int64
	ImageID    string
	Label      string
	Confidence Confidence
	MonitorID  *string
	CreatedAt  time.Time
}
