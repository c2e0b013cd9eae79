package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/bus"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/detector"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
)

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestCropProducesOneDetectionPerBox(t *testing.T) {
	frame := model.Frame{
		FrameID:     "f1",
		Picture:     solidPNG(t, 100, 100),
		PictureType: model.PictureTypePNG,
		CreatedAt:   time.Now(),
	}
	boxes := []detector.Box{
		{Label: "person", Confidence: 0.9, X0: 0, Y0: 0, X1: 10, Y1: 10},
		{Label: "car", Confidence: 0.5, X0: 20, Y0: 20, X1: 40, Y1: 40},
	}

	results, err := crop(frame, boxes)
	if err != nil {
		t.Fatalf("crop: %v", err)
	}
	if len(results.Results) != 2 {
		t.Fatalf("got %d detections, want 2", len(results.Results))
	}
	if results.Results[0].Label != "person" || results.Results[1].Label != "car" {
		t.Fatalf("got %+v", results.Results)
	}
	for _, d := range results.Results {
		if len(d.Picture) == 0 {
			t.Error("expected a non-empty encoded crop")
		}
	}
}

func TestCropNoBoxesReturnsEmptyResults(t *testing.T) {
	frame := model.Frame{FrameID: "f1", Picture: solidPNG(t, 10, 10), PictureType: model.PictureTypePNG}

	results, err := crop(frame, nil)
	if err != nil {
		t.Fatalf("crop: %v", err)
	}
	if len(results.Results) != 0 {
		t.Fatalf("got %d detections, want 0", len(results.Results))
	}
}

func TestHandleFramePublishesRecognitionResults(t *testing.T) {
	b := bus.NewFakeBus()
	det := &detector.FakeClient{Boxes: []detector.Box{{Label: "person", Confidence: 0.9, X0: 0, Y0: 0, X1: 10, Y1: 10}}}

	var published model.RecognitionResults
	var publishedHeaders bus.Message
	b.Subscribe(recognitionSubject, func(_ context.Context, msg bus.Message) {
		publishedHeaders = msg
		if err := json.Unmarshal(msg.Data, &published); err != nil {
			t.Fatalf("unmarshal published results: %v", err)
		}
	})

	handler := handleFrame(b, det, zap.NewNop())
	msg := bus.Message{
		Headers: map[string]string{"frame_id": "f1", "Content-Type": "image/png"},
		Data:    solidPNG(t, 50, 50),
	}
	handler(context.Background(), msg)

	if len(published.Results) != 1 || published.Results[0].Label != "person" {
		t.Fatalf("got %+v, want one person detection published", published)
	}
	if publishedHeaders.Header("Content-Type") != "application/json" {
		t.Errorf("Content-Type header = %q", publishedHeaders.Header("Content-Type"))
	}
	if publishedHeaders.Header("X-Frame-Id") != "f1" {
		t.Errorf("X-Frame-Id header = %q", publishedHeaders.Header("X-Frame-Id"))
	}
}

func TestHandleFrameRejectsWrongContentType(t *testing.T) {
	b := bus.NewFakeBus()
	det := &detector.FakeClient{Boxes: []detector.Box{{Label: "person"}}}

	called := false
	b.Subscribe(recognitionSubject, func(context.Context, bus.Message) { called = true })

	handler := handleFrame(b, det, zap.NewNop())
	msg := bus.Message{
		Headers: map[string]string{"frame_id": "f1", "Content-Type": "image/webp"},
		Data:    solidPNG(t, 10, 10),
	}
	handler(context.Background(), msg)

	if called {
		t.Fatal("expected no publish when Content-Type doesn't match image/png")
	}
}

func TestHandleFrameMissingFrameIDIsSkipped(t *testing.T) {
	b := bus.NewFakeBus()
	det := &detector.FakeClient{Boxes: []detector.Box{{Label: "person"}}}

	called := false
	b.Subscribe(recognitionSubject, func(context.Context, bus.Message) { called = true })

	handler := handleFrame(b, det, zap.NewNop())
	handler(context.Background(), bus.Message{Data: solidPNG(t, 10, 10)})

	if called {
		t.Fatal("expected no publish when frame_id header is missing")
	}
}
