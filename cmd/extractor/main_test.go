package main

import (
	"context"
	"image"
	"image/color"
	"testing"

	"go.uber.org/zap"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/bus"
)

func TestAtoiOrParsesValidInt(t *testing.T) {
	if got := atoiOr("42", 0); got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestAtoiOrFallsBackOnInvalidInput(t *testing.T) {
	if got := atoiOr("not-a-number", 7); got != 7 {
		t.Fatalf("got %d, want fallback 7", got)
	}
}

func TestPublishFramePublishesPNGWithHeaders(t *testing.T) {
	b := bus.NewFakeBus()

	var got bus.Message
	b.Subscribe(framesSubject, func(_ context.Context, msg bus.Message) {
		got = msg
	})

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 1, G: 2, B: 3, A: 255})
		}
	}

	monitorID := "cam-1"
	publishFrame(context.Background(), b, zap.NewNop(), "cam-1-1", &monitorID, img)

	if got.Header("Content-Type") != "image/png" {
		t.Errorf("Content-Type header = %q", got.Header("Content-Type"))
	}
	if got.Header("frame_id") != "cam-1-1" {
		t.Errorf("frame_id header = %q", got.Header("frame_id"))
	}
	if got.Header("monitor_id") != "cam-1" {
		t.Errorf("monitor_id header = %q", got.Header("monitor_id"))
	}
	if got.Header("created_at") == "" {
		t.Error("expected a non-empty created_at header")
	}
	if len(got.Data) == 0 {
		t.Error("expected a non-empty PNG payload")
	}
}

func TestPublishFrameOmitsMonitorIDWhenNil(t *testing.T) {
	b := bus.NewFakeBus()

	var got bus.Message
	b.Subscribe(framesSubject, func(_ context.Context, msg bus.Message) {
		got = msg
	})

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	publishFrame(context.Background(), b, zap.NewNop(), "unattributed-1", nil, img)

	if got.Header("monitor_id") != "" {
		t.Errorf("expected no monitor_id header, got %q", got.Header("monitor_id"))
	}
}
