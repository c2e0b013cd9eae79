package mediapipeline

import (
	"image/color"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewRejectsNonPositiveSampleEvery(t *testing.T) {
	for _, sample := range []int{0, -1} {
		if _, err := New(Config{RTSPURL: "rtsp://x", SampleEvery: sample}, zap.NewNop()); err == nil {
			t.Fatalf("New with SampleEvery=%d: want error, got nil", sample)
		}
	}
}

func TestNewAcceptsPositiveSampleEvery(t *testing.T) {
	p, err := New(Config{RTSPURL: "rtsp://x", SampleEvery: 300}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.sampleEvery != 300 {
		t.Fatalf("sampleEvery = %d, want 300", p.sampleEvery)
	}
}

func TestRgbToNRGBASetsOpaqueAlpha(t *testing.T) {
	raw := []byte{10, 20, 30, 40, 50, 60}
	img := rgbToNRGBA(raw, 2, 1)

	r, g, b, a := img.At(0, 0).RGBA()
	want := color.NRGBA{R: 10, G: 20, B: 30, A: 0xff}
	gotR, gotG, gotB, gotA := want.RGBA()
	if r != gotR || g != gotG || b != gotB || a != gotA {
		t.Fatalf("pixel (0,0) = %d,%d,%d,%d want %d,%d,%d,%d", r, g, b, a, gotR, gotG, gotB, gotA)
	}

	r, g, b, _ = img.At(1, 0).RGBA()
	want = color.NRGBA{R: 40, G: 50, B: 60, A: 0xff}
	gotR, gotG, gotB, _ = want.RGBA()
	if r != gotR || g != gotG || b != gotB {
		t.Fatalf("pixel (1,0) = %d,%d,%d want %d,%d,%d", r, g, b, gotR, gotG, gotB)
	}
}

func TestFrameIDWithMonitor(t *testing.T) {
	monitorID := "cam-1"
	if got, want := FrameID(&monitorID, 42), "cam-1-42"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFrameIDUnattributed(t *testing.T) {
	if got, want := FrameID(nil, 7), "unattributed-7"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNewFrameWrapsFields(t *testing.T) {
	monitorID := "cam-1"
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	png := []byte{0x89, 'P', 'N', 'G'}

	f := NewFrame("cam-1-42", &monitorID, png, now)

	if f.FrameID != "cam-1-42" {
		t.Errorf("FrameID = %q", f.FrameID)
	}
	if f.MonitorID == nil || *f.MonitorID != "cam-1" {
		t.Errorf("MonitorID = %v", f.MonitorID)
	}
	if string(f.Picture) != string(png) {
		t.Errorf("Picture not preserved")
	}
	if !f.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", f.CreatedAt, now)
	}
}
