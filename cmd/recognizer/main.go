// Command recognizer consumes sampled frames from the "frames" subject, runs
// them through a detection service, and publishes the labeled crops on the
// "recognition" subject.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/bus"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/config"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/detector"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/imaging"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
)

const (
	framesSubject      = "frames"
	recognitionSubject = "recognition"
)

func main() {
	configPathF := flag.String("config", "", "path to config.toml")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	src, err := config.Load(*configPathF)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	natsURL := src.String("NATS_URL", "nats_url", "nats://localhost:4222")
	detectorEndpoint, err := src.RequireString("DETECTOR_ENDPOINT", "detector_endpoint")
	if err != nil {
		logger.Fatal("resolve detector endpoint", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	natsBus, err := bus.Connect(natsURL, logger)
	if err != nil {
		logger.Fatal("connect bus", zap.Error(err))
	}
	defer natsBus.Close()

	det, err := detector.Dial(ctx, detectorEndpoint)
	if err != nil {
		logger.Fatal("dial detector", zap.Error(err))
	}
	defer det.Close()

	var tasks sync.WaitGroup
	handle := handleFrame(natsBus, det, logger)

	sub, err := natsBus.Subscribe(framesSubject, func(ctx context.Context, msg bus.Message) {
		tasks.Add(1)
		go func() {
			defer tasks.Done()
			handle(ctx, msg)
		}()
	})
	if err != nil {
		logger.Fatal("subscribe frames", zap.Error(err))
	}
	defer sub.Unsubscribe()

	logger.Info("recognizer running")
	<-ctx.Done()
	logger.Info("shutting down")
	tasks.Wait()
}

func handleFrame(b bus.Bus, det detector.Client, logger *zap.Logger) bus.Handler {
	return func(ctx context.Context, msg bus.Message) {
		frameID := msg.Header("frame_id")
		if frameID == "" {
			logger.Warn("frame message missing frame_id header")
			return
		}

		if ct := msg.Header("Content-Type"); ct != string(model.PictureTypePNG) {
			logger.Warn("frame message has unexpected content type",
				zap.String("frame_id", frameID), zap.String("content_type", ct))
			return
		}

		var monitorID *string
		if v := msg.Header("monitor_id"); v != "" {
			monitorID = &v
		}

		createdAt := time.Now().UTC()
		if v := msg.Header("created_at"); v != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
				createdAt = parsed
			}
		}

		frame := model.Frame{
			FrameID:     frameID,
			MonitorID:   monitorID,
			Picture:     msg.Data,
			PictureType: model.PictureTypePNG,
			CreatedAt:   createdAt,
		}

		boxes, err := det.Detect(ctx, frame)
		if err != nil {
			logger.Warn("detect", zap.String("frame_id", frameID), zap.Error(err))
			return
		}

		results, err := crop(frame, boxes)
		if err != nil {
			logger.Warn("crop detections", zap.String("frame_id", frameID), zap.Error(err))
			return
		}

		// Always publish, even when empty, matching the original
		// contract of one RecognitionResults batch per input frame.
		payload, err := json.Marshal(results)
		if err != nil {
			logger.Error("encode recognition results", zap.Error(err))
			return
		}
		recognitionHeaders := map[string]string{
			"Content-Type": "application/json",
			"X-Frame-Id":   frameID,
		}
		if err := b.Publish(ctx, recognitionSubject, recognitionHeaders, payload); err != nil {
			logger.Error("publish recognition results", zap.Error(err))
		}
	}
}

func crop(frame model.Frame, boxes []detector.Box) (model.RecognitionResults, error) {
	if len(boxes) == 0 {
		return model.RecognitionResults{}, nil
	}

	img, err := imaging.Decode(frame.Picture, frame.PictureType)
	if err != nil {
		return model.RecognitionResults{}, fmt.Errorf("decode frame: %w", err)
	}

	results := model.RecognitionResults{Results: make([]model.Detection, 0, len(boxes))}
	for _, box := range boxes {
		cropped := imaging.Crop(img, imaging.BoundingBox{X1: box.X0, Y1: box.Y0, X2: box.X1, Y2: box.Y1})
		png, err := imaging.EncodePNG(cropped)
		if err != nil {
			return model.RecognitionResults{}, fmt.Errorf("encode crop: %w", err)
		}

		results.Results = append(results.Results, model.Detection{
			FrameID:     frame.FrameID,
			MonitorID:   frame.MonitorID,
			Label:       box.Label,
			Confidence:  box.Confidence,
			Picture:     png,
			PictureType: model.PictureTypePNG,
			CreatedAt:   frame.CreatedAt,
		})
	}
	return results, nil
}
