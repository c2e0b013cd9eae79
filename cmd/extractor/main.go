// Command extractor samples frames from a single RTSP source and publishes
// them, PNG-encoded, on the "frames" subject for a recognizer to pick up.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/bus"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/config"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/imaging"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/mediapipeline"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
)

const framesSubject = "frames"

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

	rtspURL, err := src.RequireString("RTSP_URL", "rtsp_url")
	if err != nil {
		logger.Fatal("resolve rtsp url", zap.Error(err))
	}
	natsURL := src.String("NATS_URL", "nats_url", "nats://localhost:4222")

	var monitorID *string
	if v := src.String("MONITOR_ID", "monitor_id", ""); v != "" {
		monitorID = &v
	}

	width := atoiOr(src.String("FRAME_WIDTH", "frame_width", "1280"), 1280)
	height := atoiOr(src.String("FRAME_HEIGHT", "frame_height", "720"), 720)
	sampleEvery := atoiOr(src.String("SAMPLE_EVERY", "sample_every", "300"), 300)
	if sampleEvery <= 0 {
		logger.Fatal("invalid sample_every", zap.Int("sample_every", sampleEvery))
	}

	natsBus, err := bus.Connect(natsURL, logger)
	if err != nil {
		logger.Fatal("connect bus", zap.Error(err))
	}
	defer natsBus.Close()

	pipeline, err := mediapipeline.New(mediapipeline.Config{
		RTSPURL:     rtspURL,
		Width:       width,
		Height:      height,
		SampleEvery: sampleEvery,
	}, logger)
	if err != nil {
		logger.Fatal("build pipeline", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pipeline.Start(ctx); err != nil {
		logger.Fatal("start pipeline", zap.Error(err))
	}

	var tasks sync.WaitGroup
	seq := 0

	for {
		select {
		case img, ok := <-pipeline.Frames():
			if !ok {
				tasks.Wait()
				logger.Info("frame stream ended")
				return
			}
			seq++
			frameID := mediapipeline.FrameID(monitorID, seq)

			tasks.Add(1)
			go func(frameID string, img image.Image) {
				defer tasks.Done()
				publishFrame(ctx, natsBus, logger, frameID, monitorID, img)
			}(frameID, img)
		case msg := <-pipeline.Bus():
			switch msg.Kind {
			case mediapipeline.MessageEos:
				logger.Info("pipeline reported end of stream")
			case mediapipeline.MessageError:
				logger.Error("pipeline error", zap.Error(msg.Err))
			}
		case <-ctx.Done():
			pipeline.Stop()
			tasks.Wait()
			return
		}
	}
}

func publishFrame(ctx context.Context, b bus.Bus, logger *zap.Logger, frameID string, monitorID *string, img image.Image) {
	png, err := imaging.EncodePNG(img)
	if err != nil {
		logger.Error("encode frame", zap.String("frame_id", frameID), zap.Error(err))
		return
	}

	headers := map[string]string{
		"Content-Type": string(model.PictureTypePNG),
		"frame_id":     frameID,
		"created_at":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if monitorID != nil {
		headers["monitor_id"] = *monitorID
	}

	if err := b.Publish(ctx, framesSubject, headers, png); err != nil {
		logger.Error("publish frame", zap.String("frame_id", frameID), zap.Error(err))
	}
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
