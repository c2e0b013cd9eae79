// Command gateway consumes recognition results from the "recognition"
// subject and fans each one out to its own set of independent handlers
// (persistence, notification): one handler's failure never blocks another.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/bus"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/config"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/database"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/notify"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/storage"
)

const recognitionSubject = "recognition"

// personLabel is the only detection label the gateway acts on; every other
// label is discarded before dispatch, per spec §4.3.
const personLabel = "person"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	src, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	natsURL := src.String("NATS_URL", "nats_url", "nats://localhost:4222")
	dbURL, err := src.RequireString("DATABASE_URL", "database_url")
	if err != nil {
		logger.Fatal("resolve database url", zap.Error(err))
	}
	webhookURL := src.String("WEBHOOK_URL", "webhook_url", "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	natsBus, err := bus.Connect(natsURL, logger)
	if err != nil {
		logger.Fatal("connect bus", zap.Error(err))
	}
	defer natsBus.Close()

	db, err := database.New(dbURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		logger.Fatal("ping database", zap.Error(err))
	}
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	store, err := storage.NewS3Store(ctx, storage.Config{
		Endpoint:        src.String("S3_ENDPOINT", "s3_endpoint", ""),
		Region:          src.String("S3_REGION", "s3_region", "us-east-1"),
		Bucket:          src.String("S3_BUCKET", "s3_bucket", "entities"),
		AccessKeyID:     src.String("S3_ACCESS_KEY_ID", "s3_access_key_id", ""),
		SecretAccessKey: src.String("S3_SECRET_ACCESS_KEY", "s3_secret_access_key", ""),
		UsePathStyle:    src.String("S3_PATH_STYLE", "s3_path_style", "") == "true",
	})
	if err != nil {
		logger.Fatal("build object store", zap.Error(err))
	}

	handlers := []handler{
		persistHandler{db: db, store: store, logger: logger},
	}
	if webhookURL != "" {
		handlers = append(handlers, notifyHandler{notifier: notify.New(webhookURL), logger: logger})
	}

	var tasks sync.WaitGroup

	sub, err := natsBus.Subscribe(recognitionSubject, handleRecognition(handlers, &tasks, logger))
	if err != nil {
		logger.Fatal("subscribe recognition", zap.Error(err))
	}
	defer sub.Unsubscribe()

	logger.Info("gateway running")
	<-ctx.Done()
	logger.Info("shutting down")
	tasks.Wait()
}

// handleRecognition decodes a recognition message, drops every detection
// whose label isn't "person" (spec §4.3), and fans the remainder out to every
// handler on its own task.
func handleRecognition(handlers []handler, tasks *sync.WaitGroup, logger *zap.Logger) bus.Handler {
	return func(ctx context.Context, msg bus.Message) {
		var results model.RecognitionResults
		dec := json.NewDecoder(bytes.NewReader(msg.Data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&results); err != nil {
			logger.Warn("decode recognition message", zap.Error(err))
			return
		}

		results.Results = filterPerson(results.Results)
		if len(results.Results) == 0 {
			return
		}

		for _, h := range handlers {
			h := h
			tasks.Add(1)
			go func() {
				defer tasks.Done()
				h.Handle(ctx, results)
			}()
		}
	}
}

// filterPerson discards every detection whose label isn't "person", per
// spec §4.3 ("all other detections are discarded").
func filterPerson(detections []model.Detection) []model.Detection {
	kept := make([]model.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Label == personLabel {
			kept = append(kept, d)
		}
	}
	return kept
}

// handler processes one RecognitionResults batch. Each handler's failure is
// isolated: it is logged and does not affect the others, per the gateway's
// fan-out contract.
type handler interface {
	Handle(ctx context.Context, results model.RecognitionResults)
}

// entityWriter is the persistence surface persistHandler needs, narrowed from
// *database.Database so tests can substitute a fake without a live connection.
type entityWriter interface {
	EnsureMonitor(ctx context.Context, id *string) error
	InsertEntity(ctx context.Context, e model.Entity) (int64, error)
}

type persistHandler struct {
	db     entityWriter
	store  storage.Store
	logger *zap.Logger
}

func (h persistHandler) Handle(ctx context.Context, results model.RecognitionResults) {
	for _, d := range results.Results {
		if err := h.db.EnsureMonitor(ctx, d.MonitorID); err != nil {
			h.logger.Error("ensure monitor", zap.String("frame_id", d.FrameID), zap.Error(err))
			continue
		}

		key := fmt.Sprintf("%s.png", uuid.NewString())
		if err := h.store.Put(ctx, key, d.Picture, string(d.PictureType)); err != nil {
			h.logger.Error("store picture", zap.String("frame_id", d.FrameID), zap.Error(err))
			continue
		}

		entity := model.Entity{
			ImageID:    key,
			Label:      d.Label,
			Confidence: model.NewConfidence(d.Confidence),
			MonitorID:  d.MonitorID,
			CreatedAt:  d.CreatedAt,
		}
		if _, err := h.db.InsertEntity(ctx, entity); err != nil {
			h.logger.Error("insert entity", zap.String("frame_id", d.FrameID), zap.Error(err))
			return
		}
	}
}

type notifyHandler struct {
	notifier notify.Notifier
	logger   *zap.Logger
}

func (h notifyHandler) Handle(ctx context.Context, results model.RecognitionResults) {
	if err := h.notifier.Send(ctx, results); err != nil {
		h.logger.Error("send notification", zap.Error(err))
	}
}
