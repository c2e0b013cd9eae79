// Command api serves the paginated query surface over monitors and
// entities, with presigned image URLs.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/api"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/config"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/database"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/storage"
)

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

	dbURL, err := src.RequireString("DATABASE_URL", "database_url")
	if err != nil {
		logger.Fatal("resolve database url", zap.Error(err))
	}
	addr := src.String("LISTEN_ADDR", "listen_addr", ":8080")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(dbURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		logger.Fatal("ping database", zap.Error(err))
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

	resolver := api.New(db, store)
	server := api.NewServer(resolver, logger)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
	}()

	logger.Info("api listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("http serve", zap.Error(err))
	}
}
