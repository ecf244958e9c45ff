package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/toursvc/conversion-pipeline/internal/api"
	"github.com/toursvc/conversion-pipeline/internal/blobstore"
	"github.com/toursvc/conversion-pipeline/internal/config"
	"github.com/toursvc/conversion-pipeline/internal/converter"
	"github.com/toursvc/conversion-pipeline/internal/database"
	"github.com/toursvc/conversion-pipeline/internal/logger"
	"github.com/toursvc/conversion-pipeline/internal/observability"
	"github.com/toursvc/conversion-pipeline/internal/pipeline"
	"github.com/toursvc/conversion-pipeline/internal/provenance"
	"github.com/toursvc/conversion-pipeline/internal/qa"
	"github.com/toursvc/conversion-pipeline/internal/queue"
	"github.com/toursvc/conversion-pipeline/internal/regression"
	"github.com/toursvc/conversion-pipeline/internal/render"
)

func main() {
	cfg := config.Load()

	log := logger.Init("tour-conversion-pipeline", cfg.Env, logger.ParseLevelFromEnv())

	shutdownOTel, err := observability.InitOTel(context.Background(), "tour-conversion-pipeline")
	if err != nil {
		log.Warn("failed to initialize OpenTelemetry", "error", err)
	} else {
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				log.Error("error shutting down OpenTelemetry", "error", err)
			}
		}()
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		log.Error("failed to configure blob store", "error", err)
		os.Exit(1)
	}

	sink, closeSink := newProvenanceSink(cfg, log)
	if closeSink != nil {
		defer closeSink()
	}
	ledger := provenance.NewLedger(sink, log)

	conv := converter.NewDriver(converter.Mode(cfg.ConverterMode), log)
	qaEngine := qa.NewEngine(render.Mode(cfg.RendererMode))
	harness := regression.NewHarness(regression.Thresholds{})

	svc := pipeline.NewService(blobs, conv, qaEngine, ledger, harness, cfg.WorkDir, log)
	q := queue.New(cfg.Queue, svc, log)

	router := api.Setup(q)
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "renderer_mode", cfg.RendererMode, "converter_mode", cfg.ConverterMode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	q.Stop(30 * time.Second)

	log.Info("exited")
}

func newBlobStore(cfg config.Config) (blobstore.BlobStore, error) {
	switch cfg.BlobStoreKind {
	case config.BlobStoreS3:
		return blobstore.NewS3Store(blobstore.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
		})
	case config.BlobStoreMemory:
		return blobstore.NewMemoryStore(), nil
	default:
		return blobstore.NewLocalFSStore(cfg.LocalFSRoot)
	}
}

// newProvenanceSink wires a LogSink plus, when DATABASE_URL is set, a
// PostgresSink behind a fan-out sink so every record lands in both
// structured logs and the durable table. Returns a cleanup func to flush
// the Postgres sink on shutdown, nil if none was created.
func newProvenanceSink(cfg config.Config, log *slog.Logger) (provenance.Sink, func()) {
	logSink := provenance.NewLogSink(log)
	if cfg.DatabaseURL == "" {
		return logSink, nil
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Warn("provenance database not configured, falling back to log-only sink", "error", err)
		return logSink, nil
	}

	pgSink := provenance.NewPostgresSink(db.DB, cfg.ProvenanceBufferSize, log)
	return provenance.FanOut(logSink, pgSink), func() {
		pgSink.Close()
		db.Close()
	}
}
