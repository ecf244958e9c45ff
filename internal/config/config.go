// Package config loads process configuration from environment
// variables (and an optional .env file in development), applying the
// same spec-mandated defaults the rest of the pipeline expects.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/toursvc/conversion-pipeline/internal/queue"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it, using system environment variables")
	}
}

// BlobStoreKind selects which BlobStore implementation the process
// wires up.
type BlobStoreKind string

const (
	BlobStoreMemory  BlobStoreKind = "memory"
	BlobStoreLocalFS BlobStoreKind = "localfs"
	BlobStoreS3      BlobStoreKind = "s3"
)

// Config is the process-wide configuration assembled from the
// environment at startup.
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string // optional: enables PostgresSink when set

	BlobStoreKind BlobStoreKind
	LocalFSRoot   string
	S3Endpoint    string
	S3Region      string
	S3AccessKey   string
	S3SecretKey   string
	S3Bucket      string

	RendererMode  string // "mock" | "real"
	ConverterMode string // "mock" | "real"
	WorkDir       string

	Queue queue.Config

	ProvenanceBufferSize int
}

// Load assembles Config from the environment, applying defaults for
// anything unset.
func Load() Config {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("NODE_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		BlobStoreKind: BlobStoreKind(getEnv("BLOBSTORE_KIND", string(BlobStoreLocalFS))),
		LocalFSRoot:   getEnv("BLOBSTORE_ROOT", "./data/blobs"),
		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		S3Region:      getEnv("S3_REGION", "auto"),
		S3AccessKey:   os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:   os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3Bucket:      os.Getenv("S3_BUCKET"),

		RendererMode:  getEnv("QA_RENDERER_MODE", "mock"),
		ConverterMode: getEnv("SPLAT_CONVERTER_MODE", "mock"),
		WorkDir:       getEnv("PIPELINE_WORK_DIR", os.TempDir()),

		Queue: queue.DefaultConfig(),

		ProvenanceBufferSize: getEnvInt("PROVENANCE_BUFFER_SIZE", 256),
	}

	cfg.Queue.Concurrency = getEnvInt("QUEUE_CONCURRENCY", cfg.Queue.Concurrency)
	cfg.Queue.MaxPendingJobs = getEnvInt("QUEUE_MAX_PENDING_JOBS", cfg.Queue.MaxPendingJobs)
	cfg.Queue.CircuitBreakerThreshold = getEnvInt("QUEUE_CIRCUIT_BREAKER_THRESHOLD", cfg.Queue.CircuitBreakerThreshold)
	cfg.Queue.CircuitBreakerResetMs = getEnvInt("QUEUE_CIRCUIT_BREAKER_RESET_MS", cfg.Queue.CircuitBreakerResetMs)
	cfg.Queue.RetryMaxAttempts = getEnvInt("QUEUE_RETRY_MAX_ATTEMPTS", cfg.Queue.RetryMaxAttempts)
	cfg.Queue.CompletedRetention = getEnvInt("QUEUE_COMPLETED_RETENTION", cfg.Queue.CompletedRetention)
	cfg.Queue.FailedRetention = getEnvInt("QUEUE_FAILED_RETENTION", cfg.Queue.FailedRetention)
	if base := os.Getenv("QUEUE_RETRY_BASE_DELAY_SECONDS"); base != "" {
		if secs, err := strconv.Atoi(base); err == nil {
			cfg.Queue.RetryBaseDelay = time.Duration(secs) * time.Second
		}
	}

	return cfg
}

// GetAllowedOrigins returns a slice of allowed origins from the
// environment, for the (optional) HTTP submission API's CORS policy.
func GetAllowedOrigins() []string {
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr == "" {
		return []string{"http://localhost:3000"}
	}

	parts := strings.Split(originsStr, ",")
	var origins []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}
