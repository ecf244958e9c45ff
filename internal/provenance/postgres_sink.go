package provenance

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresSink persists provenance records to a `provenance_records`
// table (see cmd/migrate). Emit is non-blocking: records are buffered on
// a bounded channel and drained by a background goroutine, matching the
// teacher's worker-pool shape in internal/imaging/service.go.
type PostgresSink struct {
	db     *sqlx.DB
	buffer chan Record
	logger *slog.Logger
	done   chan struct{}
}

// NewPostgresSink starts a background drain loop against db. bufferSize
// bounds how many records may be queued; once it is full, Emit drops the
// incoming record and logs a warning (provenance is best-effort, never
// blocking).
func NewPostgresSink(db *sqlx.DB, bufferSize int, logger *slog.Logger) *PostgresSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PostgresSink{
		db:     db,
		buffer: make(chan Record, bufferSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

func (s *PostgresSink) Emit(r Record) {
	select {
	case s.buffer <- r:
	default:
		s.logger.Warn("provenance buffer full, dropping record", "asset_id", r.AssetID, "type", r.Type)
	}
}

// Close stops the drain loop after flushing buffered records.
func (s *PostgresSink) Close() {
	close(s.buffer)
	<-s.done
}

func (s *PostgresSink) drain() {
	defer close(s.done)
	for r := range s.buffer {
		if err := s.insert(r); err != nil {
			s.logger.Error("failed to persist provenance record", "error", err, "type", r.Type, "asset_id", r.AssetID)
		}
	}
}

func (s *PostgresSink) insert(r Record) error {
	detailsJSON, err := json.Marshal(r.Details)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO provenance_records
			(asset_id, type, occurred_at, sequence, actor_id, actor_email, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.AssetID, r.Type, r.Timestamp, r.Sequence, nullable(r.ActorID), nullable(r.ActorEmail), detailsJSON)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
