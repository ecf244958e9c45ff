package provenance

import "log/slog"

// LogSink writes provenance records as structured slog events. This is
// the zero-dependency default sink, matching the teacher's
// log-everything-through-slog style.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink writing through logger (or the default
// logger if nil).
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(r Record) {
	s.logger.Info("provenance",
		"type", r.Type,
		"asset_id", r.AssetID,
		"sequence", r.Sequence,
		"timestamp", r.Timestamp,
		"actor_id", r.ActorID,
		"details", r.Details,
	)
}
