package provenance

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Ledger stamps and dispatches records to a Sink. Emit is always
// non-blocking and never returns an error: provenance is best-effort
// and kept separate from the data path (spec.md §4.9).
type Ledger struct {
	sink     Sink
	sequence atomic.Uint64
	logger   *slog.Logger
}

// NewLedger wraps sink with sequence stamping. A nil sink is valid and
// silently drops records (useful in tests that don't care about
// provenance).
func NewLedger(sink Sink, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{sink: sink, logger: logger}
}

// Emit stamps r with a timestamp and monotonic sequence number (ties in
// Timestamp are broken by Sequence, per spec.md invariant 5) and hands
// it to the sink. Sink panics are recovered and logged, never
// propagated.
func (l *Ledger) Emit(r Record) {
	if l.sink == nil {
		return
	}
	r.Timestamp = time.Now()
	r.Sequence = l.sequence.Add(1)

	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error("provenance sink panicked", "recovered", rec)
		}
	}()
	l.sink.Emit(r)
}

// Upload emits an upload record.
func (l *Ledger) Upload(assetID string, d UploadDetails) {
	l.Emit(Record{Type: TypeUpload, AssetID: assetID, Details: d})
}

// Conversion emits a conversion record.
func (l *Ledger) Conversion(assetID string, d ConversionDetails) {
	l.Emit(Record{Type: TypeConversion, AssetID: assetID, Details: d})
}

// QAPass emits a qa_pass record.
func (l *Ledger) QAPass(assetID string, d QAPassDetails) {
	l.Emit(Record{Type: TypeQAPass, AssetID: assetID, Details: d})
}

// IntegrityCheck emits an integrity_check record.
func (l *Ledger) IntegrityCheck(assetID string, d IntegrityCheckDetails) {
	l.Emit(Record{Type: TypeIntegrityCheck, AssetID: assetID, Details: d})
}

// Access emits an access record, optionally attributed to an actor.
func (l *Ledger) Access(assetID, actorID, actorEmail string, d AccessDetails) {
	l.Emit(Record{Type: TypeAccess, AssetID: assetID, ActorID: actorID, ActorEmail: actorEmail, Details: d})
}
