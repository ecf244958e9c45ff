package provenance

import "log/slog"

// FanOutSink emits every record to each of its sinks in turn. One
// sink panicking must not stop the record from reaching the others,
// so each sink's Emit runs under its own recover rather than relying
// on the ledger's single top-level one.
type FanOutSink struct {
	sinks  []Sink
	logger *slog.Logger
}

// FanOut composes sinks into a single Sink that writes to all of them.
func FanOut(sinks ...Sink) *FanOutSink {
	return &FanOutSink{sinks: sinks, logger: slog.Default()}
}

func (f *FanOutSink) Emit(r Record) {
	for _, s := range f.sinks {
		f.emitOne(s, r)
	}
}

func (f *FanOutSink) emitOne(s Sink, r Record) {
	defer func() {
		if rec := recover(); rec != nil {
			f.logger.Error("provenance fan-out sink panicked", "recovered", rec)
		}
	}()
	s.Emit(r)
}
