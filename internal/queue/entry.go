package queue

import (
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/toursvc/conversion-pipeline/internal/pipeline"
)

// EntryStatus is where one submitted job currently sits.
type EntryStatus string

const (
	EntryWaiting   EntryStatus = "waiting"
	EntryActive    EntryStatus = "active"
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
)

// Entry tracks one job through the queue, independent of the
// conversion-service's own internal state machine.
type Entry struct {
	JobID       string
	Job         pipeline.Job
	Status      EntryStatus
	Progress    int
	Attempts    int
	Result      *pipeline.Result
	Err         error
	SubmittedAt time.Time
	UpdatedAt   time.Time

	backoff retry.Backoff
}

// ring is a fixed-capacity FIFO used for completed/failed retention
// windows; oldest entries fall off once capacity is exceeded.
type ring struct {
	items []*Entry
	cap   int
}

func newRing(capacity int) *ring {
	return &ring{cap: capacity}
}

func (r *ring) push(e *Entry) {
	r.items = append(r.items, e)
	if len(r.items) > r.cap {
		r.items = r.items[len(r.items)-r.cap:]
	}
}

func (r *ring) snapshot() []*Entry {
	out := make([]*Entry, len(r.items))
	copy(out, r.items)
	return out
}
