package events

import (
	"time"

	"github.com/vadiminshakov/qqqm/internal/storage/journal"
	"github.com/vadiminshakov/qqqm/pkg/id"
	"go.uber.org/zap"
)

// Appender is the journal write side.
type Appender interface {
	Append(ev journal.Event) (uint64, error)
}

// Recorder appends events to the journal and then fans them out to live subscribers.
// A nil Recorder discards events.
type Recorder struct {
	journal Appender
	bus     *Broadcaster
	logger  *zap.Logger
}

// NewRecorder creates a recorder. Either sink may be nil.
func NewRecorder(j Appender, bus *Broadcaster, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{journal: j, bus: bus, logger: logger}
}

// Record stamps ev with an id and time when missing, persists it and publishes it.
// Journal failures are logged; the event is still published.
func (r *Recorder) Record(ev journal.Event) {
	if r == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	if ev.ID == "" {
		ev.ID = id.At(ev.Time)
	}

	if r.journal != nil {
		idx, err := r.journal.Append(ev)
		if err != nil {
			r.logger.Error("Failed to append journal event",
				zap.String("kind", string(ev.Kind)),
				zap.String("id", ev.ID),
				zap.Error(err))
		} else {
			ev.Index = idx
		}
	}

	r.bus.Publish(ev)
}
