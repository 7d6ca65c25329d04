package app

import (
	"go.uber.org/zap"

	"github.com/ayusman/printcam/internal/detect"
	"github.com/ayusman/printcam/internal/store"
)

// fanout delivers one motion event to every configured sink, in order, on
// the detector's goroutine.
type fanout []detect.EventSink

func (f fanout) MotionDetected(e detect.Event) {
	for _, s := range f {
		s.MotionDetected(e)
	}
}

// StoreSink records motion events in the event log. Insert failures are
// logged and dropped; the event log is advisory, not load-bearing.
type StoreSink struct {
	events *store.EventStore
	log    *zap.SugaredLogger
}

// NewStoreSink creates a sink writing into the given store.
func NewStoreSink(s *store.Store, log *zap.SugaredLogger) *StoreSink {
	return &StoreSink{events: s.Events(), log: log}
}

// MotionDetected implements detect.EventSink.
func (s *StoreSink) MotionDetected(e detect.Event) {
	ev := store.Event{
		ID:        e.ID,
		Metric:    e.Metric,
		Snapshot:  e.Snapshot,
		CreatedAt: e.Time,
	}
	if err := s.events.Insert(&ev); err != nil {
		s.log.Errorw("recording motion event", "id", e.ID, "error", err)
	}
}
