package stores

import (
	"coderooms/core"
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const flushTimeout = 5 * time.Second

// Recorder moves room activity off the caller's goroutine. Records for the
// same room are coalesced between flushes so a burst of edits costs one
// write.
type Recorder struct {
	store    core.ActivityStore
	records  chan core.RoomActivity
	interval time.Duration
}

func NewRecorder(store core.ActivityStore, buffer int, interval time.Duration) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Recorder{
		store:    store,
		records:  make(chan core.RoomActivity, buffer),
		interval: interval,
	}
}

// Record never blocks; when the buffer is full the record is dropped.
func (r *Recorder) Record(activity core.RoomActivity) {
	select {
	case r.records <- activity:
	default:
		logrus.WithField("room_id", activity.ID).Warn("Activity buffer full, dropping record")
	}
}

// Run flushes pending records every interval until ctx is done, then drains
// and flushes whatever is left.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	pending := make(map[string]core.RoomActivity)
	for {
		select {
		case activity := <-r.records:
			pending[activity.ID] = activity
		case <-ticker.C:
			r.flush(pending)
		case <-ctx.Done():
			for {
				select {
				case activity := <-r.records:
					pending[activity.ID] = activity
				default:
					r.flush(pending)
					return
				}
			}
		}
	}
}

func (r *Recorder) flush(pending map[string]core.RoomActivity) {
	if len(pending) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for id, activity := range pending {
		if err := r.store.TouchRoom(ctx, activity); err != nil {
			logrus.WithError(err).WithField("room_id", id).Warn("Failed to record room activity")
		}
		delete(pending, id)
	}
}
