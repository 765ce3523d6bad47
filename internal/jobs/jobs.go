package jobs

import (
	"context"

	"github.com/meetline/meetline/internal/pubsub"
	"github.com/meetline/meetline/internal/pubsub/events"
	"github.com/meetline/meetline/internal/store"
	log "github.com/sirupsen/logrus"
)

// RecordingWorker consumes recording lifecycle events published by the
// webhook handler and keeps recording status in the store up to date.
type RecordingWorker struct {
	pubsub  pubsub.PubSub
	store   store.Store
	channel string
}

func NewRecordingWorker(ps pubsub.PubSub, st store.Store, channel string) *RecordingWorker {
	return &RecordingWorker{
		pubsub:  ps,
		store:   st,
		channel: channel,
	}
}

// Subscribe blocks listening on the recordings channel until the pubsub
// connection is closed.
func (w *RecordingWorker) Subscribe() error {
	return w.pubsub.Subscribe(w.channel, w.handleMessage, func() error {
		log.WithField("channel", w.channel).
			Info("recording worker listening")
		return nil
	})
}

func (w *RecordingWorker) handleMessage(ctx context.Context, message []byte) {
	e := events.Decode(message)
	if !e.IsValid() {
		log.WithField("message", string(message)).
			Warn("discarding invalid recording event")
		return
	}

	switch e.Id {
	case events.RecordingCompleteKey:
		if err := w.store.SetRecordingStatus(ctx, e.MeetingId,
			store.StatusCompleted, e.RecordingURL); err != nil {
			log.WithField("meetingId", e.MeetingId).
				Errorf("failed to mark recording completed: %s", err)
			return
		}
		log.WithField("meetingId", e.MeetingId).
			Info("recording completed")
	case events.RecordingFailedKey:
		if err := w.store.SetRecordingStatus(ctx, e.MeetingId,
			store.StatusError, ""); err != nil {
			log.WithField("meetingId", e.MeetingId).
				Errorf("failed to mark recording errored: %s", err)
			return
		}
		reason := ""
		if e.Error != nil {
			reason = *e.Error
		}
		log.WithField("meetingId", e.MeetingId).
			Warnf("recording failed: %s", reason)
	}
}
