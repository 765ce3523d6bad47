package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/meetline/meetline/internal/pubsub"
	"github.com/meetline/meetline/internal/pubsub/events"
	"github.com/meetline/meetline/internal/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// Mock PubSub delivering published messages straight to the subscriber.
type mockPubSub struct {
	handler pubsub.PubSubHandler
	started bool
}

func (p *mockPubSub) Subscribe(channel string, handler pubsub.PubSubHandler, onStart func() error) error {
	p.handler = handler
	p.started = true
	return onStart()
}

func (p *mockPubSub) Publish(channel string, msg []byte) error {
	p.handler(context.Background(), msg)
	return nil
}

func (p *mockPubSub) Check() error { return nil }
func (p *mockPubSub) Close() error { return nil }

var _ pubsub.PubSub = (*mockPubSub)(nil)

func TestRecordingWorker(t *testing.T) {
	ps := &mockPubSub{}
	st := store.NewMemory()
	ctx := context.Background()

	assert.NoError(t, st.SaveRecording(ctx, &store.Recording{MeetingID: "meeting_1"}))

	w := NewRecordingWorker(ps, st, "recordings")
	assert.NoError(t, w.Subscribe())
	assert.True(t, ps.started)

	j, _ := json.Marshal(events.NewRecordingComplete("meeting_1", "https://cdn.example.com/meeting_1.webm"))
	assert.NoError(t, ps.Publish("recordings", j))

	rec, err := st.GetRecording(ctx, "meeting_1")
	assert.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, rec.Status)
	assert.Equal(t, "https://cdn.example.com/meeting_1.webm", rec.RecordingURL)
}

func TestRecordingWorkerFailureEvent(t *testing.T) {
	ps := &mockPubSub{}
	st := store.NewMemory()
	ctx := context.Background()

	assert.NoError(t, st.SaveRecording(ctx, &store.Recording{MeetingID: "meeting_1"}))

	w := NewRecordingWorker(ps, st, "recordings")
	assert.NoError(t, w.Subscribe())

	j, _ := json.Marshal(events.NewRecordingFailed("meeting_1", errors.New("transcoding failed")))
	assert.NoError(t, ps.Publish("recordings", j))

	rec, err := st.GetRecording(ctx, "meeting_1")
	assert.NoError(t, err)
	assert.Equal(t, store.StatusError, rec.Status)
}

func TestRecordingWorkerIgnoresInvalidMessages(t *testing.T) {
	ps := &mockPubSub{}
	st := store.NewMemory()
	ctx := context.Background()

	assert.NoError(t, st.SaveRecording(ctx, &store.Recording{MeetingID: "meeting_1"}))

	w := NewRecordingWorker(ps, st, "recordings")
	assert.NoError(t, w.Subscribe())

	assert.NoError(t, ps.Publish("recordings", []byte("garbage")))
	assert.NoError(t, ps.Publish("recordings", []byte(`{"id": "recordingComplete"}`)))

	rec, err := st.GetRecording(ctx, "meeting_1")
	assert.NoError(t, err)
	assert.Equal(t, store.StatusPending, rec.Status)
}
