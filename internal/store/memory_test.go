package store

import (
	"context"
	"testing"
	"time"

	"github.com/meetline/meetline/internal/config"
	"github.com/stretchr/testify/assert"
)

func configStore(adapter string) config.Store {
	return config.Store{Adapter: adapter}
}

func TestMemoryMeetings(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	m := &Meeting{
		ID:        "id-1",
		Name:      "Design Review",
		Duration:  30,
		Agenda:    []string{"Flow walkthrough"},
		Attendees: []string{"Sarah", "Mike"},
		RoomName:  "standup",
		RoomURL:   "https://meet.example.com/standup",
	}
	assert.NoError(t, s.SaveMeeting(ctx, m))

	got, err := s.GetMeetingByRoom(ctx, "standup")
	assert.NoError(t, err)
	assert.Equal(t, "Design Review", got.Name)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetMeetingByRoom(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRecordingLifecycle(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	assert.NoError(t, s.SaveRecording(ctx, &Recording{
		MeetingID: "meeting_1",
		EndTime:   "2026-09-01T10:30:00Z",
	}))

	got, err := s.GetRecording(ctx, "meeting_1")
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	assert.NoError(t, s.SetRecordingFile(ctx, "meeting_1", "recordings/meeting_1.webm"))
	assert.NoError(t, s.SetRecordingStatus(ctx, "meeting_1", StatusCompleted, "https://cdn.example.com/meeting_1.webm"))

	got, err = s.GetRecording(ctx, "meeting_1")
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "recordings/meeting_1.webm", got.FilePath)
	assert.Equal(t, "https://cdn.example.com/meeting_1.webm", got.RecordingURL)

	// Re-saving metadata keeps the uploaded file path.
	assert.NoError(t, s.SaveRecording(ctx, &Recording{
		MeetingID: "meeting_1",
		EndTime:   "2026-09-01T10:31:00Z",
	}))
	got, err = s.GetRecording(ctx, "meeting_1")
	assert.NoError(t, err)
	assert.Equal(t, "recordings/meeting_1.webm", got.FilePath)
}

func TestMemoryRecordingStatusForUnknownMeeting(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	// Webhooks can land before metadata; the status update creates the row.
	assert.NoError(t, s.SetRecordingStatus(ctx, "meeting_1", StatusError, ""))
	got, err := s.GetRecording(ctx, "meeting_1")
	assert.NoError(t, err)
	assert.Equal(t, StatusError, got.Status)
}

func TestMemoryListRecordings(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	old := &Recording{MeetingID: "meeting_old", CreatedAt: time.Now().Add(-time.Hour)}
	recent := &Recording{MeetingID: "meeting_new", CreatedAt: time.Now()}
	assert.NoError(t, s.SaveRecording(ctx, old))
	assert.NoError(t, s.SaveRecording(ctx, recent))

	list, err := s.ListRecordings(ctx)
	assert.NoError(t, err)
	if assert.Len(t, list, 2) {
		assert.Equal(t, "meeting_new", list[0].MeetingID)
		assert.Equal(t, "meeting_old", list[1].MeetingID)
	}
}

func TestOpenUnknownAdapter(t *testing.T) {
	_, err := Open(configStore("bogus"))
	assert.Error(t, err)
}

func TestOpenDefaultsToMemory(t *testing.T) {
	s, err := Open(configStore(""))
	assert.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
}
