package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/meetline/meetline/internal/config"
	"github.com/pkg/errors"
)

// Recording transcription/processing states.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusError     = "error"
)

var ErrNotFound = errors.New("not found")

// Meeting is the persisted record of a created room and its metadata.
type Meeting struct {
	ID          string
	Name        string
	Description string
	Duration    int
	Agenda      []string
	Attendees   []string
	RoomName    string
	RoomURL     string
	CreatedAt   time.Time
}

// Recording is the persisted metadata of one meeting recording, keyed by
// meeting id.
type Recording struct {
	MeetingID    string
	RecordingURL string
	FilePath     string
	Participants json.RawMessage
	Transcript   json.RawMessage
	ChatMessages json.RawMessage
	EndTime      string
	Status       string
	CreatedAt    time.Time
}

type Store interface {
	SaveMeeting(ctx context.Context, m *Meeting) error
	GetMeetingByRoom(ctx context.Context, roomName string) (*Meeting, error)
	SaveRecording(ctx context.Context, r *Recording) error
	SetRecordingFile(ctx context.Context, meetingID, filePath string) error
	SetRecordingStatus(ctx context.Context, meetingID, status, recordingURL string) error
	GetRecording(ctx context.Context, meetingID string) (*Recording, error)
	ListRecordings(ctx context.Context) ([]*Recording, error)
	Close() error
}

// Open picks the configured adapter. The in-memory store backs local
// development and tests; production points a DSN at Postgres.
func Open(cfg config.Store) (Store, error) {
	switch cfg.Adapter {
	case "postgres":
		return NewPostgres(cfg.DSN)
	case "memory", "":
		return NewMemory(), nil
	default:
		return nil, errors.Errorf("unknown store adapter %q", cfg.Adapter)
	}
}
