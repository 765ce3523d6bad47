package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS meetings (
	id           TEXT PRIMARY KEY,
	meeting_name TEXT NOT NULL,
	description  TEXT,
	duration     INTEGER,
	agenda       TEXT[],
	attendees    TEXT[],
	room_name    TEXT UNIQUE,
	room_url     TEXT,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS recordings (
	meeting_id    TEXT PRIMARY KEY,
	recording_url TEXT,
	file_path     TEXT,
	participants  JSONB,
	transcript    JSONB,
	chat_messages JSONB,
	end_time      TEXT,
	status        TEXT NOT NULL DEFAULT 'pending',
	created_at    TIMESTAMPTZ NOT NULL
);`

// Postgres persists meetings and recording metadata through database/sql
// with the pq driver.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres store")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to reach postgres store")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ensure store schema")
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) SaveMeeting(ctx context.Context, m *Meeting) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (id, meeting_name, description, duration, agenda, attendees, room_name, room_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.Name, m.Description, m.Duration,
		pq.Array(m.Agenda), pq.Array(m.Attendees),
		m.RoomName, m.RoomURL, m.CreatedAt,
	)
	return errors.Wrap(err, "failed to save meeting")
}

func (s *Postgres) GetMeetingByRoom(ctx context.Context, roomName string) (*Meeting, error) {
	m := &Meeting{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, meeting_name, description, duration, agenda, attendees, room_name, room_url, created_at
		FROM meetings WHERE room_name = $1`, roomName).
		Scan(&m.ID, &m.Name, &m.Description, &m.Duration,
			pq.Array(&m.Agenda), pq.Array(&m.Attendees),
			&m.RoomName, &m.RoomURL, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load meeting")
	}
	return m, nil
}

func (s *Postgres) SaveRecording(ctx context.Context, r *Recording) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (meeting_id, recording_url, file_path, participants, transcript, chat_messages, end_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (meeting_id) DO UPDATE SET
			recording_url = EXCLUDED.recording_url,
			participants  = EXCLUDED.participants,
			transcript    = EXCLUDED.transcript,
			chat_messages = EXCLUDED.chat_messages,
			end_time      = EXCLUDED.end_time,
			status        = EXCLUDED.status`,
		r.MeetingID, r.RecordingURL, r.FilePath,
		[]byte(r.Participants), []byte(r.Transcript), []byte(r.ChatMessages),
		r.EndTime, r.Status, r.CreatedAt,
	)
	return errors.Wrap(err, "failed to save recording")
}

func (s *Postgres) SetRecordingFile(ctx context.Context, meetingID, filePath string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (meeting_id, file_path, status, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (meeting_id) DO UPDATE SET file_path = EXCLUDED.file_path`,
		meetingID, filePath, StatusPending, time.Now(),
	)
	return errors.Wrap(err, "failed to set recording file")
}

func (s *Postgres) SetRecordingStatus(ctx context.Context, meetingID, status, recordingURL string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (meeting_id, recording_url, status, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (meeting_id) DO UPDATE SET
			status        = EXCLUDED.status,
			recording_url = CASE WHEN EXCLUDED.recording_url <> '' THEN EXCLUDED.recording_url ELSE recordings.recording_url END`,
		meetingID, recordingURL, status, time.Now(),
	)
	return errors.Wrap(err, "failed to set recording status")
}

func (s *Postgres) GetRecording(ctx context.Context, meetingID string) (*Recording, error) {
	r := &Recording{}
	var participants, transcript, chat []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT meeting_id, COALESCE(recording_url, ''), COALESCE(file_path, ''), participants, transcript, chat_messages, COALESCE(end_time, ''), status, created_at
		FROM recordings WHERE meeting_id = $1`, meetingID).
		Scan(&r.MeetingID, &r.RecordingURL, &r.FilePath,
			&participants, &transcript, &chat, &r.EndTime, &r.Status, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load recording")
	}
	r.Participants = participants
	r.Transcript = transcript
	r.ChatMessages = chat
	return r, nil
}

func (s *Postgres) ListRecordings(ctx context.Context) ([]*Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT meeting_id, COALESCE(recording_url, ''), COALESCE(file_path, ''), participants, transcript, chat_messages, COALESCE(end_time, ''), status, created_at
		FROM recordings ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recordings")
	}
	defer rows.Close()

	out := make([]*Recording, 0)
	for rows.Next() {
		r := &Recording{}
		var participants, transcript, chat []byte
		if err := rows.Scan(&r.MeetingID, &r.RecordingURL, &r.FilePath,
			&participants, &transcript, &chat, &r.EndTime, &r.Status, &r.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan recording")
		}
		r.Participants = participants
		r.Transcript = transcript
		r.ChatMessages = chat
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Postgres) Close() error {
	return s.db.Close()
}
