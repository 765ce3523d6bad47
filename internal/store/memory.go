package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a map-backed Store for development and tests.
type Memory struct {
	mu         sync.RWMutex
	meetings   map[string]*Meeting // keyed by room name
	recordings map[string]*Recording
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		meetings:   make(map[string]*Meeting),
		recordings: make(map[string]*Recording),
	}
}

func (s *Memory) SaveMeeting(_ context.Context, m *Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	cp := *m
	s.meetings[m.RoomName] = &cp
	return nil
}

func (s *Memory) GetMeetingByRoom(_ context.Context, roomName string) (*Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[roomName]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Memory) SaveRecording(_ context.Context, r *Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	if cp.Status == "" {
		cp.Status = StatusPending
	}
	if existing, ok := s.recordings[r.MeetingID]; ok && cp.FilePath == "" {
		cp.FilePath = existing.FilePath
	}
	s.recordings[r.MeetingID] = &cp
	return nil
}

func (s *Memory) SetRecordingFile(_ context.Context, meetingID, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recordings[meetingID]
	if !ok {
		r = &Recording{MeetingID: meetingID, Status: StatusPending, CreatedAt: time.Now()}
		s.recordings[meetingID] = r
	}
	r.FilePath = filePath
	return nil
}

func (s *Memory) SetRecordingStatus(_ context.Context, meetingID, status, recordingURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recordings[meetingID]
	if !ok {
		r = &Recording{MeetingID: meetingID, CreatedAt: time.Now()}
		s.recordings[meetingID] = r
	}
	r.Status = status
	if recordingURL != "" {
		r.RecordingURL = recordingURL
	}
	return nil
}

func (s *Memory) GetRecording(_ context.Context, meetingID string) (*Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recordings[meetingID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Memory) ListRecordings(_ context.Context) ([]*Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Recording, 0, len(s.recordings))
	for _, r := range s.recordings {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Memory) Close() error { return nil }
