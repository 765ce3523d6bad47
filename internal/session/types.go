package session

import (
	"context"
	"time"
)

// RoomDescriptor is the client-held record of a created or fetched room.
// It is read-only after creation and must exist before a call session may
// be constructed for the room.
type RoomDescriptor struct {
	Name      string     `json:"name"`
	JoinURL   string     `json:"url"`
	HostFlag  bool       `json:"hostFlag"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Attendees []string   `json:"attendees,omitempty"`
}

// SessionContext carries the persisted room descriptor and the current
// user's identity explicitly. Nothing in this package reads ambient
// storage.
type SessionContext struct {
	Descriptor *RoomDescriptor
	Identity   string
}

// ParticipantRecord tracks one connected participant. SessionId is unique
// per connection, not per person. Admitted only ever transitions false to
// true; a decline removes the record instead of reverting it.
type ParticipantRecord struct {
	SessionId   string
	DisplayName string
	IsLocal     bool
	Admitted    bool
}

// Permissions are the provider-side send/presence capabilities raised on
// admit and revoked on decline.
type Permissions struct {
	HasPresence bool `json:"hasPresence"`
	CanSend     bool `json:"canSend"`
}

type JoinOptions struct {
	URL      string
	UserName string
	Token    string
}

// Call is the provider call object. Exactly one controller owns a Call at
// a time. Release must be safe to invoke on every exit path, including
// after errors, and must drop all media device handles.
type Call interface {
	Join(ctx context.Context, opts JoinOptions) error
	Leave() error
	SetLocalAudio(enabled bool) error
	SetLocalVideo(enabled bool) error
	StartScreenShare(ctx context.Context) error
	StopScreenShare(ctx context.Context) error
	UpdatePermissions(sessionID string, p Permissions) error
	Events() <-chan Event
	Release()
}
