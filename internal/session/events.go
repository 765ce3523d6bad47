package session

import (
	"github.com/AlekSi/pointer"
	"github.com/titanous/json5"
)

const (
	JoinedKey            = "joined"
	ParticipantJoinedKey = "participantJoined"
	ParticipantLeftKey   = "participantLeft"
	LeftKey              = "left"
	RecordingStartedKey  = "recordingStarted"
	RecordingStoppedKey  = "recordingStopped"
	ErrorKey             = "error"
)

// Event is a single message on the provider's call event stream. The
// controller applies events strictly in delivery order; it never reorders
// or batches them.
type Event struct {
	Id          string  `json:"id,omitempty"`
	SessionId   string  `json:"sessionId,omitempty"`
	UserName    string  `json:"userName,omitempty"`
	Local       bool    `json:"local,omitempty"`
	Owner       bool    `json:"owner,omitempty"`
	RecordingId string  `json:"recordingId,omitempty"`
	Reason      *string `json:"reason,omitempty"`
	Error       *string `json:"error,omitempty"`
}

func (e Event) IsValid() bool {
	switch e.Id {
	case JoinedKey, LeftKey, RecordingStartedKey, RecordingStoppedKey, ErrorKey:
		return true
	case ParticipantJoinedKey, ParticipantLeftKey:
		return e.SessionId != ""
	default:
		return false
	}
}

// Decode parses a raw provider message. Invalid payloads yield a zero
// event which fails IsValid.
func Decode(message []byte) Event {
	e := Event{}
	if err := json5.Unmarshal(message, &e); err != nil {
		return Event{}
	}
	return e
}

func NewError(err error) Event {
	return Event{Id: ErrorKey, Error: pointer.ToString(err.Error())}
}

func NewLeft(reason string) Event {
	return Event{Id: LeftKey, Reason: pointer.ToString(reason)}
}
