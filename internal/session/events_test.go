package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	ev := Decode([]byte(`{"id": "participantJoined", "sessionId": "s1", "userName": "alice", "owner": true}`))
	assert.True(t, ev.IsValid())
	assert.Equal(t, ParticipantJoinedKey, ev.Id)
	assert.Equal(t, "s1", ev.SessionId)
	assert.Equal(t, "alice", ev.UserName)
	assert.True(t, ev.Owner)
}

func TestDecodeGarbage(t *testing.T) {
	assert.False(t, Decode([]byte(`not json`)).IsValid())
	assert.False(t, Decode([]byte(`{}`)).IsValid())
}

func TestEventIsValid(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{"joined", Event{Id: JoinedKey}, true},
		{"left", Event{Id: LeftKey}, true},
		{"recording started", Event{Id: RecordingStartedKey}, true},
		{"error", Event{Id: ErrorKey}, true},
		{"participant joined with session", Event{Id: ParticipantJoinedKey, SessionId: "s1"}, true},
		{"participant joined without session", Event{Id: ParticipantJoinedKey}, false},
		{"participant left without session", Event{Id: ParticipantLeftKey}, false},
		{"unknown id", Event{Id: "bogus"}, false},
		{"empty", Event{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.IsValid())
		})
	}
}

func TestNewError(t *testing.T) {
	ev := NewError(assert.AnError)
	assert.Equal(t, ErrorKey, ev.Id)
	if assert.NotNil(t, ev.Error) {
		assert.Equal(t, assert.AnError.Error(), *ev.Error)
	}
}
