package events

import (
	"github.com/AlekSi/pointer"
	"github.com/titanous/json5"
)

const (
	RecordingCompleteKey = "recordingComplete"
	RecordingFailedKey   = "recordingFailed"
)

// Event is a recording lifecycle message carried between the provider
// webhook handler and the recording worker.
type Event struct {
	Id           string  `json:"id,omitempty"`
	MeetingId    string  `json:"meetingId,omitempty"`
	RecordingURL string  `json:"recordingUrl,omitempty"`
	Error        *string `json:"error,omitempty"`
}

func (e Event) IsValid() bool {
	switch e.Id {
	case RecordingCompleteKey, RecordingFailedKey:
		return e.MeetingId != ""
	default:
		return false
	}
}

// Decode parses a raw channel message; undecodable payloads yield a zero
// event which fails IsValid.
func Decode(message []byte) Event {
	e := Event{}
	if err := json5.Unmarshal(message, &e); err != nil {
		return Event{}
	}
	return e
}

func NewRecordingComplete(meetingID, recordingURL string) Event {
	return Event{
		Id:           RecordingCompleteKey,
		MeetingId:    meetingID,
		RecordingURL: recordingURL,
	}
}

func NewRecordingFailed(meetingID string, err error) Event {
	return Event{
		Id:        RecordingFailedKey,
		MeetingId: meetingID,
		Error:     pointer.ToString(err.Error()),
	}
}
