package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meetline/meetline/internal/assistant"
	"github.com/meetline/meetline/internal/provider"
	"github.com/meetline/meetline/internal/pubsub/events"
	"github.com/meetline/meetline/internal/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const maxUploadSize = 512 << 20 // recordings are chunked webm, can get large

// Meeting ids end up in filesystem paths; anything outside this charset
// (separators, dot-dot, null bytes) is rejected before it reaches the disk.
var meetingIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

var fileExtPattern = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)

type createRoomRequest struct {
	Name     string `json:"name,omitempty"`
	UserName string `json:"user_name,omitempty"`

	// Meeting metadata arrives either top-level, the way the browser
	// client posts it, or nested under "meeting".
	MeetingName string                     `json:"meeting_name,omitempty"`
	Description string                     `json:"description,omitempty"`
	Duration    int                        `json:"duration,omitempty"`
	Agenda      []string                   `json:"agenda,omitempty"`
	Attendees   []string                   `json:"attendees,omitempty"`
	Meeting     *assistant.MeetingMetadata `json:"meeting,omitempty"`
}

// metadata flattens the two accepted request shapes; the nested object wins
// when both are present.
func (r *createRoomRequest) metadata() *assistant.MeetingMetadata {
	if r.Meeting != nil {
		return r.Meeting
	}
	if r.MeetingName == "" && r.Description == "" && r.Duration == 0 &&
		len(r.Agenda) == 0 && len(r.Attendees) == 0 {
		return nil
	}
	return &assistant.MeetingMetadata{
		Title:           r.MeetingName,
		Description:     r.Description,
		DurationMinutes: r.Duration,
		Agenda:          r.Agenda,
		Attendees:       r.Attendees,
	}
}

type roomResponse struct {
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if r.Body != nil {
		// An empty body is fine, the provider generates a room name.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			respondError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	desc, err := s.provider.CreateRoom(r.Context(), req.Name)
	if err != nil {
		log.Errorf("room creation failed: %s", err)
		respondError(w, http.StatusBadGateway, "failed to create room")
		return
	}

	meeting := &store.Meeting{
		ID:       uuid.NewString(),
		RoomName: desc.Name,
		RoomURL:  desc.JoinURL,
	}
	if meta := req.metadata(); meta != nil {
		meeting.Name = meta.Title
		meeting.Description = meta.Description
		meeting.Duration = meta.DurationMinutes
		meeting.Agenda = meta.Agenda
		meeting.Attendees = meta.Attendees
	}
	if err := s.store.SaveMeeting(r.Context(), meeting); err != nil {
		log.Errorf("failed to persist meeting for room %s: %s", desc.Name, err)
	}

	resp := roomResponse{
		Name:      desc.Name,
		URL:       desc.JoinURL,
		ExpiresAt: desc.ExpiresAt,
	}
	// The creator is the host; the token carries ownership.
	if token, err := s.provider.MeetingToken(desc.Name, req.UserName, true,
		s.cfg.Provider.RoomExpiry); err != nil {
		log.Warnf("meeting token unavailable for room %s: %s", desc.Name, err)
	} else {
		resp.Token = token
	}

	respond(w, http.StatusOK, resp)
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	desc, err := s.provider.GetRoom(r.Context(), name)
	if err != nil {
		if _, ok := err.(*provider.NotFoundError); ok {
			respondError(w, http.StatusNotFound, "room not found")
			return
		}
		log.Errorf("room lookup failed: %s", err)
		respondError(w, http.StatusBadGateway, "failed to fetch room")
		return
	}

	respond(w, http.StatusOK, roomResponse{
		Name:      desc.Name,
		URL:       desc.JoinURL,
		ExpiresAt: desc.ExpiresAt,
	})
}

type processDescriptionRequest struct {
	Text           string                     `json:"text"`
	CurrentMeeting *assistant.MeetingMetadata `json:"current_meeting,omitempty"`
}

func (s *Server) processDescription(w http.ResponseWriter, r *http.Request) {
	var req processDescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	meta, err := s.assistant.Refine(r.Context(), req.Text, req.CurrentMeeting)
	if err != nil {
		log.Warnf("description processing failed: %s", err)
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	respond(w, http.StatusOK, meta)
}

func (s *Server) uploadRecording(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}

	meetingID := r.FormValue("meeting_id")
	if meetingID == "" {
		respondError(w, http.StatusBadRequest, "meeting_id is required")
		return
	}
	if !meetingIDPattern.MatchString(meetingID) {
		respondError(w, http.StatusBadRequest, "invalid meeting_id")
		return
	}

	file, header, err := r.FormFile("recording")
	if err != nil {
		respondError(w, http.StatusBadRequest, "recording file is required")
		return
	}
	defer file.Close()

	path, err := s.writeRecordingFile(meetingID, header.Filename, file)
	if err != nil {
		log.Errorf("failed to write recording for %s: %s", meetingID, err)
		respondError(w, http.StatusInternalServerError, "failed to store recording")
		return
	}

	if err := s.store.SetRecordingFile(r.Context(), meetingID, path); err != nil {
		log.Errorf("failed to persist recording path for %s: %s", meetingID, err)
		respondError(w, http.StatusInternalServerError, "failed to store recording")
		return
	}

	log.WithField("meetingId", meetingID).
		Infof("stored recording %s (%d bytes)", path, header.Size)
	respond(w, http.StatusOK, map[string]string{
		"meeting_id": meetingID,
		"file_path":  path,
	})
}

func (s *Server) writeRecordingFile(meetingID, filename string, src io.Reader) (string, error) {
	// Handlers validate the id already; keep the path guard here so no
	// future caller can join an unchecked id into the directory.
	if !meetingIDPattern.MatchString(meetingID) {
		return "", errors.Errorf("unsafe meeting id %q", meetingID)
	}

	dirMode, err := strconv.ParseUint(s.cfg.Recorder.DirFileMode, 8, 32)
	if err != nil {
		return "", err
	}
	fileMode, err := strconv.ParseUint(s.cfg.Recorder.FileMode, 8, 32)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.cfg.Recorder.Directory, os.FileMode(dirMode)); err != nil {
		return "", err
	}

	ext := filepath.Ext(filepath.Base(filename))
	if !fileExtPattern.MatchString(ext) {
		ext = ".webm"
	}
	path := filepath.Join(s.cfg.Recorder.Directory, meetingID+ext)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(fileMode))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

type recordingMetadataRequest struct {
	MeetingID    string          `json:"meeting_id,omitempty"`
	RecordingURL string          `json:"recording_url,omitempty"`
	Participants json.RawMessage `json:"participants,omitempty"`
	Transcript   json.RawMessage `json:"transcript,omitempty"`
	ChatMessages json.RawMessage `json:"chat_messages,omitempty"`
	EndTime      string          `json:"end_time,omitempty"`
}

func (s *Server) saveRecordingMetadata(w http.ResponseWriter, r *http.Request) {
	var req recordingMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.EndTime == "" {
		respondError(w, http.StatusBadRequest, "end_time is required")
		return
	}

	if req.MeetingID == "" {
		req.MeetingID = "meeting_" + time.Now().Format("20060102_150405")
	}

	rec := &store.Recording{
		MeetingID:    req.MeetingID,
		RecordingURL: req.RecordingURL,
		Participants: req.Participants,
		Transcript:   req.Transcript,
		ChatMessages: req.ChatMessages,
		EndTime:      req.EndTime,
		Status:       store.StatusPending,
	}
	if err := s.store.SaveRecording(r.Context(), rec); err != nil {
		log.Errorf("failed to save recording metadata for %s: %s", req.MeetingID, err)
		respondError(w, http.StatusInternalServerError, "failed to save metadata")
		return
	}

	respond(w, http.StatusOK, map[string]string{
		"meeting_id": req.MeetingID,
		"status":     store.StatusPending,
	})
}

type recordingResponse struct {
	MeetingID    string          `json:"meeting_id"`
	RecordingURL string          `json:"recording_url,omitempty"`
	FilePath     string          `json:"file_path,omitempty"`
	Participants json.RawMessage `json:"participants,omitempty"`
	Transcript   json.RawMessage `json:"transcript,omitempty"`
	ChatMessages json.RawMessage `json:"chat_messages,omitempty"`
	EndTime      string          `json:"end_time,omitempty"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

func toRecordingResponse(r *store.Recording) recordingResponse {
	return recordingResponse{
		MeetingID:    r.MeetingID,
		RecordingURL: r.RecordingURL,
		FilePath:     r.FilePath,
		Participants: r.Participants,
		Transcript:   r.Transcript,
		ChatMessages: r.ChatMessages,
		EndTime:      r.EndTime,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
	}
}

func (s *Server) listRecordings(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListRecordings(r.Context())
	if err != nil {
		log.Errorf("failed to list recordings: %s", err)
		respondError(w, http.StatusInternalServerError, "failed to list recordings")
		return
	}

	out := make([]recordingResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordingResponse(rec))
	}
	respond(w, http.StatusOK, out)
}

func (s *Server) getRecording(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")

	rec, err := s.store.GetRecording(r.Context(), meetingID)
	if err != nil {
		if err == store.ErrNotFound {
			respondError(w, http.StatusNotFound, "recording not found")
			return
		}
		log.Errorf("failed to fetch recording %s: %s", meetingID, err)
		respondError(w, http.StatusInternalServerError, "failed to fetch recording")
		return
	}

	respond(w, http.StatusOK, toRecordingResponse(rec))
}

type recordingWebhookRequest struct {
	Type    string `json:"type"`
	Payload struct {
		MeetingID    string `json:"meeting_id"`
		RecordingURL string `json:"recording_url,omitempty"`
		Error        string `json:"error,omitempty"`
	} `json:"payload"`
}

// recordingWebhook translates provider recording callbacks into channel
// events; the recording worker applies them to the store.
func (s *Server) recordingWebhook(w http.ResponseWriter, r *http.Request) {
	var req recordingWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Payload.MeetingID == "" {
		respondError(w, http.StatusBadRequest, "meeting_id is required")
		return
	}

	var e events.Event
	switch req.Type {
	case "recording.ready-to-download", "recording.completed":
		e = events.NewRecordingComplete(req.Payload.MeetingID, req.Payload.RecordingURL)
	case "recording.error":
		e = events.NewRecordingFailed(req.Payload.MeetingID,
			&webhookError{reason: req.Payload.Error})
	default:
		// Unknown event types are acknowledged and dropped so the
		// provider does not retry them forever.
		respond(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	j, _ := json.Marshal(e)
	if err := s.pubsub.Publish(s.cfg.PubSub.Channels.Recordings, j); err != nil {
		log.Errorf("failed to publish recording event: %s", err)
		respondError(w, http.StatusInternalServerError, "failed to queue event")
		return
	}

	respond(w, http.StatusOK, map[string]string{"status": "queued"})
}

type webhookError struct {
	reason string
}

func (e *webhookError) Error() string {
	if e.reason == "" {
		return "provider reported a recording error"
	}
	return e.reason
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status": "ok",
		"pubsub": "ok",
	}
	code := http.StatusOK
	if err := s.pubsub.Check(); err != nil {
		status["status"] = "degraded"
		status["pubsub"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	respond(w, code, status)
}
