package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/meetline/meetline/internal/config"
	log "github.com/sirupsen/logrus"
)

// MeetingMetadata is the structured meeting the assistant produces from
// free text. Every refinement returns a full replacement object, never a
// patch; the object is consumed exactly once to create a room.
type MeetingMetadata struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	DurationMinutes int      `json:"duration"`
	Agenda          []string `json:"agenda"`
	Attendees       []string `json:"attendees"`
}

// ProcessingError means the AI backend returned an empty or unusable
// payload. Callers keep their last-known-good metadata instead of
// discarding it.
type ProcessingError struct {
	Reason string
}

func (e *ProcessingError) Error() string {
	return "assistant returned unusable data: " + e.Reason
}

const systemPrompt = `You are a meeting assistant. Your task is to always generate a structured meeting from any input, no matter how brief. If the input lacks details, use reasonable defaults and expand on the topic creatively while staying relevant.

Always return a valid JSON object with these exact keys:
{
    "title": "string",
    "description": "string (minimum 50 words, expand the topic creatively if needed)",
    "duration": number (in minutes, default to 30 if not specified),
    "agenda": ["string"] (at least 3 items, use standard meeting items if not specified),
    "attendees": ["string"] (suggest relevant team members based on the context)
}

Never return an error message or invalid JSON. Always provide a valid meeting structure.`

// Client talks to the chat-completions backend. Each Refine call is
// independent and stateless; the caller decides what prior context to pass.
type Client struct {
	cfg        config.Assistant
	httpClient *http.Client
}

func NewClient(cfg config.Assistant) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Refine turns free text into a full MeetingMetadata replacement. When
// prior metadata is given it is sent as conversation context so the model
// refines rather than restarts.
func (c *Client) Refine(ctx context.Context, text string, prior *MeetingMetadata) (*MeetingMetadata, error) {
	messages := []chatMessage{
		{Role: "system", Content: systemPrompt},
	}
	if prior != nil {
		j, err := json.Marshal(prior)
		if err == nil {
			messages = append(messages, chatMessage{Role: "assistant", Content: string(j)})
		}
	}
	messages = append(messages, chatMessage{Role: "user", Content: text})

	reqBody, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return nil, &ProcessingError{Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, &ProcessingError{Reason: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProcessingError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &ProcessingError{
			Reason: fmt.Sprintf("backend status %d: %s", resp.StatusCode, b),
		}
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, &ProcessingError{Reason: "undecodable response: " + err.Error()}
	}
	if chat.Error != nil {
		return nil, &ProcessingError{Reason: chat.Error.Message}
	}
	if len(chat.Choices) == 0 {
		return nil, &ProcessingError{Reason: "empty response"}
	}

	content := strings.TrimSpace(chat.Choices[0].Message.Content)
	if content == "" {
		return nil, &ProcessingError{Reason: "empty completion"}
	}

	meta := &MeetingMetadata{}
	if err := json.Unmarshal([]byte(content), meta); err != nil {
		log.Debugf("assistant returned non-JSON payload: %v", err)
		return nil, &ProcessingError{Reason: "malformed completion"}
	}

	applyDefaults(meta)
	return meta, nil
}

// applyDefaults fills any missing fields so a parseable but partial
// completion still yields a usable meeting.
func applyDefaults(meta *MeetingMetadata) {
	if meta.Title == "" {
		meta.Title = "Team Meeting"
	}
	if meta.Description == "" {
		meta.Description = "A team meeting to discuss project updates and align on objectives."
	}
	if meta.DurationMinutes <= 0 {
		meta.DurationMinutes = 30
	}
	if len(meta.Agenda) == 0 {
		meta.Agenda = []string{"Project Updates", "Team Discussion", "Action Items"}
	}
	if len(meta.Attendees) == 0 {
		meta.Attendees = []string{"Team Lead", "Team Members"}
	}
}
