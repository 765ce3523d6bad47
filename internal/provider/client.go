package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/meetline/meetline/internal/config"
	"github.com/meetline/meetline/internal/session"
	log "github.com/sirupsen/logrus"
)

const roomNameLength = 12

const roomNameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Client wraps the provider's room management REST API. Calls are single
// attempt; errors surface to the caller, which owns any retry decision.
type Client struct {
	cfg        config.Provider
	httpClient *http.Client
}

func NewClient(cfg config.Provider) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

type roomProperties struct {
	Exp                 int64  `json:"exp"`
	EnableScreenshare   bool   `json:"enable_screenshare"`
	EnableChat          bool   `json:"enable_chat"`
	StartVideoOff       bool   `json:"start_video_off"`
	StartAudioOff       bool   `json:"start_audio_off"`
	MaxParticipants     int    `json:"max_participants"`
	EnablePrejoinUI     bool   `json:"enable_prejoin_ui"`
	EnableKnocking      bool   `json:"enable_knocking"`
	EnableNetworkUI     bool   `json:"enable_network_ui"`
	EnableRecording     string `json:"enable_recording,omitempty"`
	RecordingResolution string `json:"recording_resolution,omitempty"`
}

type createRoomRequest struct {
	Name       string         `json:"name"`
	Properties roomProperties `json:"properties"`
}

type roomResponse struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Config struct {
		Exp int64 `json:"exp"`
	} `json:"config"`
}

// CreateRoom requests room creation upstream. An empty desiredName gets a
// generated unique name. The returned descriptor carries HostFlag: the
// creator is the host.
func (c *Client) CreateRoom(ctx context.Context, desiredName string) (*session.RoomDescriptor, error) {
	name := desiredName
	if name == "" {
		name = generateRoomName(roomNameLength)
	}

	exp := time.Now().Add(c.cfg.RoomExpiry).Unix()
	reqBody := createRoomRequest{
		Name: name,
		Properties: roomProperties{
			Exp:                 exp,
			EnableScreenshare:   true,
			EnableChat:          true,
			MaxParticipants:     c.cfg.MaxParticipants,
			EnablePrejoinUI:     true,
			EnableNetworkUI:     true,
			EnableRecording:     c.cfg.EnableRecording,
			RecordingResolution: c.cfg.RecordingResolution,
		},
	}

	var room roomResponse
	if err := c.do(ctx, http.MethodPost, "/rooms", reqBody, &room, "createRoom"); err != nil {
		return nil, err
	}

	log.WithField("room", room.Name).Debug("room created upstream")
	return c.descriptor(room, true), nil
}

// GetRoom fetches metadata for an existing room.
func (c *Client) GetRoom(ctx context.Context, name string) (*session.RoomDescriptor, error) {
	var room roomResponse
	err := c.do(ctx, http.MethodGet, "/rooms/"+name, nil, &room, "getRoom")
	if err != nil {
		if ue, ok := err.(*UpstreamError); ok && ue.Status == http.StatusNotFound {
			return nil, &NotFoundError{Room: name}
		}
		return nil, err
	}
	return c.descriptor(room, false), nil
}

func (c *Client) descriptor(room roomResponse, host bool) *session.RoomDescriptor {
	d := &session.RoomDescriptor{
		Name:     room.Name,
		JoinURL:  room.URL,
		HostFlag: host,
	}
	if room.Config.Exp > 0 {
		t := time.Unix(room.Config.Exp, 0)
		d.ExpiresAt = &t
	}
	return d
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, op string) error {
	var reader io.Reader
	if body != nil {
		j, err := json.Marshal(body)
		if err != nil {
			return &NetworkError{Op: op, Err: err}
		}
		reader = bytes.NewReader(j)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, reader)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{Op: op, Status: resp.StatusCode, Body: string(b)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &UpstreamError{
				Op:     op,
				Status: resp.StatusCode,
				Body:   fmt.Sprintf("undecodable body: %v", err),
			}
		}
	}
	return nil
}

func generateRoomName(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = roomNameAlphabet[rand.Intn(len(roomNameAlphabet))]
	}
	return string(b)
}
