package provider

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/meetline/meetline/internal/session"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/titanous/json5"
)

const ackTimeout = 10 * time.Second

// command is a client-to-provider signalling message. Commands that need
// provider confirmation carry a ref the matching ack echoes back.
type command struct {
	Action      string               `json:"action"`
	Ref         uint64               `json:"ref,omitempty"`
	URL         string               `json:"url,omitempty"`
	UserName    string               `json:"userName,omitempty"`
	Token       string               `json:"token,omitempty"`
	Enabled     *bool                `json:"enabled,omitempty"`
	SessionId   string               `json:"sessionId,omitempty"`
	Permissions *session.Permissions `json:"permissions,omitempty"`
}

type ack struct {
	Id    string  `json:"id"`
	Ref   uint64  `json:"ref"`
	Error *string `json:"error,omitempty"`
}

// Call attaches to the provider's signalling channel over a websocket and
// implements session.Call. One Call belongs to exactly one controller.
type Call struct {
	conn   *websocket.Conn
	events chan session.Event
	done   chan struct{}

	writeMu sync.Mutex
	seq     uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan error

	releaseOnce sync.Once
}

var _ session.Call = (*Call)(nil)

// Dial connects the signalling websocket. The caller still has to Join.
func Dial(ctx context.Context, wsURL string) (*Call, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, &NetworkError{Op: "dial", Err: err}
	}

	c := &Call{
		conn:    conn,
		events:  make(chan session.Event, 16),
		done:    make(chan struct{}),
		pending: make(map[uint64]chan error),
	}
	go c.readPump()
	return c, nil
}

func (c *Call) Join(ctx context.Context, opts session.JoinOptions) error {
	return c.sendAwait(ctx, command{
		Action:   "join",
		URL:      opts.URL,
		UserName: opts.UserName,
		Token:    opts.Token,
	})
}

// Leave is fire-and-forget; the provider confirms with a left event on the
// stream.
func (c *Call) Leave() error {
	return c.send(command{Action: "leave"})
}

// SetLocalAudio pushes the flag without awaiting confirmation, matching the
// controller's optimistic toggle.
func (c *Call) SetLocalAudio(enabled bool) error {
	return c.send(command{Action: "setLocalAudio", Enabled: &enabled})
}

func (c *Call) SetLocalVideo(enabled bool) error {
	return c.send(command{Action: "setLocalVideo", Enabled: &enabled})
}

// StartScreenShare awaits provider confirmation; the controller only flips
// its flag on success.
func (c *Call) StartScreenShare(ctx context.Context) error {
	return c.sendAwait(ctx, command{Action: "startScreenShare"})
}

func (c *Call) StopScreenShare(ctx context.Context) error {
	return c.sendAwait(ctx, command{Action: "stopScreenShare"})
}

func (c *Call) UpdatePermissions(sessionID string, p session.Permissions) error {
	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()
	return c.sendAwait(ctx, command{
		Action:      "updateParticipant",
		SessionId:   sessionID,
		Permissions: &p,
	})
}

func (c *Call) Events() <-chan session.Event {
	return c.events
}

// Release closes the websocket. Safe to call from any exit path, any
// number of times; the read pump then closes the event channel.
func (c *Call) Release() {
	c.releaseOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Call) send(cmd command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(cmd); err != nil {
		return &NetworkError{Op: cmd.Action, Err: err}
	}
	return nil
}

func (c *Call) sendAwait(ctx context.Context, cmd command) error {
	done := make(chan error, 1)

	c.pendingMu.Lock()
	c.seq++
	cmd.Ref = c.seq
	c.pending[cmd.Ref] = done
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, cmd.Ref)
		c.pendingMu.Unlock()
	}()

	if err := c.send(cmd); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &NetworkError{Op: cmd.Action, Err: ctx.Err()}
	case <-c.done:
		return &NetworkError{Op: cmd.Action, Err: errors.New("call released")}
	}
}

func (c *Call) readPump() {
	defer func() {
		c.failPending(errors.New("connection closed"))
		close(c.events)
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Debugf("call read loop ended: %v", err)
			}
			return
		}

		if a, ok := decodeAck(msg); ok {
			c.resolve(a)
			continue
		}

		ev := session.Decode(msg)
		if !ev.IsValid() {
			log.Tracef("dropping unknown provider message: %s", msg)
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func decodeAck(msg []byte) (ack, bool) {
	a := ack{}
	if err := json5.Unmarshal(msg, &a); err != nil || a.Id != "ack" {
		return a, false
	}
	return a, true
}

func (c *Call) resolve(a ack) {
	c.pendingMu.Lock()
	done, ok := c.pending[a.Ref]
	delete(c.pending, a.Ref)
	c.pendingMu.Unlock()
	if !ok {
		return
	}

	if a.Error != nil {
		done <- errors.New(*a.Error)
		return
	}
	done <- nil
}

func (c *Call) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for ref, done := range c.pending {
		done <- err
		delete(c.pending, ref)
	}
}
