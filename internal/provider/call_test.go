package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/meetline/meetline/internal/session"
	"github.com/stretchr/testify/assert"
)

var upgrader = websocket.Upgrader{}

// signalServer fakes the provider signalling endpoint: it acks every
// command and lets the test push events down the stream.
type signalServer struct {
	srv      *httptest.Server
	commands chan command
	conns    chan *websocket.Conn
	ackError string
}

func newSignalServer(t *testing.T) *signalServer {
	s := &signalServer{
		commands: make(chan command, 16),
		conns:    make(chan *websocket.Conn, 1),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		s.conns <- conn
		for {
			var cmd command
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			s.commands <- cmd
			if cmd.Ref == 0 {
				continue
			}
			a := map[string]interface{}{"id": "ack", "ref": cmd.Ref}
			if s.ackError != "" {
				a["error"] = s.ackError
			}
			if err := conn.WriteJSON(a); err != nil {
				return
			}
		}
	}))
	return s
}

func (s *signalServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *signalServer) pushEvent(t *testing.T, ev session.Event) {
	select {
	case conn := <-s.conns:
		j, _ := json.Marshal(ev)
		assert.NoError(t, conn.WriteMessage(websocket.TextMessage, j))
		s.conns <- conn
	case <-time.After(time.Second):
		t.Fatal("no signalling connection established")
	}
}

func (s *signalServer) close() {
	s.srv.Close()
}

func TestCallJoin(t *testing.T) {
	srv := newSignalServer(t)
	defer srv.close()

	call, err := Dial(context.Background(), srv.url())
	assert.NoError(t, err)
	defer call.Release()

	err = call.Join(context.Background(), session.JoinOptions{
		URL:      "https://meet.example.com/standup",
		UserName: "alice",
		Token:    "tok",
	})
	assert.NoError(t, err)

	cmd := <-srv.commands
	assert.Equal(t, "join", cmd.Action)
	assert.Equal(t, "alice", cmd.UserName)
	assert.Equal(t, "tok", cmd.Token)
	assert.NotZero(t, cmd.Ref)
}

func TestCallEventStream(t *testing.T) {
	srv := newSignalServer(t)
	defer srv.close()

	call, err := Dial(context.Background(), srv.url())
	assert.NoError(t, err)
	defer call.Release()

	// Connection is handed over once the first command arrives; join first.
	assert.NoError(t, call.Join(context.Background(), session.JoinOptions{}))
	<-srv.commands

	srv.pushEvent(t, session.Event{Id: session.JoinedKey})
	srv.pushEvent(t, session.Event{Id: session.ParticipantJoinedKey, SessionId: "p1", UserName: "bob"})

	select {
	case ev := <-call.Events():
		assert.Equal(t, session.JoinedKey, ev.Id)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	select {
	case ev := <-call.Events():
		assert.Equal(t, session.ParticipantJoinedKey, ev.Id)
		assert.Equal(t, "p1", ev.SessionId)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestCallRejectedCommand(t *testing.T) {
	srv := newSignalServer(t)
	srv.ackError = "screen share not allowed"
	defer srv.close()

	call, err := Dial(context.Background(), srv.url())
	assert.NoError(t, err)
	defer call.Release()

	err = call.StartScreenShare(context.Background())
	assert.EqualError(t, err, "screen share not allowed")
}

func TestCallFireAndForgetCommands(t *testing.T) {
	srv := newSignalServer(t)
	defer srv.close()

	call, err := Dial(context.Background(), srv.url())
	assert.NoError(t, err)
	defer call.Release()

	assert.NoError(t, call.SetLocalAudio(false))
	cmd := <-srv.commands
	assert.Equal(t, "setLocalAudio", cmd.Action)
	if assert.NotNil(t, cmd.Enabled) {
		assert.False(t, *cmd.Enabled)
	}
	assert.Zero(t, cmd.Ref, "toggles do not await acks")

	assert.NoError(t, call.Leave())
	cmd = <-srv.commands
	assert.Equal(t, "leave", cmd.Action)
}

func TestCallUpdatePermissions(t *testing.T) {
	srv := newSignalServer(t)
	defer srv.close()

	call, err := Dial(context.Background(), srv.url())
	assert.NoError(t, err)
	defer call.Release()

	err = call.UpdatePermissions("p1", session.Permissions{HasPresence: true, CanSend: true})
	assert.NoError(t, err)

	cmd := <-srv.commands
	assert.Equal(t, "updateParticipant", cmd.Action)
	assert.Equal(t, "p1", cmd.SessionId)
	if assert.NotNil(t, cmd.Permissions) {
		assert.True(t, cmd.Permissions.HasPresence)
		assert.True(t, cmd.Permissions.CanSend)
	}
}

func TestCallReleaseClosesEventStream(t *testing.T) {
	srv := newSignalServer(t)
	defer srv.close()

	call, err := Dial(context.Background(), srv.url())
	assert.NoError(t, err)

	call.Release()
	call.Release()

	select {
	case _, ok := <-call.Events():
		assert.False(t, ok, "event channel must close on release")
	case <-time.After(time.Second):
		t.Fatal("event channel did not close")
	}
}
