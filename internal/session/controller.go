package session

import (
	"context"
	"sync"

	"github.com/meetline/meetline/internal/appstats"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// State is the lifecycle of one call session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateWaitingForAdmission
	StateJoined
	StateLeaving
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateWaitingForAdmission:
		return "waiting_for_admission"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrDecisionPending is returned when an admission decision for the same
// participant is still in flight. Decisions for different participants
// proceed independently.
var ErrDecisionPending = errors.New("admission decision already in flight")

// Controller owns the lifecycle of one active call: join, media toggles,
// screen share, participant tracking, waiting-room admission and teardown.
// Exactly one instance exists per room view; once it reaches StateClosed it
// cannot be reused.
//
// All provider events are applied through Dispatch, in delivery order,
// making the state machine the single source of truth.
type Controller struct {
	room     string
	identity string
	host     bool
	call     Call

	mu            sync.Mutex
	state         State
	audioEnabled  bool
	videoEnabled  bool
	screenSharing bool
	recording     bool
	participants  []*ParticipantRecord
	decisions     map[string]struct{}
	err           error

	closedOnce sync.Once
}

// NewController builds the session controller for a room the guard has
// authorized. Construction fails with *AuthorizationError otherwise: the
// session must never exist for an unauthorized user.
func NewController(roomName string, sctx SessionContext, call Call) (*Controller, error) {
	if CheckAuthorization(roomName, sctx) != Authorized {
		return nil, &AuthorizationError{Room: roomName}
	}

	return &Controller{
		room:     roomName,
		identity: sctx.Identity,
		host:     sctx.Descriptor.Name == roomName && sctx.Descriptor.HostFlag,
		call:     call,
		state:    StateIdle,
		// Local media starts enabled, matching the room defaults.
		audioEnabled: true,
		videoEnabled: true,
		decisions:    make(map[string]struct{}),
	}, nil
}

// Join opens the call. A non-host passes through StateWaitingForAdmission
// until the provider confirms the join; the host skips that state.
func (c *Controller) Join(ctx context.Context, opts JoinOptions) error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return errors.Errorf("cannot join from state %s", state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	if err := c.call.Join(ctx, opts); err != nil {
		c.closeWith(errors.Wrap(err, "provider join failed"))
		return errors.Wrap(err, "provider join failed")
	}

	c.mu.Lock()
	if !c.host && c.state == StateConnecting {
		c.state = StateWaitingForAdmission
	}
	c.mu.Unlock()
	return nil
}

// Run pumps the call event stream into Dispatch until the stream closes or
// the context is cancelled. Cancellation tears the session down.
func (c *Controller) Run(ctx context.Context) {
	appstats.Sessions.Inc()
	defer appstats.Sessions.Dec()
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.call.Events():
			if !ok {
				return
			}
			c.Dispatch(ev)
			if c.State() == StateClosed {
				return
			}
		}
	}
}

// Dispatch applies one provider event to the state machine.
func (c *Controller) Dispatch(ev Event) {
	if !ev.IsValid() {
		log.WithField("session", c.room).Debugf("dropping invalid event %q", ev.Id)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Id {
	case JoinedKey:
		if c.state == StateConnecting || c.state == StateWaitingForAdmission {
			c.state = StateJoined
		}

	case ParticipantJoinedKey:
		if c.findLocked(ev.SessionId) != nil {
			return
		}
		// The local user and the host join admitted; everyone else waits
		// for an explicit host decision. Non-host controllers do not run
		// the admission protocol and track everyone as admitted.
		admitted := ev.Local || ev.Owner || !c.host
		c.participants = append(c.participants, &ParticipantRecord{
			SessionId:   ev.SessionId,
			DisplayName: ev.UserName,
			IsLocal:     ev.Local,
			Admitted:    admitted,
		})

	case ParticipantLeftKey:
		c.removeLocked(ev.SessionId)

	case LeftKey:
		// Provider-initiated leave (kicked, host ended the call) and the
		// confirmation of our own Leave both land here.
		c.state = StateLeaving
		c.closeLocked()

	case RecordingStartedKey:
		c.recording = true

	case RecordingStoppedKey:
		c.recording = false

	case ErrorKey:
		if ev.Error != nil {
			c.err = errors.New(*ev.Error)
		} else {
			c.err = errors.New("provider error")
		}
		log.WithField("session", c.room).Errorf("terminal call error: %v", c.err)
		c.closeLocked()
	}
}

// Admit raises the participant's presence/send capabilities and marks the
// record admitted.
func (c *Controller) Admit(sessionID string) error {
	return c.decide(sessionID, true)
}

// Decline revokes the participant's capabilities and removes the record.
// Declining an already-removed participant is a no-op.
func (c *Controller) Decline(sessionID string) error {
	return c.decide(sessionID, false)
}

func (c *Controller) decide(sessionID string, admit bool) error {
	c.mu.Lock()
	if !c.host {
		c.mu.Unlock()
		return errors.New("only the host decides admission")
	}

	rec := c.findLocked(sessionID)
	if rec == nil {
		c.mu.Unlock()
		return nil
	}
	if admit && rec.Admitted {
		c.mu.Unlock()
		return nil
	}
	if _, busy := c.decisions[sessionID]; busy {
		c.mu.Unlock()
		return ErrDecisionPending
	}
	c.decisions[sessionID] = struct{}{}
	c.mu.Unlock()

	// The permission update is a network call; it must not hold the
	// controller lock, so decisions for other participants stay unblocked.
	err := c.call.UpdatePermissions(sessionID, Permissions{
		HasPresence: admit,
		CanSend:     admit,
	})

	c.mu.Lock()
	delete(c.decisions, sessionID)
	if err != nil {
		c.mu.Unlock()
		appstats.OnAdmissionDecision("failed")
		return errors.Wrap(err, "permission update failed")
	}
	if admit {
		if rec := c.findLocked(sessionID); rec != nil {
			rec.Admitted = true
		}
		c.mu.Unlock()
		appstats.OnAdmissionDecision("admitted")
		return nil
	}
	c.removeLocked(sessionID)
	c.mu.Unlock()
	appstats.OnAdmissionDecision("declined")
	return nil
}

// ToggleAudio flips the local audio flag and pushes it to the provider.
// The flip is optimistic: a provider rejection leaves the flag in the new
// value with no rollback. This asymmetry with ToggleScreenShare is a
// documented policy choice.
func (c *Controller) ToggleAudio() bool {
	c.mu.Lock()
	c.audioEnabled = !c.audioEnabled
	enabled := c.audioEnabled
	c.mu.Unlock()

	if err := c.call.SetLocalAudio(enabled); err != nil {
		log.WithField("session", c.room).Warnf("set local audio failed: %v", err)
	}
	return enabled
}

// ToggleVideo behaves like ToggleAudio.
func (c *Controller) ToggleVideo() bool {
	c.mu.Lock()
	c.videoEnabled = !c.videoEnabled
	enabled := c.videoEnabled
	c.mu.Unlock()

	if err := c.call.SetLocalVideo(enabled); err != nil {
		log.WithField("session", c.room).Warnf("set local video failed: %v", err)
	}
	return enabled
}

// ToggleScreenShare requests a share start/stop from the provider and only
// flips the flag once the provider confirms. On rejection the flag is left
// untouched.
func (c *Controller) ToggleScreenShare(ctx context.Context) (bool, error) {
	c.mu.Lock()
	sharing := c.screenSharing
	c.mu.Unlock()

	if !sharing {
		if err := c.call.StartScreenShare(ctx); err != nil {
			log.WithField("session", c.room).Warnf("screen share start rejected: %v", err)
			return false, errors.Wrap(err, "screen share start rejected")
		}
		c.mu.Lock()
		c.screenSharing = true
		c.mu.Unlock()
		return true, nil
	}

	if err := c.call.StopScreenShare(ctx); err != nil {
		log.WithField("session", c.room).Warnf("screen share stop rejected: %v", err)
		return true, errors.Wrap(err, "screen share stop rejected")
	}
	c.mu.Lock()
	c.screenSharing = false
	c.mu.Unlock()
	return false, nil
}

// Leave requests an explicit leave. The session closes when the provider
// confirms with a left event; Close remains the hard teardown for
// navigation away.
func (c *Controller) Leave() error {
	c.mu.Lock()
	if c.state != StateJoined && c.state != StateWaitingForAdmission {
		c.mu.Unlock()
		return nil
	}
	c.state = StateLeaving
	c.mu.Unlock()

	if err := c.call.Leave(); err != nil {
		// The provider will not confirm; tear down locally so device
		// handles are not leaked.
		c.closeWith(errors.Wrap(err, "provider leave failed"))
		return errors.Wrap(err, "provider leave failed")
	}
	return nil
}

// Close releases the call object and all media device handles. It is
// idempotent and runs on every exit path. The transition is irreversible;
// a new session requires a fresh controller.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closeLocked()
	c.mu.Unlock()
}

func (c *Controller) closeLocked() {
	c.state = StateClosed
	c.closedOnce.Do(func() {
		c.call.Release()
	})
}

func (c *Controller) closeWith(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.closeLocked()
	c.mu.Unlock()
}

func (c *Controller) findLocked(sessionID string) *ParticipantRecord {
	for _, p := range c.participants {
		if p.SessionId == sessionID {
			return p
		}
	}
	return nil
}

// removeLocked drops the matching record preserving join order of the rest.
func (c *Controller) removeLocked(sessionID string) {
	for i, p := range c.participants {
		if p.SessionId == sessionID {
			c.participants = append(c.participants[:i], c.participants[i+1:]...)
			return
		}
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the terminal error, if the session closed on one.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) IsHost() bool { return c.host }

func (c *Controller) AudioEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioEnabled
}

func (c *Controller) VideoEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.videoEnabled
}

func (c *Controller) ScreenSharing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screenSharing
}

func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Participants returns the current records in join order.
func (c *Controller) Participants() []ParticipantRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ParticipantRecord, 0, len(c.participants))
	for _, p := range c.participants {
		out = append(out, *p)
	}
	return out
}

// Pending returns the participants still waiting for a host decision.
func (c *Controller) Pending() []ParticipantRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ParticipantRecord, 0)
	for _, p := range c.participants {
		if !p.Admitted {
			out = append(out, *p)
		}
	}
	return out
}
