package session

// Decision is the outcome of the authorization guard.
type Decision int

const (
	Unauthorized Decision = iota
	Authorized
)

func (d Decision) String() string {
	if d == Authorized {
		return "authorized"
	}
	return "unauthorized"
}

// AuthorizationError signals that the guard denied room entry. The UI
// layer reacts by redirecting to the landing view, never with an in-place
// message.
type AuthorizationError struct {
	Room string
}

func (e *AuthorizationError) Error() string {
	return "not authorized to join room " + e.Room
}

// CheckAuthorization decides whether the current user may enter the room
// view. Authorized iff the persisted descriptor matches the target room and
// the user is host, or the descriptor lists the user's identity among the
// approved attendees. No persisted descriptor is always Unauthorized.
//
// This is an advisory, client-side check only. The provider join token is
// the actual access control; the guard exists to stop accidental
// navigation into a room UI, and must not be mistaken for a security
// boundary.
func CheckAuthorization(roomName string, sctx SessionContext) Decision {
	d := sctx.Descriptor
	if d == nil {
		return Unauthorized
	}

	if d.Name == roomName && d.HostFlag {
		return Authorized
	}

	if sctx.Identity != "" {
		for _, attendee := range d.Attendees {
			if attendee == sctx.Identity {
				return Authorized
			}
		}
	}

	return Unauthorized
}
