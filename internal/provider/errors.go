package provider

import "fmt"

// NetworkError wraps a transport-level failure talking to the provider.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("provider %s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UpstreamError means the provider rejected a request; Status carries the
// provider HTTP status code.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("provider %s: upstream status %d: %s", e.Op, e.Status, e.Body)
}

// NotFoundError means the room name is unknown upstream.
type NotFoundError struct {
	Room string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("room %q not found", e.Room)
}
