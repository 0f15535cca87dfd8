package clients

import "fmt"

// StatusError reports a non-2xx, non-404 response from a remote store.
type StatusError struct {
	Service    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
}

// UnavailableError reports a transport-level failure (unreachable host,
// timeout). It is distinct from StatusError so callers can tell
// "confirmed absent" from "unknown".
type UnavailableError struct {
	Service string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
