package channels

import (
	"errors"
	"fmt"
)

// ErrAdapterNotFound is returned by registry lookups that miss. It is
// always a caller bug or a race during reconnect and is surfaced
// immediately, never retried silently.
var ErrAdapterNotFound = errors.New("adapter not found")

// ConnectionError reports that an adapter could not establish or
// re-establish its protocol session. The caller owns retry policy.
type ConnectionError struct {
	Channel  string // protocol tag
	Instance string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connect %s: %v", e.Channel, e.Instance, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DeliveryError reports that a specific outbound send failed. It does not
// invalidate the adapter's connection state.
type DeliveryError struct {
	Channel string
	Target  string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s send to %s: %v", e.Channel, e.Target, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
