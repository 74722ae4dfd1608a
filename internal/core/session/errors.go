package session

import (
	"errors"
	"fmt"
)

// Kind classifies session failures.
type Kind int

const (
	// KindPermission: the microphone was denied or is missing.
	KindPermission Kind = iota + 1
	// KindNegotiation: credential exchange, dial, handshake or offer/answer failed.
	KindNegotiation
	// KindTransport: the established channel errored or closed.
	KindTransport
	// KindProvider: the remote model signalled an error.
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindNegotiation:
		return "negotiation"
	case KindTransport:
		return "transport"
	case KindProvider:
		return "provider"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned by operations that need an established session.
	ErrNotConnected = errors.New("session not connected")
	// ErrAborted is returned by Connect when Disconnect ran while it was in progress.
	ErrAborted = errors.New("connect aborted by disconnect")
)

// Error is the single error value surfaced to the caller for a failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error during %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf wraps err as an *Error. An err that already is an *Error is returned as is.
func Errorf(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}
