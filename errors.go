package resocket

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the failures a Socket reports.
type ErrorKind int

const (
	// KindTransport is any low-level fault that has no more specific kind.
	KindTransport ErrorKind = iota

	// KindConnectTimeout means no open signal arrived within Config.ConnectTimeout.
	KindConnectTimeout

	// KindConnectionRefused means the attempt was rejected immediately by the remote or the OS.
	KindConnectionRefused

	// KindUnsolicitedClose means an established connection closed without the caller asking.
	KindUnsolicitedClose

	// KindNotConnected means a send was attempted while the socket was not open.
	KindNotConnected

	// KindConfiguration means the configuration was invalid. Only New and LoadConfig return it.
	KindConfiguration
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "TransportError"
	case KindConnectTimeout:
		return "ConnectTimeout"
	case KindConnectionRefused:
		return "ConnectionRefused"
	case KindUnsolicitedClose:
		return "UnsolicitedClose"
	case KindNotConnected:
		return "NotConnected"
	case KindConfiguration:
		return "ConfigurationError"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrTransport         = errors.New("transport error")
	ErrConnectTimeout    = errors.New("connection timeout")
	ErrConnectionRefused = errors.New("connection refused")
	ErrUnsolicitedClose  = errors.New("connection closed unexpectedly")
	ErrNotConnected      = errors.New("not connected")
	ErrConfiguration     = errors.New("invalid configuration")
)

var kindSentinels = map[ErrorKind]error{
	KindTransport:         ErrTransport,
	KindConnectTimeout:    ErrConnectTimeout,
	KindConnectionRefused: ErrConnectionRefused,
	KindUnsolicitedClose:  ErrUnsolicitedClose,
	KindNotConnected:      ErrNotConnected,
	KindConfiguration:     ErrConfiguration,
}

// Error is the error type delivered to OnError and returned by New.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Attempt is the connection attempt the failure belongs to, zero when not tied to one.
	Attempt Ref

	// Err is the underlying cause, if any.
	Err error
}

func newError(kind ErrorKind, attempt Ref, err error) *Error {
	return &Error{Kind: kind, Attempt: attempt, Err: err}
}

func (e *Error) Error() string {
	sentinel := kindSentinels[e.Kind]
	if e.Err == nil {
		return fmt.Sprintf("resocket: %v", sentinel)
	}
	return fmt.Sprintf("resocket: %v: %v", sentinel, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Internal reports whether the Socket raised the failure itself (timeout, refused
// connection, send while not connected) rather than relaying one from the underlying socket.
func (e *Error) Internal() bool {
	switch e.Kind {
	case KindConnectTimeout, KindConnectionRefused, KindNotConnected, KindConfiguration:
		return true
	}
	return false
}

// ErrorKindOf returns the kind of err if it is or wraps an *Error.
func ErrorKindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
