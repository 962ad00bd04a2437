package resocket

// ConnectionState is the logical state of a Socket.
type ConnectionState int32

const (
	// StateConnecting means an attempt is in flight and the connect timeout is armed.
	StateConnecting ConnectionState = iota

	// StateOpen means the underlying socket is established.
	StateOpen

	// StateReconnecting means an attempt failed and a retry is scheduled.
	StateReconnecting

	// StateClosed is terminal. No timers are armed and no transition leaves it.
	StateClosed
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ReadyState is the raw indicator of the current socket handle, in the numbering browsers use.
type ReadyState int32

const (
	ReadyConnecting ReadyState = 0
	ReadyOpen       ReadyState = 1
	ReadyClosing    ReadyState = 2
	ReadyClosed     ReadyState = 3
)

// String returns the ready state name.
func (r ReadyState) String() string {
	switch r {
	case ReadyConnecting:
		return "CONNECTING"
	case ReadyOpen:
		return "OPEN"
	case ReadyClosing:
		return "CLOSING"
	case ReadyClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
