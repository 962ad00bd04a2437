package resocket

import (
	"net/http"
	"net/url"
)

// OpenRequest describes one connection attempt.
type OpenRequest struct {
	EndPoint      url.URL
	SubProtocols  []string
	RequestHeader http.Header
}

// Transport opens handles to the host's bidirectional socket. Open must not
// block: it starts the attempt and reports its outcome through handler.
type Transport interface {
	Open(req OpenRequest, handler TransportHandler) Conn
}

// Conn is a single socket handle. A handle is used for one attempt and is
// never reopened. After Close the handle may still deliver signals; the
// Socket ignores them.
type Conn interface {
	Send(msg Message) error
	Close() error
	ReadyState() ReadyState
	// Protocol returns the negotiated sub-protocol, empty until open.
	Protocol() string
}

// TransportHandler receives the signals of one handle. OnConnOpen is called at
// most once. After it, OnConnMessage may be called any number of times.
// A handle ends with at most one OnConnClose or OnConnError; a dial failure is
// reported with OnConnError and no OnConnOpen.
type TransportHandler interface {
	OnConnOpen()
	OnConnClose(code int, reason string)
	OnConnError(err error)
	OnConnMessage(msg Message)
}
