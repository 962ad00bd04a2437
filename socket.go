package resocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Socket is a websocket client that keeps itself connected. It starts
// connecting in New, retries at a fixed interval after every failure and
// stays up until Close is called.
//
// Every transition happens on one event loop goroutine. Handlers run on that
// goroutine, and anything they call on the Socket is queued for a later turn.
type Socket struct {
	id        string
	config    Config
	endPoint  url.URL
	header    http.Header
	transport Transport
	logger    Logger
	clock     Clock
	metrics   *Metrics

	loop       *eventLoop
	dispatcher *dispatcher
	refs       *atomicRef
	timeout    *callbackTimer
	reconnect  *reconnectScheduler

	// owned by the loop goroutine
	conn    Conn
	attempt Ref

	// published for the accessors
	state     atomic.Int32
	mu        sync.RWMutex
	published Conn
	protocol  string
}

// Option customizes a Socket at construction.
type Option func(*Socket)

// WithTransport replaces the default gorilla/websocket transport.
func WithTransport(transport Transport) Option {
	return func(s *Socket) {
		s.transport = transport
	}
}

// WithLogger sets the logger. Without it a Socket logs nothing, unless
// Config.Debug is set, in which case it logs to a zap development logger.
func WithLogger(logger Logger) Option {
	return func(s *Socket) {
		s.logger = logger
	}
}

// WithClock replaces the wall clock used for the connect timeout and the reconnect wait.
func WithClock(clock Clock) Option {
	return func(s *Socket) {
		s.clock = clock
	}
}

// WithMetrics reports the socket's activity to m.
func WithMetrics(m *Metrics) Option {
	return func(s *Socket) {
		s.metrics = m
	}
}

// WithHandler installs h before the first attempt starts, so no event can be missed.
func WithHandler(h Handler) Option {
	return func(s *Socket) {
		s.dispatcher.setHandler(h)
	}
}

// WithRequestHeader adds headers to every handshake request.
func WithRequestHeader(header http.Header) Option {
	return func(s *Socket) {
		s.header = header.Clone()
	}
}

// New validates cfg, applies defaults for unset options and starts the first
// connection attempt. The returned Socket is in StateConnecting. The only
// error New returns is a *Error of kind KindConfiguration.
func New(cfg Config, opts ...Option) (*Socket, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	endPoint, _ := cfg.endPointURL()

	s := &Socket{
		id:       uuid.NewString(),
		config:   cfg,
		endPoint: *endPoint,
		clock:    realClock{},
		loop:     newEventLoop(),
		refs:     newAtomicRef(),
	}
	s.dispatcher = newDispatcher(s.handlerFault)

	for _, opt := range opts {
		opt(s)
	}

	if s.transport == nil {
		s.transport = NewWebsocket(websocket.DefaultDialer)
	}
	if s.logger == nil {
		if cfg.Debug {
			s.logger = NewSimpleLogger(LogDebug)
		} else {
			s.logger = NewNoopLogger()
		}
	}

	s.timeout = newCallbackTimer(s.loop, s.clock, s.connectTimedOut)
	s.reconnect = newReconnectScheduler(
		newReconnectPolicy(cfg.ReconnectInterval),
		newCallbackTimer(s.loop, s.clock, s.retry),
	)

	s.debugf("constructor => id: %s, endpoint: '%s', protocols: %v, reconnect: %v, timeout: %v",
		s.id, s.endPoint.String(), cfg.SubProtocols, cfg.ReconnectInterval, cfg.ConnectTimeout)

	// The loop has not started yet, so the first attempt can run on this goroutine.
	s.metrics.state(s.id, StateConnecting)
	s.connect()
	s.loop.start()

	return s, nil
}

// ID returns the random identifier used to label this socket in logs and metrics.
func (s *Socket) ID() string {
	return s.id
}

// Config returns the effective configuration, defaults applied.
func (s *Socket) Config() Config {
	cfg := s.config
	cfg.SubProtocols = append(s.config.SubProtocols[:0:0], s.config.SubProtocols...)
	return cfg
}

// State returns the current logical state.
func (s *Socket) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

// IsOpen reports whether State is StateOpen.
func (s *Socket) IsOpen() bool {
	return s.State() == StateOpen
}

// ReadyState returns the raw state of the current socket handle. Between
// attempts, and once closed, there is no handle and it reports ReadyClosed.
func (s *Socket) ReadyState() ReadyState {
	s.mu.RLock()
	conn := s.published
	s.mu.RUnlock()

	if conn != nil {
		return conn.ReadyState()
	}
	if s.State() == StateConnecting {
		return ReadyConnecting
	}
	return ReadyClosed
}

// Protocol returns the sub-protocol negotiated by the open connection, if any.
func (s *Socket) Protocol() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocol
}

// MessagesReceived returns how many non-empty frames have been delivered to OnMessage.
func (s *Socket) MessagesReceived() uint64 {
	return s.dispatcher.messagesReceived()
}

// Attempts returns how many connection attempts have been started.
func (s *Socket) Attempts() uint64 {
	return uint64(s.refs.current())
}

// Done is closed once Close has been processed and the event loop has exited.
func (s *Socket) Done() <-chan struct{} {
	return s.loop.done
}

// SetHandler replaces the handler and clears the func slots. Nil restores the no-op default.
func (s *Socket) SetHandler(h Handler) {
	s.dispatcher.setHandler(h)
}

// OnOpen sets the function called when a connection is established.
func (s *Socket) OnOpen(fn func()) {
	s.dispatcher.setSlot(func(f *HandlerFuncs) { f.Open = fn })
}

// OnClose sets the function called when an open connection ends.
func (s *Socket) OnClose(fn func(CloseEvent)) {
	s.dispatcher.setSlot(func(f *HandlerFuncs) { f.Close = fn })
}

// OnMessage sets the function called for every inbound frame with a non-empty payload.
func (s *Socket) OnMessage(fn func(Message)) {
	s.dispatcher.setSlot(func(f *HandlerFuncs) { f.Message = fn })
}

// OnError sets the function called with every *Error the socket reports.
func (s *Socket) OnError(fn func(error)) {
	s.dispatcher.setSlot(func(f *HandlerFuncs) { f.Error = fn })
}

// Send queues payload as a text frame. Failures, including sending while not
// open, are reported to OnError.
func (s *Socket) Send(payload []byte) {
	s.send(Message{Type: TextMessage, Data: payload})
}

// SendBinary queues payload as a binary frame.
func (s *Socket) SendBinary(payload []byte) {
	s.send(Message{Type: BinaryMessage, Data: payload})
}

// SendValue encodes v with codec and queues it. Only an encoding failure is returned.
func (s *Socket) SendValue(codec Codec, v any) error {
	data, err := codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}
	s.send(Message{Type: codec.MessageType(), Data: data})
	return nil
}

// Refresh drops the current connection, if any, and starts a new attempt
// right away, skipping a pending reconnect wait. It does nothing once closed.
func (s *Socket) Refresh() {
	s.loop.post(s.refresh)
}

// Close stops the socket for good: pending timers are canceled, the
// connection is closed and no attempt is made again. It does not wait; use
// Done or Shutdown for that. Calling it more than once has no further effect.
func (s *Socket) Close() {
	s.loop.post(s.shutdown)
}

// Shutdown calls Close and waits for the event loop to exit or ctx to end.
// It must not be called from a handler.
func (s *Socket) Shutdown(ctx context.Context) error {
	s.Close()
	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Socket) send(msg Message) {
	msg.Data = append([]byte(nil), msg.Data...)
	if !s.loop.post(func() { s.write(msg) }) {
		// The loop is gone, so nothing can interleave with this report.
		s.reportError(newError(KindNotConnected, 0, errors.New("socket is closed")))
	}
}

func (s *Socket) write(msg Message) {
	if s.State() != StateOpen || s.conn == nil {
		s.reportError(newError(KindNotConnected, s.attempt, fmt.Errorf("socket is %s", s.State())))
		return
	}
	s.debugf("send => attempt: %d, %d bytes", s.attempt, len(msg.Data))
	if err := s.conn.Send(msg); err != nil {
		s.reportError(newError(KindTransport, s.attempt, fmt.Errorf("send failed: %w", err)))
	}
}

// connect starts a new attempt on a fresh handle and arms the connect timeout.
func (s *Socket) connect() {
	ref := s.refs.nextRef()
	s.attempt = ref
	s.setState(StateConnecting)

	s.debugf("connect => attempt: %d, url: '%s', protocols: %v", ref, s.endPoint.String(), s.config.SubProtocols)

	conn := s.transport.Open(OpenRequest{
		EndPoint:      s.endPoint,
		SubProtocols:  s.config.SubProtocols,
		RequestHeader: s.header,
	}, &attemptSignals{socket: s, ref: ref})
	s.setConn(conn)

	s.timeout.Arm(s.config.ConnectTimeout)
}

func (s *Socket) retry() {
	if s.State() != StateReconnecting {
		return
	}
	s.debugf("reconnecting")
	s.connect()
}

func (s *Socket) refresh() {
	if s.State() == StateClosed {
		s.debugf("refresh ignored, socket is closed")
		return
	}
	s.debugf("refresh")

	s.timeout.Cancel()
	s.reconnect.Cancel()

	wasOpen := s.State() == StateOpen
	ref := s.attempt
	s.discardConn()
	if wasOpen {
		s.dispatcher.close(CloseEvent{Attempt: ref, Code: websocket.CloseNormalClosure, Reason: "refresh", Requested: true})
	}

	s.connect()
}

func (s *Socket) shutdown() {
	s.debugf("close")

	s.timeout.Cancel()
	s.reconnect.Cancel()

	wasOpen := s.State() == StateOpen
	ref := s.attempt
	s.discardConn()
	s.setState(StateClosed)

	if wasOpen {
		s.logger.Printf(LogInfo, "socket", "Disconnected from %v", s.endPoint.String())
		s.dispatcher.close(CloseEvent{Attempt: ref, Code: websocket.CloseNormalClosure, Reason: "closed by client", Requested: true})
	}

	s.loop.stop()
}

func (s *Socket) handleOpen(ref Ref) {
	if !s.current(ref) || s.State() != StateConnecting {
		s.debugf("ignoring open from stale attempt %d", ref)
		return
	}
	s.timeout.Cancel()

	s.mu.Lock()
	s.protocol = s.conn.Protocol()
	s.mu.Unlock()

	s.setState(StateOpen)
	s.metrics.attempt(s.id, "open")
	s.logger.Printf(LogInfo, "socket", "Connected to %v", s.endPoint.String())

	s.dispatcher.open()
}

func (s *Socket) handleMessage(ref Ref, msg Message) {
	if !s.current(ref) || s.State() != StateOpen {
		return
	}
	msg.Attempt = ref
	msg.ReceivedAt = s.clock.Now()

	if !s.dispatcher.message(msg) {
		s.debugf("ignoring empty message on attempt %d", ref)
		return
	}
	s.metrics.message(s.id)
}

func (s *Socket) handleConnError(ref Ref, err error) {
	if !s.current(ref) {
		return
	}
	s.debugf("error => attempt: %d, %v", ref, err)

	switch s.State() {
	case StateConnecting:
		kind := classifyDialError(err)
		result := "error"
		if kind == KindConnectionRefused {
			result = "refused"
		}
		s.failAttempt(newError(kind, ref, err), result)
	case StateOpen:
		s.logger.Printf(LogError, "socket", "Connection error: %s", err)
		s.discardConn()
		s.scheduleOrClose()
		s.reportError(newError(KindTransport, ref, err))
	}
}

func (s *Socket) handleConnClose(ref Ref, code int, reason string) {
	if !s.current(ref) {
		return
	}
	s.debugf("connection closed => attempt: %d, code: %d, reason: '%s'", ref, code, reason)

	switch s.State() {
	case StateConnecting:
		s.failAttempt(newError(KindUnsolicitedClose, ref, fmt.Errorf("closed before open: %d %s", code, reason)), "error")
	case StateOpen:
		s.logger.Printf(LogInfo, "socket", "Disconnected from %v", s.endPoint.String())
		s.metrics.error(s.id, KindUnsolicitedClose)
		s.discardConn()
		s.scheduleOrClose()
		s.dispatcher.close(CloseEvent{Attempt: ref, Code: code, Reason: reason})
	}
}

func (s *Socket) connectTimedOut() {
	if s.State() != StateConnecting {
		return
	}
	err := newError(KindConnectTimeout, s.attempt, fmt.Errorf("no open signal within %v", s.config.ConnectTimeout))
	s.failAttempt(err, "timeout")
}

// failAttempt ends an attempt that never opened.
func (s *Socket) failAttempt(err *Error, result string) {
	s.timeout.Cancel()
	s.discardConn()
	s.metrics.attempt(s.id, result)
	s.scheduleOrClose()
	s.reportError(err)
}

// scheduleOrClose arms the retry timer, or moves to StateClosed when retries are disabled.
func (s *Socket) scheduleOrClose() {
	delay, ok := s.reconnect.ScheduleRetry()
	if !ok {
		s.debugf("reconnect disabled, closing")
		s.setState(StateClosed)
		return
	}
	s.debugf("retrying in %v", delay)
	s.setState(StateReconnecting)
}

func (s *Socket) current(ref Ref) bool {
	return ref == s.attempt && s.conn != nil
}

func (s *Socket) setConn(conn Conn) {
	s.conn = conn
	s.mu.Lock()
	s.published = conn
	s.protocol = ""
	s.mu.Unlock()
}

// discardConn force-closes the current handle. Its late signals are ignored from now on.
func (s *Socket) discardConn() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.debugf("error closing attempt %d: %v", s.attempt, err)
	}
	s.setConn(nil)
}

func (s *Socket) setState(state ConnectionState) {
	old := ConnectionState(s.state.Swap(int32(state)))
	if old == state {
		return
	}
	s.metrics.state(s.id, state)
	s.debugf("state => %s -> %s", old, state)
}

func (s *Socket) reportError(err *Error) {
	s.metrics.error(s.id, err.Kind)
	s.debugf("error => %v", err)
	s.dispatcher.error(err)
}

func (s *Socket) handlerFault(hook string, recovered any) {
	if s.config.Debug {
		s.logger.Println(LogWarning, "handler", handlerFault(hook, recovered))
	}
}

func (s *Socket) debugf(format string, v ...any) {
	if s.config.Debug {
		s.logger.Printf(LogDebug, "socket", format, v...)
	}
}

func classifyDialError(err error) ErrorKind {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, ErrConnectionRefused) {
		return KindConnectionRefused
	}
	return KindTransport
}

// attemptSignals relays one handle's signals onto the event loop, tagged
// with the attempt they belong to.
type attemptSignals struct {
	socket *Socket
	ref    Ref
}

func (a *attemptSignals) OnConnOpen() {
	a.socket.loop.post(func() { a.socket.handleOpen(a.ref) })
}

func (a *attemptSignals) OnConnClose(code int, reason string) {
	a.socket.loop.post(func() { a.socket.handleConnClose(a.ref, code, reason) })
}

func (a *attemptSignals) OnConnError(err error) {
	a.socket.loop.post(func() { a.socket.handleConnError(a.ref, err) })
}

func (a *attemptSignals) OnConnMessage(msg Message) {
	a.socket.loop.post(func() { a.socket.handleMessage(a.ref, msg) })
}

var _ TransportHandler = (*attemptSignals)(nil)
