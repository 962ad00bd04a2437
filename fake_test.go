package resocket

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock runs AfterFunc callbacks only when Advance moves past their deadline.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and runs every timer that became due, earliest first.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// pending counts timers that are neither stopped nor fired.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeTransport hands out fakeConns that the test drives by hand.
type fakeTransport struct {
	mu       sync.Mutex
	conns    []*fakeConn
	protocol string
}

func (f *fakeTransport) Open(req OpenRequest, handler TransportHandler) Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeConn{req: req, handler: handler, ready: ReadyConnecting, protocol: f.protocol}
	f.conns = append(f.conns, c)
	return c
}

func (f *fakeTransport) opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeTransport) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i]
}

func (f *fakeTransport) last() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[len(f.conns)-1]
}

type fakeConn struct {
	req     OpenRequest
	handler TransportHandler

	mu       sync.Mutex
	ready    ReadyState
	closed   bool
	sent     []Message
	sendErr  error
	protocol string
}

func (c *fakeConn) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.ready = ReadyClosed
	return nil
}

func (c *fakeConn) ReadyState() ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *fakeConn) Protocol() string {
	return c.protocol
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) sentMessages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}

func (c *fakeConn) open() {
	c.mu.Lock()
	c.ready = ReadyOpen
	c.mu.Unlock()
	c.handler.OnConnOpen()
}

func (c *fakeConn) receive(data string) {
	c.handler.OnConnMessage(Message{Type: TextMessage, Data: []byte(data)})
}

func (c *fakeConn) drop(code int, reason string) {
	c.mu.Lock()
	c.ready = ReadyClosed
	c.mu.Unlock()
	c.handler.OnConnClose(code, reason)
}

func (c *fakeConn) fail(err error) {
	c.handler.OnConnError(err)
}

// recorder is a Handler that keeps everything it is told.
type recorder struct {
	mu       sync.Mutex
	events   []string
	closes   []CloseEvent
	messages []Message
	errors   []error
}

func (r *recorder) OnOpen() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "open")
}

func (r *recorder) OnClose(event CloseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "close")
	r.closes = append(r.closes, event)
}

func (r *recorder) OnMessage(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "message")
	r.messages = append(r.messages, msg)
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "error")
	r.errors = append(r.errors, err)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Closes() []CloseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CloseEvent(nil), r.closes...)
}

func (r *recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

type harness struct {
	socket    *Socket
	clock     *fakeClock
	transport *fakeTransport
	handler   *recorder
}

func newHarness(t *testing.T, cfg Config, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock:     newFakeClock(),
		transport: &fakeTransport{},
		handler:   &recorder{},
	}
	opts = append([]Option{
		WithClock(h.clock),
		WithTransport(h.transport),
		WithHandler(h.handler),
	}, opts...)

	s, err := New(cfg, opts...)
	require.NoError(t, err)
	h.socket = s
	t.Cleanup(s.Close)
	return h
}

// flush waits until everything queued on the event loop so far has run.
func (h *harness) flush(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	if !h.socket.loop.post(func() { close(done) }) {
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event loop did not drain")
	}
}

// advance moves virtual time forward and lets the loop process what fired.
func (h *harness) advance(t *testing.T, d time.Duration) {
	t.Helper()
	h.clock.Advance(d)
	h.flush(t)
}

func (h *harness) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-h.socket.Done():
	case <-time.After(time.Second):
		t.Fatal("socket did not shut down")
	}
}
