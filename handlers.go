package resocket

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// CloseEvent describes the end of an open connection.
type CloseEvent struct {
	// Attempt is the connection attempt that closed.
	Attempt Ref
	// Code is the websocket close code, or CloseAbnormalClosure when none was received.
	Code int
	// Reason is the close reason sent by the peer, if any.
	Reason string
	// Requested is true when the collaborator caused the close through Close or Refresh.
	Requested bool
}

// Handler receives the lifecycle events of a Socket. Every method runs on the
// socket's event loop; calls back into the Socket are queued, not run inline.
//
// Embed NoopHandler to implement only some of the hooks.
type Handler interface {
	OnOpen()
	OnClose(event CloseEvent)
	OnMessage(msg Message)
	OnError(err error)
}

// NoopHandler ignores every event. It is the default Handler.
type NoopHandler struct{}

func (NoopHandler) OnOpen()            {}
func (NoopHandler) OnClose(CloseEvent) {}
func (NoopHandler) OnMessage(Message)  {}
func (NoopHandler) OnError(error)      {}

// HandlerFuncs adapts plain functions to a Handler. Nil fields are no-ops.
type HandlerFuncs struct {
	Open    func()
	Close   func(CloseEvent)
	Message func(Message)
	Error   func(error)
}

func (h HandlerFuncs) OnOpen() {
	if h.Open != nil {
		h.Open()
	}
}

func (h HandlerFuncs) OnClose(event CloseEvent) {
	if h.Close != nil {
		h.Close(event)
	}
}

func (h HandlerFuncs) OnMessage(msg Message) {
	if h.Message != nil {
		h.Message(msg)
	}
}

func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Handler = NoopHandler{}
	_ Handler = HandlerFuncs{}
)

// dispatcher delivers events to the collaborator and counts inbound
// messages. Slot functions override the matching hook of the base handler.
// A panicking handler is recovered and reported to fault; it never unwinds
// into the state machine.
type dispatcher struct {
	mu       sync.RWMutex
	base     Handler
	slots    HandlerFuncs
	received atomic.Uint64
	fault    func(hook string, recovered any)
}

func newDispatcher(fault func(hook string, recovered any)) *dispatcher {
	return &dispatcher{
		base:  NoopHandler{},
		fault: fault,
	}
}

// setHandler replaces the base handler and clears every slot. Nil restores the no-op default.
func (d *dispatcher) setHandler(h Handler) {
	if h == nil {
		h = NoopHandler{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.base = h
	d.slots = HandlerFuncs{}
}

func (d *dispatcher) setSlot(apply func(*HandlerFuncs)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	apply(&d.slots)
}

func (d *dispatcher) snapshot() (Handler, HandlerFuncs) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.base, d.slots
}

func (d *dispatcher) open() {
	base, slots := d.snapshot()
	if slots.Open != nil {
		d.guard("OnOpen", slots.Open)
		return
	}
	d.guard("OnOpen", base.OnOpen)
}

func (d *dispatcher) close(event CloseEvent) {
	base, slots := d.snapshot()
	if slots.Close != nil {
		d.guard("OnClose", func() { slots.Close(event) })
		return
	}
	d.guard("OnClose", func() { base.OnClose(event) })
}

func (d *dispatcher) error(err error) {
	base, slots := d.snapshot()
	if slots.Error != nil {
		d.guard("OnError", func() { slots.Error(err) })
		return
	}
	d.guard("OnError", func() { base.OnError(err) })
}

// message counts msg and then delivers it. Empty payloads are neither counted nor delivered.
func (d *dispatcher) message(msg Message) bool {
	if len(msg.Data) == 0 {
		return false
	}
	msg.Seq = d.received.Add(1)

	base, slots := d.snapshot()
	if slots.Message != nil {
		d.guard("OnMessage", func() { slots.Message(msg) })
		return true
	}
	d.guard("OnMessage", func() { base.OnMessage(msg) })
	return true
}

func (d *dispatcher) messagesReceived() uint64 {
	return d.received.Load()
}

func (d *dispatcher) guard(hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil && d.fault != nil {
			d.fault(hook, r)
		}
	}()
	fn()
}

// handlerFault turns a recovered panic value into an error for logging.
func handlerFault(hook string, recovered any) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("%s handler panicked: %w", hook, err)
	}
	return fmt.Errorf("%s handler panicked: %v", hook, recovered)
}
