package resocket

import "time"

type timerCallback func()

// callbackTimer is a one-shot timer whose expiry is delivered through the
// event loop. Every arm bumps a generation; an expiry from an older
// generation, or one that arrives after cancel, is dropped. Cancel is
// therefore safe after the timer already fired or was already canceled.
//
// All methods must be called from the loop goroutine.
type callbackTimer struct {
	loop     *eventLoop
	clock    Clock
	callback timerCallback

	gen     uint64
	armed   bool
	stopper Stopper
}

func newCallbackTimer(loop *eventLoop, clock Clock, callback timerCallback) *callbackTimer {
	return &callbackTimer{
		loop:     loop,
		clock:    clock,
		callback: callback,
	}
}

// Arm starts the timer, replacing any pending run.
func (t *callbackTimer) Arm(d time.Duration) {
	t.Cancel()

	t.gen++
	gen := t.gen
	t.armed = true
	t.stopper = t.clock.AfterFunc(d, func() {
		t.loop.post(func() { t.fire(gen) })
	})
}

// Cancel stops a pending run. It is a no-op when nothing is pending.
func (t *callbackTimer) Cancel() {
	if !t.armed {
		return
	}
	t.armed = false
	t.gen++
	if t.stopper != nil {
		t.stopper.Stop()
		t.stopper = nil
	}
}

// Armed reports whether a run is pending.
func (t *callbackTimer) Armed() bool {
	return t.armed
}

func (t *callbackTimer) fire(gen uint64) {
	if !t.armed || gen != t.gen {
		return
	}
	t.armed = false
	t.stopper = nil
	t.callback()
}
