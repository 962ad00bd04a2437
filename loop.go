package resocket

import "sync"

// eventLoop serializes every transition of a Socket onto one goroutine.
// Posted closures run in FIFO order. A closure posted from inside another
// closure runs on a later turn, never inline.
type eventLoop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	done    chan struct{}
}

func newEventLoop() *eventLoop {
	return &eventLoop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (l *eventLoop) start() {
	go l.run()
}

// post queues fn and reports whether it was accepted. Nothing is accepted after stop.
func (l *eventLoop) post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
		// already signalled
	}
	return true
}

// stop makes the loop exit once the closure currently running returns.
// Closures still queued are dropped. Must be called from the loop goroutine.
func (l *eventLoop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
}

func (l *eventLoop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		if l.stopped {
			l.mu.Unlock()
			return
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			<-l.wake
			continue
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}
