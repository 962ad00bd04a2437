package resocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errSendBufferFull = errors.New("send buffer full")
	errConnClosed     = errors.New("connection is not open")
)

// Websocket is the default Transport, backed by gorilla/websocket.
type Websocket struct {
	dialer *websocket.Dialer
}

// NewWebsocket returns a Transport dialing with dialer, or websocket.DefaultDialer when nil.
func NewWebsocket(dialer *websocket.Dialer) *Websocket {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Websocket{
		dialer: dialer,
	}
}

// Open starts dialing in the background and returns the handle right away.
func (w *Websocket) Open(req OpenRequest, handler TransportHandler) Conn {
	dialer := *w.dialer
	dialer.Subprotocols = append([]string(nil), req.SubProtocols...)

	ctx, cancel := context.WithCancel(context.Background())
	c := &websocketConn{
		handler:    handler,
		cancel:     cancel,
		send:       make(chan Message, sendBufferSize),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	c.state.Store(int32(ReadyConnecting))

	go c.dial(ctx, &dialer, req)

	return c
}

type websocketConn struct {
	handler TransportHandler
	cancel  context.CancelFunc

	mu        sync.Mutex
	conn      *websocket.Conn
	protocol  string
	discarded bool

	state      atomic.Int32
	send       chan Message
	done       chan struct{}
	readerDone chan struct{}
	stopOnce   sync.Once
	signalOnce sync.Once
}

func (c *websocketConn) Send(msg Message) error {
	if c.ReadyState() != ReadyOpen {
		return errConnClosed
	}
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close discards the handle. A live connection gets a normal-closure frame
// before it is torn down; a dial still in progress is aborted.
func (c *websocketConn) Close() error {
	c.mu.Lock()
	c.discarded = true
	c.mu.Unlock()

	c.cancel()
	c.stop()
	return nil
}

func (c *websocketConn) ReadyState() ReadyState {
	return ReadyState(c.state.Load())
}

func (c *websocketConn) Protocol() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protocol
}

func (c *websocketConn) isDiscarded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discarded
}

func (c *websocketConn) stop() {
	c.stopOnce.Do(func() {
		if c.ReadyState() != ReadyClosed {
			c.state.Store(int32(ReadyClosing))
		}
		close(c.done)
	})
}

// fail reports the terminal signal of the handle unless it was discarded.
func (c *websocketConn) fail(signal func()) {
	c.signalOnce.Do(func() {
		if !c.isDiscarded() {
			signal()
		}
	})
	c.stop()
}

func (c *websocketConn) dial(ctx context.Context, dialer *websocket.Dialer, req OpenRequest) {
	conn, _, err := dialer.DialContext(ctx, req.EndPoint.String(), req.RequestHeader)
	if err != nil {
		c.state.Store(int32(ReadyClosed))
		close(c.readerDone)
		c.fail(func() { c.handler.OnConnError(err) })
		return
	}

	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		_ = conn.Close()
		c.state.Store(int32(ReadyClosed))
		close(c.readerDone)
		return
	}
	c.conn = conn
	c.protocol = conn.Subprotocol()
	c.state.Store(int32(ReadyOpen))
	c.mu.Unlock()

	go c.writer(conn)

	c.handler.OnConnOpen()
	c.reader(conn)
}

func (c *websocketConn) reader(conn *websocket.Conn) {
	defer close(c.readerDone)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				c.fail(func() { c.handler.OnConnClose(closeErr.Code, closeErr.Text) })
			} else {
				c.fail(func() { c.handler.OnConnError(err) })
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		c.handler.OnConnMessage(Message{Type: MessageType(messageType), Data: data})
	}
}

func (c *websocketConn) writer(conn *websocket.Conn) {
	defer c.teardown(conn)

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(int(msg.Type), msg.Data); err != nil {
				c.fail(func() { c.handler.OnConnError(err) })
				return
			}
		}
	}
}

func (c *websocketConn) teardown(conn *websocket.Conn) {
	if c.isDiscarded() {
		// attempt to gracefully close the connection by sending a close websocket message
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err == nil {
			select {
			case <-c.readerDone:
			case <-time.After(closeGracePeriod):
			}
		}
	}
	_ = conn.Close()
	c.state.Store(int32(ReadyClosed))
}

// Compile-time interface satisfaction checks.
var (
	_ Transport = (*Websocket)(nil)
	_ Conn      = (*websocketConn)(nil)
)
