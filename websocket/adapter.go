package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Bowarc/Tetris-wasm/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16384
	closeGrace     = time.Second
)

type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	Retry          RetryPolicy
}

func DefaultConfig() Config {
	return Config{
		WriteWait:      writeWait,
		PongWait:       pongWait,
		PingPeriod:     pingPeriod,
		MaxMessageSize: maxMessageSize,
		Retry:          DefaultRetryPolicy(),
	}
}

// Conn is one client session. It is the connection's sink in the registry
// and owns the read loop for its socket.
type Conn struct {
	id       domain.ConnectionID
	ws       *websocket.Conn
	cfg      Config
	registry domain.Registry
	handler  domain.MessageHandler

	state   atomic.Int32
	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ domain.Connection = (*Conn)(nil)

func NewConn(ws *websocket.Conn, r domain.Registry, h domain.MessageHandler, cfg Config) *Conn {
	return &Conn{
		ws:       ws,
		cfg:      cfg,
		registry: r,
		handler:  h,
		done:     make(chan struct{}),
	}
}

// ID is valid once the session has left StateConnecting.
func (c *Conn) ID() domain.ConnectionID { return c.id }

func (c *Conn) State() State { return State(c.state.Load()) }

// Done is closed when the socket is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send writes one text frame. Writes to this connection are serialized by its
// own mutex and bounded by the write deadline, so a stalled peer only delays
// its own deliveries.
func (c *Conn) Send(ctx context.Context, frame []byte) error {
	if c.isClosed() {
		return domain.ErrSinkClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.isClosed() {
		return domain.ErrSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(c.cfg.WriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close sends a normal closure and closes the socket. Safe to call more than
// once and from any goroutine; a writer blocked in Send is released.
func (c *Conn) Close() error {
	return c.closeWith(websocket.CloseNormalClosure, "")
}

func (c *Conn) closeWith(code int, reason string) error {
	c.closeOnce.Do(func() {
		close(c.done)
		// fails harmlessly when the peer already closed
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(closeGrace),
		)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Serve runs the session until the connection ends. It returns
// ErrRegistrationFailed when the connection could not be admitted; every
// other ending is a normal return.
func (c *Conn) Serve(ctx context.Context) error {
	id, err := Register(ctx, c.registry, c, c.cfg.Retry)
	if err != nil {
		slog.Warn("connection rejected", "error", err)
		c.closeWith(websocket.CloseTryAgainLater, "registry busy")
		return err
	}
	c.id = id
	c.transition(StateConnecting, StateRegistered)

	defer c.teardown()
	c.transition(StateRegistered, StateActive)

	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	go c.heartbeat()
	c.readLoop(ctx)
	return nil
}

func (c *Conn) readLoop(ctx context.Context) {
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) && !c.isClosed() {
				slog.Warn("read error", "clientId", c.id.String(), "error", err)
			} else {
				slog.Debug("read loop ended", "clientId", c.id.String(), "error", err)
			}
			return
		}

		if msgType != websocket.TextMessage {
			slog.Debug("unhandled frame", "clientId", c.id.String(), "type", msgType)
			continue
		}

		c.handler.Handle(ctx, c, data)
	}
}

func (c *Conn) heartbeat() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				slog.Debug("ping failed", "clientId", c.id.String(), "error", err)
				c.Close()
				return
			}
		}
	}
}

// teardown never fails: a close error is logged and removal still happens.
func (c *Conn) teardown() {
	c.transition(StateActive, StateClosing)
	if err := c.Close(); err != nil {
		slog.Debug("close error", "clientId", c.id.String(), "error", err)
	}
	c.registry.RemoveSink(c.id, c)
	c.transition(StateClosing, StateRemoved)
}

func (c *Conn) transition(from, to State) {
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		slog.Warn("unexpected session state", "clientId", c.id.String(), "want", from.String(), "have", c.State().String(), "next", to.String())
		c.state.Store(int32(to))
		return
	}
	slog.Debug("session state", "clientId", c.id.String(), "from", from.String(), "to", to.String())
}
