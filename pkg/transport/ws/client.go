package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/azckamp/lanetimer/log"
)

// EventKind discriminates transport notifications.
type EventKind int

const (
	Connected EventKind = iota
	Disconnected
	Frame
)

// Event is delivered to the control loop via Events().
type Event struct {
	Kind EventKind
	Data []byte
}

const (
	defaultReconnectInterval = 5 * time.Second
	defaultHandshakeTimeout  = 10 * time.Second
	eventBuffer              = 64
)

// Client is a reconnecting websocket client. It dials the server,
// forwards text frames and connection changes into a buffered event
// channel and retries at a fixed interval after any failure. Frames sent
// while disconnected are dropped silently.
type Client struct {
	url       string
	reconnect time.Duration
	dialer    *websocket.Dialer
	events    chan Event

	mu   sync.Mutex
	conn *websocket.Conn
}

type Option func(*Client)

func WithReconnectInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnect = d
		}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func NewClient(url string, opts ...Option) *Client {
	ret := &Client{
		url:       url,
		reconnect: defaultReconnectInterval,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		events: make(chan Event, eventBuffer),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Events returns the channel the control loop polls.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Send writes a text frame. While disconnected the frame is dropped
// silently; a write failure is returned but recovery is left to the
// reconnect loop.
func (c *Client) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		log.Debug("send while disconnected, dropping frame")
		return nil
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// Run dials and reads until ctx is canceled, reconnecting after the
// configured interval on every failure.
func (c *Client) Run(ctx context.Context) {
	for {
		//nolint:bodyclose // response body is hijacked by the websocket upgrade
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			log.Debug("connect failed",
				log.String("url", c.url), log.ErrorField(err))
		} else {
			log.Info("transport connected", log.String("url", c.url))
			c.setConn(conn)
			c.emit(ctx, Event{Kind: Connected})
			c.readLoop(ctx, conn)
			c.setConn(nil)
			c.emit(ctx, Event{Kind: Disconnected})
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnect):
		}
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug("read failed", log.ErrorField(err))
			conn.Close()
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.emit(ctx, Event{Kind: Frame, Data: data})
	}
}

// emit never blocks the reader for frames: when the control loop falls
// this far behind, losing a frame beats stalling the connection.
// Connection-state transitions are delivered unconditionally; dropping
// one would desynchronize the control loop's view of the connection.
func (c *Client) emit(ctx context.Context, ev Event) {
	if ev.Kind != Frame {
		select {
		case c.events <- ev:
		case <-ctx.Done():
		}
		return
	}
	select {
	case c.events <- ev:
	default:
		log.Warn("event buffer full, dropping frame")
	}
}
