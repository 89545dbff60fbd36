package connection

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is the single WebSocket transport a Manager session owns.
type Client interface {
	// Connect dials and upgrades. A Client connects at most once.
	Connect(ctx context.Context) error

	// Close sends a normal close frame and releases the socket.
	Close() error

	// Send writes one text frame.
	Send(data []byte) error

	// Messages yields inbound text frames in receipt order.
	Messages() <-chan TimestampedMessage

	// Errors yields at most one terminal error. The transport is unusable
	// afterwards.
	Errors() <-chan error

	IsConnected() bool
}

// ClientFactory builds a transport for one session.
type ClientFactory func(cfg ClientConfig, logger *slog.Logger) Client

type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn     *websocket.Conn
	messages chan TimestampedMessage
	errs     chan error
	stop     chan struct{}

	sendMu sync.Mutex

	mu       sync.RWMutex
	open     bool
	shut     bool
	lastSeen time.Time // last ping or pong from the peer
}

// NewClient creates a gorilla/websocket transport.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errs:     make(chan error, 1),
		stop:     make(chan struct{}),
	}
}

func (c *client) Connect(ctx context.Context) error {
	if c.isShut() {
		return ErrAlreadyClosed
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	header := http.Header{"Accept": []string{"application/json"}}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.shut {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.open = true
	c.lastSeen = time.Now()
	c.mu.Unlock()

	if c.cfg.ReadLimit > 0 {
		conn.SetReadLimit(c.cfg.ReadLimit)
	}
	conn.SetPingHandler(func(data string) error {
		c.touch()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop()
	if c.cfg.PingTimeout > 0 {
		go c.livenessLoop()
	}

	c.logger.Debug("websocket connected", "url", redactToken(c.cfg.URL))
	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	if c.shut {
		c.mu.Unlock()
		return nil
	}
	c.shut = true
	c.open = false
	conn := c.conn
	c.mu.Unlock()

	close(c.stop)
	if conn == nil {
		return nil
	}

	bye := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, bye, time.Now().Add(time.Second))
	return conn.Close()
}

func (c *client) Send(data []byte) error {
	c.mu.RLock()
	conn, open := c.conn, c.open
	c.mu.RUnlock()
	if !open {
		return ErrNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) Messages() <-chan TimestampedMessage { return c.messages }

func (c *client) Errors() <-chan error { return c.errs }

func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

func (c *client) isShut() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shut
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *client) markDown() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

// readLoop forwards text frames in receipt order. A full channel blocks the
// loop rather than dropping a frame.
func (c *client) readLoop() {
	defer c.markDown()

	for {
		kind, data, err := c.conn.ReadMessage()
		at := time.Now()

		if err != nil {
			select {
			case <-c.stop:
			default:
				c.markDown()
				c.fail(err)
			}
			return
		}

		if kind != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame", "frame_type", kind)
			continue
		}

		select {
		case c.messages <- TimestampedMessage{Data: data, ReceivedAt: at}:
		case <-c.stop:
			return
		}
	}
}

// livenessLoop pings every PingTimeout/2 and fails the transport once the
// peer has been silent for PingTimeout.
func (c *client) livenessLoop() {
	ticker := time.NewTicker(c.cfg.PingTimeout / 2)
	defer ticker.Stop()

	wait := time.Second
	if c.cfg.WriteTimeout > 0 {
		wait = c.cfg.WriteTimeout
	}

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}

		if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(wait)); err != nil {
			c.logger.Debug("ping failed", "error", err)
		}

		c.mu.RLock()
		seen := c.lastSeen
		c.mu.RUnlock()

		if silent := time.Since(seen); silent > c.cfg.PingTimeout {
			c.logger.Warn("connection stale",
				"silent_for", silent,
				"timeout", c.cfg.PingTimeout,
			)
			c.fail(ErrStaleConnection)
			c.conn.Close() // unblocks readLoop
			return
		}
	}
}

// fail publishes the first terminal error.
func (c *client) fail(err error) {
	select {
	case c.errs <- err:
	default:
	}
}
