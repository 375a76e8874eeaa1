// Package websocket subscribes to harness events pushed over a WebSocket.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/torosent/crankwatch/internal/clientmetrics"
	"github.com/torosent/crankwatch/internal/events"
)

// Message represents a WebSocket message received from the harness.
type Message struct {
	Type int // websocket.TextMessage or websocket.BinaryMessage
	Data []byte
}

// Client represents a WebSocket client connection.
type Client struct {
	url            string
	headers        http.Header
	dialer         *websocket.Dialer
	maxMessageSize int64
	conn           *websocket.Conn
	mu             sync.Mutex
	metrics        *clientmetrics.StreamMetrics
}

// Config configures the WebSocket client behavior.
type Config struct {
	URL              string
	Headers          http.Header
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
}

// NewClient creates a new WebSocket client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 30 * time.Second
	}

	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 16 * 1024 * 1024 // stats reports can be large
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	return &Client{
		url:            cfg.URL,
		headers:        cfg.Headers,
		dialer:         dialer,
		maxMessageSize: cfg.MaxMessageSize,
		metrics:        clientmetrics.New(),
	}
}

// Connect establishes a WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.headers)
	if err != nil {
		c.metrics.IncrementErrors()
		if resp != nil {
			return fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	conn.SetReadLimit(c.maxMessageSize)
	c.conn = conn
	c.metrics.MarkConnected()

	return nil
}

// ReceiveMessage reads a message from the WebSocket connection.
// Returns an error if the connection is closed.
func (c *Client) ReceiveMessage() (Message, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return Message{}, fmt.Errorf("not connected")
	}

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return Message{}, fmt.Errorf("read message: %w", err)
	}

	return Message{Type: msgType, Data: data}, nil
}

// Stream connects and publishes every text frame as an event envelope until the
// server closes the connection or ctx is done. Binary frames are ignored.
func (c *Client) Stream(ctx context.Context, pub events.Publisher) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	// ReadMessage does not observe ctx; closing the socket unblocks it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			if c.conn != nil {
				c.conn.Close()
			}
			c.mu.Unlock()
		case <-done:
		}
	}()

	for {
		msg, err := c.ReceiveMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				return nil
			}
			c.metrics.IncrementErrors()
			return err
		}
		if msg.Type != websocket.TextMessage {
			continue
		}

		ev, err := events.Decode(msg.Data)
		if err != nil {
			c.metrics.IncrementDecodeErrors()
			continue
		}
		c.metrics.IncrementReceived(int64(len(msg.Data)))
		pub.Emit(ev)
	}
}

// Close closes the WebSocket connection gracefully.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	// Send close frame
	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(5*time.Second),
	)

	closeErr := c.conn.Close()
	c.conn = nil

	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}

	return closeErr
}

// Metrics returns the stream counters.
func (c *Client) Metrics() clientmetrics.Snapshot {
	return c.metrics.Snapshot()
}
