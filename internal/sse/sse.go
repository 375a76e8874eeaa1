// Package sse reads harness events from a Server-Sent Events endpoint.
package sse

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/torosent/crankwatch/internal/clientmetrics"
	"github.com/torosent/crankwatch/internal/events"
)

// Event represents a Server-Sent Event.
type Event struct {
	ID    string
	Event string
	Data  string
}

// StatusError is returned when the SSE endpoint responds with a non-200 status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// ErrClosed is returned once the server ends the stream.
var ErrClosed = errors.New("connection closed")

// Client represents an SSE client connection.
type Client struct {
	url        string
	headers    http.Header
	httpClient *http.Client
	resp       *http.Response
	reader     *bufio.Reader
	mu         sync.Mutex
	metrics    *clientmetrics.StreamMetrics
}

// Config configures the SSE client behavior.
type Config struct {
	URL     string
	Headers http.Header
	// ConnectTimeout bounds the request until response headers arrive.
	// The stream itself stays open indefinitely.
	ConnectTimeout time.Duration
}

// NewClient creates a new SSE client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.ConnectTimeout

	return &Client{
		url:        cfg.URL,
		headers:    cfg.Headers,
		httpClient: &http.Client{Transport: transport},
		metrics:    clientmetrics.New(),
	}
}

// Connect establishes an SSE connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resp != nil {
		return fmt.Errorf("already connected")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		c.metrics.IncrementErrors()
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.IncrementErrors()
		return fmt.Errorf("http request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.metrics.IncrementErrors()
		resp.Body.Close()
		return &StatusError{Code: resp.StatusCode}
	}

	c.resp = resp
	c.reader = bufio.NewReader(resp.Body)
	c.metrics.MarkConnected()

	return nil
}

// ReadEvent reads the next SSE event from the stream.
func (c *Client) ReadEvent(ctx context.Context) (Event, error) {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()

	if reader == nil {
		return Event{}, fmt.Errorf("not connected")
	}

	event := Event{}
	var dataLines []string

	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return Event{}, ErrClosed
			}
			c.metrics.IncrementErrors()
			return Event{}, fmt.Errorf("read line: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")

		// Empty line marks end of event
		if line == "" {
			if len(dataLines) > 0 || event.Event != "" || event.ID != "" {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}

		// Comment line (keep-alive)
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "id":
			event.ID = value
		case "event":
			event.Event = value
		case "data":
			dataLines = append(dataLines, value)
		}
	}
}

// Stream connects and publishes harness events until the server closes the stream
// or ctx is done. The SSE event name is the event kind and the data its payload;
// unnamed ("message") events must carry a full envelope.
func (c *Client) Stream(ctx context.Context, pub events.Publisher) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	for {
		sseEvent, err := c.ReadEvent(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}

		ev, ok := toEvent(sseEvent)
		if !ok {
			c.metrics.IncrementDecodeErrors()
			continue
		}
		c.metrics.IncrementReceived(int64(len(sseEvent.Data)))
		pub.Emit(ev)
	}
}

func toEvent(se Event) (events.Event, bool) {
	if se.Event == "" || se.Event == "message" {
		ev, err := events.Decode([]byte(se.Data))
		return ev, err == nil
	}
	var data []byte
	if se.Data != "" {
		data = []byte(se.Data)
	}
	return events.Event{Kind: events.Kind(se.Event), Data: data}, true
}

// Close closes the SSE connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resp == nil {
		return nil
	}

	err := c.resp.Body.Close()
	c.resp = nil
	c.reader = nil

	return err
}

// Metrics returns the stream counters.
func (c *Client) Metrics() clientmetrics.Snapshot {
	return c.metrics.Snapshot()
}
