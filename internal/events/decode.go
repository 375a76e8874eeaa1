package events

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/torosent/crankwatch/internal/clientmetrics"
)

// maxLineBytes bounds a single NDJSON line; large stats reports carry thousands of records.
const maxLineBytes = 16 * 1024 * 1024

var (
	ErrInvalidEnvelope = errors.New("invalid event envelope")
	ErrMissingKind     = errors.New("event envelope has no event name")
)

// Decode parses one envelope: {"event": "<kind>", "data": <payload>}.
// "payload" is accepted in place of "data".
func Decode(msg []byte) (Event, error) {
	msg = bytes.TrimSpace(msg)
	if !gjson.ValidBytes(msg) {
		return Event{}, ErrInvalidEnvelope
	}
	doc := gjson.ParseBytes(msg)
	if !doc.IsObject() {
		return Event{}, fmt.Errorf("%w: expected object", ErrInvalidEnvelope)
	}

	kind := strings.TrimSpace(doc.Get("event").String())
	if kind == "" {
		return Event{}, ErrMissingKind
	}

	data := doc.Get("data")
	if !data.Exists() {
		data = doc.Get("payload")
	}
	var raw []byte
	if data.Exists() {
		raw = []byte(data.Raw)
	}
	return Event{Kind: Kind(kind), Data: raw}, nil
}

// ErrorIdentifier extracts the error tag from an error event payload. The payload is
// normally a JSON string; anything else is used as trimmed raw text.
func ErrorIdentifier(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if gjson.ValidBytes(trimmed) {
		if res := gjson.ParseBytes(trimmed); res.Type == gjson.String {
			return res.Str
		}
	}
	return string(trimmed)
}

// ReadStream reads newline-delimited envelopes from r and publishes them until EOF
// or ctx is done. Malformed lines are counted on m and skipped. When ctx ends while
// a read is pending, r is closed if it is an io.Closer; otherwise the pending read
// is abandoned.
func ReadStream(ctx context.Context, r io.Reader, pub Publisher, m *clientmetrics.StreamMetrics) error {
	if m == nil {
		m = clientmetrics.New()
	}
	m.MarkConnected()

	lines := make(chan []byte)
	done := make(chan struct{})
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-done:
				scanErr <- nil
				return
			}
		}
		scanErr <- scanner.Err()
	}()
	defer close(done)

	for {
		if err := ctx.Err(); err != nil {
			closeReader(r)
			return err
		}
		select {
		case <-ctx.Done():
			closeReader(r)
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					m.IncrementErrors()
					return fmt.Errorf("read events: %w", err)
				}
				return ctx.Err()
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			ev, err := Decode(line)
			if err != nil {
				m.IncrementDecodeErrors()
				continue
			}
			m.IncrementReceived(int64(len(line)))
			pub.Emit(ev)
		}
	}
}

func closeReader(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
}
