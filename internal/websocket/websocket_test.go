package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/torosent/crankwatch/internal/events"
)

// Helper function to create a test WebSocket server
func createTestWSServer(handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func closeNormally(conn *websocket.Conn) {
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Emit(ev events.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return 1
}

func TestWebSocketConnectAndReceive(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"error","data":"ETIMEDOUT"}`))
		closeNormally(conn)
	})
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	msg, err := client.ReceiveMessage()
	if err != nil {
		t.Fatalf("ReceiveMessage failed: %v", err)
	}
	if msg.Type != websocket.TextMessage {
		t.Errorf("Expected text message, got type %d", msg.Type)
	}
	if string(msg.Data) != `{"event":"error","data":"ETIMEDOUT"}` {
		t.Errorf("unexpected data %q", msg.Data)
	}
}

func TestWebSocketConnectTwice(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		conn.ReadMessage()
	})
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if err := client.Connect(context.Background()); err == nil {
		t.Error("expected error on second Connect")
	}
}

func TestWebSocketDialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	err := client.Connect(context.Background())
	if err == nil {
		t.Fatal("expected dial error")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("expected status code in error, got %v", err)
	}
	if got := client.Metrics().Errors; got != 1 {
		t.Errorf("expected 1 error counted, got %d", got)
	}
}

func TestWebSocketHeaders(t *testing.T) {
	var gotAuth string
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		closeNormally(conn)
	}))
	defer server.Close()

	client := NewClient(Config{
		URL:     wsURL(server),
		Headers: http.Header{"Authorization": []string{"Bearer abc"}},
	})
	if err := client.Stream(context.Background(), &recorder{}); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("expected Authorization header, got %q", gotAuth)
	}
}

func TestStreamPublishesEnvelopes(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"stats","data":{"latencies":[]}}`))
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"error","data":"ECONNRESET"}`))
		closeNormally(conn)
	})
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	rec := &recorder{}
	if err := client.Stream(context.Background(), rec); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	want := []events.Event{
		{Kind: events.KindStats, Data: []byte(`{"latencies":[]}`)},
		{Kind: events.KindError, Data: []byte(`"ECONNRESET"`)},
	}
	if diff := cmp.Diff(want, rec.events); diff != "" {
		t.Errorf("published events mismatch (-want +got):\n%s", diff)
	}

	snap := client.Metrics()
	if snap.EventsReceived != 2 {
		t.Errorf("expected 2 events received, got %d", snap.EventsReceived)
	}
	if snap.DecodeErrors != 1 {
		t.Errorf("expected 1 decode error, got %d", snap.DecodeErrors)
	}
}

func TestStreamStopsOnContextCancel(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		conn.ReadMessage()
	})
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	client := NewClient(Config{URL: wsURL(server)})
	err := client.Stream(ctx, &recorder{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestStreamAbnormalClosure(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"error","data":"EPIPE"}`))
	})
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	rec := &recorder{}
	err := client.Stream(context.Background(), rec)
	if err == nil {
		t.Fatal("expected error when server drops the connection")
	}
	if len(rec.events) != 1 {
		t.Errorf("expected the event before the drop to be published, got %d", len(rec.events))
	}
}

func TestReceiveMessageNotConnected(t *testing.T) {
	client := NewClient(Config{URL: "ws://127.0.0.1:0"})
	if _, err := client.ReceiveMessage(); err == nil {
		t.Error("expected error when not connected")
	}
}
