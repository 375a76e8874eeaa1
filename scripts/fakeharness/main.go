// Command fakeharness emits synthetic harness events for trying crankwatch locally.
//
//	go run ./scripts/fakeharness -mode stdout | crankwatch --namespace dev --dry-run
//	go run ./scripts/fakeharness -mode sse -port 8081 &
//	crankwatch --namespace dev --dry-run --source http://localhost:8081/events
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type serverMode string

const (
	modeStdout    serverMode = "stdout"
	modeSSE       serverMode = "sse"
	modeWebSocket serverMode = "websocket"
)

var errorTags = []string{"ETIMEDOUT", "ECONNRESET", "ECONNREFUSED"}

type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type generator struct {
	rnd      *rand.Rand
	snapshot int
	records  int
}

func (g *generator) next() envelope {
	g.snapshot++
	if g.snapshot%4 == 0 {
		return envelope{Event: "error", Data: errorTags[g.rnd.Intn(len(errorTags))]}
	}

	now := time.Now().UnixMilli()
	latencies := make([][]interface{}, g.records)
	for i := range latencies {
		status := 200
		if g.rnd.Intn(10) == 0 {
			status = 503
		}
		latencyNs := int64(5+g.rnd.Intn(400)) * int64(time.Millisecond)
		latencies[i] = []interface{}{now - int64(i), fmt.Sprintf("req-%d-%d", g.snapshot, i), latencyNs, status}
	}
	return envelope{Event: "stats", Data: map[string]interface{}{
		"aggregate": map[string]interface{}{"latencies": latencies},
	}}
}

func main() {
	mode := flag.String("mode", string(modeStdout), "Output mode: stdout, sse, websocket")
	port := flag.Int("port", 0, "Listening port for sse and websocket modes")
	count := flag.Int("count", 10, "Number of events to emit")
	records := flag.Int("records", 45, "Latency records per stats event")
	interval := flag.Duration("interval", 200*time.Millisecond, "Delay between events")
	flag.Parse()

	newGenerator := func() *generator {
		return &generator{rnd: rand.New(rand.NewSource(time.Now().UnixNano())), records: *records}
	}

	switch serverMode(*mode) {
	case modeStdout:
		if err := writeNDJSON(os.Stdout, newGenerator(), *count, *interval); err != nil {
			log.Fatal(err)
		}
	case modeSSE:
		requirePort(*port)
		log.Fatal(runSSEServer(*port, newGenerator, *count, *interval))
	case modeWebSocket:
		requirePort(*port)
		log.Fatal(runWebSocketServer(*port, newGenerator, *count, *interval))
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func requirePort(port int) {
	if port <= 0 {
		log.Fatalf("port must be > 0")
	}
}

func writeNDJSON(w io.Writer, g *generator, count int, interval time.Duration) error {
	enc := json.NewEncoder(w)
	for i := 0; i < count; i++ {
		if err := enc.Encode(g.next()); err != nil {
			return err
		}
		time.Sleep(interval)
	}
	return nil
}

func runSSEServer(port int, newGenerator func() *generator, count int, interval time.Duration) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		g := newGenerator()
		for i := 0; i < count; i++ {
			ev := g.next()
			data, err := json.Marshal(ev.Data)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, data)
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(interval):
			}
		}
	})

	addr := fmt.Sprintf(":%d", port)
	log.Printf("fake harness SSE server listening on %s/events", addr)
	return http.ListenAndServe(addr, mux)
}

func runWebSocketServer(port int, newGenerator func() *generator, count int, interval time.Duration) error {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		go streamWebSocket(conn, newGenerator(), count, interval)
	})

	addr := fmt.Sprintf(":%d", port)
	log.Printf("fake harness WebSocket server listening on %s/events", addr)
	return http.ListenAndServe(addr, mux)
}

func streamWebSocket(conn *websocket.Conn, g *generator, count int, interval time.Duration) {
	defer conn.Close()
	for i := 0; i < count; i++ {
		if err := conn.WriteJSON(g.next()); err != nil {
			return
		}
		time.Sleep(interval)
	}
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
}
