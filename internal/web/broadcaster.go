package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/camsession/internal/logic/session"
)

// SSE event names.
const (
	streamCamera = "camera"
	streamLog    = "log"
)

// message is one SSE frame: Name becomes the "event:" line, Data the payload.
type message struct {
	Name string
	Data string
}

// cameraEvent is the JSON payload of a "camera" frame.
type cameraEvent struct {
	Time string `json:"t"`
	session.Event
}

// logEvent is the JSON payload of a "log" frame.
type logEvent struct {
	Time string `json:"t"`
	Msg  string `json:"msg"`
}

// Broadcaster distributes session events and log lines to SSE clients.
// It implements session.EventSink; Send never blocks, so slow clients
// miss frames instead of stalling the camera session.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan message]struct{}
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan message]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast frames and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *Broadcaster) Subscribe() (<-chan message, func()) {
	ch := make(chan message, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Clients returns the number of subscribed clients.
func (b *Broadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Send publishes a session event as a "camera" frame.
func (b *Broadcaster) Send(e session.Event) {
	b.publish(streamCamera, cameraEvent{Time: now(), Event: e})
}

// Log publishes a log line as a "log" frame.
func (b *Broadcaster) Log(msg string) {
	b.publish(streamLog, logEvent{Time: now(), Msg: msg})
}

func (b *Broadcaster) publish(name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	m := message{Name: name, Data: string(data)}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- m:
		default:
			// channel full, skip
		}
	}
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

// LogWriter implements io.Writer; each Write is published as a "log" frame.
func LogWriter(b *Broadcaster) *logWriter {
	return &logWriter{b: b}
}

// logWriter wraps Broadcaster as io.Writer for use with debug.SetOutput.
type logWriter struct {
	b *Broadcaster
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.Log(msg)
	}
	return len(p), nil
}
