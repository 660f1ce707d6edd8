package session

import (
	"sync"

	"github.com/cjeanneret/camsession/internal/debug"
)

// EventType names the asynchronous conditions pushed to the event sink.
type EventType string

const (
	EventError         EventType = "error"
	EventCameraClosing EventType = "cameraClosing"
)

// Event is one asynchronous notification.
type Event struct {
	Type        EventType `json:"eventType"`
	Description string    `json:"errorDescription,omitempty"`
}

// EventSink receives events. Send is called from the session's control
// goroutine and must not block.
type EventSink interface {
	Send(e Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(e Event)

func (f EventSinkFunc) Send(e Event) { f(e) }

// sinkSlot holds the currently bound sink. Last writer wins; events sent
// while nothing is bound are dropped.
type sinkSlot struct {
	mu   sync.Mutex
	sink EventSink
}

func (s *sinkSlot) set(sink EventSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *sinkSlot) emit(e Event) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()

	debug.Event(string(e.Type), e.Description)
	if sink != nil {
		sink.Send(e)
	}
}

// Listen binds sink, replacing any previous one.
func (s *Session) Listen(sink EventSink) {
	s.events.set(sink)
}

// Cancel unbinds the current sink. The session keeps no reference to it.
func (s *Session) Cancel() {
	s.events.set(nil)
}

func (s *Session) emitError(description string) {
	s.events.emit(Event{Type: EventError, Description: description})
}
