package wstest

import (
	"testing"
	"time"

	"github.com/orexfx/websocket"
)

// Recorder is a websocket.Sink that buffers events for a test.
type Recorder struct {
	events chan websocket.Event
}

// NewRecorder returns a Recorder buffering up to 256 events.
func NewRecorder() *Recorder {
	return &Recorder{
		events: make(chan websocket.Event, 256),
	}
}

// HandleEvent implements websocket.Sink.
func (r *Recorder) HandleEvent(_ *websocket.Conn, ev websocket.Event) {
	r.events <- ev
}

// Next fails the test unless an E is the next event within 10s.
func Next[E websocket.Event](t testing.TB, r *Recorder) E {
	t.Helper()

	var e E
	select {
	case ev := <-r.events:
		var ok bool
		e, ok = ev.(E)
		if !ok {
			t.Fatalf("expected %T but got %#v", e, ev)
		}
	case <-time.After(time.Second * 10):
		t.Fatalf("timed out waiting for %T", e)
	}
	return e
}

// Empty fails the test if an event is buffered.
func (r *Recorder) Empty(t testing.TB) {
	t.Helper()

	select {
	case ev := <-r.events:
		t.Fatalf("unexpected event: %#v", ev)
	default:
	}
}
