package websocket

import (
	"context"

	"github.com/orexfx/websocket/internal/fifo"
)

// Event is delivered to a Sink. It is one of OpenEvent, MessageEvent,
// PingEvent, PongEvent, ErrorEvent or EndEvent.
//
// Events of a Conn are delivered one at a time in the order the
// underlying frames were processed. EndEvent is always the last
// event and is delivered exactly once.
type Event interface {
	event()
}

// OpenEvent is delivered once the handshake succeeds.
type OpenEvent struct {
	// Subprotocol is the negotiated subprotocol, empty if none.
	Subprotocol string
}

// MessageEvent carries a complete data message.
// Data is owned by the receiver.
type MessageEvent struct {
	Type MessageType
	Data []byte
}

// PingEvent is delivered when the peer sent a ping.
// The pong reply has already been queued.
type PingEvent struct {
	Data []byte
}

// PongEvent is delivered when the peer sent a pong.
type PongEvent struct {
	Data []byte
}

// ErrorEvent reports a failure. It is informational: the EndEvent that
// follows carries the same error and marks the end of the connection.
type ErrorEvent struct {
	Err error
}

// EndEvent is the final event of every Conn.
type EndEvent struct {
	Code   StatusCode
	Reason string
	// WasClean is set only when both close frames were exchanged
	// before the transport closed.
	WasClean bool
	// Err is nil when the connection ended by a closing handshake
	// or by CloseNow.
	Err error
}

func (OpenEvent) event()    {}
func (MessageEvent) event() {}
func (PingEvent) event()    {}
func (PongEvent) event()    {}
func (ErrorEvent) event()   {}
func (EndEvent) event()     {}

// Sink consumes the events of a Conn.
type Sink interface {
	HandleEvent(c *Conn, ev Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(c *Conn, ev Event)

// HandleEvent calls f(c, ev).
func (f SinkFunc) HandleEvent(c *Conn, ev Event) {
	f(c, ev)
}

// Executor is the execution context events are delivered on.
// Execute must run the functions it is given one at a time
// in the order it received them.
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to an Executor.
type ExecutorFunc func(fn func())

// Execute calls f(fn).
func (f ExecutorFunc) Execute(fn func()) {
	f(fn)
}

// InlineExecutor runs event handlers directly on the connection's
// reader goroutine. A handler that blocks stalls frame processing.
var InlineExecutor Executor = ExecutorFunc(func(fn func()) {
	fn()
})

// serialExecutor is the default Executor. It runs functions on its own
// goroutine so a slow Sink never stalls the reader.
type serialExecutor struct {
	q    *fifo.Queue[func()]
	done chan struct{}
}

func newSerialExecutor() *serialExecutor {
	e := &serialExecutor{
		q:    fifo.New[func()](),
		done: make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *serialExecutor) run() {
	defer close(e.done)
	for {
		fn, ok := e.q.Pop(context.Background())
		if !ok {
			return
		}
		fn()
	}
}

func (e *serialExecutor) Execute(fn func()) {
	e.q.Push(fn)
}

// close lets the already queued functions run and then
// stops the goroutine.
func (e *serialExecutor) close() {
	e.q.Close()
}
