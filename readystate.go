package websocket

import "fmt"

// ReadyState is the lifecycle stage of a Conn.
// It only ever moves forward: Connecting, Open, Closing, Closed.
type ReadyState int32

// ReadyState constants.
const (
	// StateConnecting is the state from construction until the
	// handshake completes or fails.
	StateConnecting ReadyState = iota
	// StateOpen means messages may be exchanged.
	StateOpen
	// StateClosing means a close frame was sent or received and
	// the closing handshake is in progress.
	StateClosing
	// StateClosed is terminal.
	StateClosed
)

func (s ReadyState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("ReadyState(%d)", int32(s))
}
