package websocket

import (
	"errors"
	"fmt"
)

// HandshakeError is reported when the opening handshake fails.
// A Conn that fails its handshake never reaches StateOpen.
type HandshakeError struct {
	// StatusCode is the HTTP status of the response, zero when no
	// response was received.
	StatusCode int
	// Reason describes the failed check.
	Reason string
	// Timeout is set when no response arrived within the
	// handshake timeout. Err is then a *TimeoutError.
	Timeout bool
	Err     error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("websocket handshake failed: %v: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("websocket handshake failed: %v", e.Reason)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// ProtocolError is reported when the peer violates RFC 6455.
// The connection is failed with Code.
type ProtocolError struct {
	Code StatusCode
	Msg  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("websocket protocol violation: %v", e.Msg)
}

func protocolErrorf(code StatusCode, f string, v ...interface{}) *ProtocolError {
	return &ProtocolError{
		Code: code,
		Msg:  fmt.Sprintf(f, v...),
	}
}

// TransportError is reported when the underlying byte stream fails
// or is closed by the peer without a closing handshake.
type TransportError struct {
	// Op is one of "dial", "read" or "write".
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("websocket transport %v failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError is reported when the handshake response, the peer's
// close frame or a pong is not received in time.
type TimeoutError struct {
	// Op is one of "handshake", "close handshake" or "pong".
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("websocket %v timed out", e.Op)
}

// Timeout implements the net.Error convention.
func (e *TimeoutError) Timeout() bool {
	return true
}

// InvalidStateError is returned synchronously by an operation
// invoked in a ReadyState that forbids it. The Conn is not affected.
type InvalidStateError struct {
	Op    string
	State ReadyState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("websocket: cannot %v while %v", e.Op, e.State)
}

// errCloseNow is the abort cause recorded by CloseNow.
var errCloseNow = errors.New("connection torn down")
