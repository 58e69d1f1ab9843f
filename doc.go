// Package websocket implements the client side of the WebSocket protocol.
//
// https://tools.ietf.org/html/rfc6455
//
// Use Open to connect. Open returns immediately and the Conn reports
// everything that happens to it as Events delivered to a Sink:
// an OpenEvent once the handshake succeeds, a MessageEvent for every
// complete text or binary message, PingEvent and PongEvent for control
// frames, an ErrorEvent for a fatal error and exactly one EndEvent
// last. No event follows the EndEvent.
//
// The Conn answers pings, enforces the framing rules of the protocol
// and runs the closing handshake on its own. Methods like Send, Ping
// and Close never block on the network; they queue frames that a
// writer goroutine puts on the wire in order.
//
// The wsjson and wspb subpackages send and decode JSON and
// protobuf messages.
package websocket // import "github.com/orexfx/websocket"
