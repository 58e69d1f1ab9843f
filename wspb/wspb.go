// Package wspb provides helpers for protobuf messages.
package wspb // import "github.com/orexfx/websocket/wspb"

import (
	"fmt"

	"github.com/golang/protobuf/proto"

	"github.com/orexfx/websocket"
	"github.com/orexfx/websocket/internal/errd"
)

// Decode unmarshals the protobuf message carried by ev into v.
func Decode(ev websocket.MessageEvent, v proto.Message) (err error) {
	defer errd.Wrap(&err, "failed to decode protobuf")

	if ev.Type != websocket.MessageBinary {
		return fmt.Errorf("expected message type %v but got %v", websocket.MessageBinary, ev.Type)
	}

	err = proto.Unmarshal(ev.Data, v)
	if err != nil {
		return fmt.Errorf("failed to unmarshal protobuf: %w", err)
	}
	return nil
}

// Send queues v as a binary protobuf message on c.
func Send(c *websocket.Conn, v proto.Message) (err error) {
	defer errd.Wrap(&err, "failed to send protobuf")

	b, err := proto.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal protobuf: %w", err)
	}

	return c.Send(websocket.MessageBinary, b)
}
