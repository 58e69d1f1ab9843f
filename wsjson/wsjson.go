// Package wsjson provides helpers for JSON messages.
package wsjson // import "github.com/orexfx/websocket/wsjson"

import (
	"encoding/json"
	"fmt"

	"github.com/orexfx/websocket"
	"github.com/orexfx/websocket/internal/bufpool"
	"github.com/orexfx/websocket/internal/errd"
)

// Decode decodes the JSON message carried by ev into v.
func Decode(ev websocket.MessageEvent, v interface{}) (err error) {
	defer errd.Wrap(&err, "failed to decode JSON")

	if ev.Type != websocket.MessageText {
		return fmt.Errorf("expected message type %v but got %v", websocket.MessageText, ev.Type)
	}

	return json.Unmarshal(ev.Data, v)
}

// Send queues v as a JSON text message on c.
func Send(c *websocket.Conn, v interface{}) (err error) {
	defer errd.Wrap(&err, "failed to send JSON")

	b := bufpool.Get()
	defer bufpool.Put(b)

	err = json.NewEncoder(b).Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return c.Send(websocket.MessageText, b.Bytes())
}
