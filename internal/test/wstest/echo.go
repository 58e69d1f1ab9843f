package wstest

import (
	"net/http"

	gorilla "github.com/gorilla/websocket"
)

// EchoLoop echoes every message received from c until an error
// occurs. Pings and close frames are answered by gorilla's default
// handlers.
func EchoLoop(c *gorilla.Conn) error {
	for {
		typ, p, err := c.ReadMessage()
		if err != nil {
			return err
		}
		err = c.WriteMessage(typ, p)
		if err != nil {
			return err
		}
	}
}

// EchoServer returns a handler that upgrades every request and runs
// EchoLoop on it. The first of subprotocols the client offers is
// selected.
func EchoServer(subprotocols ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := gorilla.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			Subprotocols:    subprotocols,
		}
		c, err := u.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		EchoLoop(c)
	})
}
