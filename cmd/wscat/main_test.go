package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/orexfx/websocket/internal/test/assert"
	"github.com/orexfx/websocket/internal/test/wstest"
)

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("echo", func(t *testing.T) {
		t.Parallel()

		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := gorilla.Upgrader{Subprotocols: []string{"echo"}}
			c, err := u.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer c.Close()

			for i := 0; i < 2; i++ {
				typ, p, err := c.ReadMessage()
				if err != nil {
					return
				}
				err = c.WriteMessage(typ, p)
				if err != nil {
					return
				}
			}
			c.WriteControl(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
			c.ReadMessage()
		}))
		defer s.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		var stdout, stderr bytes.Buffer
		err := run(ctx, []string{
			"-subprotocol", "echo",
			"-rate", "100",
			wstest.URL(s),
		}, strings.NewReader("hello\nworld\n"), &stdout, &stderr)
		assert.Success(t, err)

		out := stdout.String()
		assert.Contains(t, out, "(echo)")
		assert.Contains(t, out, "< hello\n< world\n")
		assert.Contains(t, out, `closed: StatusNormalClosure "bye"`)
	})

	t.Run("handshakeFailure", func(t *testing.T) {
		t.Parallel()

		s := httptest.NewServer(http.NotFoundHandler())
		defer s.Close()

		var stdout, stderr bytes.Buffer
		err := run(context.Background(), []string{wstest.URL(s)}, strings.NewReader(""), &stdout, &stderr)
		assert.Contains(t, err, "expected handshake response status code 101 but got 404")
	})

	t.Run("usage", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer
		err := run(context.Background(), nil, strings.NewReader(""), &stdout, &stderr)
		assert.Contains(t, err, "usage")
	})
}
