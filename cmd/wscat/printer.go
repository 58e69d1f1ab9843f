package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/orexfx/websocket"
)

// printer is a websocket.Sink that writes every event to w.
type printer struct {
	w      io.Writer
	opened chan struct{}

	mu  sync.Mutex
	end *websocket.EndEvent
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:      w,
		opened: make(chan struct{}),
	}
}

func (p *printer) HandleEvent(c *websocket.Conn, ev websocket.Event) {
	switch ev := ev.(type) {
	case websocket.OpenEvent:
		if ev.Subprotocol != "" {
			fmt.Fprintf(p.w, "connected to %v (%v)\n", c.URL(), ev.Subprotocol)
		} else {
			fmt.Fprintf(p.w, "connected to %v\n", c.URL())
		}
		close(p.opened)
	case websocket.MessageEvent:
		if ev.Type == websocket.MessageText {
			fmt.Fprintf(p.w, "< %s\n", ev.Data)
		} else {
			fmt.Fprintf(p.w, "< binary %v bytes\n%s", len(ev.Data), hex.Dump(ev.Data))
		}
	case websocket.PingEvent:
		fmt.Fprintf(p.w, "< ping %q\n", ev.Data)
	case websocket.PongEvent:
		fmt.Fprintf(p.w, "< pong %q\n", ev.Data)
	case websocket.ErrorEvent:
		fmt.Fprintf(p.w, "error: %v\n", ev.Err)
	case websocket.EndEvent:
		fmt.Fprintf(p.w, "closed: %v %q\n", ev.Code, ev.Reason)
		p.mu.Lock()
		p.end = &ev
		p.mu.Unlock()
	}
}

// err returns the error the connection ended with, nil if it ended
// with a closing handshake.
func (p *printer) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.end == nil || p.end.WasClean {
		return nil
	}
	if p.end.Err != nil {
		return p.end.Err
	}
	return fmt.Errorf("connection closed abnormally with %v", p.end.Code)
}
