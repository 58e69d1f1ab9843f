package websocket

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"cdr.dev/slog"
)

// Ping sends a ping with payload p. A nil p sends the next value of
// a per connection counter. If the matching pong does not arrive
// within PongTimeout, the connection is failed with a *TimeoutError.
//
// Every pong received is reported as a PongEvent, answered or not.
func (c *Conn) Ping(p []byte) error {
	if len(p) > maxControlPayload {
		return fmt.Errorf("failed to ping: payload of %v bytes exceeds %v", len(p), maxControlPayload)
	}
	if p == nil {
		p = c.ka.nextPayload()
	} else {
		p = append([]byte(nil), p...)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return &InvalidStateError{Op: "ping", State: c.state}
	}
	c.ka.track(string(p))
	c.sq.enqueue(pendingSend{opcode: opPing, payload: p})
	return nil
}

// keepalive tracks outstanding pings.
type keepalive struct {
	c       *Conn
	timeout time.Duration

	mu      sync.Mutex
	counter int64
	active  map[string]*time.Timer
	stopped bool
	closed  chan struct{}
}

func newKeepalive(c *Conn, timeout time.Duration) *keepalive {
	return &keepalive{
		c:       c,
		timeout: timeout,
		active:  make(map[string]*time.Timer),
		closed:  make(chan struct{}),
	}
}

func (k *keepalive) nextPayload() []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.counter++
	return strconv.AppendInt(nil, k.counter, 10)
}

func (k *keepalive) track(p string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.stopped {
		return
	}
	if t, ok := k.active[p]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(k.timeout, func() {
		k.mu.Lock()
		expired := k.active[p] == t
		if expired {
			delete(k.active, p)
		}
		k.mu.Unlock()

		if expired {
			k.c.log.Warn(context.Background(), "pong timeout", slog.F("payload", p))
			k.c.abort(&TimeoutError{Op: "pong"})
		}
	})
	k.active[p] = t
}

// pong clears the ping answered by p.
// It reports whether such a ping was outstanding.
func (k *keepalive) pong(p []byte) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.active[string(p)]
	if ok {
		t.Stop()
		delete(k.active, string(p))
	}
	return ok
}

// every pings the peer each interval until stop is called.
func (k *keepalive) every(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-k.closed:
			return
		case <-t.C:
		}
		err := k.c.Ping(nil)
		if err != nil {
			return
		}
	}
}

func (k *keepalive) stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.stopped {
		return
	}
	k.stopped = true
	close(k.closed)
	for p, t := range k.active {
		t.Stop()
		delete(k.active, p)
	}
}
