package websocket

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"cdr.dev/slog"
)

var connIDs atomic.Uint64

// Conn is a client WebSocket connection.
//
// All methods are safe for concurrent use and never block on the
// network. Everything the Conn observes is reported as an Event to
// the Sink of its Options, in order, on the Options' Executor.
type Conn struct {
	id   uint64
	u    *url.URL
	opts *Options
	log  slog.Logger

	sink    Sink
	exec    Executor
	ownExec *serialExecutor

	sq *sendQueue
	ka *keepalive

	cancelHandshake context.CancelFunc
	done            chan struct{}

	// Only used by the reader goroutine.
	dec frameDecoder
	ra  reassembler

	mu          sync.Mutex
	state       ReadyState
	subprotocol string
	rwc         io.ReadWriteCloser
	// cause is the first reason the transport was torn down.
	cause error
	// handshakeAbort is set when Close is called while connecting.
	handshakeAbort *CloseError
	// closeSent is the close frame queued by this side.
	closeSent *CloseError
	// closeFlushed receives the write result of closeSent.
	closeFlushed <-chan error
	closeTimer   *time.Timer
}

// Open starts connecting to opts.URL and returns immediately.
// Only invalid options are reported as an error; every other
// outcome, starting with the OpenEvent or the EndEvent of a failed
// handshake, is delivered to opts.Sink.
//
// ctx bounds the handshake only.
func Open(ctx context.Context, opts *Options) (*Conn, error) {
	opts, u, err := opts.ensure()
	if err != nil {
		return nil, fmt.Errorf("failed to open WebSocket: %w", err)
	}

	c := newConn(opts, u)
	ctx, c.cancelHandshake = context.WithCancel(ctx)
	go c.run(ctx)
	return c, nil
}

func newConn(opts *Options, u *url.URL) *Conn {
	c := &Conn{
		id:   connIDs.Add(1),
		u:    u,
		opts: opts,
		sink: opts.Sink,
		exec: opts.Executor,
		done: make(chan struct{}),
		dec: frameDecoder{
			readLimit: opts.ReadLimit,
		},
		ra: reassembler{
			limit: opts.ReadLimit,
		},
		state: StateConnecting,
	}
	c.log = opts.Logger.Named("websocket").With(
		slog.F("conn_id", c.id),
		slog.F("url", opts.URL),
	)
	if c.exec == nil {
		c.ownExec = newSerialExecutor()
		c.exec = c.ownExec
	}
	c.sq = newSendQueue(c)
	c.ka = newKeepalive(c, opts.PongTimeout)
	return c
}

// ID returns the process unique identifier of the Conn.
func (c *Conn) ID() uint64 {
	return c.id
}

// URL returns the URL the Conn was opened with.
func (c *Conn) URL() string {
	return c.opts.URL
}

// Subprotocol returns the negotiated subprotocol.
// It is empty until the Conn is open or if none was negotiated.
func (c *Conn) Subprotocol() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subprotocol
}

// ReadyState returns the current state of the Conn.
func (c *Conn) ReadyState() ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the EndEvent has been handed to the Sink.
// With the default Executor this means the Sink has returned.
// Do not wait on it from the Sink.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) run(ctx context.Context) {
	defer close(c.done)
	if c.ownExec != nil {
		defer func() {
			<-c.ownExec.done
		}()
	}

	c.log.Debug(ctx, "connecting")
	rwc, subprotocol, err := handshake(ctx, c.u, c.opts)
	c.cancelHandshake()

	c.mu.Lock()
	abort := c.handshakeAbort
	cause := c.cause
	if err == nil && abort == nil && cause == nil {
		c.state = StateOpen
		c.subprotocol = subprotocol
		c.rwc = rwc
	}
	c.mu.Unlock()

	if err == nil && (abort != nil || cause != nil) {
		rwc.Close()
	}
	switch {
	case abort != nil:
		c.finish(EndEvent{Code: abort.Code, Reason: abort.Reason})
		return
	case cause == errCloseNow:
		c.finish(EndEvent{Code: StatusAbnormalClosure})
		return
	case cause != nil:
		c.finish(EndEvent{Code: StatusAbnormalClosure, Err: cause})
		return
	case err != nil:
		c.log.Info(ctx, "handshake failed", slog.Error(err))
		c.finish(EndEvent{Code: StatusAbnormalClosure, Err: err})
		return
	}

	c.log.Info(ctx, "connected", slog.F("subprotocol", subprotocol))
	c.emit(OpenEvent{Subprotocol: subprotocol})

	go c.sq.run(rwc)
	if c.opts.PingInterval > 0 {
		go c.ka.every(c.opts.PingInterval)
	}
	c.readLoop(rwc)
	<-c.sq.exited
}

// enqueueIfOpen queues ps unless the Conn left StateOpen.
func (c *Conn) enqueueIfOpen(ps pendingSend) (bool, ReadyState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return false, c.state
	}
	c.sq.enqueue(ps)
	return true, c.state
}

func (c *Conn) emit(ev Event) {
	c.exec.Execute(func() {
		c.sink.HandleEvent(c, ev)
	})
}

// finish moves the Conn to StateClosed, releases everything it holds
// and emits the final events. Only called by the reader goroutine.
func (c *Conn) finish(ev EndEvent) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	rwc := c.rwc
	if c.closeTimer != nil {
		c.closeTimer.Stop()
	}
	c.mu.Unlock()

	c.ka.stop()
	c.sq.stop()
	if rwc != nil {
		rwc.Close()
	}

	c.log.Info(context.Background(), "closed",
		slog.F("code", ev.Code),
		slog.F("reason", ev.Reason),
		slog.F("clean", ev.WasClean),
	)
	if ev.Err != nil {
		c.emit(ErrorEvent{Err: ev.Err})
	}
	c.emit(ev)

	if c.ownExec != nil {
		c.ownExec.close()
	}
}
