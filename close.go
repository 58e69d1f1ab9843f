package websocket

import (
	"context"
	"fmt"
	"time"

	"cdr.dev/slog"
)

// Close starts the closing handshake with the given status code
// and reason. It returns immediately; the EndEvent reports the
// outcome. Frames queued by Send that were not yet written are
// canceled.
//
// The reason must be valid UTF-8 of at most 123 bytes and code must
// be StatusNoStatusRcvd or a code allowed on the wire.
// StatusNoStatusRcvd sends a close frame without a payload and
// requires an empty reason.
//
// Closing a Conn that is still connecting aborts the handshake.
// Close returns an *InvalidStateError once the Conn is closing.
func (c *Conn) Close(code StatusCode, reason string) error {
	ce := CloseError{Code: code, Reason: reason}
	p, err := ce.bytes()
	if err != nil {
		return fmt.Errorf("failed to close WebSocket: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateConnecting:
		if c.handshakeAbort == nil {
			c.handshakeAbort = &ce
			c.cancelHandshake()
		}
		return nil
	case StateOpen:
	default:
		return &InvalidStateError{Op: "close", State: c.state}
	}

	c.log.Debug(context.Background(), "closing", slog.F("code", ce.Code), slog.F("reason", ce.Reason))
	c.sq.clear()
	c.sendCloseLocked(ce, p)
	c.closeTimer = time.AfterFunc(c.opts.CloseTimeout, func() {
		c.abort(&TimeoutError{Op: "close handshake"})
	})
	return nil
}

// CloseNow tears down the transport without a closing handshake.
// The EndEvent carries StatusAbnormalClosure and no error.
func (c *Conn) CloseNow() {
	c.abort(errCloseNow)
}

// sendCloseLocked moves the Conn to StateClosing and queues the
// close frame. The returned channel receives the write result.
func (c *Conn) sendCloseLocked(ce CloseError, p []byte) <-chan error {
	c.state = StateClosing
	c.closeSent = &ce
	done := make(chan error, 1)
	c.closeFlushed = done
	c.sq.enqueue(pendingSend{opcode: opClose, payload: p, done: done})
	return done
}

// waitFlushed waits up to CloseTimeout for a queued close frame
// to be written and returns the write result.
func (c *Conn) waitFlushed(done <-chan error) error {
	t := time.NewTimer(c.opts.CloseTimeout)
	defer t.Stop()
	select {
	case err := <-done:
		return err
	case <-t.C:
		c.log.Warn(context.Background(), "timed out writing close frame")
		return &TimeoutError{Op: "close handshake"}
	}
}

// abort records cause, unless one was already recorded, and tears
// the transport down. The reader then ends the Conn.
func (c *Conn) abort(cause error) {
	c.mu.Lock()
	if c.cause == nil {
		c.cause = cause
	}
	rwc := c.rwc
	c.mu.Unlock()

	if rwc == nil {
		c.cancelHandshake()
		return
	}
	rwc.Close()
}
