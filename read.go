package websocket

import (
	"context"
	"errors"
	"io"

	"cdr.dev/slog"
)

const readChunk = 4096

// readLoop decodes frames from r until the Conn ends.
func (c *Conn) readLoop(r io.Reader) {
	chunk := make([]byte, readChunk)
	var store []byte
	for {
		n, rerr := r.Read(chunk)
		store = append(store, chunk[:n]...)

		b := store
		for {
			f, fn, err := c.dec.decode(b)
			if err != nil {
				c.failProtocol(err)
				return
			}
			if fn == 0 {
				break
			}
			if c.handleFrame(f) {
				return
			}
			b = b[fn:]
		}
		store = append(store[:0], b...)

		if rerr != nil {
			c.readFailed(rerr)
			return
		}
	}
}

func (c *Conn) readFailed(err error) {
	c.mu.Lock()
	cause := c.cause
	c.mu.Unlock()

	switch {
	case cause == errCloseNow:
		c.finish(EndEvent{Code: StatusAbnormalClosure})
	case cause != nil:
		c.finish(EndEvent{Code: StatusAbnormalClosure, Err: cause})
	default:
		c.log.Info(context.Background(), "read failed", slog.Error(err))
		c.finish(EndEvent{Code: StatusAbnormalClosure, Err: &TransportError{Op: "read", Err: err}})
	}
}

// handleFrame routes a decoded frame. It reports whether the Conn ended.
// f.payload aliases the read buffer.
func (c *Conn) handleFrame(f frame) bool {
	switch f.opcode {
	case opClose:
		return c.handleClose(f.payload)
	case opPing:
		p := append([]byte(nil), f.payload...)
		ok, _ := c.enqueueIfOpen(pendingSend{opcode: opPong, payload: p})
		if ok {
			c.emit(PingEvent{Data: p})
		}
		return false
	case opPong:
		p := append([]byte(nil), f.payload...)
		c.ka.pong(p)
		c.emit(PongEvent{Data: p})
		return false
	}

	if c.ReadyState() != StateOpen {
		// Data arriving after our close frame is discarded.
		return false
	}
	msg, ok, err := c.ra.push(f)
	if err != nil {
		c.failProtocol(err)
		return true
	}
	if ok {
		c.emit(MessageEvent{Type: msg.typ, Data: msg.data})
	}
	return false
}

// handleClose completes the closing handshake. A close frame always
// ends the Conn.
func (c *Conn) handleClose(p []byte) bool {
	ce, err := parseClosePayload(p)
	if err != nil {
		c.failProtocol(err)
		return true
	}

	c.mu.Lock()
	if c.closeSent != nil {
		// The peer answered our close frame, which may still be queued
		// behind a large frame.
		done := c.closeFlushed
		c.mu.Unlock()

		err = c.waitFlushed(done)
		if err != nil {
			c.mu.Lock()
			cause := c.cause
			c.mu.Unlock()
			switch {
			case cause == errCloseNow:
				c.finish(EndEvent{Code: StatusAbnormalClosure})
			case cause != nil:
				c.finish(EndEvent{Code: StatusAbnormalClosure, Err: cause})
			default:
				c.finish(EndEvent{Code: StatusAbnormalClosure, Err: &TransportError{Op: "write", Err: err}})
			}
			return true
		}
		c.finish(EndEvent{Code: ce.Code, Reason: ce.Reason, WasClean: true})
		return true
	}

	echo := CloseError{Code: ce.Code}
	if echo.Code == StatusNoStatusRcvd {
		echo.Code = StatusNormalClosure
	}
	// parseClosePayload only accepts codes that are valid on the wire.
	ep, _ := echo.bytes()
	done := c.sendCloseLocked(echo, ep)
	c.mu.Unlock()

	c.log.Debug(context.Background(), "peer closed", slog.F("code", ce.Code), slog.F("reason", ce.Reason))
	c.waitFlushed(done)
	c.finish(EndEvent{Code: ce.Code, Reason: ce.Reason, WasClean: true})
	return true
}

// failProtocol fails the Conn after a peer protocol violation.
// A close frame carrying the violation's code is sent unless one
// was already sent.
func (c *Conn) failProtocol(err error) {
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		perr = &ProtocolError{Code: StatusInternalError, Msg: err.Error()}
	}
	c.log.Warn(context.Background(), "protocol violation", slog.Error(err))

	ce := CloseError{Code: perr.Code, Reason: truncateReason(perr.Msg)}

	var done <-chan error
	c.mu.Lock()
	if c.state == StateOpen {
		p, berr := ce.bytes()
		if berr != nil {
			ce.Reason = ""
			p, _ = ce.bytes()
		}
		c.sq.clear()
		done = c.sendCloseLocked(ce, p)
	}
	c.mu.Unlock()

	if done != nil {
		c.waitFlushed(done)
	}
	c.finish(EndEvent{Code: ce.Code, Reason: ce.Reason, Err: perr})
}
