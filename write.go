package websocket

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"cdr.dev/slog"
	"github.com/orexfx/websocket/internal/bufpool"
	"github.com/orexfx/websocket/internal/errd"
	"github.com/orexfx/websocket/internal/fifo"
)

// SendText queues a text message.
// See Send.
func (c *Conn) SendText(s string) error {
	return c.Send(MessageText, []byte(s))
}

// SendBinary queues a binary message.
// See Send.
func (c *Conn) SendBinary(p []byte) error {
	return c.Send(MessageBinary, p)
}

// Send queues a message of type typ. It never blocks: p is copied
// and written in a single frame by the writer goroutine after every
// message queued before it.
//
// Send returns an *InvalidStateError unless the Conn is open.
// A failed write is reported through the Sink.
func (c *Conn) Send(typ MessageType, p []byte) error {
	if !typ.valid() {
		return fmt.Errorf("failed to send message: unknown message type %v", typ)
	}
	if typ == MessageText && !utf8.Valid(p) {
		return errors.New("failed to send message: text is not valid UTF-8")
	}

	ok, state := c.enqueueIfOpen(pendingSend{
		opcode:  opcode(typ),
		payload: append([]byte(nil), p...),
	})
	if !ok {
		return &InvalidStateError{Op: "send", State: state}
	}
	return nil
}

// pendingSend is a frame waiting in the send queue.
type pendingSend struct {
	opcode  opcode
	payload []byte
	// done receives the result of the write if non nil.
	// It must have a buffer of one.
	done chan error
}

var errSendCanceled = errors.New("send canceled before it was written")

// sendQueue serializes every outgoing frame onto the transport.
type sendQueue struct {
	c *Conn
	q *fifo.Queue[pendingSend]

	// hbuf is reused for frame headers. Only touched by run.
	hbuf []byte
	// exited is closed when run returns.
	exited chan struct{}
}

func newSendQueue(c *Conn) *sendQueue {
	return &sendQueue{
		c:      c,
		q:      fifo.New[pendingSend](),
		hbuf:   make([]byte, 0, maxHeaderSize),
		exited: make(chan struct{}),
	}
}

func (sq *sendQueue) enqueue(ps pendingSend) {
	if !sq.q.Push(ps) && ps.done != nil {
		ps.done <- errSendCanceled
	}
}

// clear cancels the frames not yet picked up by the writer.
func (sq *sendQueue) clear() {
	cancelSends(sq.q.Clear())
}

// stop cancels pending frames and makes run return.
func (sq *sendQueue) stop() {
	cancelSends(sq.q.Drop())
}

func cancelSends(dropped []pendingSend) {
	for _, ps := range dropped {
		if ps.done != nil {
			ps.done <- errSendCanceled
		}
	}
}

// run drains the queue onto w until the queue is stopped,
// a close frame is written or a write fails.
func (sq *sendQueue) run(w io.Writer) {
	defer close(sq.exited)
	bw := bufpool.GetWriter(w)
	defer bufpool.PutWriter(bw)

	for {
		ps, ok := sq.q.Pop(context.Background())
		if !ok {
			return
		}

		err := sq.writeFrame(bw, ps.opcode, ps.payload)
		if ps.done != nil {
			ps.done <- err
		}
		if err != nil {
			sq.c.log.Warn(context.Background(), "write failed", slog.Error(err))
			sq.c.abort(&TransportError{Op: "write", Err: err})
			sq.stop()
			return
		}
		if ps.opcode == opClose {
			// Nothing may follow a close frame.
			sq.stop()
			return
		}
	}
}

// writeFrame writes p as a single masked frame and flushes it.
func (sq *sendQueue) writeFrame(bw *bufio.Writer, op opcode, p []byte) (err error) {
	defer errd.Wrap(&err, "failed to write %v frame", op)

	h := header{
		fin:           true,
		opcode:        op,
		masked:        true,
		payloadLength: int64(len(p)),
	}
	err = binary.Read(rand.Reader, binary.LittleEndian, &h.maskKey)
	if err != nil {
		return fmt.Errorf("failed to generate masking key: %w", err)
	}

	sq.hbuf = appendHeader(sq.hbuf[:0], h)
	_, err = bw.Write(sq.hbuf)
	if err != nil {
		return err
	}

	// Mask directly inside the bufio buffer so p is never modified.
	key := h.maskKey
	for len(p) > 0 {
		if bw.Available() == 0 {
			err = bw.Flush()
			if err != nil {
				return err
			}
		}

		n := len(p)
		if n > bw.Available() {
			n = bw.Available()
		}
		b := bw.AvailableBuffer()[:n]
		copy(b, p)
		key = mask(key, b)

		_, err = bw.Write(b)
		if err != nil {
			return err
		}
		p = p[n:]
	}

	return bw.Flush()
}
