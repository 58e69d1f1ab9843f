package websocket

import "unicode/utf8"

// message is a complete data message assembled from one or more frames.
type message struct {
	typ  MessageType
	data []byte
}

// reassembler combines a data frame and its continuations into a message.
// Control frames never reach it.
type reassembler struct {
	limit int64

	inProgress bool
	opcode     opcode
	buf        []byte
}

// push feeds one data frame. ok reports whether f completed a message.
// The returned message does not alias f.payload.
func (r *reassembler) push(f frame) (msg message, ok bool, err error) {
	switch f.opcode {
	case opText, opBinary:
		if r.inProgress {
			return message{}, false, protocolErrorf(StatusProtocolError, "received new data message without finishing the previous message")
		}
		r.inProgress = true
		r.opcode = f.opcode
		r.buf = r.buf[:0]
	case opContinuation:
		if !r.inProgress {
			return message{}, false, protocolErrorf(StatusProtocolError, "received continuation frame without text or binary frame")
		}
	default:
		panic("websocket: control frame passed to reassembler: " + f.opcode.String())
	}

	if r.limit > 0 && int64(len(r.buf))+int64(len(f.payload)) > r.limit {
		r.reset()
		return message{}, false, protocolErrorf(StatusMessageTooBig, "read limited at %v bytes", r.limit)
	}
	r.buf = append(r.buf, f.payload...)

	if !f.fin {
		return message{}, false, nil
	}

	msg = message{
		typ:  MessageType(r.opcode),
		data: append([]byte(nil), r.buf...),
	}
	r.reset()

	if msg.typ == MessageText && !utf8.Valid(msg.data) {
		return message{}, false, protocolErrorf(StatusInvalidFramePayloadData, "received text message with invalid UTF-8")
	}
	return msg, true, nil
}

func (r *reassembler) reset() {
	r.inProgress = false
	r.opcode = opContinuation
	r.buf = r.buf[:0]
}
