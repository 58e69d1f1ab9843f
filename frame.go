package websocket

import (
	"encoding/binary"
	"fmt"
	"math"
)

// maxControlPayload is the maximum length of a control frame payload.
// See https://tools.ietf.org/html/rfc6455#section-5.5.
const maxControlPayload = 125

// First byte contains fin, rsv1, rsv2, rsv3.
// Second byte contains mask flag and payload len.
// Next 8 bytes are the maximum extended payload length.
// Last 4 bytes are the mask key.
// https://tools.ietf.org/html/rfc6455#section-5.2
const maxHeaderSize = 1 + 1 + 8 + 4

// header represents a WebSocket frame header.
// See https://tools.ietf.org/html/rfc6455#section-5.2.
type header struct {
	fin    bool
	rsv1   bool
	rsv2   bool
	rsv3   bool
	opcode opcode

	payloadLength int64

	masked  bool
	maskKey uint32
}

// frame is a decoded frame. The payload is unmasked.
type frame struct {
	header
	payload []byte
}

// appendHeader appends the wire bytes of h to b.
func appendHeader(b []byte, h header) []byte {
	var b0 byte
	if h.fin {
		b0 |= 1 << 7
	}
	if h.rsv1 {
		b0 |= 1 << 6
	}
	if h.rsv2 {
		b0 |= 1 << 5
	}
	if h.rsv3 {
		b0 |= 1 << 4
	}
	b0 |= byte(h.opcode)

	var b1 byte
	if h.masked {
		b1 |= 1 << 7
	}

	switch {
	case h.payloadLength < 0:
		panic(fmt.Sprintf("websocket: invalid header: negative length: %v", h.payloadLength))
	case h.payloadLength <= 125:
		b = append(b, b0, b1|byte(h.payloadLength))
	case h.payloadLength <= math.MaxUint16:
		b = append(b, b0, b1|126)
		b = binary.BigEndian.AppendUint16(b, uint16(h.payloadLength))
	default:
		b = append(b, b0, b1|127)
		b = binary.BigEndian.AppendUint64(b, uint64(h.payloadLength))
	}

	if h.masked {
		b = binary.LittleEndian.AppendUint32(b, h.maskKey)
	}
	return b
}

// appendFrame appends a complete frame carrying payload to b.
// If h.masked the appended payload bytes are masked with h.maskKey,
// payload itself is left untouched.
func appendFrame(b []byte, h header, payload []byte) []byte {
	h.payloadLength = int64(len(payload))
	b = appendHeader(b, h)

	i := len(b)
	b = append(b, payload...)
	if h.masked {
		mask(h.maskKey, b[i:])
	}
	return b
}

// frameDecoder decodes frames incrementally from a byte stream.
type frameDecoder struct {
	// readLimit bounds the payload of data frames. Zero means no limit.
	readLimit int64
	// acceptMasked allows masked frames. Only tests set it, to decode
	// the client frames this package encodes.
	acceptMasked bool
}

// decode decodes the first frame in b. n is the number of bytes the
// frame occupies in b; n == 0 with a nil error means b does not hold a
// complete frame yet and decode must be retried once more bytes arrive.
//
// The header is validated as soon as its bytes are available so
// violations are reported without waiting for the payload.
// A masked payload is unmasked in place.
func (d frameDecoder) decode(b []byte) (f frame, n int, err error) {
	if len(b) < 2 {
		return frame{}, 0, nil
	}

	f.fin = b[0]&(1<<7) != 0
	f.rsv1 = b[0]&(1<<6) != 0
	f.rsv2 = b[0]&(1<<5) != 0
	f.rsv3 = b[0]&(1<<4) != 0
	f.opcode = opcode(b[0] & 0xf)

	if f.rsv1 || f.rsv2 || f.rsv3 {
		return frame{}, 0, protocolErrorf(StatusProtocolError, "received header with unexpected rsv bits set: %v:%v:%v", f.rsv1, f.rsv2, f.rsv3)
	}
	if !f.opcode.known() {
		return frame{}, 0, protocolErrorf(StatusProtocolError, "received unknown opcode %v", f.opcode)
	}

	f.masked = b[1]&(1<<7) != 0
	if f.masked && !d.acceptMasked {
		return frame{}, 0, protocolErrorf(StatusProtocolError, "received masked frame from server")
	}

	if f.opcode.control() && !f.fin {
		return frame{}, 0, protocolErrorf(StatusProtocolError, "received fragmented control frame")
	}

	n = 2
	payloadLength := b[1] &^ (1 << 7)
	switch {
	case payloadLength < 126:
		f.payloadLength = int64(payloadLength)
	case payloadLength == 126:
		if len(b) < n+2 {
			return frame{}, 0, nil
		}
		f.payloadLength = int64(binary.BigEndian.Uint16(b[n:]))
		n += 2
	case payloadLength == 127:
		if len(b) < n+8 {
			return frame{}, 0, nil
		}
		l := binary.BigEndian.Uint64(b[n:])
		if l > math.MaxInt64 {
			return frame{}, 0, protocolErrorf(StatusProtocolError, "received frame with invalid payload length %v", l)
		}
		f.payloadLength = int64(l)
		n += 8
	}

	if f.opcode.control() && f.payloadLength > maxControlPayload {
		return frame{}, 0, protocolErrorf(StatusProtocolError, "received control frame payload with invalid length: %d", f.payloadLength)
	}
	if d.readLimit > 0 && f.payloadLength > d.readLimit {
		return frame{}, 0, protocolErrorf(StatusMessageTooBig, "read limited at %v bytes", d.readLimit)
	}
	if f.payloadLength > int64(math.MaxInt-maxHeaderSize) {
		return frame{}, 0, protocolErrorf(StatusMessageTooBig, "frame payload of %v bytes cannot be buffered", f.payloadLength)
	}

	if f.masked {
		if len(b) < n+4 {
			return frame{}, 0, nil
		}
		f.maskKey = binary.LittleEndian.Uint32(b[n:])
		n += 4
	}

	end := n + int(f.payloadLength)
	if len(b) < end {
		return frame{}, 0, nil
	}

	f.payload = b[n:end:end]
	if f.masked {
		mask(f.maskKey, f.payload)
	}
	return f, end, nil
}
