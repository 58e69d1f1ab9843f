package websocket

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// StatusCode represents a WebSocket status code.
// https://tools.ietf.org/html/rfc6455#section-7.4
type StatusCode int

// These codes were retrieved from:
// https://www.iana.org/assignments/websocket/websocket.xhtml#close-code-number
//
// The defined constants only represent the status codes registered with IANA.
// The 4000-4999 range of status codes is reserved for arbitrary use by applications.
const (
	StatusNormalClosure   StatusCode = 1000
	StatusGoingAway       StatusCode = 1001
	StatusProtocolError   StatusCode = 1002
	StatusUnsupportedData StatusCode = 1003

	// 1004 is reserved and so not exported.
	statusReserved StatusCode = 1004

	// StatusNoStatusRcvd cannot be sent in a close message.
	// It is reported when a close message is received without
	// an explicit status. Passing it to Close sends an empty close frame.
	StatusNoStatusRcvd StatusCode = 1005

	// StatusAbnormalClosure is never sent. It is reported in EndEvent
	// when the connection ended without a completed closing handshake.
	StatusAbnormalClosure StatusCode = 1006

	StatusInvalidFramePayloadData StatusCode = 1007
	StatusPolicyViolation         StatusCode = 1008
	StatusMessageTooBig           StatusCode = 1009
	StatusMandatoryExtension      StatusCode = 1010
	StatusInternalError           StatusCode = 1011
	StatusServiceRestart          StatusCode = 1012
	StatusTryAgainLater           StatusCode = 1013
	StatusBadGateway              StatusCode = 1014

	// StatusTLSHandshake is never sent.
	StatusTLSHandshake StatusCode = 1015
)

func (code StatusCode) String() string {
	switch code {
	case StatusNormalClosure:
		return "StatusNormalClosure"
	case StatusGoingAway:
		return "StatusGoingAway"
	case StatusProtocolError:
		return "StatusProtocolError"
	case StatusUnsupportedData:
		return "StatusUnsupportedData"
	case StatusNoStatusRcvd:
		return "StatusNoStatusRcvd"
	case StatusAbnormalClosure:
		return "StatusAbnormalClosure"
	case StatusInvalidFramePayloadData:
		return "StatusInvalidFramePayloadData"
	case StatusPolicyViolation:
		return "StatusPolicyViolation"
	case StatusMessageTooBig:
		return "StatusMessageTooBig"
	case StatusMandatoryExtension:
		return "StatusMandatoryExtension"
	case StatusInternalError:
		return "StatusInternalError"
	case StatusServiceRestart:
		return "StatusServiceRestart"
	case StatusTryAgainLater:
		return "StatusTryAgainLater"
	case StatusBadGateway:
		return "StatusBadGateway"
	case StatusTLSHandshake:
		return "StatusTLSHandshake"
	}
	return fmt.Sprintf("StatusCode(%d)", int(code))
}

// CloseError represents a WebSocket close frame.
type CloseError struct {
	Code   StatusCode
	Reason string
}

func (ce CloseError) Error() string {
	return fmt.Sprintf("status = %v and reason = %q", ce.Code, ce.Reason)
}

// CloseStatus is a convenience wrapper around errors.As to grab
// the status code from a CloseError. If the passed error is nil
// or not a CloseError, the returned StatusCode will be -1.
func CloseStatus(err error) StatusCode {
	var ce CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return -1
}

// maxCloseReason is the largest reason that fits in a control
// frame next to the 2 byte status code.
const maxCloseReason = maxControlPayload - 2

func parseClosePayload(p []byte) (CloseError, error) {
	if len(p) == 0 {
		return CloseError{
			Code: StatusNoStatusRcvd,
		}, nil
	}

	if len(p) < 2 {
		return CloseError{}, protocolErrorf(StatusProtocolError, "close payload %q too small, cannot even contain the 2 byte status code", p)
	}

	ce := CloseError{
		Code:   StatusCode(binary.BigEndian.Uint16(p)),
		Reason: string(p[2:]),
	}

	if !validWireCloseCode(ce.Code) {
		return CloseError{}, protocolErrorf(StatusProtocolError, "invalid status code %v", ce.Code)
	}
	if !utf8.ValidString(ce.Reason) {
		return CloseError{}, protocolErrorf(StatusInvalidFramePayloadData, "close reason is not valid UTF-8")
	}

	return ce, nil
}

// See http://www.iana.org/assignments/websocket/websocket.xhtml#close-code-number
// and https://tools.ietf.org/html/rfc6455#section-7.4.1
func validWireCloseCode(code StatusCode) bool {
	switch code {
	case statusReserved, StatusNoStatusRcvd, StatusAbnormalClosure, StatusTLSHandshake:
		return false
	}

	if code >= StatusNormalClosure && code <= StatusBadGateway {
		return true
	}
	if code >= 3000 && code <= 4999 {
		return true
	}

	return false
}

// bytes returns the close frame payload for ce. StatusNoStatusRcvd
// marshals to an empty payload.
func (ce CloseError) bytes() ([]byte, error) {
	if ce.Code == StatusNoStatusRcvd {
		if ce.Reason != "" {
			return nil, fmt.Errorf("reason %q cannot be sent without a status code", ce.Reason)
		}
		return nil, nil
	}

	if len(ce.Reason) > maxCloseReason {
		return nil, fmt.Errorf("reason string max is %v but got %q with length %v", maxCloseReason, ce.Reason, len(ce.Reason))
	}
	if !utf8.ValidString(ce.Reason) {
		return nil, fmt.Errorf("reason %q is not valid UTF-8", ce.Reason)
	}
	if !validWireCloseCode(ce.Code) {
		return nil, fmt.Errorf("status code %v cannot be set", ce.Code)
	}

	buf := make([]byte, 2+len(ce.Reason))
	binary.BigEndian.PutUint16(buf, uint16(ce.Code))
	copy(buf[2:], ce.Reason)
	return buf, nil
}

// truncateReason shortens s to at most maxCloseReason bytes without
// splitting a UTF-8 sequence. Only used for reasons the engine
// generates itself.
func truncateReason(s string) string {
	if len(s) <= maxCloseReason {
		return s
	}
	s = s[:maxCloseReason]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
