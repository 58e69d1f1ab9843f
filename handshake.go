package websocket

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

var keyGUID = []byte("258EAFA5-E914-47DA-95CA-C5AB0DC85B11")

func secWebSocketKey(rr io.Reader) (string, error) {
	if rr == nil {
		rr = rand.Reader
	}
	b := make([]byte, 16)
	_, err := io.ReadFull(rr, b)
	if err != nil {
		return "", fmt.Errorf("failed to read random data from rand.Reader: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func secWebSocketAccept(secWebSocketKey string) string {
	h := sha1.New()
	h.Write([]byte(secWebSocketKey))
	h.Write(keyGUID)

	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// handshakeRequest builds the upgrade request for u, whose scheme has
// already been mapped to http or https.
func handshakeRequest(ctx context.Context, u *url.URL, opts *Options, key string) *http.Request {
	req, _ := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	req.Header = opts.HTTPHeader.Clone()
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", key)
	if len(opts.Subprotocols) > 0 {
		req.Header.Set("Sec-WebSocket-Protocol", strings.Join(opts.Subprotocols, ","))
	}
	return req
}

// handshake performs the opening handshake and returns the
// upgraded byte stream and the negotiated subprotocol.
func handshake(ctx context.Context, u *url.URL, opts *Options) (_ io.ReadWriteCloser, subprotocol string, err error) {
	key, err := secWebSocketKey(rand.Reader)
	if err != nil {
		return nil, "", &HandshakeError{Reason: "failed to generate Sec-WebSocket-Key", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.HandshakeTimeout)
	defer cancel()

	req := handshakeRequest(ctx, u, opts, key)
	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, "", &HandshakeError{
				Reason:  "no handshake response",
				Timeout: true,
				Err:     &TimeoutError{Op: "handshake"},
			}
		case errors.Is(err, context.Canceled):
			return nil, "", &HandshakeError{Reason: "handshake aborted", Err: err}
		}
		return nil, "", &TransportError{Op: "dial", Err: err}
	}
	defer func() {
		if err != nil {
			// Drain a bit of the body so the connection can be reused.
			io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
		}
	}()

	err = verifyServerResponse(opts, key, resp)
	if err != nil {
		return nil, "", err
	}

	rwc, ok := resp.Body.(io.ReadWriteCloser)
	if !ok {
		return nil, "", &HandshakeError{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("response body is not a io.ReadWriteCloser: %T", resp.Body),
		}
	}

	return rwc, resp.Header.Get("Sec-WebSocket-Protocol"), nil
}

func verifyServerResponse(opts *Options, key string, resp *http.Response) error {
	fail := func(f string, v ...interface{}) error {
		return &HandshakeError{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf(f, v...),
		}
	}

	if resp.StatusCode != http.StatusSwitchingProtocols {
		return fail("expected handshake response status code %v but got %v", http.StatusSwitchingProtocols, resp.StatusCode)
	}

	if !headerContainsToken(resp.Header, "Connection", "Upgrade") {
		return fail("WebSocket protocol violation: Connection header %q does not contain Upgrade", resp.Header.Get("Connection"))
	}

	if !headerContainsToken(resp.Header, "Upgrade", "WebSocket") {
		return fail("WebSocket protocol violation: Upgrade header %q does not contain websocket", resp.Header.Get("Upgrade"))
	}

	if resp.Header.Get("Sec-WebSocket-Accept") != secWebSocketAccept(key) {
		return fail("WebSocket protocol violation: invalid Sec-WebSocket-Accept %q, key %q",
			resp.Header.Get("Sec-WebSocket-Accept"),
			key,
		)
	}

	proto := resp.Header.Get("Sec-WebSocket-Protocol")
	if proto != "" && !containsString(opts.Subprotocols, proto) {
		return fail("WebSocket protocol violation: unexpected Sec-WebSocket-Protocol from server: %q", proto)
	}
	if proto == "" && opts.RequireSubprotocol && len(opts.Subprotocols) > 0 {
		return fail("server selected none of the subprotocols %q", opts.Subprotocols)
	}

	// No extensions are offered so the server cannot select one.
	if ext := resp.Header.Get("Sec-WebSocket-Extensions"); ext != "" {
		return fail("WebSocket protocol violation: unsupported extension from server: %q", ext)
	}

	return nil
}

func containsString(ss []string, s string) bool {
	for _, s2 := range ss {
		if s2 == s {
			return true
		}
	}
	return false
}

func headerContainsToken(h http.Header, key, token string) bool {
	key = textproto.CanonicalMIMEHeaderKey(key)

	token = strings.ToLower(token)
	match := func(t string) bool {
		return t == token
	}

	for _, v := range h[key] {
		if searchHeaderTokens(v, match) != "" {
			return true
		}
	}

	return false
}

func searchHeaderTokens(v string, match func(val string) bool) string {
	v = strings.TrimSpace(v)

	for _, v2 := range strings.Split(v, ",") {
		v2 = strings.TrimSpace(v2)
		v2 = strings.ToLower(v2)
		if match(v2) {
			return v2
		}
	}

	return ""
}
