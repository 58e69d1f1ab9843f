package websocket

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/orexfx/websocket/internal/test/assert"
)

func Test_secWebSocketAccept(t *testing.T) {
	t.Parallel()

	// https://tools.ietf.org/html/rfc6455#section-1.3
	assert.Equal(t, "accept", "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", secWebSocketAccept("dGhlIHNhbXBsZSBub25jZQ=="))
}

func Test_secWebSocketKey(t *testing.T) {
	t.Parallel()

	k1, err := secWebSocketKey(nil)
	assert.Success(t, err)
	k2, err := secWebSocketKey(nil)
	assert.Success(t, err)

	assert.Equal(t, "key length", 24, len(k1))
	if k1 == k2 {
		t.Fatalf("expected distinct keys but got %q twice", k1)
	}

	_, err = secWebSocketKey(strings.NewReader("short"))
	assert.Error(t, err)
}

func Test_verifyServerResponse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		opts     *Options
		response func(w http.ResponseWriter)
		success  bool
	}{
		{
			name: "badStatus",
			response: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusOK)
			},
			success: false,
		},
		{
			name: "badConnection",
			response: func(w http.ResponseWriter) {
				w.Header().Set("Connection", "???")
				w.WriteHeader(http.StatusSwitchingProtocols)
			},
			success: false,
		},
		{
			name: "badUpgrade",
			response: func(w http.ResponseWriter) {
				w.Header().Set("Connection", "Upgrade")
				w.Header().Set("Upgrade", "???")
				w.WriteHeader(http.StatusSwitchingProtocols)
			},
			success: false,
		},
		{
			name: "badSecWebSocketAccept",
			response: func(w http.ResponseWriter) {
				w.Header().Set("Connection", "Upgrade")
				w.Header().Set("Upgrade", "websocket")
				w.Header().Set("Sec-WebSocket-Accept", "xd")
				w.WriteHeader(http.StatusSwitchingProtocols)
			},
			success: false,
		},
		{
			name: "unrequestedSubprotocol",
			response: func(w http.ResponseWriter) {
				w.Header().Set("Connection", "Upgrade")
				w.Header().Set("Upgrade", "websocket")
				w.Header().Set("Sec-WebSocket-Protocol", "xd")
				w.WriteHeader(http.StatusSwitchingProtocols)
			},
			success: false,
		},
		{
			name: "requiredSubprotocolMissing",
			opts: &Options{
				Subprotocols:       []string{"chat"},
				RequireSubprotocol: true,
			},
			response: func(w http.ResponseWriter) {
				w.Header().Set("Connection", "Upgrade")
				w.Header().Set("Upgrade", "websocket")
				w.WriteHeader(http.StatusSwitchingProtocols)
			},
			success: false,
		},
		{
			name: "optionalSubprotocolMissing",
			opts: &Options{
				Subprotocols: []string{"chat"},
			},
			response: func(w http.ResponseWriter) {
				w.Header().Set("Connection", "Upgrade")
				w.Header().Set("Upgrade", "websocket")
				w.WriteHeader(http.StatusSwitchingProtocols)
			},
			success: true,
		},
		{
			name: "subprotocol",
			opts: &Options{
				Subprotocols:       []string{"echo", "chat"},
				RequireSubprotocol: true,
			},
			response: func(w http.ResponseWriter) {
				w.Header().Set("Connection", "Upgrade")
				w.Header().Set("Upgrade", "websocket")
				w.Header().Set("Sec-WebSocket-Protocol", "chat")
				w.WriteHeader(http.StatusSwitchingProtocols)
			},
			success: true,
		},
		{
			name: "unsupportedExtension",
			response: func(w http.ResponseWriter) {
				w.Header().Set("Connection", "Upgrade")
				w.Header().Set("Upgrade", "websocket")
				w.Header().Set("Sec-WebSocket-Extensions", "permessage-deflate")
				w.WriteHeader(http.StatusSwitchingProtocols)
			},
			success: false,
		},
		{
			name: "caseInsensitiveTokens",
			response: func(w http.ResponseWriter) {
				w.Header().Set("Connection", "keep-alive, UPGRADE")
				w.Header().Set("Upgrade", "WebSocket")
				w.WriteHeader(http.StatusSwitchingProtocols)
			},
			success: true,
		},
		{
			name: "success",
			response: func(w http.ResponseWriter) {
				w.Header().Set("Connection", "Upgrade")
				w.Header().Set("Upgrade", "websocket")
				w.WriteHeader(http.StatusSwitchingProtocols)
			},
			success: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			tc.response(w)
			resp := w.Result()

			key, err := secWebSocketKey(nil)
			assert.Success(t, err)
			if resp.Header.Get("Sec-WebSocket-Accept") == "" {
				resp.Header.Set("Sec-WebSocket-Accept", secWebSocketAccept(key))
			}

			opts := tc.opts
			if opts == nil {
				opts = &Options{}
			}
			err = verifyServerResponse(opts, key, resp)
			if tc.success {
				assert.Success(t, err)
				return
			}
			var herr *HandshakeError
			assert.ErrorAs(t, err, &herr)
			assert.Equal(t, "status code", resp.StatusCode, herr.StatusCode)
		})
	}
}

func TestHandshake(t *testing.T) {
	t.Parallel()

	t.Run("request", func(t *testing.T) {
		t.Parallel()

		h := http.Header{}
		h.Set("Authorization", "Bearer xd")
		u, opts := ensured(t, &Options{
			URL:          "wss://example.com/chat?room=1",
			Subprotocols: []string{"echo", "chat"},
			HTTPHeader:   h,
			HTTPClient: mockHTTPClient(func(r *http.Request) (*http.Response, error) {
				assert.Equal(t, "url", "https://example.com/chat?room=1", r.URL.String())
				assert.Equal(t, "method", "GET", r.Method)
				assert.Equal(t, "Connection", "Upgrade", r.Header.Get("Connection"))
				assert.Equal(t, "Upgrade", "websocket", r.Header.Get("Upgrade"))
				assert.Equal(t, "Sec-WebSocket-Version", "13", r.Header.Get("Sec-WebSocket-Version"))
				assert.Equal(t, "Sec-WebSocket-Protocol", "echo,chat", r.Header.Get("Sec-WebSocket-Protocol"))
				assert.Equal(t, "Authorization", "Bearer xd", r.Header.Get("Authorization"))
				assert.Equal(t, "key length", 24, len(r.Header.Get("Sec-WebSocket-Key")))

				resp := switchingProtocols(r, mockBody{strings.NewReader("")})
				resp.Header.Set("Sec-WebSocket-Protocol", "chat")
				return resp, nil
			}),
		})

		rwc, subprotocol, err := handshake(context.Background(), u, opts)
		assert.Success(t, err)
		assert.Equal(t, "subprotocol", "chat", subprotocol)
		rwc.Close()
	})

	t.Run("badStatus", func(t *testing.T) {
		t.Parallel()

		u, opts := ensured(t, &Options{
			URL: "ws://example.com",
			HTTPClient: mockHTTPClient(func(*http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusForbidden,
					Body:       io.NopCloser(strings.NewReader("no")),
				}, nil
			}),
		})

		_, _, err := handshake(context.Background(), u, opts)
		var herr *HandshakeError
		assert.ErrorAs(t, err, &herr)
		assert.Equal(t, "status code", http.StatusForbidden, herr.StatusCode)
		assert.Contains(t, err, "expected handshake response status code 101 but got 403")
	})

	t.Run("badBody", func(t *testing.T) {
		t.Parallel()

		u, opts := ensured(t, &Options{
			URL: "ws://example.com",
			HTTPClient: mockHTTPClient(func(r *http.Request) (*http.Response, error) {
				return switchingProtocols(r, io.NopCloser(strings.NewReader("hi"))), nil
			}),
		})

		_, _, err := handshake(context.Background(), u, opts)
		assert.Contains(t, err, "response body is not a io.ReadWriteCloser")
	})

	t.Run("dialFailure", func(t *testing.T) {
		t.Parallel()

		u, opts := ensured(t, &Options{
			URL: "ws://example.com",
			HTTPClient: mockHTTPClient(func(*http.Request) (*http.Response, error) {
				return nil, errors.New("connection refused")
			}),
		})

		_, _, err := handshake(context.Background(), u, opts)
		var terr *TransportError
		assert.ErrorAs(t, err, &terr)
		assert.Equal(t, "op", "dial", terr.Op)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		u, opts := ensured(t, &Options{
			URL:              "ws://example.com",
			HandshakeTimeout: time.Millisecond * 50,
			HTTPClient: mockHTTPClient(func(r *http.Request) (*http.Response, error) {
				<-r.Context().Done()
				return nil, r.Context().Err()
			}),
		})

		_, _, err := handshake(context.Background(), u, opts)
		var herr *HandshakeError
		assert.ErrorAs(t, err, &herr)
		assert.Equal(t, "timeout", true, herr.Timeout)
		var terr *TimeoutError
		assert.ErrorAs(t, err, &terr)
		assert.Equal(t, "op", "handshake", terr.Op)
	})

	t.Run("canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		u, opts := ensured(t, &Options{
			URL: "ws://example.com",
			HTTPClient: mockHTTPClient(func(r *http.Request) (*http.Response, error) {
				<-r.Context().Done()
				return nil, r.Context().Err()
			}),
		})

		_, _, err := handshake(ctx, u, opts)
		var herr *HandshakeError
		assert.ErrorAs(t, err, &herr)
		assert.Equal(t, "timeout", false, herr.Timeout)
		assert.ErrorIs(t, context.Canceled, err)
	})
}

func ensured(t testing.TB, opts *Options) (*url.URL, *Options) {
	t.Helper()

	if opts.Sink == nil {
		opts.Sink = SinkFunc(func(*Conn, Event) {})
	}
	o, u, err := opts.ensure()
	assert.Success(t, err)
	return u, o
}

type mockBody struct {
	io.Reader
}

func (mb mockBody) Write(p []byte) (int, error) {
	return len(p), nil
}

func (mb mockBody) Close() error {
	return nil
}

// switchingProtocols returns a valid handshake response to r.
func switchingProtocols(r *http.Request, body io.ReadCloser) *http.Response {
	h := http.Header{}
	h.Set("Connection", "Upgrade")
	h.Set("Upgrade", "websocket")
	h.Set("Sec-WebSocket-Accept", secWebSocketAccept(r.Header.Get("Sec-WebSocket-Key")))

	return &http.Response{
		StatusCode: http.StatusSwitchingProtocols,
		Header:     h,
		Body:       body,
	}
}

func mockHTTPClient(fn roundTripperFunc) *http.Client {
	return &http.Client{
		Transport: fn,
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
