package websocket

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cdr.dev/slog"
)

// Options configures a Conn.
type Options struct {
	// URL is the ws:// or wss:// endpoint to connect to.
	URL string

	// Subprotocols lists the subprotocols to negotiate with the server.
	Subprotocols []string

	// RequireSubprotocol fails the handshake when Subprotocols is
	// non empty and the server selects none of them.
	RequireSubprotocol bool

	// HTTPHeader specifies the HTTP headers included in the handshake request.
	HTTPHeader http.Header

	// AllowSelfSignedCertificates disables certificate verification
	// for wss:// endpoints.
	AllowSelfSignedCertificates bool

	// HTTPClient is the http client used for the handshake.
	// Its Transport must return writable bodies for WebSocket
	// handshakes. http.Transport does this correctly beginning
	// with Go 1.12.
	// If it is an *http.Transport and AllowSelfSignedCertificates is
	// set, a clone of it with verification disabled is used.
	HTTPClient *http.Client

	// Sink receives the events of the Conn. Required.
	Sink Sink

	// Executor is the context events are delivered on.
	// Defaults to a serial executor owned by the Conn.
	Executor Executor

	// Logger defaults to a logger that discards everything.
	Logger slog.Logger

	// HandshakeTimeout bounds the wait for the handshake response.
	// Defaults to 30s.
	HandshakeTimeout time.Duration

	// CloseTimeout bounds the wait for the peer's close frame after
	// a close frame was sent. Defaults to 5s.
	CloseTimeout time.Duration

	// PongTimeout bounds the wait for the pong answering a ping.
	// Defaults to 10s.
	PongTimeout time.Duration

	// PingInterval makes the Conn ping the peer periodically.
	// Zero disables automatic pings.
	PingInterval time.Duration

	// ReadLimit is the max number of bytes of a single received message.
	// When the limit is hit, the connection is failed with
	// StatusMessageTooBig. Defaults to 32768.
	ReadLimit int64
}

const (
	defaultHandshakeTimeout = time.Second * 30
	defaultCloseTimeout     = time.Second * 5
	defaultPongTimeout      = time.Second * 10
	defaultReadLimit        = 32768
)

// ensure returns a copy of opts with defaults applied
// and the parsed handshake URL.
func (opts *Options) ensure() (*Options, *url.URL, error) {
	if opts == nil {
		return nil, nil, errors.New("options are required")
	}
	o := *opts

	if o.Sink == nil {
		return nil, nil, errors.New("options require a Sink")
	}

	u, err := url.Parse(o.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return nil, nil, fmt.Errorf("unexpected url scheme: %q", u.Scheme)
	}

	if o.HandshakeTimeout < 0 || o.CloseTimeout < 0 || o.PongTimeout < 0 || o.PingInterval < 0 {
		return nil, nil, errors.New("timeouts and intervals cannot be negative")
	}
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.CloseTimeout == 0 {
		o.CloseTimeout = defaultCloseTimeout
	}
	if o.PongTimeout == 0 {
		o.PongTimeout = defaultPongTimeout
	}
	if o.ReadLimit < 0 {
		return nil, nil, fmt.Errorf("invalid read limit %v", o.ReadLimit)
	}
	if o.ReadLimit == 0 {
		o.ReadLimit = defaultReadLimit
	}

	if o.HTTPHeader == nil {
		o.HTTPHeader = http.Header{}
	} else {
		o.HTTPHeader = o.HTTPHeader.Clone()
	}
	o.Subprotocols = append([]string(nil), o.Subprotocols...)

	o.HTTPClient, err = o.httpClient()
	if err != nil {
		return nil, nil, err
	}

	return &o, u, nil
}

func (o *Options) httpClient() (*http.Client, error) {
	if o.HTTPClient == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		// WebSocket handshakes are HTTP/1.1 only.
		t.ForceAttemptHTTP2 = false
		t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
		t.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: o.AllowSelfSignedCertificates,
		}
		return &http.Client{Transport: t}, nil
	}

	if o.HTTPClient.Timeout > 0 {
		return nil, errors.New("use HandshakeTimeout instead of http.Client.Timeout")
	}
	if !o.AllowSelfSignedCertificates {
		return o.HTTPClient, nil
	}

	t, ok := o.HTTPClient.Transport.(*http.Transport)
	if !ok {
		// The transport owns its TLS policy.
		return o.HTTPClient, nil
	}
	hc := *o.HTTPClient
	t = t.Clone()
	if t.TLSClientConfig == nil {
		t.TLSClientConfig = &tls.Config{}
	}
	t.TLSClientConfig.InsecureSkipVerify = true
	hc.Transport = t
	return &hc, nil
}
