package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"moviedbproxy/config"
)

// handle is one generation of the HTTP client. A proxy change builds a new
// handle; the old one is closed once every response issued on it is released.
type handle struct {
	client    *http.Client
	transport *http.Transport
	settings  config.ProxySettings

	mu      sync.Mutex
	refs    int
	retired bool
}

func (h *handle) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.retired {
		return false
	}
	h.refs++
	return true
}

func (h *handle) release() {
	h.mu.Lock()
	h.refs--
	done := h.retired && h.refs == 0
	h.mu.Unlock()
	if done {
		h.transport.CloseIdleConnections()
	}
}

func (h *handle) retire() {
	h.mu.Lock()
	h.retired = true
	done := h.refs == 0
	h.mu.Unlock()
	if done {
		h.transport.CloseIdleConnections()
	}
}

func (h *handle) inFlight() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// errProxyDial marks failures reaching or negotiating with a SOCKS proxy.
var errProxyDial = errors.New("proxy dial failed")

func newHandle(settings config.ProxySettings, timeout time.Duration) (*handle, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	base := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	tr := &http.Transport{
		Proxy:                 nil,
		DialContext:           base.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
	}

	if u := settings.URL(); u != nil {
		switch config.NormalizeProxyType(settings.ProxyType) {
		case config.ProxyTypeHTTP:
			tr.Proxy = http.ProxyURL(u)
		case config.ProxyTypeSOCKS4, config.ProxyTypeSOCKS5:
			d, err := proxy.FromURL(u, base)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", config.ErrProxyConfigInvalid, err)
			}
			tr.DialContext = contextDialer(d)
		}
	}

	client := &http.Client{
		Transport: tr,
		// Redirects are followed by Send so the hop count is bounded there.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &handle{client: client, transport: tr, settings: settings}, nil
}

func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if cd, ok := d.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, addr)
		}
		type result struct {
			conn net.Conn
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			c, err := d.Dial(network, addr)
			ch <- result{c, err}
		}()
		select {
		case <-ctx.Done():
			go func() {
				if r := <-ch; r.conn != nil {
					r.conn.Close()
				}
			}()
			return nil, ctx.Err()
		case r := <-ch:
			return r.conn, r.err
		}
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dial(ctx, network, addr)
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", errProxyDial, err)
		}
		return conn, err
	}
}
