// Package transport performs single logical HTTP requests for the metadata
// service, optionally through an HTTP, SOCKS4 or SOCKS5 proxy, and reports
// every failure as an *Error with an explicit Kind.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"moviedbproxy/config"
)

const (
	DefaultMaxRedirects = 10
	DefaultTimeout      = 30 * time.Second
	// errorBodyLimit caps the diagnostic body captured for failed responses.
	errorBodyLimit = 4 << 10
)

// Transport sends requests through the currently configured proxy handle.
type Transport struct {
	current atomic.Pointer[handle]
	swapMu  sync.Mutex

	log       hclog.Logger
	baseLevel hclog.Level
	userAgent string

	maxRedirects atomic.Int32
	timeout      atomic.Int64

	lastFailure atomic.Int64
}

// Option configures a Transport.
type Option func(*Transport)

func WithLogger(l hclog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.log = l
		}
	}
}

// WithUserAgent sets the User-Agent used when a request does not carry one.
func WithUserAgent(ua string) Option {
	return func(t *Transport) { t.userAgent = ua }
}

func WithMaxRedirects(n int) Option {
	return func(t *Transport) {
		if n >= 0 {
			t.maxRedirects.Store(int32(n))
		}
	}
}

// WithTimeout bounds connection setup and waiting for response headers.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.timeout.Store(int64(d))
		}
	}
}

// New builds a transport using the given proxy settings.
func New(settings config.ProxySettings, opts ...Option) (*Transport, error) {
	t := &Transport{log: hclog.NewNullLogger()}
	t.maxRedirects.Store(DefaultMaxRedirects)
	t.timeout.Store(int64(DefaultTimeout))
	for _, opt := range opts {
		opt(t)
	}
	t.baseLevel = t.log.GetLevel()
	h, err := newHandle(settings, t.connectTimeout())
	if err != nil {
		return nil, err
	}
	t.current.Store(h)
	t.applyLogLevel(settings)
	return t, nil
}

// Reconfigure swaps in a handle built from settings. Requests already running
// keep the handle they started with. Invalid settings are rejected with
// config.ErrProxyConfigInvalid and the active handle stays in place.
func (t *Transport) Reconfigure(settings config.ProxySettings) error {
	h, err := newHandle(settings, t.connectTimeout())
	if err != nil {
		t.log.Error("rejected proxy settings", "error", err)
		return err
	}
	t.swapMu.Lock()
	old := t.current.Swap(h)
	t.swapMu.Unlock()
	t.applyLogLevel(settings)

	if addr := settings.Address(); addr != "" {
		t.log.Info("proxy configured", "proxy", addr, "credentials", settings.EnableCredentials)
	} else {
		t.log.Info("proxy disabled, using direct connections")
	}
	if old != nil {
		old.retire()
	}
	return nil
}

// applyLogLevel lowers the logger to Debug while the proxy debug flag is set
// and restores the level it was created with otherwise.
func (t *Transport) applyLogLevel(settings config.ProxySettings) {
	level := t.baseLevel
	if settings.EnableDebugLog && (level == hclog.NoLevel || level > hclog.Debug) {
		level = hclog.Debug
	}
	if level == hclog.NoLevel {
		return
	}
	t.log.SetLevel(level)
}

// SetLimits changes the redirect bound and the connect/header timeout. The
// timeout applies to handles built by later Reconfigure calls. Negative
// redirect counts and non-positive timeouts leave the current value.
func (t *Transport) SetLimits(maxRedirects int, timeout time.Duration) {
	if maxRedirects >= 0 {
		t.maxRedirects.Store(int32(maxRedirects))
	}
	if timeout > 0 {
		t.timeout.Store(int64(timeout))
	}
}

// MaxRedirects returns the current redirect bound.
func (t *Transport) MaxRedirects() int {
	return int(t.maxRedirects.Load())
}

func (t *Transport) connectTimeout() time.Duration {
	return time.Duration(t.timeout.Load())
}

// ProxyAddress returns the "scheme://host:port" of the active proxy, or "".
func (t *Transport) ProxyAddress() string {
	return t.current.Load().settings.Address()
}

// Settings returns the proxy settings of the active handle.
func (t *Transport) Settings() config.ProxySettings {
	return t.current.Load().settings
}

// LastFailure returns when a request last hit 429 or a timeout.
func (t *Transport) LastFailure() time.Time {
	ns := t.lastFailure.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (t *Transport) markFailure() {
	t.lastFailure.Store(time.Now().UnixNano())
}

func (t *Transport) acquire() *handle {
	for {
		h := t.current.Load()
		if h.acquire() {
			return h
		}
	}
}

// Send performs req, following redirects, and returns the final 2xx response.
func (t *Transport) Send(ctx context.Context, req Request) (*Response, error) {
	method := req.method()
	fail := func(kind Kind, rawURL string, err error) *Error {
		return &Error{Kind: kind, Method: method, URL: rawURL, Err: err}
	}

	target, err := t.parseURL(req.URL)
	if err != nil {
		return nil, fail(KindInvalidRequest, redact(req.URL), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fail(KindCancelled, target.String(), err)
	}

	h := t.acquire()
	reqCtx, cancel := ctx, context.CancelFunc(func() {})
	if req.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	release := func() {
		cancel()
		h.release()
	}
	// Only a returned live body keeps the handle past Send.
	keep := false
	defer func() {
		if !keep {
			release()
		}
	}()

	id := uuid.NewString()
	log := t.log.With("request_id", id)
	maxRedirects := t.MaxRedirects()

	for hop := 0; ; hop++ {
		httpReq, err := t.build(reqCtx, req.WithURL(target.String()), method, log)
		if err != nil {
			return nil, fail(KindInvalidRequest, target.String(), err)
		}
		log.Debug("sending request", "method", method, "url", target.String(), "hop", hop, "proxy", h.settings.Address())

		resp, err := h.client.Do(httpReq)
		if err != nil {
			kind := classify(ctx, err)
			if kind == KindTimeout {
				t.markFailure()
			}
			log.Debug("request failed", "url", target.String(), "kind", kind.String(), "error", err)
			return nil, fail(kind, target.String(), err)
		}
		if err := ctx.Err(); err != nil {
			resp.Body.Close()
			return nil, fail(KindCancelled, target.String(), err)
		}

		if isRedirect(resp.StatusCode) {
			loc := resp.Header.Get("Location")
			if loc != "" {
				drain(resp.Body)
				if hop >= maxRedirects {
					log.Warn("redirect limit reached", "url", target.String(), "limit", maxRedirects)
					return nil, fail(KindTooManyRedirects, target.String(), fmt.Errorf("stopped after %d redirects", maxRedirects))
				}
				next, err := target.Parse(loc)
				if err != nil {
					return nil, fail(KindInvalidRequest, target.String(), fmt.Errorf("bad redirect location %q: %w", loc, err))
				}
				stripUserInfo(next, log)
				log.Debug("following redirect", "status", resp.StatusCode, "from", target.String(), "to", next.String())
				target = next
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			if resp.StatusCode == http.StatusTooManyRequests {
				t.markFailure()
			}
			body := captureBody(resp.Body)
			log.Debug("unexpected status", "url", target.String(), "status", resp.StatusCode)
			return nil, &Error{Kind: KindHTTPStatus, Method: method, URL: target.String(), StatusCode: resp.StatusCode, Body: body}
		}

		out := &Response{
			StatusCode:    resp.StatusCode,
			Header:        resp.Header,
			Body:          resp.Body,
			URL:           target.String(),
			ContentLength: resp.ContentLength,
			ContentType:   mediaType(resp.Header.Get("Content-Type")),
		}

		if !req.BufferContent {
			out.release = release
			keep = true
			return out, nil
		}

		if err := ctx.Err(); err != nil {
			resp.Body.Close()
			return nil, fail(KindCancelled, target.String(), err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			kind := classify(ctx, err)
			if kind == KindTimeout {
				t.markFailure()
			}
			return nil, fail(kind, target.String(), fmt.Errorf("read body: %w", err))
		}
		out.buffered = data
		out.Body = io.NopCloser(bytes.NewReader(data))
		out.ContentLength = int64(len(data))
		if out.ContentType == "" && len(data) > 0 {
			out.ContentType = sniff(data)
		}
		return out, nil
	}
}

func (t *Transport) parseURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("url %q is not absolute", redact(raw))
	}
	stripUserInfo(u, t.log)
	return u, nil
}

func stripUserInfo(u *url.URL, log hclog.Logger) {
	if u.User == nil {
		return
	}
	u.User = nil
	log.Info("found user info in url, removed it before sending", "url", u.String())
}

// build turns the descriptor into an *http.Request. Header precedence: an
// explicit User-Agent header, then req.UserAgent, then the transport default.
func (t *Transport) build(ctx context.Context, req Request, method string, log hclog.Logger) (*http.Request, error) {
	var body io.Reader
	payload := req.payload()
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}

	explicitUA := false
	for _, f := range req.Header {
		switch {
		case strings.EqualFold(f.Name, "User-Agent"):
			httpReq.Header.Set("User-Agent", f.Value)
			explicitUA = true
		case strings.EqualFold(f.Name, "Range"):
			if !validRange(f.Value) {
				log.Debug("dropping invalid range header", "value", f.Value)
				continue
			}
			httpReq.Header.Set("Range", f.Value)
		case strings.EqualFold(f.Name, "Host"):
			httpReq.Host = f.Value
		case strings.EqualFold(f.Name, "Content-Type"):
			// Requests with a body get it below with the defaults.
			if method != http.MethodPost && !req.hasBody() {
				httpReq.Header.Set("Content-Type", f.Value)
			}
		default:
			httpReq.Header.Add(f.Name, f.Value)
		}
	}
	if !explicitUA {
		ua := req.UserAgent
		if ua == "" {
			ua = t.userAgent
		}
		if ua != "" {
			httpReq.Header.Set("User-Agent", ua)
		}
	}
	if req.Host != "" {
		httpReq.Host = req.Host
	}
	if req.Referer != "" {
		httpReq.Header.Set("Referer", req.Referer)
	}
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	if method == http.MethodPost || req.hasBody() {
		httpReq.Header.Set("Content-Type", req.contentType())
	}
	if req.CachePolicy == CacheBypass {
		httpReq.Header.Set("Cache-Control", "no-cache")
		httpReq.Header.Set("Pragma", "no-cache")
	}
	return httpReq, nil
}

func isRedirect(code int) bool {
	return code >= 300 && code <= 399
}

// captureBody reads a bounded prefix of body for diagnostics. Read errors are
// ignored.
func captureBody(body io.ReadCloser) string {
	defer body.Close()
	data, _ := io.ReadAll(io.LimitReader(body, errorBodyLimit))
	return strings.TrimSpace(string(data))
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, errorBodyLimit))
	body.Close()
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
