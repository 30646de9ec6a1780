package transport

import (
	"strings"
	"time"
)

// CachePolicy controls intermediary caching of a request.
type CachePolicy int

const (
	CacheDefault CachePolicy = iota
	// CacheBypass asks intermediaries (including caching proxies) to revalidate.
	CacheBypass
)

// DefaultContentType is used for POST requests and requests with a body when
// the caller does not set one.
const DefaultContentType = "application/x-www-form-urlencoded"

// HeaderField is one request header line.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered header list with case-insensitive names.
type Header []HeaderField

// Get returns the first value for name.
func (h Header) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Has reports whether name is present.
func (h Header) Has(name string) bool {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// With returns a copy of h with name appended.
func (h Header) With(name, value string) Header {
	out := make(Header, len(h), len(h)+1)
	copy(out, h)
	return append(out, HeaderField{Name: name, Value: value})
}

// Request describes one logical HTTP request. It is passed by value; derive
// variants with the With helpers rather than mutating a shared copy.
type Request struct {
	URL    string
	Method string
	Header Header

	// Body takes precedence over BodyText.
	Body          []byte
	BodyText      string
	ContentType   string
	AppendCharset bool

	Accept    string
	UserAgent string
	Host      string
	Referer   string

	// Timeout bounds the whole exchange. Its expiry is reported as
	// KindTimeout, unlike cancellation of the caller's context.
	Timeout time.Duration

	// BufferContent reads the full body before Send returns.
	BufferContent bool
	CachePolicy   CachePolicy
}

// WithURL returns a copy of r targeting u.
func (r Request) WithURL(u string) Request {
	r.URL = u
	r.Header = append(Header(nil), r.Header...)
	return r
}

func (r Request) method() string {
	if r.Method == "" {
		return "GET"
	}
	return strings.ToUpper(r.Method)
}

func (r Request) hasBody() bool {
	return len(r.Body) > 0 || r.BodyText != ""
}

func (r Request) payload() []byte {
	if len(r.Body) > 0 {
		return r.Body
	}
	if r.BodyText != "" {
		return []byte(r.BodyText)
	}
	return nil
}

func (r Request) contentType() string {
	ct := r.ContentType
	if ct == "" {
		ct = r.Header.Get("Content-Type")
	}
	if ct == "" {
		ct = DefaultContentType
	}
	if r.AppendCharset && !strings.Contains(strings.ToLower(ct), "charset=") {
		ct += "; charset=utf-8"
	}
	return ct
}
