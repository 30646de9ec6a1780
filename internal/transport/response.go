package transport

import (
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// Response is a successful (2xx) reply. The caller owns it and must Close it.
type Response struct {
	StatusCode    int
	Header        http.Header
	Body          io.ReadCloser
	URL           string
	ContentLength int64
	// ContentType is the media type without parameters.
	ContentType string

	buffered []byte
	release  func()
	once     sync.Once
}

// Close releases the body, the request deadline and the proxy handle the
// response was issued on. It is safe to call more than once.
func (r *Response) Close() error {
	var err error
	r.once.Do(func() {
		if r.Body != nil {
			err = r.Body.Close()
		}
		if r.release != nil {
			r.release()
		}
	})
	return err
}

// Bytes returns the buffered body, reading the stream if it was not buffered.
func (r *Response) Bytes() ([]byte, error) {
	if r.buffered != nil {
		return r.buffered, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.buffered = data
	return data, nil
}

// mediaType strips parameters from a Content-Type header value.
func mediaType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		if i := strings.IndexByte(v, ';'); i >= 0 {
			v = v[:i]
		}
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

// sniff guesses the media type of a buffered body.
func sniff(data []byte) string {
	return mediaType(mimetype.Detect(data).String())
}
