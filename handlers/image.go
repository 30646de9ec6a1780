package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"moviedbproxy/internal/transport"
	metadatapkg "moviedbproxy/services/metadata"
)

type imageService interface {
	ImageURL(ctx context.Context, path, size string) (string, error)
	FetchImage(ctx context.Context, url string) (*transport.Response, error)
}

var _ imageService = (*metadatapkg.Service)(nil)

// ImageHandler streams TMDB CDN images through the configured proxy.
type ImageHandler struct {
	Service imageService
}

func NewImageHandler(s imageService) *ImageHandler {
	return &ImageHandler{Service: s}
}

// Proxy handles image requests
// Query params:
//   - url: absolute CDN URL, or
//   - path: image path such as /abc.jpg, with optional size (default: original)
func (h *ImageHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sourceURL := strings.TrimSpace(q.Get("url"))
	if sourceURL == "" {
		path := strings.TrimSpace(q.Get("path"))
		if path == "" {
			http.Error(w, "url or path parameter required", http.StatusBadRequest)
			return
		}
		var err error
		if sourceURL, err = h.Service.ImageURL(r.Context(), path, q.Get("size")); err != nil {
			writeFetchError(w, r, err)
			return
		}
	}

	resp, err := h.Service.FetchImage(r.Context(), sourceURL)
	if err != nil {
		log.Printf("[images] fetch error for %s: %v", sourceURL, err)
		writeFetchError(w, r, err)
		return
	}
	defer resp.Close()

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if resp.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=2592000") // 30 days
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("[images] copy interrupted for %s: %v", sourceURL, err)
	}
}
