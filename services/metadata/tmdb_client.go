package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moviedbproxy/config"
	"moviedbproxy/internal/transport"
)

const (
	// TMDB answers JSON but image redirects can come back from the same calls.
	tmdbAccept = "application/json,image/*"

	appendMovie      = "alternative_titles,reviews,casts,releases,images,keywords,trailers"
	appendSeries     = "alternative_titles,reviews,credits,images,keywords,external_ids,videos,content_ratings"
	appendSeason     = "images,keywords,external_ids,credits,videos"
	appendEpisode    = "credits,images,external_ids,videos"
	appendCollection = "images"
	appendPerson     = "images,external_ids"
)

type tmdbClient struct {
	apiKey    string
	baseURL   string
	userAgent string
	timeout   time.Duration
	sender    Sender
	throttle  Throttler
}

func newTMDBClient(settings config.MetadataSettings, sender Sender, throttle Throttler) *tmdbClient {
	timeout := time.Duration(settings.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultTimeoutSeconds * time.Second
	}
	base := strings.TrimRight(strings.TrimSpace(settings.APIBaseURL), "/")
	if base == "" {
		base = config.DefaultAPIBaseURL
	}
	return &tmdbClient{
		apiKey:    strings.TrimSpace(settings.TMDBAPIKey),
		baseURL:   base,
		userAgent: settings.UserAgent,
		timeout:   timeout,
		sender:    sender,
		throttle:  throttle,
	}
}

// params returns the query for one entity lookup. imageLang drives
// include_image_language and stays the caller's preferred language even on the
// fallback pass.
func (c *tmdbClient) params(lang, imageLang, country, appendTo string) url.Values {
	q := url.Values{}
	if appendTo != "" {
		q.Set("append_to_response", appendTo)
	}
	if lang = NormalizeLanguage(lang, country); lang != "" {
		q.Set("language", lang)
	}
	if img := imageLanguages(imageLang, country); img != "" {
		q.Set("include_image_language", img)
	}
	return q
}

// endpoint builds the absolute API URL for the given path segments.
func (c *tmdbClient) endpoint(query url.Values, segments ...string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	u := base.JoinPath(segments...)
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// get throttles, sends one GET and decodes the JSON body into v.
func (c *tmdbClient) get(ctx context.Context, query url.Values, v any, segments ...string) error {
	endpoint, err := c.endpoint(query, segments...)
	if err != nil {
		return &transport.Error{Kind: transport.KindInvalidRequest, Method: http.MethodGet, Err: err}
	}
	if c.apiKey == "" {
		return &transport.Error{Kind: transport.KindInvalidRequest, Method: http.MethodGet, URL: scrubKey(endpoint), Err: errors.New("tmdb api key not configured")}
	}
	if _, err := c.throttle.Throttle(ctx); err != nil {
		return &transport.Error{Kind: transport.KindCancelled, Method: http.MethodGet, URL: scrubKey(endpoint), Err: err}
	}

	resp, err := c.sender.Send(ctx, transport.Request{
		URL:           endpoint,
		Method:        http.MethodGet,
		Accept:        tmdbAccept,
		UserAgent:     c.userAgent,
		Timeout:       c.timeout,
		BufferContent: true,
	})
	if err != nil {
		return scrubError(err)
	}
	defer resp.Close()

	data, err := resp.Bytes()
	if err != nil {
		return scrubError(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", strings.Join(segments, "/"), err)
	}
	return nil
}

// scrubError hides the API key carried in transport error URLs.
func scrubError(err error) error {
	var te *transport.Error
	if errors.As(err, &te) {
		te.URL = scrubKey(te.URL)
	}
	return err
}

func scrubKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "xxxxx")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
