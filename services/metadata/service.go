// Package metadata fetches TMDB documents through the proxy-aware transport,
// caching them on disk and repairing incomplete translations from a fallback
// language.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"moviedbproxy/config"
	"moviedbproxy/internal/filecache"
	"moviedbproxy/internal/ratelimit"
	"moviedbproxy/internal/transport"
	"moviedbproxy/models"
)

// Sender performs one logical HTTP request. *transport.Transport implements it.
type Sender interface {
	Send(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// Throttler spaces out API calls. *ratelimit.Limiter implements it.
type Throttler interface {
	Throttle(ctx context.Context) (time.Duration, error)
}

type reconfigurer interface {
	Reconfigure(config.ProxySettings) error
}

type intervalSetter interface {
	SetInterval(time.Duration)
}

type limitSetter interface {
	SetLimits(maxRedirects int, timeout time.Duration)
}

const (
	configurationKey  = "configuration"
	defaultImageSize  = "original"
	defaultRetryDelay = time.Second
	imageAccept       = "image/*"
)

// Service is the metadata fetch orchestrator.
type Service struct {
	mu       sync.RWMutex
	settings config.MetadataSettings
	client   *tmdbClient

	sender   Sender
	throttle Throttler
	cache    *filecache.Cache
	log      hclog.Logger

	remoteMu  sync.Mutex
	remote    *models.Configuration
	remoteGen uint64
	group     singleflight.Group

	retryDelay time.Duration
}

// Option customises a Service.
type Option func(*Service)

// WithThrottler replaces the default 300ms limiter.
func WithThrottler(t Throttler) Option {
	return func(s *Service) { s.throttle = t }
}

// WithCache replaces the on-disk cache under settings.Cache.Directory.
func WithCache(c *filecache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithLogger(l hclog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRetryDelay sets the base delay between prefetch attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) { s.retryDelay = d }
}

// NewService wires the orchestrator. tr is normally a *transport.Transport.
func NewService(settings config.Settings, tr Sender, opts ...Option) *Service {
	s := &Service{
		settings:   settings.Metadata,
		sender:     tr,
		log:        hclog.NewNullLogger(),
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.throttle == nil {
		s.throttle = ratelimit.New(interval(settings.Metadata))
	}
	if s.cache == nil {
		dir := settings.Cache.Directory
		if strings.TrimSpace(dir) == "" {
			dir = config.DefaultSettings().Cache.Directory
		}
		s.cache = filecache.New(afero.NewOsFs(), filepath.Join(dir, "metadata"),
			filecache.WithLogger(s.log.Named("filecache")))
	}
	s.client = newTMDBClient(settings.Metadata, s.sender, s.throttle)
	return s
}

func interval(m config.MetadataSettings) time.Duration {
	if m.RequestIntervalMs <= 0 {
		return ratelimit.DefaultInterval
	}
	return time.Duration(m.RequestIntervalMs) * time.Millisecond
}

func (s *Service) snapshot() (*tmdbClient, config.MetadataSettings) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client, s.settings
}

// Defaults returns the configured preferred language and country.
func (s *Service) Defaults() (language, country string) {
	_, settings := s.snapshot()
	return settings.Language, settings.Country
}

// UpdateSettings hot-swaps the proxy, API key, language defaults, throttle
// interval, redirect bound and timeout. The proxy is validated first; if it is
// rejected nothing changes.
func (s *Service) UpdateSettings(settings config.Settings) error {
	if err := settings.Proxy.Validate(); err != nil {
		return err
	}
	if ls, ok := s.sender.(limitSetter); ok {
		redirects := settings.Metadata.MaxRedirects
		if redirects <= 0 {
			redirects = -1
		}
		ls.SetLimits(redirects, time.Duration(settings.Metadata.TimeoutSeconds)*time.Second)
	}
	if r, ok := s.sender.(reconfigurer); ok {
		if err := r.Reconfigure(settings.Proxy); err != nil {
			return err
		}
	}

	s.mu.Lock()
	prev := s.settings
	s.settings = settings.Metadata
	s.client = newTMDBClient(settings.Metadata, s.sender, s.throttle)
	s.mu.Unlock()

	if is, ok := s.throttle.(intervalSetter); ok {
		is.SetInterval(interval(settings.Metadata))
	}
	s.resetConfiguration()

	if prev.TMDBAPIKey != settings.Metadata.TMDBAPIKey {
		s.log.Info("tmdb api key updated")
	}
	if prev.APIBaseURL != settings.Metadata.APIBaseURL {
		s.log.Info("api base url changed, clearing cache", "from", prev.APIBaseURL, "to", settings.Metadata.APIBaseURL)
		if err := s.cache.Clear(); err != nil {
			s.log.Warn("failed to clear cache", "error", err)
		}
	}
	return nil
}

// ClearCache removes every cached document.
func (s *Service) ClearCache() error {
	return s.cache.Clear()
}

func invalid(format string, args ...any) error {
	return &transport.Error{Kind: transport.KindInvalidRequest, Method: http.MethodGet, Err: fmt.Errorf(format, args...)}
}

func cancelled(err error) error {
	return &transport.Error{Kind: transport.KindCancelled, Method: http.MethodGet, Err: err}
}

func checkID(id string) (string, error) {
	id = strings.TrimSpace(id)
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return "", invalid("invalid tmdb id %q", id)
	}
	return strconv.Itoa(n), nil
}

// lookup describes one remote document request.
type lookup struct {
	key      filecache.Key
	segments []string
	appendTo string
	language string
	country  string
}

// fetch resolves one document: request scope, disk cache, remote API in the
// preferred language, then the fallback language when the result is
// incomplete. A 404 yields a nil document and a nil error. A cancelled fetch
// never writes the cache.
func fetch[T any, P document[T]](ctx context.Context, s *Service, req lookup) (*T, error) {
	log := s.log.With("key", req.key.String())
	scope := filecache.ScopeFrom(ctx)
	if v, ok := scope.Get(req.key); ok {
		if doc, ok := v.(*T); ok {
			return doc, nil
		}
	}

	cached := new(T)
	ok, err := s.cache.Get(req.key, cached)
	switch {
	case err != nil:
		log.Warn("unreadable cache entry, refetching", "error", err)
	case ok:
		log.Debug("cache hit")
		scope.Set(req.key, cached)
		return cached, nil
	}

	client, settings := s.snapshot()
	doc := new(T)
	err = client.get(ctx, client.params(req.language, req.language, req.country, req.appendTo), doc, req.segments...)
	if err != nil {
		if transport.IsNotFound(err) {
			log.Debug("not found upstream")
			return nil, nil
		}
		return nil, err
	}

	fallback := strings.TrimSpace(settings.FallbackLanguage)
	if P(doc).Incomplete() && req.language != "" && fallback != "" && !strings.EqualFold(req.language, fallback) {
		log.Debug("incomplete translation, fetching fallback", "language", req.language, "fallback", fallback)
		fb := new(T)
		err := client.get(ctx, client.params(fallback, req.language, req.country, req.appendTo), fb, req.segments...)
		switch {
		case err == nil:
			P(doc).FillMissing(fb)
		case transport.IsNotFound(err):
			log.Debug("fallback not found, keeping primary document")
		default:
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	if err := s.cache.Put(req.key, doc); err != nil {
		log.Warn("failed to write cache", "error", err)
	}
	scope.Set(req.key, doc)
	return doc, nil
}

// Movie returns /movie/{id}. A nil movie with a nil error means TMDB has no
// such movie.
func (s *Service) Movie(ctx context.Context, id, language, country string) (*models.Movie, error) {
	id, err := checkID(id)
	if err != nil {
		return nil, err
	}
	language = strings.TrimSpace(language)
	return fetch[models.Movie](ctx, s, lookup{
		key:      filecache.MovieKey(id, language),
		segments: []string{"movie", id},
		appendTo: appendMovie,
		language: language,
		country:  country,
	})
}

func (s *Service) Series(ctx context.Context, id, language, country string) (*models.Series, error) {
	id, err := checkID(id)
	if err != nil {
		return nil, err
	}
	language = strings.TrimSpace(language)
	return fetch[models.Series](ctx, s, lookup{
		key:      filecache.SeriesKey(id, language),
		segments: []string{"tv", id},
		appendTo: appendSeries,
		language: language,
		country:  country,
	})
}

// Season returns /tv/{id}/season/{season}; season 0 holds specials.
func (s *Service) Season(ctx context.Context, id string, season int, language, country string) (*models.Season, error) {
	id, err := checkID(id)
	if err != nil {
		return nil, err
	}
	if season < 0 {
		return nil, invalid("invalid season %d", season)
	}
	language = strings.TrimSpace(language)
	return fetch[models.Season](ctx, s, lookup{
		key:      filecache.SeasonKey(id, season, language),
		segments: []string{"tv", id, "season", strconv.Itoa(season)},
		appendTo: appendSeason,
		language: language,
		country:  country,
	})
}

func (s *Service) Episode(ctx context.Context, id string, season, episode int, language, country string) (*models.Episode, error) {
	id, err := checkID(id)
	if err != nil {
		return nil, err
	}
	if season < 0 || episode < 0 {
		return nil, invalid("invalid episode s%d e%d", season, episode)
	}
	language = strings.TrimSpace(language)
	return fetch[models.Episode](ctx, s, lookup{
		key:      filecache.EpisodeKey(id, season, episode, language),
		segments: []string{"tv", id, "season", strconv.Itoa(season), "episode", strconv.Itoa(episode)},
		appendTo: appendEpisode,
		language: language,
		country:  country,
	})
}

func (s *Service) Collection(ctx context.Context, id, language, country string) (*models.Collection, error) {
	id, err := checkID(id)
	if err != nil {
		return nil, err
	}
	language = strings.TrimSpace(language)
	return fetch[models.Collection](ctx, s, lookup{
		key:      filecache.CollectionKey(id, language),
		segments: []string{"collection", id},
		appendTo: appendCollection,
		language: language,
		country:  country,
	})
}

func (s *Service) Person(ctx context.Context, id, language, country string) (*models.Person, error) {
	id, err := checkID(id)
	if err != nil {
		return nil, err
	}
	language = strings.TrimSpace(language)
	return fetch[models.Person](ctx, s, lookup{
		key:      filecache.PersonKey(id, language),
		segments: []string{"person", id},
		appendTo: appendPerson,
		language: language,
		country:  country,
	})
}

// Configuration returns TMDB's /configuration document. It is fetched once and
// kept for the life of the process; concurrent first callers share one
// request.
func (s *Service) Configuration(ctx context.Context) (*models.Configuration, error) {
	if cfg := s.cachedConfiguration(); cfg != nil {
		return cfg, nil
	}
	// The shared load must not die with whichever caller started it.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(configurationKey, func() (any, error) {
		s.remoteMu.Lock()
		cached, gen := s.remote, s.remoteGen
		s.remoteMu.Unlock()
		if cached != nil {
			return cached, nil
		}
		client, _ := s.snapshot()
		cfg := new(models.Configuration)
		if err := client.get(loadCtx, nil, cfg, configurationKey); err != nil {
			return nil, err
		}
		s.remoteMu.Lock()
		stale := gen != s.remoteGen
		if !stale {
			s.remote = cfg
		}
		s.remoteMu.Unlock()
		if stale {
			// Settings changed while loading; the result may describe the old API.
			s.log.Debug("discarding tmdb configuration loaded before a settings change")
		} else {
			s.log.Info("loaded tmdb configuration", "image_base", cfg.Images.SecureBaseURL)
		}
		return cfg, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Configuration), nil
	case <-ctx.Done():
		return nil, cancelled(ctx.Err())
	}
}

func (s *Service) cachedConfiguration() *models.Configuration {
	s.remoteMu.Lock()
	defer s.remoteMu.Unlock()
	return s.remote
}

func (s *Service) resetConfiguration() {
	s.remoteMu.Lock()
	s.remote = nil
	s.remoteGen++
	s.remoteMu.Unlock()
	s.group.Forget(configurationKey)
}

// ImageURL builds a CDN URL for an image path such as "/abc.jpg".
func (s *Service) ImageURL(ctx context.Context, imagePath, size string) (string, error) {
	imagePath = strings.TrimSpace(imagePath)
	if imagePath == "" {
		return "", invalid("empty image path")
	}
	if !strings.HasPrefix(imagePath, "/") {
		imagePath = "/" + imagePath
	}
	size = strings.TrimSpace(size)
	if size == "" {
		size = defaultImageSize
	}
	if strings.ContainsAny(size, "/?#") {
		return "", invalid("invalid image size %q", size)
	}
	cfg, err := s.Configuration(ctx)
	if err != nil {
		return "", err
	}
	base := cfg.Images.SecureBaseURL
	if base == "" {
		base = cfg.Images.BaseURL
	}
	if base == "" {
		return "", errors.New("tmdb configuration has no image base url")
	}
	return strings.TrimRight(base, "/") + "/" + size + imagePath, nil
}

// FetchImage streams an image from the TMDB CDN. CDN requests bypass the API
// throttle; only hosts named in the remote configuration are allowed. The
// caller must Close the response.
func (s *Service) FetchImage(ctx context.Context, rawURL string) (*transport.Response, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, invalid("invalid image url %q", rawURL)
	}
	cfg, err := s.Configuration(ctx)
	if err != nil {
		return nil, err
	}
	if !imageHostAllowed(cfg, u.Hostname()) {
		return nil, invalid("image host %q not allowed", u.Hostname())
	}
	client, _ := s.snapshot()
	return s.sender.Send(ctx, transport.Request{
		URL:       u.String(),
		Method:    http.MethodGet,
		Accept:    imageAccept,
		UserAgent: client.userAgent,
		Timeout:   client.timeout,
	})
}

func imageHostAllowed(cfg *models.Configuration, host string) bool {
	for _, base := range []string{cfg.Images.SecureBaseURL, cfg.Images.BaseURL} {
		if base == "" {
			continue
		}
		if u, err := url.Parse(base); err == nil && strings.EqualFold(u.Hostname(), host) {
			return true
		}
	}
	return false
}
