package metadata

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"moviedbproxy/config"
	"moviedbproxy/internal/filecache"
	"moviedbproxy/internal/ratelimit"
	"moviedbproxy/internal/transport"
	"moviedbproxy/models"
)

type fakeReply struct {
	status int
	body   string
}

// fakeTMDB serves canned replies keyed by "path|language". When a key has
// several replies they are served in order and the last one repeats.
type fakeTMDB struct {
	mu      sync.Mutex
	replies map[string][]fakeReply
	hits    map[string]int
	queries []url.Values
	delay   time.Duration
}

func newFakeTMDB() *fakeTMDB {
	return &fakeTMDB{replies: map[string][]fakeReply{}, hits: map[string]int{}}
}

func (f *fakeTMDB) on(path, lang string, replies ...fakeReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[path+"|"+lang] = replies
}

func (f *fakeTMDB) ok(path, lang, body string) {
	f.on(path, lang, fakeReply{status: http.StatusOK, body: body})
}

func (f *fakeTMDB) count(path, lang string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path+"|"+lang]
}

func (f *fakeTMDB) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.hits {
		n += v
	}
	return n
}

func (f *fakeTMDB) lastQuery() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return nil
	}
	return f.queries[len(f.queries)-1]
}

func (f *fakeTMDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	key := r.URL.Path + "|" + r.URL.Query().Get("language")
	f.mu.Lock()
	n := f.hits[key]
	f.hits[key]++
	f.queries = append(f.queries, r.URL.Query())
	replies := f.replies[key]
	f.mu.Unlock()

	if len(replies) == 0 {
		http.Error(w, `{"status_code":34,"status_message":"The resource you requested could not be found."}`, http.StatusNotFound)
		return
	}
	if n >= len(replies) {
		n = len(replies) - 1
	}
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(replies[n].status)
	io.WriteString(w, replies[n].body)
}

func testSettings(baseURL string) config.Settings {
	s := config.DefaultSettings()
	s.Metadata.TMDBAPIKey = "test-key"
	s.Metadata.APIBaseURL = baseURL
	s.Metadata.TimeoutSeconds = 5
	return s
}

type harness struct {
	svc   *Service
	tmdb  *fakeTMDB
	cache *filecache.Cache
	fs    afero.Fs
}

func newHarness(t *testing.T, mutate func(*config.Settings), opts ...Option) *harness {
	t.Helper()
	tmdb := newFakeTMDB()
	srv := httptest.NewServer(tmdb)
	t.Cleanup(srv.Close)

	tr, err := transport.New(config.ProxySettings{})
	require.NoError(t, err)

	settings := testSettings(srv.URL + "/3")
	if mutate != nil {
		mutate(&settings)
	}
	fs := afero.NewMemMapFs()
	cache := filecache.New(fs, "/cache/metadata")
	opts = append([]Option{WithCache(cache), WithThrottler(ratelimit.New(0)), WithRetryDelay(time.Millisecond)}, opts...)
	return &harness{
		svc:   NewService(settings, tr, opts...),
		tmdb:  tmdb,
		cache: cache,
		fs:    fs,
	}
}

func (h *harness) cached(t *testing.T, key filecache.Key) bool {
	t.Helper()
	ok, err := afero.Exists(h.fs, h.cache.Location(key))
	require.NoError(t, err)
	return ok
}

const matrixEN = `{"id":603,"title":"The Matrix","overview":"A hacker learns the truth.","trailers":{"youtube":[{"name":"Trailer","source":"vKQi3bBA1y8","type":"Trailer"}]}}`

func TestMovieFetchWritesCache(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.ok("/3/movie/603", "en", matrixEN)

	movie, err := h.svc.Movie(context.Background(), "603", "en", "US")
	require.NoError(t, err)
	require.NotNil(t, movie)
	assert.Equal(t, "The Matrix", movie.Title)
	assert.Equal(t, 603, movie.ID)

	key := filecache.MovieKey("603", "en")
	assert.Equal(t, "603_en", key.String())
	assert.True(t, h.cached(t, key))
	assert.True(t, strings.HasSuffix(h.cache.Location(key), "movies/603/all-en.json"))

	q := h.tmdb.lastQuery()
	assert.Equal(t, "test-key", q.Get("api_key"))
	assert.Equal(t, "en", q.Get("language"))
	assert.Equal(t, appendMovie, q.Get("append_to_response"))
	assert.Equal(t, "en,null", q.Get("include_image_language"))
}

func TestMovieFallbackFillsMissingFields(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.ok("/3/movie/603", "de", `{"id":603,"title":"Matrix","overview":""}`)
	h.tmdb.ok("/3/movie/603", "en", matrixEN)

	movie, err := h.svc.Movie(context.Background(), "603", "de", "DE")
	require.NoError(t, err)
	require.NotNil(t, movie)
	assert.Equal(t, "Matrix", movie.Title, "primary title must not be overwritten")
	assert.Equal(t, "A hacker learns the truth.", movie.Overview)
	require.NotNil(t, movie.Trailers)
	assert.Len(t, movie.Trailers.YouTube, 1)

	// The fallback pass keeps the preferred image languages.
	q := h.tmdb.lastQuery()
	assert.Equal(t, "en", q.Get("language"))
	assert.Equal(t, "de,null,en", q.Get("include_image_language"))

	var stored models.Movie
	ok, err := h.cache.Get(filecache.MovieKey("603", "de"), &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A hacker learns the truth.", stored.Overview)
}

func TestCompleteDocumentSkipsFallback(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.ok("/3/movie/603", "fr", `{"id":603,"title":"Matrix","overview":"Un pirate.","trailers":{"youtube":[{"name":"Bande-annonce","source":"x"}]}}`)

	movie, err := h.svc.Movie(context.Background(), "603", "fr", "FR")
	require.NoError(t, err)
	assert.Equal(t, "Un pirate.", movie.Overview)
	assert.Equal(t, 0, h.tmdb.count("/3/movie/603", "en"))
}

func TestFallbackLanguageIsNotRefetched(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.ok("/3/movie/10", "en", `{"id":10,"title":"Untold","overview":""}`)

	movie, err := h.svc.Movie(context.Background(), "10", "EN", "US")
	require.NoError(t, err)
	assert.Equal(t, "", movie.Overview)
	assert.Equal(t, 1, h.tmdb.total())
}

func TestMovieNotFoundIsNil(t *testing.T) {
	h := newHarness(t, nil)

	movie, err := h.svc.Movie(context.Background(), "999999", "en", "US")
	require.NoError(t, err)
	assert.Nil(t, movie)
	assert.False(t, h.cached(t, filecache.MovieKey("999999", "en")))
}

func TestFallbackNotFoundKeepsPrimary(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.ok("/3/person/287", "de", `{"id":287,"name":"Brad Pitt","biography":""}`)

	person, err := h.svc.Person(context.Background(), "287", "de", "DE")
	require.NoError(t, err)
	require.NotNil(t, person)
	assert.Equal(t, "Brad Pitt", person.Name)
	assert.True(t, h.cached(t, filecache.PersonKey("287", "de")))
	assert.True(t, strings.HasSuffix(h.cache.Location(filecache.PersonKey("287", "de")), "people/9/287/info-de.json"))
}

func TestFallbackErrorPropagates(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.ok("/3/collection/2344", "it", `{"id":2344,"name":"Matrix - La collezione","overview":""}`)
	h.tmdb.on("/3/collection/2344", "en", fakeReply{status: http.StatusInternalServerError, body: "boom"})

	coll, err := h.svc.Collection(context.Background(), "2344", "it", "IT")
	assert.Nil(t, coll)
	require.Error(t, err)
	assert.Equal(t, transport.KindHTTPStatus, transport.KindOf(err))
	assert.True(t, transport.IsStatus(err, http.StatusInternalServerError))
	assert.False(t, h.cached(t, filecache.CollectionKey("2344", "it")))
}

func TestWarmCacheIssuesNoRequests(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.ok("/3/movie/603", "en", matrixEN)

	_, err := h.svc.Movie(context.Background(), "603", "en", "US")
	require.NoError(t, err)
	again, err := h.svc.Movie(context.Background(), "603", "en", "US")
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", again.Title)
	assert.Equal(t, 1, h.tmdb.total())

	// A fresh service over the same directory reads from disk.
	tr, err := transport.New(config.ProxySettings{})
	require.NoError(t, err)
	other := NewService(testSettings("http://127.0.0.1:1/3"), tr, WithCache(h.cache), WithThrottler(ratelimit.New(0)))
	movie, err := other.Movie(context.Background(), "603", "en", "US")
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", movie.Title)
	assert.Equal(t, 1, h.tmdb.total())
}

func TestExpiredCacheRefetches(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.ok("/3/movie/603", "en", matrixEN)

	_, err := h.svc.Movie(context.Background(), "603", "en", "US")
	require.NoError(t, err)
	old := time.Now().Add(-filecache.TTL - time.Minute)
	require.NoError(t, h.fs.Chtimes(h.cache.Location(filecache.MovieKey("603", "en")), old, old))

	_, err = h.svc.Movie(context.Background(), "603", "en", "US")
	require.NoError(t, err)
	assert.Equal(t, 2, h.tmdb.total())
}

func TestCorruptCacheEntryIsRefetched(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.ok("/3/movie/603", "en", matrixEN)
	loc := h.cache.Location(filecache.MovieKey("603", "en"))
	require.NoError(t, h.fs.MkdirAll("/cache/metadata/movies/603", 0o755))
	require.NoError(t, afero.WriteFile(h.fs, loc, []byte("{not json"), 0o644))

	movie, err := h.svc.Movie(context.Background(), "603", "en", "US")
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", movie.Title)
	assert.Equal(t, 1, h.tmdb.total())
}

func TestSeasonAndEpisodeUseTheirOwnKeys(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.ok("/3/tv/1399/season/1", "en", `{"id":3624,"name":"Season 1","overview":"Winter is coming.","season_number":1,"episodes":[{"id":63056,"name":"Winter Is Coming","overview":"Lord Stark...","season_number":1,"episode_number":1}]}`)
	h.tmdb.ok("/3/tv/1399/season/1/episode/2", "en", `{"id":63057,"name":"The Kingsroad","overview":"The Lannisters plot.","season_number":1,"episode_number":2}`)

	season, err := h.svc.Season(context.Background(), "1399", 1, "en", "US")
	require.NoError(t, err)
	require.Len(t, season.Episodes, 1)
	assert.Equal(t, appendSeason, h.tmdb.lastQuery().Get("append_to_response"))

	episode, err := h.svc.Episode(context.Background(), "1399", 1, 2, "en", "US")
	require.NoError(t, err)
	assert.Equal(t, "The Kingsroad", episode.Name)

	assert.True(t, h.cached(t, filecache.SeasonKey("1399", 1, "en")))
	assert.True(t, h.cached(t, filecache.EpisodeKey("1399", 1, 2, "en")))
	assert.True(t, strings.HasSuffix(h.cache.Location(filecache.EpisodeKey("1399", 1, 2, "en")), "series/1399/season-1-episode-2-en.json"))
	assert.False(t, h.cached(t, filecache.SeriesKey("1399", "en")))
}

func TestSeasonFallbackRepairsEpisodes(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.ok("/3/tv/1399/season/1", "ja", `{"id":3624,"name":"シーズン1","overview":"","episodes":[{"name":"","overview":"","episode_number":1},{"name":"王の道","overview":"","episode_number":2}]}`)
	h.tmdb.ok("/3/tv/1399/season/1", "en", `{"id":3624,"name":"Season 1","overview":"Winter is coming.","episodes":[{"name":"Winter Is Coming","overview":"Lord Stark...","episode_number":1},{"name":"The Kingsroad","overview":"The Lannisters plot.","episode_number":2}]}`)

	season, err := h.svc.Season(context.Background(), "1399", 1, "ja", "JP")
	require.NoError(t, err)
	assert.Equal(t, "シーズン1", season.Name)
	assert.Equal(t, "Winter is coming.", season.Overview)
	assert.Equal(t, "Winter Is Coming", season.Episodes[0].Name)
	assert.Equal(t, "王の道", season.Episodes[1].Name)
	assert.Equal(t, "The Lannisters plot.", season.Episodes[1].Overview)
}

func TestInvalidIDsAreRejected(t *testing.T) {
	h := newHarness(t, nil)
	for _, id := range []string{"", "abc", "-1", "0", "../603"} {
		_, err := h.svc.Movie(context.Background(), id, "en", "US")
		assert.Equal(t, transport.KindInvalidRequest, transport.KindOf(err), "id %q", id)
	}
	_, err := h.svc.Season(context.Background(), "1399", -1, "en", "US")
	assert.Equal(t, transport.KindInvalidRequest, transport.KindOf(err))
	assert.Equal(t, 0, h.tmdb.total())
}

func TestMissingAPIKeyIsInvalidRequest(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) { s.Metadata.TMDBAPIKey = "" })
	_, err := h.svc.Movie(context.Background(), "603", "en", "US")
	assert.Equal(t, transport.KindInvalidRequest, transport.KindOf(err))
	assert.Equal(t, 0, h.tmdb.total())
}

func TestErrorsDoNotLeakAPIKey(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.on("/3/movie/603", "en", fakeReply{status: http.StatusUnauthorized, body: `{"status_code":7}`})

	_, err := h.svc.Movie(context.Background(), "603", "en", "US")
	require.Error(t, err)
	assert.True(t, transport.IsStatus(err, http.StatusUnauthorized))
	assert.NotContains(t, err.Error(), "test-key")
}

func jsonResponse(body string) *transport.Response {
	return &transport.Response{
		StatusCode:  http.StatusOK,
		Header:      http.Header{"Content-Type": []string{"application/json"}},
		Body:        io.NopCloser(strings.NewReader(body)),
		ContentType: "application/json",
	}
}

func TestCancelledFetchDoesNotWriteCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	throttle := NewMockThrottler(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	throttle.EXPECT().Throttle(gomock.Any()).Return(time.Duration(0), nil)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, req transport.Request) (*transport.Response, error) {
			assert.True(t, req.BufferContent)
			assert.Equal(t, tmdbAccept, req.Accept)
			cancel()
			return jsonResponse(matrixEN), nil
		})

	fs := afero.NewMemMapFs()
	cache := filecache.New(fs, "/cache")
	svc := NewService(testSettings("https://api.tmdb.test/3"), sender, WithCache(cache), WithThrottler(throttle))

	movie, err := svc.Movie(ctx, "603", "en", "US")
	assert.Nil(t, movie)
	assert.Equal(t, transport.KindCancelled, transport.KindOf(err))
	exists, _ := afero.Exists(fs, cache.Location(filecache.MovieKey("603", "en")))
	assert.False(t, exists)
}

func TestThrottleCancellationStopsBeforeSend(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	throttle := NewMockThrottler(ctrl)

	throttle.EXPECT().Throttle(gomock.Any()).Return(time.Duration(0), context.Canceled)

	svc := NewService(testSettings("https://api.tmdb.test/3"), sender,
		WithCache(filecache.New(afero.NewMemMapFs(), "/cache")), WithThrottler(throttle))
	_, err := svc.Movie(context.Background(), "603", "en", "US")
	assert.Equal(t, transport.KindCancelled, transport.KindOf(err))
}

const configurationJSON = `{"images":{"base_url":"http://image.tmdb.org/t/p/","secure_base_url":"https://image.tmdb.org/t/p/","poster_sizes":["w92","w500","original"]},"change_keys":["title"]}`

func TestConfigurationLoadedOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.ok("/3/configuration", "", configurationJSON)
	h.tmdb.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Configuration(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, h.tmdb.total())

	u, err := h.svc.ImageURL(context.Background(), "/kqjL17yufvn9OVLyXYpvtyrFfak.jpg", "w500")
	require.NoError(t, err)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/kqjL17yufvn9OVLyXYpvtyrFfak.jpg", u)

	u, err = h.svc.ImageURL(context.Background(), "abc.png", "")
	require.NoError(t, err)
	assert.Equal(t, "https://image.tmdb.org/t/p/original/abc.png", u)
	assert.Equal(t, 1, h.tmdb.total())

	_, err = h.svc.ImageURL(context.Background(), "", "w500")
	assert.Equal(t, transport.KindInvalidRequest, transport.KindOf(err))
}

func TestConfigurationFailureIsNotCached(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.on("/3/configuration", "",
		fakeReply{status: http.StatusServiceUnavailable, body: "down"},
		fakeReply{status: http.StatusOK, body: configurationJSON})

	_, err := h.svc.Configuration(context.Background())
	require.Error(t, err)
	cfg, err := h.svc.Configuration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://image.tmdb.org/t/p/", cfg.Images.SecureBaseURL)
}

func TestFetchImageIsNotThrottled(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	throttle := NewMockThrottler(ctrl)

	// Only the configuration call goes through the limiter.
	throttle.EXPECT().Throttle(gomock.Any()).Return(time.Duration(0), nil).Times(1)
	gomock.InOrder(
		sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(jsonResponse(configurationJSON), nil),
		sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req transport.Request) (*transport.Response, error) {
				assert.Equal(t, "https://image.tmdb.org/t/p/w500/a.jpg", req.URL)
				assert.Equal(t, imageAccept, req.Accept)
				assert.False(t, req.BufferContent)
				return &transport.Response{
					StatusCode:  http.StatusOK,
					Body:        io.NopCloser(strings.NewReader("\x89PNG")),
					ContentType: "image/png",
				}, nil
			}),
	)

	svc := NewService(testSettings("https://api.tmdb.test/3"), sender,
		WithCache(filecache.New(afero.NewMemMapFs(), "/cache")), WithThrottler(throttle))

	resp, err := svc.FetchImage(context.Background(), "https://image.tmdb.org/t/p/w500/a.jpg")
	require.NoError(t, err)
	defer resp.Close()
	assert.Equal(t, "image/png", resp.ContentType)

	_, err = svc.FetchImage(context.Background(), "https://evil.example/t/p/w500/a.jpg")
	assert.Equal(t, transport.KindInvalidRequest, transport.KindOf(err))
}

func TestPrefetchSharesScopeAndRetries(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) { s.Metadata.PrefetchWorkers = 1 })
	h.tmdb.on("/3/movie/603", "en",
		fakeReply{status: http.StatusTooManyRequests, body: `{"status_code":25}`},
		fakeReply{status: http.StatusOK, body: matrixEN})
	h.tmdb.ok("/3/tv/1399", "de", `{"id":1399,"name":"Game of Thrones","overview":"Sieben Königreiche.","videos":{"results":[{"key":"k","name":"Trailer","site":"YouTube"}]}}`)

	results := h.svc.Prefetch(context.Background(), []Query{
		{Kind: QueryMovie, ID: "603"},
		{Kind: QueryMovie, ID: "603", Language: "en", Country: "US"},
		{Kind: QuerySeries, ID: "1399", Language: "de", Country: "DE"},
		{Kind: QueryMovie, ID: "424242"},
		{Kind: "podcast", ID: "1"},
	})
	require.Len(t, results, 5)

	assert.True(t, results[0].Found)
	assert.Equal(t, 2, results[0].Attempts)
	assert.Equal(t, "The Matrix", results[0].Document.(*models.Movie).Title)

	assert.True(t, results[1].Found)
	assert.Equal(t, 1, results[1].Attempts)
	assert.Same(t, results[0].Document, results[1].Document, "second lookup must come from the shared scope")
	assert.Equal(t, 2, h.tmdb.count("/3/movie/603", "en"))

	assert.True(t, results[2].Found)
	assert.Equal(t, "Game of Thrones", results[2].Document.(*models.Series).Name)

	assert.False(t, results[3].Found)
	assert.Empty(t, results[3].Error)
	assert.Nil(t, results[3].Document)

	assert.NotEmpty(t, results[4].Error)
	assert.Equal(t, 1, results[4].Attempts)
}

func TestPrefetchGivesUpAfterAttempts(t *testing.T) {
	h := newHarness(t, func(s *config.Settings) { s.Metadata.PrefetchAttempts = 2 })
	h.tmdb.on("/3/movie/1", "en", fakeReply{status: http.StatusTooManyRequests, body: "slow down"})
	h.tmdb.on("/3/movie/2", "en", fakeReply{status: http.StatusBadGateway, body: "bad"})

	results := h.svc.Prefetch(context.Background(), []Query{
		{Kind: QueryMovie, ID: "1"},
		{Kind: QueryMovie, ID: "2"},
	})
	assert.Equal(t, 2, results[0].Attempts)
	assert.Contains(t, results[0].Error, "429")
	assert.Equal(t, 1, results[1].Attempts, "non-retryable status must not be retried")
	assert.NotEmpty(t, results[1].Error)
}

func TestUpdateSettingsHotSwaps(t *testing.T) {
	h := newHarness(t, nil)
	tr := h.svc.sender.(*transport.Transport)

	next := testSettings("https://api.tmdb.test/3")
	next.Metadata.Language = "fr"
	next.Metadata.Country = "FR"
	next.Proxy = config.ProxySettings{Enable: true, ProxyType: "SOCKS5", ProxyURL: "proxy.lan", ProxyPort: 1080}
	next.Metadata.MaxRedirects = 3
	next.Metadata.TimeoutSeconds = 7
	require.NoError(t, h.svc.UpdateSettings(next))
	assert.Equal(t, 3, tr.MaxRedirects())

	lang, country := h.svc.Defaults()
	assert.Equal(t, "fr", lang)
	assert.Equal(t, "FR", country)
	assert.Equal(t, "socks5://proxy.lan:1080", tr.ProxyAddress())

	bad := next
	bad.Metadata.Language = "it"
	bad.Metadata.MaxRedirects = 5
	bad.Proxy.ProxyPort = 0
	err := h.svc.UpdateSettings(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrProxyConfigInvalid))
	lang, _ = h.svc.Defaults()
	assert.Equal(t, "fr", lang, "rejected proxy must leave settings unchanged")
	assert.Equal(t, "socks5://proxy.lan:1080", tr.ProxyAddress())
	assert.Equal(t, 3, tr.MaxRedirects(), "rejected proxy must leave limits unchanged")
}

func TestConfigurationLoadedBeforeSettingsChangeIsDropped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	oldAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"images":{"secure_base_url":"https://old.tmdb.test/t/p/"}}`)
	}))
	defer oldAPI.Close()
	newAPI := newFakeTMDB()
	newSrv := httptest.NewServer(newAPI)
	defer newSrv.Close()
	newAPI.ok("/3/configuration", "", configurationJSON)

	tr, err := transport.New(config.ProxySettings{})
	require.NoError(t, err)
	svc := NewService(testSettings(oldAPI.URL+"/3"), tr,
		WithCache(filecache.New(afero.NewMemMapFs(), "/cache")), WithThrottler(ratelimit.New(0)))

	done := make(chan error, 1)
	go func() {
		_, err := svc.Configuration(context.Background())
		done <- err
	}()
	<-started
	require.NoError(t, svc.UpdateSettings(testSettings(newSrv.URL+"/3")))
	close(release)
	require.NoError(t, <-done)

	cfg, err := svc.Configuration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://image.tmdb.org/t/p/", cfg.Images.SecureBaseURL)
	assert.Equal(t, 1, newAPI.count("/3/configuration", ""))
}

func TestClearCache(t *testing.T) {
	h := newHarness(t, nil)
	h.tmdb.ok("/3/movie/603", "en", matrixEN)
	_, err := h.svc.Movie(context.Background(), "603", "en", "US")
	require.NoError(t, err)

	require.NoError(t, h.svc.ClearCache())
	assert.False(t, h.cached(t, filecache.MovieKey("603", "en")))
}
