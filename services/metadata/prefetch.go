package metadata

import (
	"context"
	"net/http"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/sourcegraph/conc/pool"

	"moviedbproxy/internal/filecache"
	"moviedbproxy/internal/transport"
)

// Entity kinds accepted by Lookup and Prefetch.
const (
	QueryMovie      = "movie"
	QuerySeries     = "tv"
	QuerySeason     = "season"
	QueryEpisode    = "episode"
	QueryCollection = "collection"
	QueryPerson     = "person"
)

// Query names one document for Lookup or Prefetch. Empty Language and Country
// fall back to the configured defaults.
type Query struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	Season   int    `json:"season,omitempty"`
	Episode  int    `json:"episode,omitempty"`
	Language string `json:"language,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Result is the outcome of one prefetched query.
type Result struct {
	Query    Query  `json:"query"`
	Found    bool   `json:"found"`
	Document any    `json:"document,omitempty"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
}

func orNil[T any](doc *T, err error) (any, error) {
	if doc == nil {
		return nil, err
	}
	return doc, err
}

// Lookup dispatches q to the matching fetch operation. A nil document with a
// nil error means not found.
func (s *Service) Lookup(ctx context.Context, q Query) (any, error) {
	lang, country := q.Language, q.Country
	if strings.TrimSpace(lang) == "" || strings.TrimSpace(country) == "" {
		defLang, defCountry := s.Defaults()
		if strings.TrimSpace(lang) == "" {
			lang = defLang
		}
		if strings.TrimSpace(country) == "" {
			country = defCountry
		}
	}
	switch strings.ToLower(strings.TrimSpace(q.Kind)) {
	case QueryMovie:
		return orNil(s.Movie(ctx, q.ID, lang, country))
	case QuerySeries, "series":
		return orNil(s.Series(ctx, q.ID, lang, country))
	case QuerySeason:
		return orNil(s.Season(ctx, q.ID, q.Season, lang, country))
	case QueryEpisode:
		return orNil(s.Episode(ctx, q.ID, q.Season, q.Episode, lang, country))
	case QueryCollection:
		return orNil(s.Collection(ctx, q.ID, lang, country))
	case QueryPerson:
		return orNil(s.Person(ctx, q.ID, lang, country))
	default:
		return nil, invalid("unknown query kind %q", q.Kind)
	}
}

// retryable reports whether a prefetch attempt may be repeated: timeouts and
// upstream rate limiting only.
func retryable(err error) bool {
	return transport.KindOf(err) == transport.KindTimeout || transport.IsStatus(err, http.StatusTooManyRequests)
}

// Prefetch resolves a batch of queries for one scan pass. Queries run on a
// bounded pool and share one request scope, so repeated keys hit memory.
// Timeouts and 429s are retried here; the fetch path itself never retries.
func (s *Service) Prefetch(ctx context.Context, queries []Query) []Result {
	results := make([]Result, len(queries))
	if len(queries) == 0 {
		return results
	}
	if filecache.ScopeFrom(ctx) == nil {
		ctx = filecache.WithScope(ctx, filecache.NewScope())
	}

	_, settings := s.snapshot()
	workers := settings.PrefetchWorkers
	if workers <= 0 {
		workers = 1
	}
	attempts := settings.PrefetchAttempts
	if attempts <= 0 {
		attempts = 1
	}

	s.log.Info("prefetch started", "queries", len(queries), "workers", workers)
	p := pool.New().WithMaxGoroutines(workers)
	for i, q := range queries {
		i, q := i, q
		p.Go(func() {
			results[i] = s.prefetchOne(ctx, q, attempts)
		})
	}
	p.Wait()

	var found, failed int
	for _, r := range results {
		switch {
		case r.Error != "":
			failed++
		case r.Found:
			found++
		}
	}
	s.log.Info("prefetch complete", "queries", len(queries), "found", found, "failed", failed)
	return results
}

func (s *Service) prefetchOne(ctx context.Context, q Query, attempts int) Result {
	res := Result{Query: q}
	doc, err := retry.DoWithData(
		func() (any, error) {
			res.Attempts++
			return s.Lookup(ctx, q)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			s.log.Debug("retrying prefetch", "kind", q.Kind, "id", q.ID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Document = doc
	res.Found = doc != nil
	return res
}
