package metadata

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"moviedbproxy/internal/transport"
	"moviedbproxy/models"
)

// Search kinds map onto /search/{kind}.
const (
	SearchMovie      = "movie"
	SearchTV         = "tv"
	SearchCollection = "collection"
)

// DefaultExternalSource is the /find source used when none is given.
const DefaultExternalSource = "imdb_id"

var externalSources = map[string]bool{
	"imdb_id":     true,
	"tvdb_id":     true,
	"tvrage_id":   true,
	"wikidata_id": true,
}

var (
	externalIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)
	// "Alien (1979)" or "Alien [1979]"
	trailingYear = regexp.MustCompile(`^(.+?)\s*[(\[]((?:18|19|20)\d{2})[)\]]\s*$`)
)

func searchKind(kind string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case SearchMovie:
		return SearchMovie, true
	case SearchTV, "series":
		return SearchTV, true
	case SearchCollection:
		return SearchCollection, true
	}
	return "", false
}

// Search looks up TMDB ids by title. A year in brackets at the end of name is
// used when year is 0. When nothing matches, the name is retried with
// punctuation and bracketed suffixes removed, and then the whole search is
// repeated in the fallback language. Results are never cached.
func (s *Service) Search(ctx context.Context, kind, name string, year int, language, country string) ([]models.SearchResult, error) {
	k, ok := searchKind(kind)
	if !ok {
		return nil, invalid("unknown search kind %q", kind)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("empty search name")
	}
	if year < 0 {
		return nil, invalid("invalid year %d", year)
	}
	if year == 0 {
		if m := trailingYear.FindStringSubmatch(name); m != nil {
			name = m[1]
			year, _ = strconv.Atoi(m[2])
		}
	}
	language = strings.TrimSpace(language)

	results, err := s.searchNames(ctx, k, name, year, language, country)
	if err != nil {
		return nil, err
	}
	_, settings := s.snapshot()
	fallback := strings.TrimSpace(settings.FallbackLanguage)
	if len(results) == 0 && fallback != "" && !strings.EqualFold(language, fallback) {
		s.log.Debug("no search results, retrying in fallback language", "kind", k, "name", name, "language", language, "fallback", fallback)
		return s.searchNames(ctx, k, name, year, fallback, country)
	}
	return results, nil
}

// searchNames runs one search and, when it finds nothing, a second one with
// the cleaned-up name.
func (s *Service) searchNames(ctx context.Context, kind, name string, year int, language, country string) ([]models.SearchResult, error) {
	results, err := s.searchOnce(ctx, kind, name, year, language, country)
	if err != nil || len(results) > 0 {
		return results, err
	}
	if cleaned := cleanSearchName(name); cleaned != "" && !strings.EqualFold(cleaned, name) {
		return s.searchOnce(ctx, kind, cleaned, year, language, country)
	}
	return results, nil
}

func (s *Service) searchOnce(ctx context.Context, kind, name string, year int, language, country string) ([]models.SearchResult, error) {
	client, _ := s.snapshot()
	q := url.Values{}
	q.Set("query", name)
	if lang := NormalizeLanguage(language, country); lang != "" {
		q.Set("language", lang)
	}
	if year > 0 {
		if kind == SearchTV {
			q.Set("first_air_date_year", strconv.Itoa(year))
		} else {
			q.Set("year", strconv.Itoa(year))
		}
	}
	var page models.SearchResults
	if err := client.get(ctx, q, &page, "search", kind); err != nil {
		return nil, err
	}
	if page.Results == nil {
		page.Results = []models.SearchResult{}
	}
	return page.Results, nil
}

// cleanSearchName drops a trailing ", The", separators and anything from the
// first bracket on: "Matrix, The" becomes "Matrix" and
// "Alien - Director's Cut (1979)" becomes "Alien Directors Cut".
func cleanSearchName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ", the"):
		name = name[:len(name)-5]
	case strings.HasSuffix(lower, ",the"):
		name = name[:len(name)-4]
	}
	name = strings.NewReplacer(
		",", " ", ".", " ", "_", " ", "-", " ", "!", " ", "?", " ", "'", "",
	).Replace(name)

	if i := strings.IndexAny(name, "(["); i > 0 {
		name = name[:i]
	} else if i == 0 {
		name = strings.NewReplacer("[", " ", "]", " ").Replace(name)
		if j := strings.Index(name, "("); j > 0 {
			name = name[:j]
		}
	}
	return strings.Join(strings.Fields(name), " ")
}

// FindByExternalID resolves an id from another database (an IMDb id by
// default) through /find. A nil result with a nil error means no match.
func (s *Service) FindByExternalID(ctx context.Context, id, source, language, country string) (*models.FindResults, error) {
	id = strings.TrimSpace(id)
	if !externalIDPattern.MatchString(id) {
		return nil, invalid("invalid external id %q", id)
	}
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		source = DefaultExternalSource
	}
	if !externalSources[source] {
		return nil, invalid("unsupported external source %q", source)
	}

	client, _ := s.snapshot()
	q := url.Values{}
	q.Set("external_source", source)
	if lang := NormalizeLanguage(strings.TrimSpace(language), country); lang != "" {
		q.Set("language", lang)
	}
	res := new(models.FindResults)
	if err := client.get(ctx, q, res, "find", id); err != nil {
		if transport.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if res.Empty() {
		s.log.Debug("external id not found", "id", id, "source", source)
		return nil, nil
	}
	return res, nil
}
