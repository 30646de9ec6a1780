package filecache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Kind is the entity family a document belongs to; it is also the top-level
// directory of the cache tree.
type Kind string

const (
	KindMovie      Kind = "movies"
	KindCollection Kind = "collections"
	KindPerson     Kind = "people"
	KindSeries     Kind = "series"
)

// AllLanguages is stored in place of an empty language tag.
const AllLanguages = "alllang"

// Key identifies one cached document.
type Key struct {
	Kind     Kind
	ID       string
	Language string
	// Season and Episode are only meaningful when the matching Has flag is set;
	// season 0 holds specials.
	Season     int
	Episode    int
	HasSeason  bool
	HasEpisode bool
}

func MovieKey(id, language string) Key {
	return Key{Kind: KindMovie, ID: id, Language: language}
}

func CollectionKey(id, language string) Key {
	return Key{Kind: KindCollection, ID: id, Language: language}
}

func PersonKey(id, language string) Key {
	return Key{Kind: KindPerson, ID: id, Language: language}
}

func SeriesKey(id, language string) Key {
	return Key{Kind: KindSeries, ID: id, Language: language}
}

func SeasonKey(id string, season int, language string) Key {
	return Key{Kind: KindSeries, ID: id, Language: language, Season: season, HasSeason: true}
}

func EpisodeKey(id string, season, episode int, language string) Key {
	return Key{
		Kind: KindSeries, ID: id, Language: language,
		Season: season, Episode: episode, HasSeason: true, HasEpisode: true,
	}
}

func (k Key) lang() string {
	l := strings.TrimSpace(k.Language)
	if l == "" {
		return AllLanguages
	}
	return sanitize(l)
}

// String is the compact identity used for logging and the scope cache,
// e.g. "603_en" or "1399_en_s1_e2".
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.ID)
	b.WriteByte('_')
	b.WriteString(k.lang())
	if k.HasSeason {
		b.WriteString("_s")
		b.WriteString(strconv.Itoa(k.Season))
	}
	if k.HasEpisode {
		b.WriteString("_e")
		b.WriteString(strconv.Itoa(k.Episode))
	}
	return b.String()
}

func (k Key) validate() error {
	switch k.Kind {
	case KindMovie, KindCollection, KindPerson, KindSeries:
	default:
		return fmt.Errorf("filecache: unknown kind %q", k.Kind)
	}
	if strings.TrimSpace(k.ID) == "" {
		return fmt.Errorf("filecache: empty id for %s", k.Kind)
	}
	if k.HasEpisode && !k.HasSeason {
		return fmt.Errorf("filecache: episode key %s without season", k.ID)
	}
	return nil
}

// Path returns the slash-separated location of the document relative to the
// cache root.
func (k Key) Path() string {
	id := sanitize(k.ID)
	lang := k.lang()
	switch k.Kind {
	case KindPerson:
		sum := md5.Sum([]byte(k.ID))
		shard := hex.EncodeToString(sum[:1])[:1]
		return path.Join(string(k.Kind), shard, id, "info-"+lang+".json")
	case KindSeries:
		switch {
		case k.HasEpisode:
			return path.Join(string(k.Kind), id, fmt.Sprintf("season-%d-episode-%d-%s.json", k.Season, k.Episode, lang))
		case k.HasSeason:
			return path.Join(string(k.Kind), id, fmt.Sprintf("season-%d-%s.json", k.Season, lang))
		default:
			return path.Join(string(k.Kind), id, "series-"+lang+".json")
		}
	default:
		return path.Join(string(k.Kind), id, "all-"+lang+".json")
	}
}

// sanitize keeps ids and language tags from escaping their directory.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.ReplaceAll(s, "..", "_"))
}
