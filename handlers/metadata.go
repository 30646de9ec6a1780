package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"moviedbproxy/models"
	metadatapkg "moviedbproxy/services/metadata"
)

type metadataService interface {
	Movie(ctx context.Context, id, language, country string) (*models.Movie, error)
	Series(ctx context.Context, id, language, country string) (*models.Series, error)
	Season(ctx context.Context, id string, season int, language, country string) (*models.Season, error)
	Episode(ctx context.Context, id string, season, episode int, language, country string) (*models.Episode, error)
	Collection(ctx context.Context, id, language, country string) (*models.Collection, error)
	Person(ctx context.Context, id, language, country string) (*models.Person, error)
	Configuration(ctx context.Context) (*models.Configuration, error)
	Search(ctx context.Context, kind, name string, year int, language, country string) ([]models.SearchResult, error)
	FindByExternalID(ctx context.Context, id, source, language, country string) (*models.FindResults, error)
	Prefetch(ctx context.Context, queries []metadatapkg.Query) []metadatapkg.Result
	ClearCache() error
	Defaults() (language, country string)
}

var _ metadataService = (*metadatapkg.Service)(nil)

// maxPrefetchQueries bounds one prefetch request body.
const maxPrefetchQueries = 500

type MetadataHandler struct {
	Service metadataService
}

func NewMetadataHandler(s metadataService) *MetadataHandler {
	return &MetadataHandler{Service: s}
}

// locale reads ?language= and ?country=, defaulting to the configured values.
func (h *MetadataHandler) locale(r *http.Request) (string, string) {
	lang := strings.TrimSpace(r.URL.Query().Get("language"))
	country := strings.TrimSpace(r.URL.Query().Get("country"))
	if lang == "" || country == "" {
		defLang, defCountry := h.Service.Defaults()
		if lang == "" {
			lang = defLang
		}
		if country == "" {
			country = defCountry
		}
	}
	return lang, country
}

func intVar(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func serveDocument[T any](w http.ResponseWriter, r *http.Request, doc *T, err error) {
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *MetadataHandler) Movie(w http.ResponseWriter, r *http.Request) {
	lang, country := h.locale(r)
	doc, err := h.Service.Movie(r.Context(), mux.Vars(r)["id"], lang, country)
	serveDocument(w, r, doc, err)
}

func (h *MetadataHandler) Series(w http.ResponseWriter, r *http.Request) {
	lang, country := h.locale(r)
	doc, err := h.Service.Series(r.Context(), mux.Vars(r)["id"], lang, country)
	serveDocument(w, r, doc, err)
}

func (h *MetadataHandler) Season(w http.ResponseWriter, r *http.Request) {
	season, ok := intVar(r, "season")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid season number")
		return
	}
	lang, country := h.locale(r)
	doc, err := h.Service.Season(r.Context(), mux.Vars(r)["id"], season, lang, country)
	serveDocument(w, r, doc, err)
}

func (h *MetadataHandler) Episode(w http.ResponseWriter, r *http.Request) {
	season, ok := intVar(r, "season")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid season number")
		return
	}
	episode, ok := intVar(r, "episode")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid episode number")
		return
	}
	lang, country := h.locale(r)
	doc, err := h.Service.Episode(r.Context(), mux.Vars(r)["id"], season, episode, lang, country)
	serveDocument(w, r, doc, err)
}

func (h *MetadataHandler) Collection(w http.ResponseWriter, r *http.Request) {
	lang, country := h.locale(r)
	doc, err := h.Service.Collection(r.Context(), mux.Vars(r)["id"], lang, country)
	serveDocument(w, r, doc, err)
}

func (h *MetadataHandler) Person(w http.ResponseWriter, r *http.Request) {
	lang, country := h.locale(r)
	doc, err := h.Service.Person(r.Context(), mux.Vars(r)["id"], lang, country)
	serveDocument(w, r, doc, err)
}

func (h *MetadataHandler) Configuration(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Service.Configuration(r.Context())
	serveDocument(w, r, cfg, err)
}

// Search handles /tmdb/search/{kind}?query=&year=.
func (h *MetadataHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter")
		return
	}
	year := 0
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = n
	}
	lang, country := h.locale(r)
	results, err := h.Service.Search(r.Context(), mux.Vars(r)["kind"], query, year, lang, country)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Find handles /tmdb/find/{id}?source=imdb_id.
func (h *MetadataHandler) Find(w http.ResponseWriter, r *http.Request) {
	lang, country := h.locale(r)
	doc, err := h.Service.FindByExternalID(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("source"), lang, country)
	serveDocument(w, r, doc, err)
}

type prefetchRequest struct {
	Queries []metadatapkg.Query `json:"queries"`
}

// Prefetch warms the cache for a batch of lookups, typically one library scan.
func (h *MetadataHandler) Prefetch(w http.ResponseWriter, r *http.Request) {
	var req prefetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, http.StatusBadRequest, "no queries")
		return
	}
	if len(req.Queries) > maxPrefetchQueries {
		writeError(w, http.StatusBadRequest, "too many queries, max "+strconv.Itoa(maxPrefetchQueries))
		return
	}
	log.Printf("[metadata] prefetch request count=%d", len(req.Queries))
	results := h.Service.Prefetch(r.Context(), req.Queries)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// ClearCache removes every cached metadata document.
func (h *MetadataHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.ClearCache(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("[metadata] cache cleared by user request")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Metadata cache cleared"})
}
