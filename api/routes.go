package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"moviedbproxy/handlers"
)

// RequestIDHeader carries the id assigned to each API request.
const RequestIDHeader = "X-Request-ID"

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware echoes the caller's request id or assigns a new one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	settingsHandler *handlers.SettingsHandler,
	metadataHandler *handlers.MetadataHandler,
	imageHandler *handlers.ImageHandler,
) {
	r.HandleFunc("/health", health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(requestIDMiddleware)
	api.Use(corsMiddleware)

	// Preflight for every API path; without it mux answers 405 before the
	// CORS middleware runs.
	api.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(handleOptions)

	api.HandleFunc("/settings", settingsHandler.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", settingsHandler.PutSettings).Methods(http.MethodPut)

	tmdb := api.PathPrefix("/tmdb").Subrouter()
	tmdb.HandleFunc("/movie/{id}", metadataHandler.Movie).Methods(http.MethodGet)
	tmdb.HandleFunc("/tv/{id}", metadataHandler.Series).Methods(http.MethodGet)
	tmdb.HandleFunc("/tv/{id}/season/{season}", metadataHandler.Season).Methods(http.MethodGet)
	tmdb.HandleFunc("/tv/{id}/season/{season}/episode/{episode}", metadataHandler.Episode).Methods(http.MethodGet)
	tmdb.HandleFunc("/collection/{id}", metadataHandler.Collection).Methods(http.MethodGet)
	tmdb.HandleFunc("/person/{id}", metadataHandler.Person).Methods(http.MethodGet)
	tmdb.HandleFunc("/search/{kind}", metadataHandler.Search).Methods(http.MethodGet)
	tmdb.HandleFunc("/find/{id}", metadataHandler.Find).Methods(http.MethodGet)
	tmdb.HandleFunc("/configuration", metadataHandler.Configuration).Methods(http.MethodGet)
	tmdb.HandleFunc("/prefetch", metadataHandler.Prefetch).Methods(http.MethodPost)
	tmdb.HandleFunc("/cache", metadataHandler.ClearCache).Methods(http.MethodDelete)

	api.HandleFunc("/images", imageHandler.Proxy).Methods(http.MethodGet)
}
