package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"moviedbproxy/internal/transport"
)

// statusClientClosed is the nginx convention for a request the client gave up on.
const statusClientClosed = 499

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFetchError maps a transport error kind onto an HTTP status.
func writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	switch transport.KindOf(err) {
	case transport.KindInvalidRequest:
		writeError(w, http.StatusBadRequest, err.Error())
	case transport.KindHTTPStatus:
		if transport.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		var te *transport.Error
		status := 0
		if errors.As(err, &te) {
			status = te.StatusCode
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "upstreamStatus": status})
	case transport.KindTimeout:
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case transport.KindCancelled:
		log.Printf("[metadata] request cancelled by client path=%s", r.URL.Path)
		w.WriteHeader(statusClientClosed)
	case transport.KindTooManyRedirects, transport.KindTransport:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
