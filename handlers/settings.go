package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"moviedbproxy/config"
)

// settingsApplier hot-reloads services that cache configuration at startup.
type settingsApplier interface {
	UpdateSettings(config.Settings) error
}

type SettingsHandler struct {
	Manager *config.Manager
	Service settingsApplier
}

func NewSettingsHandler(m *config.Manager, s settingsApplier) *SettingsHandler {
	return &SettingsHandler{Manager: m, Service: s}
}

// redactedPassword is what GetSettings returns in place of the proxy password.
var redactedPassword = config.ProxySettings{Password: "x"}.Redacted().Password

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.Proxy = s.Proxy.Redacted()
	writeJSON(w, http.StatusOK, s)
}

func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Fields missing from the body keep their current values.
	s := current
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.Proxy.Password == redactedPassword {
		s.Proxy.Password = current.Proxy.Password
	}

	saved, err := h.Manager.Update(s)
	if errors.Is(err, config.ErrProxyConfigInvalid) {
		log.Printf("[settings] rejected proxy settings: %v", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.Service != nil {
		if err := h.Service.UpdateSettings(saved); err != nil {
			log.Printf("[settings] failed to apply settings: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Printf("[settings] reloaded metadata service proxy=%q language=%s", saved.Proxy.Address(), saved.Metadata.Language)
	}

	saved.Proxy = saved.Proxy.Redacted()
	writeJSON(w, http.StatusOK, saved)
}
