package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings is the root configuration persisted to settings.json (or settings.yaml).
type Settings struct {
	Server   ServerSettings   `json:"server" yaml:"server"`
	Metadata MetadataSettings `json:"metadata" yaml:"metadata"`
	Proxy    ProxySettings    `json:"proxy" yaml:"proxy"`
	Cache    CacheSettings    `json:"cache" yaml:"cache"`
	Log      LogSettings      `json:"log" yaml:"log"`
}

type ServerSettings struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// MetadataSettings controls how TMDB is queried.
type MetadataSettings struct {
	TMDBAPIKey        string `json:"tmdbApiKey" yaml:"tmdbApiKey"`
	Language          string `json:"language" yaml:"language"`
	Country           string `json:"country" yaml:"country"`
	FallbackLanguage  string `json:"fallbackLanguage" yaml:"fallbackLanguage"`
	APIBaseURL        string `json:"apiBaseUrl" yaml:"apiBaseUrl"`
	RequestIntervalMs int    `json:"requestIntervalMs" yaml:"requestIntervalMs"`
	TimeoutSeconds    int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	MaxRedirects      int    `json:"maxRedirects" yaml:"maxRedirects"`
	UserAgent         string `json:"userAgent" yaml:"userAgent"`
	PrefetchWorkers   int    `json:"prefetchWorkers" yaml:"prefetchWorkers"`
	PrefetchAttempts  int    `json:"prefetchAttempts" yaml:"prefetchAttempts"`
}

type CacheSettings struct {
	Directory string `json:"directory" yaml:"directory"`
}

// LogSettings describes the rotating log file.
type LogSettings struct {
	File       string `json:"file" yaml:"file"`
	Level      string `json:"level" yaml:"level"`
	MaxSize    int    `json:"maxSize" yaml:"maxSize"`
	MaxAge     int    `json:"maxAge" yaml:"maxAge"`
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

const (
	DefaultAPIBaseURL        = "https://api.themoviedb.org/3"
	DefaultRequestIntervalMs = 300
	DefaultTimeoutSeconds    = 30
	DefaultMaxRedirects      = 10
	DefaultUserAgent         = "moviedbproxy/1.0 (+https://github.com/moviedbproxy/moviedbproxy)"
)

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 7780},
		Metadata: MetadataSettings{
			Language:          "en",
			Country:           "US",
			FallbackLanguage:  "en",
			APIBaseURL:        DefaultAPIBaseURL,
			RequestIntervalMs: DefaultRequestIntervalMs,
			TimeoutSeconds:    DefaultTimeoutSeconds,
			MaxRedirects:      DefaultMaxRedirects,
			UserAgent:         DefaultUserAgent,
			PrefetchWorkers:   4,
			PrefetchAttempts:  3,
		},
		Proxy: ProxySettings{},
		Cache: CacheSettings{Directory: "cache"},
		Log: LogSettings{
			File:       "cache/logs/moviedbproxy.log",
			Level:      "info",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON or YAML file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// Path returns the settings file location.
func (m *Manager) Path() string { return m.path }

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (m *Manager) isYAML() bool {
	switch strings.ToLower(filepath.Ext(m.path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads the settings file from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return Settings{}, err
	}

	// Decode into a raw map first so legacy layouts can be migrated.
	var raw map[string]interface{}
	if m.isYAML() {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return Settings{}, err
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	migrateLegacyProxy(raw)

	// Round-trip through JSON so both formats share one decode path.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return Settings{}, err
	}
	s := DefaultSettings()
	if err := json.Unmarshal(normalized, &s); err != nil {
		return Settings{}, err
	}
	s.applyDefaults()
	s.Proxy.ProxyType = NormalizeProxyType(s.Proxy.ProxyType)
	return s, nil
}

// legacyProxyKeys are the flat, PascalCase keys written by the media-server
// plugin configuration page.
var legacyProxyKeys = map[string]string{
	"Enable":            "enable",
	"ProxyType":         "proxyType",
	"ProxyUrl":          "proxyUrl",
	"ProxyPort":         "proxyPort",
	"EnableCredentials": "enableCredentials",
	"Login":             "login",
	"Password":          "password",
	"EnableDebugLog":    "enableDebugLog",
}

func migrateLegacyProxy(raw map[string]interface{}) {
	proxy, _ := raw["proxy"].(map[string]interface{})
	moved := false
	for legacy, key := range legacyProxyKeys {
		v, ok := raw[legacy]
		if !ok {
			continue
		}
		if proxy == nil {
			proxy = map[string]interface{}{}
		}
		if _, exists := proxy[key]; !exists {
			proxy[key] = v
		}
		delete(raw, legacy)
		moved = true
	}
	if moved {
		raw["proxy"] = proxy
	}
	// The plugin page stored the port as a string.
	if proxy != nil {
		if port, ok := proxy["proxyPort"].(string); ok {
			var n int
			if err := json.Unmarshal([]byte(strings.TrimSpace(port)), &n); err == nil {
				proxy["proxyPort"] = n
			} else {
				delete(proxy, "proxyPort")
			}
		}
	}
}

func (s *Settings) applyDefaults() {
	d := DefaultSettings()
	if s.Server.Port == 0 {
		s.Server.Port = d.Server.Port
	}
	if strings.TrimSpace(s.Metadata.Language) == "" {
		s.Metadata.Language = d.Metadata.Language
	}
	if strings.TrimSpace(s.Metadata.FallbackLanguage) == "" {
		s.Metadata.FallbackLanguage = d.Metadata.FallbackLanguage
	}
	if strings.TrimSpace(s.Metadata.APIBaseURL) == "" {
		s.Metadata.APIBaseURL = d.Metadata.APIBaseURL
	}
	if s.Metadata.RequestIntervalMs <= 0 {
		s.Metadata.RequestIntervalMs = d.Metadata.RequestIntervalMs
	}
	if s.Metadata.TimeoutSeconds <= 0 {
		s.Metadata.TimeoutSeconds = d.Metadata.TimeoutSeconds
	}
	if s.Metadata.MaxRedirects <= 0 {
		s.Metadata.MaxRedirects = d.Metadata.MaxRedirects
	}
	if strings.TrimSpace(s.Metadata.UserAgent) == "" {
		s.Metadata.UserAgent = d.Metadata.UserAgent
	}
	if s.Metadata.PrefetchWorkers <= 0 {
		s.Metadata.PrefetchWorkers = d.Metadata.PrefetchWorkers
	}
	if s.Metadata.PrefetchAttempts <= 0 {
		s.Metadata.PrefetchAttempts = d.Metadata.PrefetchAttempts
	}
	if strings.TrimSpace(s.Cache.Directory) == "" {
		s.Cache.Directory = d.Cache.Directory
	}
	if strings.TrimSpace(s.Log.Level) == "" {
		s.Log.Level = d.Log.Level
	}
	if s.Log.MaxSize == 0 {
		s.Log.MaxSize = d.Log.MaxSize
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = d.Log.MaxBackups
	}
	if s.Log.MaxAge == 0 {
		s.Log.MaxAge = d.Log.MaxAge
	}
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if m.isYAML() {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}

// Update validates s and persists it. Invalid settings leave the file untouched.
func (m *Manager) Update(s Settings) (Settings, error) {
	s.Proxy.ProxyType = NormalizeProxyType(s.Proxy.ProxyType)
	if err := s.Proxy.Validate(); err != nil {
		return Settings{}, err
	}
	s.applyDefaults()
	if err := m.Save(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
