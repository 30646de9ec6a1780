package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ErrProxyConfigInvalid is returned when proxy settings are rejected.
var ErrProxyConfigInvalid = errors.New("proxy config invalid")

const (
	ProxyTypeNone   = ""
	ProxyTypeHTTP   = "HTTP"
	ProxyTypeSOCKS4 = "SOCKS4"
	ProxyTypeSOCKS5 = "SOCKS5"
)

// ProxyTypes lists every accepted ProxyType value.
var ProxyTypes = []string{ProxyTypeNone, ProxyTypeHTTP, ProxyTypeSOCKS4, ProxyTypeSOCKS5}

// ProxySettings describes the optional outbound proxy for TMDB and image traffic.
type ProxySettings struct {
	Enable            bool   `json:"enable" yaml:"enable"`
	ProxyType         string `json:"proxyType" yaml:"proxyType"`
	ProxyURL          string `json:"proxyUrl" yaml:"proxyUrl"`
	ProxyPort         int    `json:"proxyPort" yaml:"proxyPort"`
	EnableCredentials bool   `json:"enableCredentials" yaml:"enableCredentials"`
	Login             string `json:"login" yaml:"login"`
	Password          string `json:"password" yaml:"password"`
	EnableDebugLog    bool   `json:"enableDebugLog" yaml:"enableDebugLog"`
}

// NormalizeProxyType upper-cases and trims a proxy type.
func NormalizeProxyType(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

func proxyError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProxyConfigInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the settings before they are applied to a live transport.
func (p ProxySettings) Validate() error {
	kind := NormalizeProxyType(p.ProxyType)
	allowed := false
	for _, t := range ProxyTypes {
		if kind == t {
			allowed = true
			break
		}
	}
	if !allowed {
		return proxyError("unsupported proxy type %q (allowed: HTTP, SOCKS4, SOCKS5)", p.ProxyType)
	}
	if !p.Enable {
		return nil
	}
	if kind == ProxyTypeNone {
		return proxyError("proxy type is required when the proxy is enabled")
	}
	if p.Host() == "" {
		return proxyError("proxy host is required (got %q)", p.ProxyURL)
	}
	if p.ProxyPort < 1 || p.ProxyPort > 65535 {
		return proxyError("proxy port %d out of range 1-65535", p.ProxyPort)
	}
	if p.EnableCredentials {
		if strings.TrimSpace(p.Login) == "" {
			return proxyError("proxy login is required when credentials are enabled")
		}
		if p.Password == "" {
			return proxyError("proxy password is required when credentials are enabled")
		}
	}
	return nil
}

// Host returns the proxy host with any scheme or path the user pasted removed.
func (p ProxySettings) Host() string {
	host := strings.TrimSpace(p.ProxyURL)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.Trim(host, "[]")
}

// Scheme returns the lower-case URL scheme for the proxy type.
func (p ProxySettings) Scheme() string {
	return strings.ToLower(NormalizeProxyType(p.ProxyType))
}

// Address returns the advertised "scheme://host:port" form, or "" when disabled.
func (p ProxySettings) Address() string {
	if !p.Enable || NormalizeProxyType(p.ProxyType) == ProxyTypeNone {
		return ""
	}
	return p.Scheme() + "://" + net.JoinHostPort(p.Host(), strconv.Itoa(p.ProxyPort))
}

// URL returns the proxy URL including credentials when enabled.
func (p ProxySettings) URL() *url.URL {
	if p.Address() == "" {
		return nil
	}
	u := &url.URL{
		Scheme: p.Scheme(),
		Host:   net.JoinHostPort(p.Host(), strconv.Itoa(p.ProxyPort)),
	}
	if p.EnableCredentials {
		u.User = url.UserPassword(p.Login, p.Password)
	}
	return u
}

// Redacted returns a copy safe to log or return over the API.
func (p ProxySettings) Redacted() ProxySettings {
	if p.Password != "" {
		p.Password = "********"
	}
	return p
}
