package transport

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moviedbproxy/config"
)

func hostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestHTTPProxyRoutesRequests(t *testing.T) {
	type seen struct {
		target string
		auth   string
	}
	seenCh := make(chan seen, 1)
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCh <- seen{target: r.URL.String(), auth: r.Header.Get("Proxy-Authorization")}
		io.WriteString(w, "via proxy")
	}))
	defer proxySrv.Close()

	host, port := hostPort(t, proxySrv.URL)
	settings := config.ProxySettings{
		Enable: true, ProxyType: "HTTP", ProxyURL: host, ProxyPort: port,
		EnableCredentials: true, Login: "user", Password: "pass",
	}
	tr, err := New(settings)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("http://%s:%d", host, port), tr.ProxyAddress())

	resp, err := tr.Send(context.Background(), Request{URL: "http://api.tmdb.test/3/movie/603", BufferContent: true})
	require.NoError(t, err)
	defer resp.Close()
	data, _ := resp.Bytes()
	assert.Equal(t, "via proxy", string(data))

	got := <-seenCh
	assert.Equal(t, "http://api.tmdb.test/3/movie/603", got.target)
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("user:pass")), got.auth)
}

// socksServer accepts SOCKS connections, records the requested destination
// and pipes every connection to upstream regardless of where it asked to go.
func socksServer(t *testing.T, upstream string, handshake func(net.Conn) (string, error)) (string, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	dests := make(chan string, 16)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				dest, err := handshake(c)
				if err != nil {
					return
				}
				dests <- dest
				up, err := net.Dial("tcp", upstream)
				if err != nil {
					return
				}
				defer up.Close()
				go io.Copy(up, c)
				io.Copy(c, up)
			}(c)
		}
	}()
	return ln.Addr().String(), dests
}

func readCString(r io.Reader) (string, error) {
	var out []byte
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(out), nil
		}
		out = append(out, b[0])
	}
}

func socks4Handshake(c net.Conn) (string, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(c, hdr[:]); err != nil {
		return "", err
	}
	if hdr[0] != 4 || hdr[1] != 1 {
		return "", errors.New("not a socks4 connect")
	}
	port := binary.BigEndian.Uint16(hdr[2:4])
	user, err := readCString(c)
	if err != nil {
		return "", err
	}
	host := net.IP(hdr[4:8]).String()
	if hdr[4] == 0 && hdr[5] == 0 && hdr[6] == 0 && hdr[7] != 0 {
		if host, err = readCString(c); err != nil {
			return "", err
		}
	}
	if _, err := c.Write([]byte{0, 0x5a, 0, 0, 0, 0, 0, 0}); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s@%s:%d", user, host, port), nil
}

func socks5Handshake(c net.Conn) (string, error) {
	var greet [2]byte
	if _, err := io.ReadFull(c, greet[:]); err != nil {
		return "", err
	}
	methods := make([]byte, greet[1])
	if _, err := io.ReadFull(c, methods); err != nil {
		return "", err
	}
	if _, err := c.Write([]byte{5, 0}); err != nil {
		return "", err
	}
	var req [4]byte
	if _, err := io.ReadFull(c, req[:]); err != nil {
		return "", err
	}
	var host string
	switch req[3] {
	case 1:
		ip := make([]byte, 4)
		if _, err := io.ReadFull(c, ip); err != nil {
			return "", err
		}
		host = net.IP(ip).String()
	case 3:
		var n [1]byte
		if _, err := io.ReadFull(c, n[:]); err != nil {
			return "", err
		}
		name := make([]byte, n[0])
		if _, err := io.ReadFull(c, name); err != nil {
			return "", err
		}
		host = string(name)
	default:
		return "", errors.New("unsupported address type")
	}
	var port [2]byte
	if _, err := io.ReadFull(c, port[:]); err != nil {
		return "", err
	}
	if _, err := c.Write([]byte{5, 0, 0, 1, 0, 0, 0, 0, 0, 0}); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", host, binary.BigEndian.Uint16(port[:])), nil
}

func upstreamServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSOCKS4ProxyRoutesRequests(t *testing.T) {
	upstream := upstreamServer(t, "socks4 ok")
	addr, dests := socksServer(t, upstream.Listener.Addr().String(), socks4Handshake)
	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	tr, err := New(config.ProxySettings{
		Enable: true, ProxyType: "SOCKS4", ProxyURL: host, ProxyPort: port,
		EnableCredentials: true, Login: "scanner", Password: "unused",
	})
	require.NoError(t, err)
	assert.Equal(t, "socks4://"+addr, tr.ProxyAddress())

	resp, err := tr.Send(context.Background(), Request{URL: "http://image.tmdb.test:8080/t/p/w500/a.jpg", BufferContent: true})
	require.NoError(t, err)
	defer resp.Close()
	data, _ := resp.Bytes()
	assert.Equal(t, "socks4 ok", string(data))
	assert.Equal(t, "scanner@image.tmdb.test:8080", <-dests)
}

func TestSOCKS5ProxyRoutesRequests(t *testing.T) {
	upstream := upstreamServer(t, "socks5 ok")
	addr, dests := socksServer(t, upstream.Listener.Addr().String(), socks5Handshake)
	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	tr, err := New(config.ProxySettings{Enable: true, ProxyType: "SOCKS5", ProxyURL: host, ProxyPort: port})
	require.NoError(t, err)
	assert.Equal(t, "socks5://"+addr, tr.ProxyAddress())

	resp, err := tr.Send(context.Background(), Request{URL: "http://api.tmdb.test/3/configuration", BufferContent: true})
	require.NoError(t, err)
	defer resp.Close()
	data, _ := resp.Bytes()
	assert.Equal(t, "socks5 ok", string(data))
	assert.Equal(t, "api.tmdb.test:80", <-dests)
}

func TestSOCKSProxyUnreachableIsTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	tr, err := New(config.ProxySettings{Enable: true, ProxyType: "SOCKS5", ProxyURL: "127.0.0.1", ProxyPort: addr.Port})
	require.NoError(t, err)
	_, err = tr.Send(context.Background(), Request{URL: "http://api.tmdb.test/3/movie/1"})
	requireKind(t, err, KindTimeout)
}

func TestReconfigureRejectsInvalidSettings(t *testing.T) {
	good := config.ProxySettings{Enable: true, ProxyType: "SOCKS5", ProxyURL: "proxy.lan", ProxyPort: 1080}
	tr, err := New(good)
	require.NoError(t, err)

	err = tr.Reconfigure(config.ProxySettings{Enable: true, ProxyType: "SOCKS5", ProxyURL: "proxy.lan", ProxyPort: 70000})
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrProxyConfigInvalid))
	assert.Equal(t, "socks5://proxy.lan:1080", tr.ProxyAddress())

	_, err = New(config.ProxySettings{Enable: true, ProxyType: "GOPHER", ProxyURL: "x", ProxyPort: 1})
	assert.True(t, errors.Is(err, config.ErrProxyConfigInvalid))
}

func TestReconfigureKeepsInFlightRequests(t *testing.T) {
	unblock := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "first-")
		w.(http.Flusher).Flush()
		select {
		case <-unblock:
		case <-time.After(5 * time.Second):
		}
		io.WriteString(w, "second")
	}))
	defer srv.Close()

	tr := newDirect(t)
	old := tr.current.Load()

	resp, err := tr.Send(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, 1, old.inFlight())

	require.NoError(t, tr.Reconfigure(config.ProxySettings{Enable: true, ProxyType: "HTTP", ProxyURL: "proxy.lan", ProxyPort: 3128}))
	assert.Equal(t, "http://proxy.lan:3128", tr.ProxyAddress())
	assert.NotSame(t, old, tr.current.Load())

	close(unblock)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "first-second", string(data))

	require.NoError(t, resp.Close())
	assert.Equal(t, 0, old.inFlight())
	assert.False(t, old.acquire(), "retired handle must not take new requests")
}

func TestDebugLogFlagTogglesLevel(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{Name: "transport", Output: io.Discard, Level: hclog.Info})
	tr := newDirect(t, WithLogger(logger))
	assert.False(t, logger.IsDebug())

	require.NoError(t, tr.Reconfigure(config.ProxySettings{EnableDebugLog: true}))
	assert.True(t, logger.IsDebug())
	assert.True(t, tr.Settings().EnableDebugLog)

	require.NoError(t, tr.Reconfigure(config.ProxySettings{}))
	assert.False(t, logger.IsDebug())
}

func TestDebugLogFlagRestoresConfiguredLevel(t *testing.T) {
	logger := hclog.New(&hclog.LoggerOptions{Name: "transport", Output: io.Discard, Level: hclog.Warn})
	tr := newDirect(t, WithLogger(logger))
	assert.Equal(t, hclog.Warn, logger.GetLevel())

	require.NoError(t, tr.Reconfigure(config.ProxySettings{EnableDebugLog: true}))
	assert.Equal(t, hclog.Debug, logger.GetLevel())

	require.NoError(t, tr.Reconfigure(config.ProxySettings{}))
	assert.Equal(t, hclog.Warn, logger.GetLevel(), "turning the flag off must not raise the level to info")

	trace := hclog.New(&hclog.LoggerOptions{Name: "transport", Output: io.Discard, Level: hclog.Trace})
	tr = newDirect(t, WithLogger(trace))
	require.NoError(t, tr.Reconfigure(config.ProxySettings{EnableDebugLog: true}))
	assert.Equal(t, hclog.Trace, trace.GetLevel())
}
