package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

func init() {
	proxy.RegisterDialerType("socks4", newSOCKS4)
	proxy.RegisterDialerType("socks4a", newSOCKS4)
}

// socks4Dialer speaks SOCKS4, switching to the 4a extension when the target
// is a host name so resolution happens on the proxy.
type socks4Dialer struct {
	proxyAddr string
	userID    string
	forward   proxy.Dialer
}

func newSOCKS4(u *url.URL, forward proxy.Dialer) (proxy.Dialer, error) {
	d := &socks4Dialer{proxyAddr: u.Host, forward: forward}
	if u.User != nil {
		d.userID = u.User.Username()
	}
	return d, nil
}

const (
	socks4Version   = 0x04
	socks4Connect   = 0x01
	socks4Granted   = 0x5a
	socks4ReplySize = 8
)

func (d *socks4Dialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

func (d *socks4Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4":
	default:
		return nil, fmt.Errorf("socks4: network %q not supported", network)
	}
	req, err := d.request(addr)
	if err != nil {
		return nil, err
	}

	var conn net.Conn
	if cd, ok := d.forward.(proxy.ContextDialer); ok {
		conn, err = cd.DialContext(ctx, "tcp", d.proxyAddr)
	} else {
		conn, err = d.forward.Dial("tcp", d.proxyAddr)
	}
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("socks4: write request: %w", err)
	}
	var reply [socks4ReplySize]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		conn.Close()
		return nil, fmt.Errorf("socks4: read reply: %w", err)
	}
	if reply[1] != socks4Granted {
		conn.Close()
		return nil, fmt.Errorf("socks4: request rejected (code 0x%02x)", reply[1])
	}
	if !stop() {
		conn.Close()
		return nil, ctx.Err()
	}
	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}

func (d *socks4Dialer) request(addr string) ([]byte, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("socks4: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("socks4: bad port %q", portStr)
	}

	req := []byte{socks4Version, socks4Connect, 0, 0}
	binary.BigEndian.PutUint16(req[2:], uint16(port))

	var hostname string
	if ip := net.ParseIP(host); ip != nil {
		ip4 := ip.To4()
		if ip4 == nil {
			return nil, errors.New("socks4: IPv6 destinations are not supported")
		}
		req = append(req, ip4...)
	} else {
		// 0.0.0.x with x != 0 signals a 4a host name after the user id.
		req = append(req, 0, 0, 0, 1)
		hostname = host
	}
	req = append(req, d.userID...)
	req = append(req, 0)
	if hostname != "" {
		req = append(req, hostname...)
		req = append(req, 0)
	}
	return req, nil
}
