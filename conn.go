// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"
)

// Conn owns exactly one transport at a time (absent, plain, or TLS-
// wrapped), plus the framer built on top of it once a transport exists.
type Conn struct {
	mu      sync.Mutex
	writeMu sync.Mutex

	server Endpoint
	proxy  *Proxy
	useTLS bool
	tlsCfg *tls.Config
	local  string

	netConn net.Conn
	framer  *Framer
	online  bool
}

// NewConn constructs an unconnected Conn.
func NewConn() *Conn {
	return &Conn{tlsCfg: &tls.Config{}}
}

// SetServer sets the server endpoint.
func (c *Conn) SetServer(host string, port uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.server = Endpoint{Host: host, Port: port}
}

// SetProxy sets the proxy descriptor.
func (c *Conn) SetProxy(host string, port uint16, typ ProxyType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proxy = &Proxy{Type: typ, Host: host, Port: port}
}

// SetSSL toggles TLS-from-the-start.
func (c *Conn) SetSSL(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.useTLS = enabled
}

// SetLocalAddr sets the local bind address. Only the host portion is
// used; Go's net.Dialer binds by IP, not port.
func (c *Conn) SetLocalAddr(host string, _ uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local = host
}

// TLSConfig exposes the TLS config used for SSL/STARTTLS connections so
// callers can set a ServerName, certificate pool, etc. before Connect.
func (c *Conn) TLSConfig() *tls.Config { return c.tlsCfg }

// Server returns the configured server endpoint.
func (c *Conn) Server() Endpoint { return c.server }

// Online reports whether the connection is currently established.
func (c *Conn) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// Connect resolves the real destination (proxy or server), runs the
// timed transport connect, performs the proxy handshake if any, then
// the TLS handshake if SSL was requested up-front (not STARTTLS, which
// Client drives later over an already-online Conn via UpgradeTLS).
func (c *Conn) Connect(ctx context.Context, soft, hard time.Duration) error {
	c.mu.Lock()
	if c.online {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	server := c.server
	proxy := c.proxy
	useTLS := c.useTLS
	local := c.local
	c.mu.Unlock()

	if server.Port == 0 {
		server.Port = server.DefaultPort()
		if useTLS {
			server.Port = 6697
		} else {
			server.Port = 6667
		}
	}

	dialHost, dialPort := server.Host, server.Port
	if proxy != nil {
		dialHost, dialPort = proxy.Host, proxy.Port
	}

	var hardDeadline time.Time
	if hard > 0 {
		hardDeadline = time.Now().Add(hard)
	}

	nc, err := connectSock(ctx, dialHost, dialPort, soft, hard, local)
	if err != nil {
		return err
	}

	if proxy != nil {
		remaining := hard
		if !hardDeadline.IsZero() {
			remaining = time.Until(hardDeadline)
		}
		deadline := time.Now().Add(remaining)
		if remaining <= 0 {
			deadline = time.Now().Add(30 * time.Second)
		}
		if err := proxyHandshake(nc, *proxy, server.Host, server.Port, deadline); err != nil {
			nc.Close()
			return err
		}
	}

	if useTLS {
		tc := tls.Client(nc, c.tlsConfigFor(server.Host))
		if !hardDeadline.IsZero() {
			tc.SetDeadline(hardDeadline)
		}
		if err := tc.Handshake(); err != nil {
			nc.Close()
			return newErr(KindTLS, "TLS handshake failed", err)
		}
		tc.SetDeadline(time.Time{})
		nc = tc
	}

	c.mu.Lock()
	c.netConn = nc
	c.framer = NewFramer(nc)
	c.online = true
	c.mu.Unlock()
	return nil
}

func (c *Conn) tlsConfigFor(host string) *tls.Config {
	cfg := c.tlsCfg.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}

// UpgradeTLS wraps the already-connected plaintext socket with TLS,
// used for the STARTTLS in-band upgrade path.
func (c *Conn) UpgradeTLS() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.online || c.netConn == nil {
		return ErrNotConnected
	}
	tc := tls.Client(c.netConn, c.tlsConfigFor(c.server.Host))
	if err := tc.Handshake(); err != nil {
		return newErr(KindTLS, "STARTTLS handshake failed", err)
	}
	c.netConn = tc
	c.framer = NewFramer(tc)
	return nil
}

// TLSConnectionState returns the negotiated TLS state if the
// connection is TLS-wrapped, or ErrConnNotTLS otherwise.
func (c *Conn) TLSConnectionState() (tls.ConnectionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tc, ok := c.netConn.(*tls.Conn)
	if !ok {
		return tls.ConnectionState{}, ErrConnNotTLS
	}
	return tc.ConnectionState(), nil
}

// Read delegates to the framer. On any non-timeout error it resets the
// connection.
func (c *Conn) Read(timeout time.Duration) (*Message, error) {
	c.mu.Lock()
	framer := c.framer
	online := c.online
	c.mu.Unlock()
	if !online || framer == nil {
		return nil, ErrNotConnected
	}

	msg, err := framer.ReadOne(timeout)
	if err != nil {
		if ircErr, ok := err.(*Error); ok && ircErr.Kind() == KindTimeout {
			return nil, err
		}
		c.reset()
		return nil, err
	}
	return msg, nil
}

// Write delegates to the framer. On failure it resets the connection.
// Serialized by writeMu so the PING keepalive goroutine and the
// caller's own writes never interleave their bytes on the wire.
func (c *Conn) Write(raw []byte) error {
	c.mu.Lock()
	nc := c.netConn
	online := c.online
	c.mu.Unlock()
	if !online || nc == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := WriteLine(nc, raw); err != nil {
		c.reset()
		return err
	}
	return nil
}

// reset closes the socket and TLS session in order and clears the read
// context, transitioning the connection to offline.
func (c *Conn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.netConn != nil {
		c.netConn.Close()
	}
	c.netConn = nil
	c.framer = nil
	c.online = false
}

// Reset forcibly tears down the connection, used by Client on
// disconnect or before a fresh Connect.
func (c *Conn) Reset() { c.reset() }
