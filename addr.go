// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import (
	"fmt"
	"strconv"
	"strings"
)

// ProxyType identifies which proxy protocol a Proxy descriptor speaks.
type ProxyType int

const (
	ProxyHTTP ProxyType = iota
	ProxySOCKS4
	ProxySOCKS5
)

func (t ProxyType) String() string {
	switch t {
	case ProxyHTTP:
		return "HTTP"
	case ProxySOCKS4:
		return "SOCKS4"
	case ProxySOCKS5:
		return "SOCKS5"
	default:
		return "HTTP"
	}
}

func ParseProxyType(raw string) (ProxyType, error) {
	switch strings.ToUpper(raw) {
	case "HTTP":
		return ProxyHTTP, nil
	case "SOCKS4":
		return ProxySOCKS4, nil
	case "SOCKS5":
		return ProxySOCKS5, nil
	default:
		return 0, newErr(KindProto, "unknown proxy type "+raw, nil)
	}
}

// Endpoint is a (host, port, use-TLS) triple. Host may be a DNS name,
// an IPv4 literal, or a bracketed IPv6 literal.
type Endpoint struct {
	Host string
	Port uint16
	TLS  bool
}

// ParseEndpoint parses the caller-facing host endpoint syntax:
// HOST[:PORT]['/ssl'], where HOST may be a bracketed IPv6 literal.
func ParseEndpoint(raw string) (Endpoint, error) {
	var ep Endpoint

	if strings.HasSuffix(raw, "/ssl") {
		ep.TLS = true
		raw = strings.TrimSuffix(raw, "/ssl")
	}

	if raw == "" {
		return ep, newErr(KindProto, "empty host endpoint", nil)
	}

	if raw[0] == '[' {
		end := strings.IndexByte(raw, ']')
		if end < 0 {
			return ep, newErr(KindProto, "unterminated ipv6 literal in "+raw, nil)
		}
		ep.Host = raw[1:end]
		rest := raw[end+1:]
		if rest != "" {
			if rest[0] != ':' {
				return ep, newErr(KindProto, "malformed host endpoint "+raw, nil)
			}
			port, err := strconv.ParseUint(rest[1:], 10, 16)
			if err != nil {
				return ep, newErr(KindProto, "malformed port in "+raw, err)
			}
			ep.Port = uint16(port)
		}
		return ep, nil
	}

	if idx := strings.LastIndexByte(raw, ':'); idx >= 0 && !strings.Contains(raw[idx+1:], ":") {
		port, err := strconv.ParseUint(raw[idx+1:], 10, 16)
		if err != nil {
			return ep, newErr(KindProto, "malformed port in "+raw, err)
		}
		ep.Host = raw[:idx]
		ep.Port = uint16(port)
		return ep, nil
	}

	ep.Host = raw
	return ep, nil
}

func (ep Endpoint) String() string {
	host := ep.Host
	if strings.ContainsRune(host, ':') {
		host = "[" + host + "]"
	}
	s := host
	if ep.Port != 0 {
		s = fmt.Sprintf("%s:%d", host, ep.Port)
	}
	if ep.TLS {
		s += "/ssl"
	}
	return s
}

// DefaultPort returns the conventional port for ep's TLS setting: 6667
// plain, 6697 TLS.
func (ep Endpoint) DefaultPort() uint16 {
	if ep.TLS {
		return 6697
	}
	return 6667
}

// Proxy is the optional proxy descriptor: a (type, host, port). SOCKS4
// only supports IPv4 destinations.
type Proxy struct {
	Type ProxyType
	Host string
	Port uint16
}

// ParseProxy parses the caller-facing "TYPE:host-endpoint" syntax.
func ParseProxy(raw string) (Proxy, error) {
	var px Proxy
	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return px, newErr(KindProto, "malformed proxy spec "+raw, nil)
	}
	typ, err := ParseProxyType(raw[:idx])
	if err != nil {
		return px, err
	}
	ep, err := ParseEndpoint(raw[idx+1:])
	if err != nil {
		return px, err
	}
	px.Type = typ
	px.Host = ep.Host
	px.Port = ep.Port
	if px.Port == 0 {
		px.Port = ep.DefaultPort()
	}
	return px, nil
}

// Candidate is one resolved address from an Address list: the
// displayable address, the requested hostname, the port, and whether it
// is an IPv6 candidate.
type Candidate struct {
	Display  string
	Hostname string
	Port     uint16
	IsIPv6   bool
}
