// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"
)

// proxyHandshake performs the handshake for px against conn, which must
// already be a connected byte stream to px.Host:px.Port. destHost/
// destPort are the ultimate IRC server the proxy should connect onward
// to. Port fields go out in network (big-endian) byte order for both
// SOCKS4 and SOCKS5.
func proxyHandshake(conn net.Conn, px Proxy, destHost string, destPort uint16, deadline time.Time) error {
	if err := conn.SetDeadline(deadline); err != nil {
		return newErr(KindIO, "set proxy handshake deadline", err)
	}
	defer conn.SetDeadline(time.Time{})

	switch px.Type {
	case ProxyHTTP:
		return proxyHTTPConnect(conn, destHost, destPort)
	case ProxySOCKS4:
		return proxySOCKS4(conn, destHost, destPort)
	case ProxySOCKS5:
		return proxySOCKS5(conn, destHost, destPort)
	default:
		return newErr(KindProxy, "unknown proxy type", nil)
	}
}

// proxyHTTPConnect performs the HTTP CONNECT handshake.
func proxyHTTPConnect(conn net.Conn, destHost string, destPort uint16) error {
	target := net.JoinHostPort(destHost, strconv.Itoa(int(destPort)))
	req := fmt.Sprintf("CONNECT %s HTTP/1.0\r\nHost: %s\r\n\r\n", target, target)
	if _, err := conn.Write([]byte(req)); err != nil {
		return newErr(KindProxy, "could not send HTTP CONNECT request", err)
	}

	var resp []byte
	one := make([]byte, 1)
	for !strings.Contains(string(resp), "\r\n\r\n") {
		n, err := conn.Read(one)
		if n == 0 || err != nil {
			return newErr(KindProxy, "HTTP CONNECT response truncated", err)
		}
		resp = append(resp, one[0])
		if len(resp) > RecvBufSize {
			return newErr(KindProxy, "HTTP CONNECT response too large", nil)
		}
	}

	statusLine := strings.SplitN(string(resp), "\r\n", 2)[0]
	fields := strings.Fields(statusLine)
	if len(fields) < 2 || fields[1] != "200" {
		return newErr(KindProxy, "HTTP CONNECT rejected: "+statusLine, nil)
	}
	return nil
}

// proxySOCKS4 performs the SOCKS4 handshake. SOCKS4 only supports IPv4
// destinations; a non-IPv4 destHost fails.
func proxySOCKS4(conn net.Conn, destHost string, destPort uint16) error {
	ip4 := resolveIPv4(destHost)
	if ip4 == nil {
		return newErr(KindProxy, "SOCKS4 does not support non-IPv4 destination "+destHost, nil)
	}

	userid := randIdent(8)
	req := make([]byte, 0, 9+len(userid))
	req = append(req, 0x04, 0x01)
	req = binary.BigEndian.AppendUint16(req, destPort)
	req = append(req, ip4...)
	req = append(req, []byte(userid)...)
	req = append(req, 0x00)

	if _, err := conn.Write(req); err != nil {
		return newErr(KindProxy, "could not send SOCKS4 request", err)
	}

	resp := make([]byte, 8)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return newErr(KindProxy, "SOCKS4 response truncated", err)
	}
	if resp[0] != 0x00 || resp[1] != 0x5a {
		return newErr(KindProxy, fmt.Sprintf("SOCKS4 request rejected (code %#x)", resp[1]), nil)
	}
	return nil
}

// proxySOCKS5 performs the SOCKS5 handshake: no-auth method
// negotiation, then a CONNECT request with an IPv4, IPv6, or
// domain-name (atyp 3) address type.
func proxySOCKS5(conn net.Conn, destHost string, destPort uint16) error {
	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		return newErr(KindProxy, "could not send SOCKS5 method request", err)
	}

	methodResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, methodResp); err != nil {
		return newErr(KindProxy, "SOCKS5 method response truncated", err)
	}
	if methodResp[0] != 0x05 || methodResp[1] != 0x00 {
		return newErr(KindProxy, "SOCKS5 server requires unsupported auth method", nil)
	}

	req := []byte{0x05, 0x01, 0x00}
	switch hostType(destHost) {
	case hostIPv4:
		req = append(req, 0x01)
		req = append(req, net.ParseIP(destHost).To4()...)
	case hostIPv6:
		req = append(req, 0x04)
		req = append(req, net.ParseIP(destHost).To16()...)
	default:
		if len(destHost) > 255 {
			return newErr(KindProxy, "SOCKS5 domain name too long", nil)
		}
		req = append(req, 0x03, byte(len(destHost)))
		req = append(req, []byte(destHost)...)
	}
	req = binary.BigEndian.AppendUint16(req, destPort)

	if _, err := conn.Write(req); err != nil {
		return newErr(KindProxy, "could not send SOCKS5 connect request", err)
	}

	hdr := make([]byte, 4)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return newErr(KindProxy, "SOCKS5 connect response truncated", err)
	}
	if hdr[0] != 0x05 || hdr[1] != 0x00 {
		return newErr(KindProxy, fmt.Sprintf("SOCKS5 connect rejected (code %#x)", hdr[1]), nil)
	}

	var boundLen int
	switch hdr[3] {
	case 0x01:
		boundLen = 4
	case 0x04:
		boundLen = 16
	case 0x03:
		lenByte := make([]byte, 1)
		if _, err := io.ReadFull(conn, lenByte); err != nil {
			return newErr(KindProxy, "SOCKS5 bound address length truncated", err)
		}
		boundLen = int(lenByte[0])
	default:
		return newErr(KindProxy, "SOCKS5 response carried unknown address type", nil)
	}

	discard := make([]byte, boundLen+2) // address + port
	if _, err := io.ReadFull(conn, discard); err != nil {
		return newErr(KindProxy, "SOCKS5 bound address truncated", err)
	}
	return nil
}

type hostKind int

const (
	hostDNS hostKind = iota
	hostIPv4
	hostIPv6
)

// hostType guesses the address family of a destination string: a
// literal containing ':' is IPv6, a dotted-quad is IPv4, anything else
// is a DNS name.
func hostType(host string) hostKind {
	if strings.ContainsRune(host, ':') {
		return hostIPv6
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		return hostIPv4
	}
	return hostDNS
}

func resolveIPv4(host string) net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return ip.To4()
	}
	return nil
}

const identAlphabet = "abcdefghijklmnopqrstuvwxyz"

func randIdent(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = identAlphabet[rand.Intn(len(identAlphabet))]
	}
	return string(b)
}
