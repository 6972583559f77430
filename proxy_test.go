// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestHostType(t *testing.T) {
	cases := map[string]hostKind{
		"irc.example.net": hostDNS,
		"127.0.0.1":       hostIPv4,
		"::1":             hostIPv6,
		"2001:db8::1":     hostIPv6,
	}
	for host, want := range cases {
		if got := hostType(host); got != want {
			t.Errorf("hostType(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestProxyHTTPConnectSuccess(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		buf := make([]byte, 4096)
		n, _ := server.Read(buf)
		_ = n
		server.Write([]byte("HTTP/1.0 200 Connection established\r\n\r\n"))
	}()

	err := proxyHandshake(client, Proxy{Type: ProxyHTTP}, "irc.example.net", 6667, time.Now().Add(2*time.Second))
	if err != nil {
		t.Fatalf("proxyHandshake: %v", err)
	}
}

func TestProxyHTTPConnectRejected(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		buf := make([]byte, 4096)
		server.Read(buf)
		server.Write([]byte("HTTP/1.0 403 Forbidden\r\n\r\n"))
	}()

	err := proxyHandshake(client, Proxy{Type: ProxyHTTP}, "irc.example.net", 6667, time.Now().Add(2*time.Second))
	if err == nil {
		t.Fatal("expected an error for a non-200 CONNECT response")
	}
}

func TestProxySOCKS4Success(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		req := make([]byte, 512)
		n, _ := io.ReadAtLeast(server, req, 9)
		_ = n
		server.Write([]byte{0x00, 0x5a, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	}()

	err := proxyHandshake(client, Proxy{Type: ProxySOCKS4}, "127.0.0.1", 6667, time.Now().Add(2*time.Second))
	if err != nil {
		t.Fatalf("proxyHandshake: %v", err)
	}
}

func TestProxySOCKS4RejectsNonIPv4(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	err := proxyHandshake(client, Proxy{Type: ProxySOCKS4}, "irc.example.net", 6667, time.Now().Add(2*time.Second))
	if err == nil {
		t.Fatal("SOCKS4 against a DNS-name destination should fail")
	}
}

func TestProxySOCKS5SuccessDomainName(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		methodReq := make([]byte, 3)
		io.ReadFull(server, methodReq)
		server.Write([]byte{0x05, 0x00})

		hdr := make([]byte, 5) // ver,cmd,rsv,atyp,domain-len
		io.ReadFull(server, hdr)
		domain := make([]byte, hdr[4])
		io.ReadFull(server, domain)
		port := make([]byte, 2)
		io.ReadFull(server, port)

		server.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	}()

	err := proxyHandshake(client, Proxy{Type: ProxySOCKS5}, "irc.example.net", 6667, time.Now().Add(2*time.Second))
	if err != nil {
		t.Fatalf("proxyHandshake: %v", err)
	}
}

func TestProxySOCKS5RejectedMethod(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		methodReq := make([]byte, 3)
		io.ReadFull(server, methodReq)
		server.Write([]byte{0x05, 0xFF}) // no acceptable methods
	}()

	err := proxyHandshake(client, Proxy{Type: ProxySOCKS5}, "irc.example.net", 6667, time.Now().Add(2*time.Second))
	if err == nil {
		t.Fatal("expected an error when the proxy rejects every auth method")
	}
}
