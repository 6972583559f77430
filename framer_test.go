// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import (
	"bytes"
	"net"
	"testing"
	"time"
)

func TestFramerReadOneLine(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go client.Write([]byte("PING :irc.example.net\r\n"))

	f := NewFramer(server)
	msg, err := f.ReadOne(2 * time.Second)
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}
	if msg.Command != "PING" || msg.Trailing() != "irc.example.net" {
		t.Fatalf("got %+v", msg)
	}
}

func TestFramerReadOneMultipleLinesInOneWrite(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go client.Write([]byte("PING :one\r\nPING :two\r\n"))

	f := NewFramer(server)
	m1, err := f.ReadOne(2 * time.Second)
	if err != nil {
		t.Fatalf("first ReadOne: %v", err)
	}
	if m1.Trailing() != "one" {
		t.Fatalf("first line = %q, want one", m1.Trailing())
	}
	m2, err := f.ReadOne(2 * time.Second)
	if err != nil {
		t.Fatalf("second ReadOne: %v", err)
	}
	if m2.Trailing() != "two" {
		t.Fatalf("second line = %q, want two", m2.Trailing())
	}
}

func TestFramerReadOneTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	f := NewFramer(server)
	_, err := f.ReadOne(50 * time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	ircErr, ok := err.(*Error)
	if !ok || ircErr.Kind() != KindTimeout {
		t.Fatalf("err = %v, want KindTimeout", err)
	}
}

func TestFramerReadOneEOF(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	client.Close()

	f := NewFramer(server)
	_, err := f.ReadOne(2 * time.Second)
	if err == nil {
		t.Fatal("expected an EOF error")
	}
	ircErr, ok := err.(*Error)
	if !ok || ircErr.Kind() != KindEOF {
		t.Fatalf("err = %v, want KindEOF", err)
	}
	if !f.EOF() {
		t.Fatal("expected Framer.EOF() true after a closed peer")
	}
}

func TestFramerReadOneTooLong(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		chunk := bytes.Repeat([]byte{'x'}, 64)
		for i := 0; i < (RecvBufSize/64)+4; i++ {
			if _, err := client.Write(chunk); err != nil {
				return
			}
		}
	}()

	f := NewFramer(server)
	_, err := f.ReadOne(2 * time.Second)
	if err == nil {
		t.Fatal("expected an error")
	}
	ircErr, ok := err.(*Error)
	if !ok || ircErr.Kind() != KindTooLong {
		t.Fatalf("err = %v, want KindTooLong", err)
	}
}

func TestWriteLineAppendsCRLF(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		if err := WriteLine(client, []byte("NICK bob")); err != nil {
			t.Errorf("WriteLine: %v", err)
		}
	}()

	buf := make([]byte, 16)
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got := string(buf[:n])
	if got != "NICK bob\r\n" {
		t.Fatalf("got %q, want %q", got, "NICK bob\r\n")
	}
}

func TestWriteLineLeavesExistingCRLF(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go WriteLine(client, []byte("NICK bob\r\n"))

	buf := make([]byte, 16)
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "NICK bob\r\n" {
		t.Fatalf("got %q, want unmodified NICK bob\\r\\n", buf[:n])
	}
}
