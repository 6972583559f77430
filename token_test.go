// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import "testing"

func TestTokenizeSimple(t *testing.T) {
	msg, err := Tokenize("PING :irc.example.net")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Command != "PING" {
		t.Fatalf("Command = %q, want PING", msg.Command)
	}
	if msg.Trailing() != "irc.example.net" {
		t.Fatalf("Trailing() = %q", msg.Trailing())
	}
	if !msg.ColonTrail {
		t.Fatal("expected ColonTrail true")
	}
}

func TestTokenizeWithPrefixAndMultipleParams(t *testing.T) {
	msg, err := Tokenize(":nick!user@host PRIVMSG #chan :hello there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.HasPrefix() || msg.Prefix != "nick!user@host" {
		t.Fatalf("Prefix = %q", msg.Prefix)
	}
	if msg.Command != "PRIVMSG" {
		t.Fatalf("Command = %q", msg.Command)
	}
	if len(msg.Params) != 2 || msg.Params[0] != "#chan" || msg.Params[1] != "hello there" {
		t.Fatalf("Params = %#v", msg.Params)
	}
	src := msg.Source()
	if src == nil || src.Name != "nick" {
		t.Fatalf("Source() = %+v", src)
	}
}

func TestTokenizeCommandLowercasedToUpper(t *testing.T) {
	msg, err := Tokenize("ping :x")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Command != "PING" {
		t.Fatalf("Command = %q, want normalised to PING", msg.Command)
	}
}

func TestTokenizeWithTags(t *testing.T) {
	msg, err := Tokenize("@id=123;account=bob :nick!u@h PRIVMSG #chan :hi")
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := msg.Tags.Get("id"); !ok || v != "123" {
		t.Fatalf("tag id = %q, %v", v, ok)
	}
	if msg.Prefix != "nick!u@h" {
		t.Fatalf("Prefix = %q", msg.Prefix)
	}
}

func TestTokenizeNoTrailing(t *testing.T) {
	msg, err := Tokenize("MODE #chan +o nick")
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Params) != 3 {
		t.Fatalf("Params = %#v", msg.Params)
	}
	if msg.ColonTrail {
		t.Fatal("expected ColonTrail false, no ':' was used")
	}
}

func TestTokenizeErrors(t *testing.T) {
	cases := []string{"", " leading-space", ":onlyaprefix"}
	for _, c := range cases {
		if _, err := Tokenize(c); err == nil {
			t.Errorf("Tokenize(%q) should have failed", c)
		}
	}
}

func TestMessageRoundTrip(t *testing.T) {
	lines := []string{
		"PING :irc.example.net",
		":nick!user@host PRIVMSG #chan :hello there",
		"MODE #chan +o nick",
		"JOIN #chan",
	}
	for _, line := range lines {
		msg, err := Tokenize(line)
		if err != nil {
			t.Fatalf("Tokenize(%q): %v", line, err)
		}
		if got := msg.String(); got != line {
			t.Errorf("round trip of %q gave %q", line, got)
		}
		if msg.Len() != len(msg.String()) {
			t.Errorf("Len() = %d, want %d for %q", msg.Len(), len(msg.String()), line)
		}
	}
}

func TestMessageBytesEmptyTrailingParam(t *testing.T) {
	msg := &Message{Command: "TOPIC", Params: []string{"#chan", ""}}
	if got := msg.String(); got != "TOPIC #chan :" {
		t.Fatalf("String() = %q, want %q", got, "TOPIC #chan :")
	}
}
