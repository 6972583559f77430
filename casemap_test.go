// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import "testing"

func TestBuildTableFolding(t *testing.T) {
	cases := []struct {
		cm       Casemap
		in, want byte
	}{
		{CasemapASCII, 'A', 'a'},
		{CasemapASCII, '{', '{'},
		{CasemapRFC1459, '{', '['},
		{CasemapRFC1459, '}', ']'},
		{CasemapRFC1459, '|', '\\'},
		{CasemapRFC1459, '^', '~'},
		{CasemapStrictRFC1459, '^', '^'},
		{CasemapStrictRFC1459, '{', '['},
	}
	for _, c := range cases {
		if got := Tolower(c.in, c.cm); got != c.want {
			t.Errorf("Tolower(%q, %v) = %q, want %q", c.in, c.cm, got, c.want)
		}
	}
}

func TestTolowerIdempotent(t *testing.T) {
	for cm := CasemapRFC1459; cm <= CasemapASCII; cm++ {
		for c := 0; c < 256; c++ {
			once := Tolower(byte(c), cm)
			twice := Tolower(once, cm)
			if once != twice {
				t.Fatalf("Tolower not idempotent for %d under %v: %q != %q", c, cm, once, twice)
			}
		}
	}
}

func TestIstrcmpFoldedEquivalence(t *testing.T) {
	// Comparing already-folded strings should agree with comparing the originals.
	pairs := [][2]string{
		{"Bob", "BOB"}, {"alice[work]", "ALICE{WORK}"}, {"x", "y"}, {"", ""},
	}
	for cm := CasemapRFC1459; cm <= CasemapASCII; cm++ {
		for _, p := range pairs {
			want := Istrcmp(p[0], p[1], cm)
			got := Istrcmp(Strtolower(p[0], cm), Strtolower(p[1], cm), cm)
			if (want == 0) != (got == 0) {
				t.Fatalf("fold-equivalence broke for %v under %v", p, cm)
			}
		}
	}
}

func TestIstreq(t *testing.T) {
	if !Istreq("Bob", "BOB", CasemapASCII) {
		t.Fatal("expected Bob == BOB under ASCII casemap")
	}
	if Istreq("Bob", "Bobby", CasemapASCII) {
		t.Fatal("expected Bob != Bobby")
	}
}

func TestParseCasemap(t *testing.T) {
	cases := map[string]Casemap{
		"ascii":          CasemapASCII,
		"strict-rfc1459": CasemapStrictRFC1459,
		"rfc1459":        CasemapRFC1459,
		"":               CasemapRFC1459,
		"bogus":          CasemapRFC1459,
	}
	for raw, want := range cases {
		if got := ParseCasemap(raw); got != want {
			t.Errorf("ParseCasemap(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestIstrncmp(t *testing.T) {
	if Istrncmp("BobSmith", "bobJones", 3, CasemapASCII) != 0 {
		t.Fatal("expected first 3 folded bytes to match")
	}
}
