// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

// Casemap identifies an IRC server's case-folding convention, as
// advertised in RPL_ISUPPORT's CASEMAPPING token.
type Casemap int

const (
	// CasemapRFC1459 folds {}|^ onto []\~ in addition to A-Z -> a-z.
	CasemapRFC1459 Casemap = iota
	// CasemapStrictRFC1459 is CasemapRFC1459 without the ^/~ pair.
	CasemapStrictRFC1459
	// CasemapASCII folds only A-Z -> a-z.
	CasemapASCII
)

func (c Casemap) String() string {
	switch c {
	case CasemapRFC1459:
		return "rfc1459"
	case CasemapStrictRFC1459:
		return "strict-rfc1459"
	case CasemapASCII:
		return "ascii"
	default:
		return "rfc1459"
	}
}

// ParseCasemap maps an ISUPPORT CASEMAPPING token to a Casemap constant.
// Unknown values fall back to CasemapRFC1459, matching most ircd
// defaults.
func ParseCasemap(raw string) Casemap {
	switch raw {
	case "ascii":
		return CasemapASCII
	case "strict-rfc1459":
		return CasemapStrictRFC1459
	case "rfc1459", "":
		return CasemapRFC1459
	default:
		return CasemapRFC1459
	}
}

// tables are precomputed 256-byte lowering tables, one per Casemap. Build
// once at init time rather than branching per-byte at comparison time.
var tables = [3]*[256]byte{
	buildTable(true, true),
	buildTable(true, false),
	buildTable(false, false),
}

// buildTable constructs a folding table. rfc1459 enables the {}|  -> []\
// mapping; extended additionally folds ^ -> ~.
func buildTable(rfc1459, extended bool) *[256]byte {
	var t [256]byte
	for i := 0; i < 256; i++ {
		t[i] = byte(i)
	}
	for c := byte('A'); c <= 'Z'; c++ {
		t[c] = c + ('a' - 'A')
	}
	if rfc1459 {
		t['{'] = '['
		t['}'] = ']'
		t['|'] = '\\'
		if extended {
			t['^'] = '~'
		}
	}
	return &t
}

// table returns the lowering table for cm.
func (c Casemap) table() *[256]byte {
	if c < 0 || int(c) >= len(tables) {
		return tables[CasemapRFC1459]
	}
	return tables[c]
}

// Tolower folds a single byte under the given casemap. Idempotent:
// Tolower(Tolower(c, cm), cm) == Tolower(c, cm).
func Tolower(c byte, cm Casemap) byte {
	return cm.table()[c]
}

// Istrcmp compares a and b byte-for-byte after folding under cm, in the
// manner of strcmp: negative if a < b, zero if equal, positive if a > b.
func Istrcmp(a, b string, cm Casemap) int {
	t := cm.table()
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ca, cb := t[a[i]], t[b[i]]
		if ca != cb {
			return int(ca) - int(cb)
		}
	}
	return len(a) - len(b)
}

// Istrncmp compares at most n bytes of a and b after folding under cm.
func Istrncmp(a, b string, n int, cm Casemap) int {
	if len(a) > n {
		a = a[:n]
	}
	if len(b) > n {
		b = b[:n]
	}
	return Istrcmp(a, b, cm)
}

// Istreq reports whether a and b are equal after folding under cm.
func Istreq(a, b string, cm Casemap) bool {
	if len(a) != len(b) {
		return false
	}
	return Istrcmp(a, b, cm) == 0
}

// Strtolower returns a copy of s with every byte folded under cm.
func Strtolower(s string, cm Casemap) string {
	t := cm.table()
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = t[s[i]]
	}
	return string(out)
}
