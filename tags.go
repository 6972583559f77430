// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import "strings"

// Tags represents the IRCv3 message-tags prefix of a line (the part
// between a leading '@' and the following space, see
// https://ircv3.net/specs/extensions/message-tags). Decoding is lazy:
// ParseTags only splits on ';', leaving per-tag unescaping until a tag
// is actually queried through Get.
type Tags map[string]string

// MaxTagCount bounds the number of tags accepted from ParseTags. A line
// offering more is not an error; the overflow tags are simply dropped.
const MaxTagCount = 64

// ParseTags splits the raw tag string (without the leading '@') into a
// Tags map, unescaping each value per the IRCv3 escaping rules.
func ParseTags(raw string) Tags {
	if raw == "" {
		return Tags{}
	}
	parts := strings.Split(raw, ";")
	t := make(Tags, len(parts))
	for i, p := range parts {
		if i >= MaxTagCount {
			break
		}
		if p == "" {
			continue
		}
		key, val, hasVal := strings.Cut(p, "=")
		if key == "" {
			continue
		}
		if hasVal {
			t[key] = tagDecode(val)
		} else {
			t[key] = ""
		}
	}
	return t
}

// Get returns the unescaped value for key and whether it was present.
func (t Tags) Get(key string) (string, bool) {
	v, ok := t[key]
	return v, ok
}

// Set assigns key to val (escaped on encode, not on Set).
func (t Tags) Set(key, val string) {
	t[key] = val
}

// Remove deletes key from t.
func (t Tags) Remove(key string) {
	delete(t, key)
}

// Len reports the number of tags.
func (t Tags) Len() int { return len(t) }

// Bytes renders t back into the raw on-wire form, without the leading
// '@' or trailing space. Iteration order is unspecified (map-backed);
// callers round-tripping a line verbatim should keep the raw string
// instead of re-encoding.
func (t Tags) Bytes() []byte {
	if len(t) == 0 {
		return nil
	}
	var b strings.Builder
	first := true
	for k, v := range t {
		if !first {
			b.WriteByte(';')
		}
		first = false
		b.WriteString(k)
		if v != "" {
			b.WriteByte('=')
			b.WriteString(tagEncode(v))
		}
	}
	return []byte(b.String())
}

func (t Tags) String() string { return string(t.Bytes()) }

// tagDecodeReplacer implements the IRCv3 tag-value unescape table:
// \: -> ; , \s -> space, \\ -> \, \r -> CR, \n -> LF. Any other \X
// (including a trailing lone backslash) drops the backslash, per the
// spec's "ignore an unrecognized escape" tolerance.
var tagDecodeReplacer = strings.NewReplacer(
	`\:`, ";",
	`\s`, " ",
	`\r`, "\r",
	`\n`, "\n",
	`\\`, "\\",
)

func tagDecode(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	return tagDecodeReplacer.Replace(s)
}

// tagEncodeReplacer is the inverse of tagDecodeReplacer, applied on
// Bytes()/Set() round-trips for values built programmatically.
var tagEncodeReplacer = strings.NewReplacer(
	"\\", `\\`,
	";", `\:`,
	" ", `\s`,
	"\r", `\r`,
	"\n", `\n`,
)

func tagEncode(s string) string {
	return tagEncodeReplacer.Replace(s)
}

// validTagKey reports whether key is a syntactically valid tag key:
// an optional vendor prefix ("vendor.tld/"), then one or more of
// [A-Za-z0-9-].
func validTagKey(key string) bool {
	if key == "" {
		return false
	}
	if i := strings.IndexByte(key, '/'); i >= 0 {
		if i == 0 {
			return false
		}
		key = key[i+1:]
	}
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '+') {
			return false
		}
	}
	return true
}
