// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

import "testing"

func TestSkmapPutGetFold(t *testing.T) {
	m := NewSkmap[int](8, CasemapASCII)
	if !m.Put("Alice", 1) {
		t.Fatal("Put returned false for a new key")
	}
	if v, ok := m.Get("ALICE"); !ok || v != 1 {
		t.Fatalf("Get(ALICE) = %d, %v, want 1, true", v, ok)
	}
	if orig, ok := m.OriginalKey("alice"); !ok || orig != "Alice" {
		t.Fatalf("OriginalKey = %q, %v, want Alice, true", orig, ok)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
}

func TestSkmapPutOverwriteKeepsOriginalCase(t *testing.T) {
	m := NewSkmap[int](8, CasemapASCII)
	m.Put("Bob", 1)
	m.Put("BOB", 2)
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (overwrite, not insert)", m.Len())
	}
	v, _ := m.Get("bob")
	if v != 2 {
		t.Fatalf("Get(bob) = %d, want 2", v)
	}
	orig, _ := m.OriginalKey("bob")
	if orig != "Bob" {
		t.Fatalf("OriginalKey = %q, want Bob (first-inserted case retained)", orig)
	}
}

func TestSkmapPutEmptyKeyNoop(t *testing.T) {
	m := NewSkmap[int](4, CasemapASCII)
	if m.Put("", 1) {
		t.Fatal("Put(\"\") should report false")
	}
	if m.Len() != 0 {
		t.Fatal("empty key should not be stored")
	}
}

func TestSkmapDel(t *testing.T) {
	m := NewSkmap[int](4, CasemapASCII)
	m.Put("x", 1)
	if v, ok := m.Del("X"); !ok || v != 1 {
		t.Fatalf("Del(X) = %d, %v, want 1, true", v, ok)
	}
	if _, ok := m.Get("x"); ok {
		t.Fatal("key still present after Del")
	}
	if _, ok := m.Del("x"); ok {
		t.Fatal("Del of an absent key should report false")
	}
}

func TestSkmapIteration(t *testing.T) {
	m := NewSkmap[int](4, CasemapASCII)
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		m.Put(k, v)
	}
	got := map[string]int{}
	for k, v, ok := m.First(); ok; k, v, ok = m.Next() {
		got[k] = v
	}
	if len(got) != len(want) {
		t.Fatalf("iterated %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("iterated %s=%d, want %d", k, got[k], v)
		}
	}
}

func TestSkmapDelIterDuringIteration(t *testing.T) {
	m := NewSkmap[int](1, CasemapASCII) // single bucket forces a chain.
	m.Put("a", 1)
	m.Put("b", 2)
	m.Put("c", 3)

	seen := map[string]bool{}
	for k, _, ok := m.First(); ok; {
		seen[k] = true
		if k == "b" {
			m.DelIter()
			k, _, ok = m.Next()
			continue
		}
		k, _, ok = m.Next()
	}
	if len(seen) != 3 {
		t.Fatalf("expected to visit all 3 entries once, saw %v", seen)
	}
	if m.Len() != 2 {
		t.Fatalf("Len() after DelIter = %d, want 2", m.Len())
	}
	if _, ok := m.Get("b"); ok {
		t.Fatal("b should have been removed by DelIter")
	}
	if _, ok := m.Get("a"); !ok {
		t.Fatal("a should still be present")
	}
	if _, ok := m.Get("c"); !ok {
		t.Fatal("c should still be present")
	}
}

func TestSkmapClear(t *testing.T) {
	m := NewSkmap[int](4, CasemapASCII)
	m.Put("a", 1)
	m.Put("b", 2)
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", m.Len())
	}
	if _, ok := m.First(); ok {
		t.Fatal("First() after Clear should report no entries")
	}
}

func TestSkmapEach(t *testing.T) {
	m := NewSkmap[int](4, CasemapASCII)
	m.Put("a", 1)
	m.Put("b", 2)
	sum := 0
	m.Each(func(_ string, v int) { sum += v })
	if sum != 3 {
		t.Fatalf("Each summed to %d, want 3", sum)
	}
}

func TestSkmapCaseFoldedBucketing(t *testing.T) {
	// Different spellings that fold to the same key must land in the
	// same bucket.
	m := NewSkmap[int](16, CasemapRFC1459)
	m.Put("Work[1]", 1)
	if v, ok := m.Get("WORK{1}"); !ok || v != 1 {
		t.Fatalf("Get(WORK{1}) = %d, %v, want 1, true (RFC1459 {} <-> [])", v, ok)
	}
}
