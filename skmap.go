// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package srsirc

// Skmap is a closed-chaining hash map keyed by string under a specified
// Casemap. It preserves the first-inserted original-case form of each
// key, supports stable iteration, and supports deleting the current
// entry mid-iteration (DelIter). It is not concurrency safe; a Client
// driven from a single goroutine doesn't need it to be. Bucket count is
// fixed at construction and chains are singly linked, with a single
// iteration cursor per map.
type Skmap[V any] struct {
	cm      Casemap
	buckets []*sknode[V]
	size    int

	iterBucket int
	iterPrev   *sknode[V]
	iterCur    *sknode[V]
}

type sknode[V any] struct {
	key  string // original case
	val  V
	next *sknode[V]
}

// NewSkmap creates a Skmap with the given fixed bucket count (e.g. 256
// for channel maps, 4096 for user maps) folding keys under cm.
func NewSkmap[V any](buckets int, cm Casemap) *Skmap[V] {
	if buckets < 1 {
		buckets = 1
	}
	return &Skmap[V]{
		cm:      cm,
		buckets: make([]*sknode[V], buckets),
	}
}

// skhash is a small 64-bit XOR-shift hash over the folded bytes of key,
// reduced modulo the bucket count. It's an index structure, not a
// security boundary, so a cryptographic hash would be overkill.
func skhash(key string, cm Casemap) uint64 {
	t := cm.table()
	var h uint64 = 14695981039346656037 // FNV offset basis, reused as the shift seed.
	for i := 0; i < len(key); i++ {
		h ^= uint64(t[key[i]])
		h *= 1099511628211
		h ^= h >> 33
	}
	return h
}

func (m *Skmap[V]) bucketFor(key string) int {
	return int(skhash(key, m.cm) % uint64(len(m.buckets)))
}

// Put inserts or overwrites key's value. If key already exists (under
// folded comparison), the value is replaced but the original-case key
// string already stored is left untouched. Put on an empty key is a
// no-op and returns false.
func (m *Skmap[V]) Put(key string, val V) bool {
	if key == "" {
		return false
	}
	b := m.bucketFor(key)
	for n := m.buckets[b]; n != nil; n = n.next {
		if Istreq(n.key, key, m.cm) {
			n.val = val
			return true
		}
	}
	m.buckets[b] = &sknode[V]{key: key, val: val, next: m.buckets[b]}
	m.size++
	return true
}

// Get looks up key, returning the stored value and whether it was found.
func (m *Skmap[V]) Get(key string) (val V, ok bool) {
	b := m.bucketFor(key)
	for n := m.buckets[b]; n != nil; n = n.next {
		if Istreq(n.key, key, m.cm) {
			return n.val, true
		}
	}
	return val, false
}

// OriginalKey returns the first-inserted original-case spelling of key,
// if present.
func (m *Skmap[V]) OriginalKey(key string) (orig string, ok bool) {
	b := m.bucketFor(key)
	for n := m.buckets[b]; n != nil; n = n.next {
		if Istreq(n.key, key, m.cm) {
			return n.key, true
		}
	}
	return "", false
}

// Del removes key, returning the removed value (if any) and whether it
// was present.
func (m *Skmap[V]) Del(key string) (val V, ok bool) {
	b := m.bucketFor(key)
	var prev *sknode[V]
	for n := m.buckets[b]; n != nil; n = n.next {
		if Istreq(n.key, key, m.cm) {
			if prev != nil {
				prev.next = n.next
			} else {
				m.buckets[b] = n.next
			}
			if m.iterCur == n {
				m.iterCur = prev
			}
			m.size--
			return n.val, true
		}
		prev = n
	}
	return val, false
}

// Len returns the number of entries in the map.
func (m *Skmap[V]) Len() int { return m.size }

// Clear removes every entry from the map.
func (m *Skmap[V]) Clear() {
	for i := range m.buckets {
		m.buckets[i] = nil
	}
	m.size = 0
	m.iterBucket = 0
	m.iterPrev, m.iterCur = nil, nil
}

// First positions the iteration cursor at the first entry and returns
// it. Behaviour is unspecified if a Put of a new key occurs during
// iteration (matching the source contract); Del and DelIter are safe.
func (m *Skmap[V]) First() (key string, val V, ok bool) {
	m.iterBucket = 0
	m.iterPrev = nil
	m.iterCur = nil
	for m.iterBucket < len(m.buckets) {
		if m.buckets[m.iterBucket] != nil {
			m.iterCur = m.buckets[m.iterBucket]
			return m.iterCur.key, m.iterCur.val, true
		}
		m.iterBucket++
	}
	return "", val, false
}

// Next advances the iteration cursor, returning the next entry.
func (m *Skmap[V]) Next() (key string, val V, ok bool) {
	if m.iterCur != nil {
		if m.iterCur.next != nil {
			m.iterPrev = m.iterCur
			m.iterCur = m.iterCur.next
			return m.iterCur.key, m.iterCur.val, true
		}
		m.iterBucket++
		m.iterPrev = nil
	}
	for m.iterBucket < len(m.buckets) {
		if m.buckets[m.iterBucket] != nil {
			m.iterCur = m.buckets[m.iterBucket]
			return m.iterCur.key, m.iterCur.val, true
		}
		m.iterBucket++
	}
	m.iterCur = nil
	return "", val, false
}

// DelIter removes the entry the iteration cursor currently points at,
// leaving the cursor positioned so that a following Next lands on the
// element after the deleted one.
func (m *Skmap[V]) DelIter() {
	cur := m.iterCur
	if cur == nil {
		return
	}
	if m.iterPrev != nil {
		m.iterPrev.next = cur.next
	} else {
		m.buckets[m.iterBucket] = cur.next
	}
	m.size--
	m.iterCur = m.iterPrev
}

// Each runs fn for every entry in the map in iteration order. fn must
// not mutate the map.
func (m *Skmap[V]) Each(fn func(key string, val V)) {
	for k, v, ok := m.First(); ok; k, v, ok = m.Next() {
		fn(k, v)
	}
}
