package crdt

import "iter"

// Merger is implemented by values that know how to merge with another
// value of the same type. GMap uses it to merge the values behind
// colliding keys.
type Merger[V any] interface {
	Merge(other V) V
}

// KV is one key/value pair, used as the unit a GMap splits into and
// merges from.
type KV[K comparable, V any] struct {
	Key   K
	Value V
}

// GMap is a grow-only map whose values know how to merge with each other.
// Keys are never removed; upserting a key that already exists merges the
// incoming value into the existing one rather than replacing it.
type GMap[K comparable, V Merger[V]] struct {
	entries map[K]V
}

// NewGMap builds an empty GMap.
func NewGMap[K comparable, V Merger[V]]() GMap[K, V] {
	return GMap[K, V]{entries: make(map[K]V)}
}

// Get returns the value at key, if any.
func (m GMap[K, V]) Get(key K) (V, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Upsert merges value into whatever is already stored at key, or inserts
// it outright if the key is new.
func (m GMap[K, V]) Upsert(key K, value V) GMap[K, V] {
	entries := m.entries
	if entries == nil {
		entries = make(map[K]V, 1)
	} else {
		copied := make(map[K]V, len(entries)+1)
		for k, v := range entries {
			copied[k] = v
		}
		entries = copied
	}

	if existing, ok := entries[key]; ok {
		entries[key] = existing.Merge(value)
	} else {
		entries[key] = value
	}

	return GMap[K, V]{entries: entries}
}

// Keys iterates every key in unspecified order.
func (m GMap[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range m.entries {
			if !yield(k) {
				return
			}
		}
	}
}

// All iterates every key/value pair in unspecified order.
func (m GMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, v := range m.entries {
			if !yield(k, v) {
				return
			}
		}
	}
}

// ContainsKey reports whether key has an entry.
func (m GMap[K, V]) ContainsKey(key K) bool {
	_, ok := m.entries[key]
	return ok
}

// Len returns the number of entries.
func (m GMap[K, V]) Len() int { return len(m.entries) }

// IsEmpty reports whether the map has no entries.
func (m GMap[K, V]) IsEmpty() bool { return len(m.entries) == 0 }

// Merge performs a pointwise merge over the union of both maps' key sets.
func (m GMap[K, V]) Merge(other GMap[K, V]) GMap[K, V] {
	result := m
	for k, v := range other.entries {
		result = result.Upsert(k, v)
	}
	return result
}

// Split yields one (key, value) part per entry.
func (m GMap[K, V]) Split() iter.Seq[KV[K, V]] {
	return func(yield func(KV[K, V]) bool) {
		for k, v := range m.entries {
			if !yield(KV[K, V]{Key: k, Value: v}) {
				return
			}
		}
	}
}

// MergePart absorbs one (key, value) part.
func (m GMap[K, V]) MergePart(part KV[K, V]) GMap[K, V] {
	return m.Upsert(part.Key, part.Value)
}
