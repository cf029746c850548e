// Package ordered provides a map that remembers the order in which keys were
// first inserted. Invoice output order follows input encounter order, so the
// grouping code uses this instead of a plain map plus a side slice.
package ordered

// Map is an insertion-ordered map. The zero value is not usable; call New.
// A Map is not safe for concurrent use.
type Map[K comparable, V any] struct {
	keys  []K
	index map[K]V
}

// New returns an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{index: make(map[K]V)}
}

// Get returns the value stored under key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	v, ok := m.index[key]
	return v, ok
}

// Set stores value under key. A new key is appended to the order; an
// existing key keeps its original position.
func (m *Map[K, V]) Set(key K, value V) {
	if _, ok := m.index[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.index[key] = value
}

// GetOrCreate returns the value under key, creating it with create() on
// first use.
func (m *Map[K, V]) GetOrCreate(key K, create func() V) V {
	if v, ok := m.index[key]; ok {
		return v
	}
	v := create()
	m.Set(key, v)
	return v
}

// Len returns the number of keys.
func (m *Map[K, V]) Len() int {
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	out := make([]K, len(m.keys))
	copy(out, m.keys)
	return out
}

// Values returns the values in key insertion order.
func (m *Map[K, V]) Values() []V {
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.index[k])
	}
	return out
}

// Each calls fn for every entry in insertion order. Iteration stops early
// when fn returns false.
func (m *Map[K, V]) Each(fn func(key K, value V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.index[k]) {
			return
		}
	}
}
