package dirty

// mapPayload is an insertion-ordered mapping.
type mapPayload[K comparable, V comparable] struct {
	keys   []K
	values map[K]V
}

func cloneMapPayload[K comparable, V comparable](p mapPayload[K, V]) mapPayload[K, V] {
	out := mapPayload[K, V]{
		keys:   make([]K, len(p.keys)),
		values: make(map[K]V, len(p.values)),
	}
	copy(out.keys, p.keys)
	for k, v := range p.values {
		out.values[k] = v
	}
	return out
}

// equalMapPayload compares keys in order, then their values. Entries are
// rendered in key order, so a reordered map is a changed map.
func equalMapPayload[K comparable, V comparable](a, b mapPayload[K, V]) bool {
	if len(a.keys) != len(b.keys) {
		return false
	}
	for i, k := range a.keys {
		if b.keys[i] != k || a.values[k] != b.values[k] {
			return false
		}
	}
	return true
}

// Map is an insertion-ordered mapping with dirty tracking.
type Map[K comparable, V comparable] struct {
	Container[mapPayload[K, V]]
}

// NewMap creates an empty, clean Map.
func NewMap[K comparable, V comparable]() *Map[K, V] {
	return &Map[K, V]{
		Container: newContainer(
			mapPayload[K, V]{values: make(map[K]V)},
			cloneMapPayload[K, V],
			equalMapPayload[K, V],
		),
	}
}

// Get returns the value stored for key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	v, ok := m.current.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.current.values[key]
	return ok
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return len(m.current.keys)
}

// Keys returns the keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, len(m.current.keys))
	copy(keys, m.current.keys)
	return keys
}

// Each calls fn for every entry in insertion order.
func (m *Map[K, V]) Each(fn func(key K, value V)) {
	for _, k := range m.current.keys {
		fn(k, m.current.values[k])
	}
}

// ToMap returns a copy of the entries as a plain map.
func (m *Map[K, V]) ToMap() map[K]V {
	out := make(map[K]V, len(m.current.values))
	for k, v := range m.current.values {
		out[k] = v
	}
	return out
}

// Set stores value for key. New keys are appended to the order.
func (m *Map[K, V]) Set(key K, value V) {
	m.mutate(func(p mapPayload[K, V]) mapPayload[K, V] {
		if _, ok := p.values[key]; !ok {
			p.keys = append(p.keys, key)
		}
		p.values[key] = value
		return p
	})
}

// Delete removes key and reports whether it was present.
func (m *Map[K, V]) Delete(key K) bool {
	found := false
	m.mutate(func(p mapPayload[K, V]) mapPayload[K, V] {
		if _, ok := p.values[key]; !ok {
			return p
		}
		found = true
		delete(p.values, key)
		for i, k := range p.keys {
			if k == key {
				p.keys = append(p.keys[:i], p.keys[i+1:]...)
				break
			}
		}
		return p
	})
	return found
}

// Clear removes all entries.
func (m *Map[K, V]) Clear() {
	m.mutate(func(p mapPayload[K, V]) mapPayload[K, V] {
		return mapPayload[K, V]{values: make(map[K]V)}
	})
}
