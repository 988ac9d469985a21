package dirty

func cloneSlice[T comparable](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func equalSlice[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// List is an ordered sequence with dirty tracking.
// Elements are compared with ==, so pointer elements compare by identity.
type List[T comparable] struct {
	Container[[]T]
}

// NewList creates a clean List holding items.
func NewList[T comparable](items ...T) *List[T] {
	return &List[T]{
		Container: newContainer(cloneSlice(items), cloneSlice[T], equalSlice[T]),
	}
}

// Len returns the number of elements.
func (l *List[T]) Len() int {
	return len(l.current)
}

// At returns the element at index i.
func (l *List[T]) At(i int) T {
	return l.current[i]
}

// Values returns a copy of the elements.
func (l *List[T]) Values() []T {
	return cloneSlice(l.current)
}

// Index returns the position of the first element equal to v, or -1.
func (l *List[T]) Index(v T) int {
	for i, item := range l.current {
		if item == v {
			return i
		}
	}
	return -1
}

// Contains reports whether v is an element.
func (l *List[T]) Contains(v T) bool {
	return l.Index(v) >= 0
}

// Append adds items to the end.
func (l *List[T]) Append(items ...T) {
	l.mutate(func(s []T) []T {
		return append(s, items...)
	})
}

// Insert adds items before index i. An index past the end appends.
func (l *List[T]) Insert(i int, items ...T) {
	l.mutate(func(s []T) []T {
		if i < 0 {
			i = 0
		}
		if i >= len(s) {
			return append(s, items...)
		}
		out := make([]T, 0, len(s)+len(items))
		out = append(out, s[:i]...)
		out = append(out, items...)
		return append(out, s[i:]...)
	})
}

// Set replaces the element at index i.
func (l *List[T]) Set(i int, v T) {
	l.mutate(func(s []T) []T {
		s[i] = v
		return s
	})
}

// RemoveAt removes and returns the element at index i.
func (l *List[T]) RemoveAt(i int) T {
	var removed T
	l.mutate(func(s []T) []T {
		removed = s[i]
		return append(s[:i], s[i+1:]...)
	})
	return removed
}

// Remove removes the first element equal to v and reports whether one was found.
func (l *List[T]) Remove(v T) bool {
	i := l.Index(v)
	if i < 0 {
		return false
	}
	l.RemoveAt(i)
	return true
}

// Replace swaps the whole content for items.
func (l *List[T]) Replace(items ...T) {
	l.mutate(func([]T) []T {
		return cloneSlice(items)
	})
}

// Clear removes all elements.
func (l *List[T]) Clear() {
	l.mutate(func([]T) []T {
		return nil
	})
}
