package dirty

import "strings"

// Set is an ordered set of strings with dirty tracking, used for id and class lists.
type Set struct {
	list *List[string]
}

// NewSet creates a clean Set. Duplicates in values are dropped.
func NewSet(values ...string) *Set {
	s := &Set{list: NewList[string]()}
	s.Add(values...)
	s.list.Clean()
	return s
}

// Dirty reports whether the set changed since the last Clean.
func (s *Set) Dirty() bool {
	return s.list.Dirty()
}

// Clean snapshots the current content and clears the dirty flag.
func (s *Set) Clean() {
	s.list.Clean()
}

// Len returns the number of values.
func (s *Set) Len() int {
	return s.list.Len()
}

// Values returns the values in insertion order.
func (s *Set) Values() []string {
	return s.list.Values()
}

// Has reports whether value is in the set.
func (s *Set) Has(value string) bool {
	return s.list.Contains(value)
}

// Add appends values that are not present yet. Empty strings are ignored.
func (s *Set) Add(values ...string) {
	var fresh []string
	for _, v := range values {
		if v == "" || s.list.Contains(v) || containsString(fresh, v) {
			continue
		}
		fresh = append(fresh, v)
	}
	if len(fresh) == 0 {
		return
	}
	s.list.Append(fresh...)
}

// Remove deletes values from the set.
func (s *Set) Remove(values ...string) {
	for _, v := range values {
		s.list.Remove(v)
	}
}

// Toggle removes value if present and adds it otherwise.
func (s *Set) Toggle(value string) {
	if s.Has(value) {
		s.Remove(value)
		return
	}
	s.Add(value)
}

// Replace swaps the whole content for values.
func (s *Set) Replace(values ...string) {
	var unique []string
	for _, v := range values {
		if v != "" && !containsString(unique, v) {
			unique = append(unique, v)
		}
	}
	s.list.Replace(unique...)
}

// Clear removes all values.
func (s *Set) Clear() {
	s.list.Clear()
}

// String joins the values with single spaces.
func (s *Set) String() string {
	return strings.Join(s.list.Values(), " ")
}

func containsString(values []string, v string) bool {
	for _, item := range values {
		if item == v {
			return true
		}
	}
	return false
}
