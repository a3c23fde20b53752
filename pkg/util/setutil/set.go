// Package setutil provides a small generic set backed by map[T]struct{}.
package setutil

import (
	"cmp"
	"slices"
)

// Set is an unordered collection of unique values. The zero value is not usable; use New.
type Set[T cmp.Ordered] struct {
	items map[T]struct{}
}

// New creates a set holding the given values.
func New[T cmp.Ordered](values ...T) Set[T] {
	s := Set[T]{items: make(map[T]struct{}, len(values))}
	s.AddAll(values)
	return s
}

// Add inserts a value.
func (s Set[T]) Add(v T) {
	s.items[v] = struct{}{}
}

// AddAll inserts every value.
func (s Set[T]) AddAll(values []T) {
	for _, v := range values {
		s.items[v] = struct{}{}
	}
}

// Has reports membership. A nil set has no members.
func (s Set[T]) Has(v T) bool {
	if s.items == nil {
		return false
	}
	_, ok := s.items[v]
	return ok
}

// Len returns the number of elements.
func (s Set[T]) Len() int {
	return len(s.items)
}

// Sorted returns the elements in ascending order.
func (s Set[T]) Sorted() []T {
	out := make([]T, 0, len(s.items))
	for v := range s.items {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
