// Package set is a small generic set.
package set

import (
	"sort"

	"golang.org/x/exp/constraints"
)

type unit = struct{}

// Set is an unordered set of values of type T.
type Set[T comparable] map[T]unit

// New returns an empty set.
func New[T comparable]() Set[T] {
	return make(Set[T])
}

// FromSlice returns a set containing the values in the given slice.
func FromSlice[T comparable](keys []T) Set[T] {
	s := make(Set[T], len(keys))
	for _, x := range keys {
		s.Insert(x)
	}
	return s
}

// Contains checks whether the value is present in the set.
func (s Set[T]) Contains(val T) bool {
	_, ok := s[val]
	return ok
}

// Insert adds the value to the set.
func (s Set[T]) Insert(val T) {
	s[val] = unit{}
}

// Remove removes the value from the set.
func (s Set[T]) Remove(val T) {
	delete(s, val)
}

// ToSlice returns the contents of the set in no particular order.
func (s Set[T]) ToSlice() []T {
	res := make([]T, 0, len(s))
	for val := range s {
		res = append(res, val)
	}
	return res
}

// Sorted returns the contents of an ordered set in ascending order.
func Sorted[T constraints.Ordered](s Set[T]) []T {
	res := s.ToSlice()
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
