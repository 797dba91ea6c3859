package entityset

import (
	"math/rand/v2"
	"slices"

	"github.com/roach88/bindery/internal/entity"
)

// Container operations. Each works on the membership as it was when the call
// started, so callbacks may add or remove members freely.

// Each calls fn for every member in order.
func (s *Set) Each(fn func(m *entity.Entity, i int)) {
	for i, m := range s.models {
		fn(m, i)
	}
}

// Map returns fn applied to every member of s.
func Map[T any](s *Set, fn func(m *entity.Entity, i int) T) []T {
	models := s.models
	out := make([]T, len(models))
	for i, m := range models {
		out[i] = fn(m, i)
	}
	return out
}

// Reduce folds the members left to right.
func Reduce[T any](s *Set, fn func(acc T, m *entity.Entity, i int) T, init T) T {
	acc := init
	for i, m := range s.models {
		acc = fn(acc, m, i)
	}
	return acc
}

// ReduceRight folds the members right to left.
func ReduceRight[T any](s *Set, fn func(acc T, m *entity.Entity, i int) T, init T) T {
	models := s.models
	acc := init
	for i := len(models) - 1; i >= 0; i-- {
		acc = fn(acc, models[i], i)
	}
	return acc
}

// GroupBy groups the members by key, preserving order within each group.
func GroupBy[K comparable](s *Set, key func(m *entity.Entity) K) map[K][]*entity.Entity {
	out := make(map[K][]*entity.Entity)
	for _, m := range s.models {
		k := key(m)
		out[k] = append(out[k], m)
	}
	return out
}

// CountBy counts the members per key.
func CountBy[K comparable](s *Set, key func(m *entity.Entity) K) map[K]int {
	out := make(map[K]int)
	for _, m := range s.models {
		out[key(m)]++
	}
	return out
}

// IndexBy maps each key to the last member producing it.
func IndexBy[K comparable](s *Set, key func(m *entity.Entity) K) map[K]*entity.Entity {
	out := make(map[K]*entity.Entity)
	for _, m := range s.models {
		out[key(m)] = m
	}
	return out
}

// Filter returns the members pred accepts.
func (s *Set) Filter(pred func(m *entity.Entity, i int) bool) []*entity.Entity {
	out := []*entity.Entity{}
	for i, m := range s.models {
		if pred(m, i) {
			out = append(out, m)
		}
	}
	return out
}

// Reject returns the members pred refuses.
func (s *Set) Reject(pred func(m *entity.Entity, i int) bool) []*entity.Entity {
	return s.Filter(func(m *entity.Entity, i int) bool { return !pred(m, i) })
}

// Partition splits the members into those pred accepts and the rest.
func (s *Set) Partition(pred func(m *entity.Entity, i int) bool) (pass, fail []*entity.Entity) {
	pass, fail = []*entity.Entity{}, []*entity.Entity{}
	for i, m := range s.models {
		if pred(m, i) {
			pass = append(pass, m)
		} else {
			fail = append(fail, m)
		}
	}
	return pass, fail
}

// Find returns the first member pred accepts, or nil.
func (s *Set) Find(pred func(m *entity.Entity, i int) bool) *entity.Entity {
	if i := s.FindIndex(pred); i >= 0 {
		return s.models[i]
	}
	return nil
}

// FindIndex returns the index of the first member pred accepts, or -1.
func (s *Set) FindIndex(pred func(m *entity.Entity, i int) bool) int {
	for i, m := range s.models {
		if pred(m, i) {
			return i
		}
	}
	return -1
}

// FindLastIndex returns the index of the last member pred accepts, or -1.
func (s *Set) FindLastIndex(pred func(m *entity.Entity, i int) bool) int {
	models := s.models
	for i := len(models) - 1; i >= 0; i-- {
		if pred(models[i], i) {
			return i
		}
	}
	return -1
}

// Some reports whether pred accepts any member.
func (s *Set) Some(pred func(m *entity.Entity, i int) bool) bool {
	return s.FindIndex(pred) >= 0
}

// Every reports whether pred accepts every member.
func (s *Set) Every(pred func(m *entity.Entity, i int) bool) bool {
	return s.FindIndex(func(m *entity.Entity, i int) bool { return !pred(m, i) }) < 0
}

// Contains reports whether m is a member (by identity).
func (s *Set) Contains(m *entity.Entity) bool {
	return slices.Contains(s.models, m)
}

// SortBy returns the members stably sorted by key, using the CompareKeys
// order. The set itself is not reordered.
func (s *Set) SortBy(key func(m *entity.Entity) any) []*entity.Entity {
	out := slices.Clone(s.models)
	sortByKey(out, key)
	return out
}

// Min returns the member with the smallest key, or nil for an empty set.
func (s *Set) Min(key func(m *entity.Entity) any) *entity.Entity {
	return s.extreme(key, -1)
}

// Max returns the member with the largest key, or nil for an empty set.
func (s *Set) Max(key func(m *entity.Entity) any) *entity.Entity {
	return s.extreme(key, 1)
}

func (s *Set) extreme(key func(m *entity.Entity) any, sign int) *entity.Entity {
	var best *entity.Entity
	var bestKey any
	for _, m := range s.models {
		k := key(m)
		if best == nil || CompareKeys(k, bestKey)*sign > 0 {
			best, bestKey = m, k
		}
	}
	return best
}

// First returns the first member, or nil.
func (s *Set) First() *entity.Entity { return s.At(0) }

// Last returns the last member, or nil.
func (s *Set) Last() *entity.Entity { return s.At(-1) }

// Take returns the first n members.
func (s *Set) Take(n int) []*entity.Entity { return s.Slice(0, max(n, 0)) }

// Initial returns every member but the last n.
func (s *Set) Initial(n int) []*entity.Entity { return s.Slice(0, max(len(s.models)-n, 0)) }

// Rest returns every member after the first n.
func (s *Set) Rest(n int) []*entity.Entity { return s.Slice(max(n, 0), len(s.models)) }

// Without returns the members other than the given entities.
func (s *Set) Without(ms ...*entity.Entity) []*entity.Entity {
	return s.Filter(func(m *entity.Entity, _ int) bool { return !slices.Contains(ms, m) })
}

// Difference returns the members not present in any of the lists.
func (s *Set) Difference(lists ...[]*entity.Entity) []*entity.Entity {
	return s.Filter(func(m *entity.Entity, _ int) bool {
		for _, l := range lists {
			if slices.Contains(l, m) {
				return false
			}
		}
		return true
	})
}

// Shuffle returns the members in random order.
func (s *Set) Shuffle() []*entity.Entity {
	out := slices.Clone(s.models)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Sample returns up to n distinct members chosen at random.
func (s *Set) Sample(n int) []*entity.Entity {
	out := s.Shuffle()
	return out[:min(max(n, 0), len(out))]
}

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool { return len(s.models) == 0 }

// ToSlice returns the members in order.
func (s *Set) ToSlice() []*entity.Entity { return s.Models() }
