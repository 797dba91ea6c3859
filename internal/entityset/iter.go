package entityset

import (
	"iter"

	"github.com/roach88/bindery/internal/entity"
)

// Values yields the members in order. The length is re-read at every step, so
// a set truncated during iteration ends the sequence early.
func (s *Set) Values() iter.Seq[*entity.Entity] {
	return func(yield func(*entity.Entity) bool) {
		for i := 0; i < len(s.models); i++ {
			if !yield(s.models[i]) {
				return
			}
		}
	}
}

// Keys yields each member's ModelID in order.
func (s *Set) Keys() iter.Seq[any] {
	return func(yield func(any) bool) {
		for i := 0; i < len(s.models); i++ {
			if !yield(s.ModelID(s.models[i].Attributes())) {
				return
			}
		}
	}
}

// Entries yields (ModelID, member) pairs in order.
func (s *Set) Entries() iter.Seq2[any, *entity.Entity] {
	return func(yield func(any, *entity.Entity) bool) {
		for i := 0; i < len(s.models); i++ {
			m := s.models[i]
			if !yield(s.ModelID(m.Attributes()), m) {
				return
			}
		}
	}
}
