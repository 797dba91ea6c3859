package entityset

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/roach88/bindery/internal/entity"
)

// Comparator orders the members of a Set. It is one of Attr, KeyFunc,
// LessFunc or CompareFunc.
type Comparator interface {
	sortEntities(models []*entity.Entity)
	sortAttribute() string
}

// Attr sorts by the value of one attribute.
type Attr string

// KeyFunc sorts by an extracted key.
type KeyFunc func(e *entity.Entity) any

// CompareFunc sorts by direct comparison, returning a negative number when a
// sorts before b, zero when equal and a positive number otherwise.
type CompareFunc func(a, b *entity.Entity) int

// LessFunc sorts by direct comparison.
type LessFunc func(a, b *entity.Entity) bool

func (a Attr) sortEntities(models []*entity.Entity) {
	sortByKey(models, func(e *entity.Entity) any { return e.Get(string(a)) })
}

func (a Attr) sortAttribute() string { return string(a) }

func (f KeyFunc) sortEntities(models []*entity.Entity) { sortByKey(models, f) }

func (KeyFunc) sortAttribute() string { return "" }

func (f CompareFunc) sortEntities(models []*entity.Entity) {
	slices.SortStableFunc(models, f)
}

func (CompareFunc) sortAttribute() string { return "" }

func (f LessFunc) sortEntities(models []*entity.Entity) {
	slices.SortStableFunc(models, func(a, b *entity.Entity) int {
		switch {
		case f(a, b):
			return -1
		case f(b, a):
			return 1
		}
		return 0
	})
}

func (LessFunc) sortAttribute() string { return "" }

// sortByKey extracts every key once and sorts stably ascending.
func sortByKey(models []*entity.Entity, key func(*entity.Entity) any) {
	type keyed struct {
		e   *entity.Entity
		key any
	}
	ks := make([]keyed, len(models))
	for i, e := range models {
		ks[i] = keyed{e: e, key: key(e)}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int { return CompareKeys(a.key, b.key) })
	for i, k := range ks {
		models[i] = k.e
	}
}

// CompareKeys is the total order used for sort keys: nil, then booleans
// (false first), then numbers, then strings, then anything else by its
// printed form.
func CompareKeys(a, b any) int {
	ra, rb := keyRank(a), keyRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNil:
		return 0
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case rankNumber:
		fa, _ := number(a)
		fb, _ := number(b)
		return cmp.Compare(fa, fb)
	case rankString:
		return cmp.Compare(a.(string), b.(string))
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

const (
	rankNil = iota
	rankBool
	rankNumber
	rankString
	rankOther
)

func keyRank(v any) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case string:
		return rankString
	}
	if _, ok := number(v); ok {
		return rankNumber
	}
	return rankOther
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
