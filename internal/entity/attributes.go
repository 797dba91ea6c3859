package entity

import (
	"maps"
	"reflect"
	"sort"
)

// Attributes is an entity's attribute bag. A key that is absent is "unset";
// a key holding nil is set to null.
type Attributes map[string]any

// Clone returns a shallow copy. Cloning nil yields an empty bag.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	return maps.Clone(a)
}

// Keys returns the attribute names in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Pair is one key/value assignment. SetPairs applies pairs in the given order.
type Pair struct {
	Key   string
	Value any
}

// Pairs returns the bag as pairs in sorted key order.
func (a Attributes) Pairs() []Pair {
	pairs := make([]Pair, 0, len(a))
	for _, k := range a.Keys() {
		pairs = append(pairs, Pair{Key: k, Value: a[k]})
	}
	return pairs
}

// AsAttributes converts a decoded JSON object (or an Attributes value) to
// Attributes. Anything else yields nil.
func AsAttributes(v any) Attributes {
	switch m := v.(type) {
	case Attributes:
		return m
	case map[string]any:
		return Attributes(m)
	default:
		return nil
	}
}

// Equal reports whether two attribute values are deeply equal. Numbers compare
// by value regardless of their Go type, so 1 and 1.0 are equal, and maps and
// slices compare element-wise under the same rule.
func Equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Map:
		if vb.Kind() != reflect.Map || va.Type().Key() != vb.Type().Key() || va.Len() != vb.Len() {
			return false
		}
		iter := va.MapRange()
		for iter.Next() {
			other := vb.MapIndex(iter.Key())
			if !other.IsValid() || !Equal(iter.Value().Interface(), other.Interface()) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		if (vb.Kind() != reflect.Slice && vb.Kind() != reflect.Array) || va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !Equal(va.Index(i).Interface(), vb.Index(i).Interface()) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// hasEqual reports whether m holds key with a value equal to v. An absent key
// never equals anything, including nil.
func hasEqual(m Attributes, key string, v any) bool {
	cur, ok := m[key]
	return ok && Equal(cur, v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
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
