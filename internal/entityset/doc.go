// Package entityset implements Set, an ordered container of entities indexed
// by client id and business id.
//
// RECONCILIATION:
//
// Set.Set diffs an incoming list against the current members. Items that
// resolve to an existing member are merged into it, unknown items are
// materialized and added, and (unless disabled) members missing from the
// incoming list are removed. Without a comparator a full set replaces the
// member order with the incoming order; with one, the set is re-sorted once
// after all changes are applied. Events fire after the structure is final:
// one "add" per new entity, at most one "sort", at most one "update".
//
// A merge that would not change any attribute is skipped entirely, so setting
// a set to its own members fires nothing.
//
// OWNERSHIP:
//
// An entity may be a member of many sets but records only the first set that
// added it as its Collection. Later sets index it and forward its events
// without taking ownership.
package entityset
