package entityset

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/roach88/bindery/internal/entity"
	"github.com/roach88/bindery/internal/events"
	"github.com/roach88/bindery/internal/transport"
)

// Set is an ordered, uniquely indexed container of entities.
//
// Items accepted by Set, Add, Remove and Get are *entity.Entity values,
// attribute bags (entity.Attributes or map[string]any), or bare ids and cids.
// A slice of any of those is treated as a list; anything else is a single
// item. Methods returning the affected entities return a one-element slice
// for a single item.
type Set struct {
	events.Channel

	config  Options
	logger  *slog.Logger
	onModel *events.Callback

	// models is replaced, never mutated in place, so slices handed out
	// earlier stay stable while handlers mutate the set.
	models []*entity.Entity
	byID   map[string]*entity.Entity
}

// New creates a set holding models, which are added silently.
func New(models any, opts *Options) *Set {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Preinitialize != nil {
		opts.Preinitialize(models, opts)
	}

	s := &Set{config: *opts, logger: opts.Logger}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.onModel = events.Func(s.onModelEvent)
	s.resetState()

	if opts.Initialize != nil {
		opts.Initialize(s, models, opts)
	}
	if models != nil {
		o := opts.Entity.Clone()
		o.Silent = true
		s.Reset(models, o)
	}
	return s
}

func (s *Set) resetState() {
	s.models = nil
	s.byID = make(map[string]*entity.Entity)
}

// Kind returns the kind members are materialized as.
func (s *Set) Kind() *entity.Kind { return s.config.Kind }

// Comparator returns the set's comparator, or nil.
func (s *Set) Comparator() Comparator { return s.config.Comparator }

// SetComparator replaces the comparator. The set is not re-sorted.
func (s *Set) SetComparator(c Comparator) { s.config.Comparator = c }

// Logger returns the set's logger.
func (s *Set) Logger() *slog.Logger { return s.logger }

// Len returns the number of members.
func (s *Set) Len() int { return len(s.models) }

// Models returns a copy of the members in order.
func (s *Set) Models() []*entity.Entity { return slices.Clone(s.models) }

// ModelID returns the identity of an attribute bag: the configured ModelID
// hook, or the value of the kind's id attribute.
func (s *Set) ModelID(attrs entity.Attributes) any {
	if s.config.ModelID != nil {
		return s.config.ModelID(attrs)
	}
	return attrs[s.config.Kind.IDAttr()]
}

func (s *Set) idKey(attrs entity.Attributes) (string, bool) {
	id := s.ModelID(attrs)
	if id == nil {
		return "", false
	}
	return transport.IDString(id), true
}

// Parse converts a raw response into items, through the configured hook.
func (s *Set) Parse(resp any, opts *entity.Options) any {
	if s.config.Parse != nil {
		return s.config.Parse(resp, opts)
	}
	return resp
}

// Add merges nothing by default: it adds unknown items and leaves existing
// members alone unless opts.Merge is set. Members are never removed.
func (s *Set) Add(items any, opts *entity.Options) []*entity.Entity {
	o := opts.Clone()
	o.Add = entity.Bool(true)
	o.Remove = entity.Bool(false)
	if o.Merge == nil {
		o.Merge = entity.Bool(false)
	}
	return s.set(items, o)
}

// Set reconciles the set with items: existing members are merged, unknown
// items added and, unless opts.Remove is false, members not in items
// removed. The result holds, in input order, the member each item resolved
// to, or nil for an item that was rejected or not added.
func (s *Set) Set(items any, opts *entity.Options) []*entity.Entity {
	return s.set(items, opts)
}

func (s *Set) set(input any, opts *entity.Options) []*entity.Entity {
	if input == nil {
		return nil
	}

	opts = opts.Clone()
	add := entity.BoolOr(opts.Add, true)
	remove := entity.BoolOr(opts.Remove, true)
	merge := entity.BoolOr(opts.Merge, true)
	opts.Add, opts.Remove, opts.Merge = &add, &remove, &merge

	if _, isEntity := input.(*entity.Entity); opts.Parse && !isEntity {
		if input = s.Parse(input, opts); input == nil {
			input = []any{}
		}
	}
	items, _ := toItems(input)

	at, hasAt := 0, opts.At != nil
	if hasAt {
		at = normalizeAt(*opts.At, len(s.models))
	}

	// set is the reconciled membership in incoming order.
	var set, toAdd, toMerge, toRemove []*entity.Entity
	seen := make(map[*entity.Entity]bool)
	sort := false

	comparator := s.config.Comparator
	sortable := comparator != nil && !hasAt && entity.BoolOr(opts.Sort, true)
	var sortAttr string
	if sortable {
		sortAttr = comparator.sortAttribute()
	}

	result := make([]*entity.Entity, len(items))
	for i, item := range items {
		if existing := s.Get(item); existing != nil {
			if same, _ := item.(*entity.Entity); merge && same != existing {
				attrs := s.itemAttributes(item)
				if opts.Parse {
					attrs = existing.Parse(attrs, opts)
				}
				if existing.Differs(attrs) && existing.Set(attrs, opts) {
					toMerge = append(toMerge, existing)
					if sortable && !sort {
						sort = existing.HasChanged(sortAttr)
					}
				}
			}
			if !seen[existing] {
				seen[existing] = true
				set = append(set, existing)
			}
			result[i] = existing
			continue
		}

		if !add {
			continue
		}
		m, _ := s.prepare(item, opts)
		if m == nil {
			continue
		}
		toAdd = append(toAdd, m)
		s.addReference(m)
		seen[m] = true
		set = append(set, m)
		result[i] = m
	}

	if remove {
		for _, m := range s.models {
			if !seen[m] {
				toRemove = append(toRemove, m)
			}
		}
		if len(toRemove) > 0 {
			s.removeModels(anySlice(toRemove), opts)
		}
	}

	orderChanged := false
	if replace := !sortable && add && remove; replace && len(set) > 0 {
		orderChanged = !slices.Equal(s.models, set)
		s.models = set
	} else if len(toAdd) > 0 {
		if sortable {
			sort = true
		}
		pos := len(s.models)
		if hasAt {
			pos = min(at, pos)
		}
		s.models = slices.Insert(slices.Clone(s.models), pos, toAdd...)
	}

	if sort {
		s.sortModels()
	}

	if len(toAdd)+len(toRemove)+len(toMerge) > 0 {
		s.logger.Debug("set reconciled",
			"added", len(toAdd),
			"removed", len(toRemove),
			"merged", len(toMerge),
			"sorted", sort || orderChanged,
		)
	}

	if !opts.Silent {
		opts.Index = nil
		for i, m := range toAdd {
			if hasAt {
				opts.Index = entity.Int(at + i)
			}
			m.Trigger("add", m, s, opts)
		}
		if sort || orderChanged {
			s.Trigger("sort", s, opts)
		}
		if len(toAdd) > 0 || len(toRemove) > 0 || len(toMerge) > 0 {
			opts.Changes = &entity.Changes{Added: nonNil(toAdd), Removed: nonNil(toRemove), Merged: nonNil(toMerge)}
			s.Trigger("update", s, opts)
		}
	}
	return result
}

// normalizeAt resolves an insertion index against a set of length n.
// Negative indexes count from the end, so -1 appends.
func normalizeAt(at, n int) int {
	if at > n {
		at = n
	}
	if at < 0 {
		at += n + 1
	}
	if at < 0 {
		at = max(n+at, 0)
	}
	return at
}

// Remove removes the members items resolve to and returns them. Items that
// are not members are ignored.
func (s *Set) Remove(items any, opts *entity.Options) []*entity.Entity {
	if items == nil {
		return nil
	}
	list, _ := toItems(items)
	opts = opts.Clone()

	removed := s.removeModels(list, opts)
	if !opts.Silent && len(removed) > 0 {
		opts.Changes = &entity.Changes{Added: []*entity.Entity{}, Removed: removed, Merged: []*entity.Entity{}}
		s.Trigger("update", s, opts)
	}
	return removed
}

func (s *Set) removeModels(items []any, opts *entity.Options) []*entity.Entity {
	var removed []*entity.Entity
	for _, item := range items {
		m := s.Get(item)
		if m == nil {
			continue
		}
		idx := slices.Index(s.models, m)
		if idx >= 0 {
			s.models = slices.Delete(slices.Clone(s.models), idx, idx+1)
		}

		// Indexes go before "remove" fires so handlers that remove again
		// find nothing.
		s.dropIndexes(m)

		if !opts.Silent {
			opts.Index = entity.Int(idx)
			m.Trigger("remove", m, s, opts)
		}
		removed = append(removed, m)
		s.removeReference(m)
	}
	return removed
}

// Reset replaces every member with items without firing per-entity events,
// then fires "reset" with the former members in opts.PreviousModels.
func (s *Set) Reset(items any, opts *entity.Options) []*entity.Entity {
	opts = opts.Clone()
	for _, m := range s.models {
		s.removeReference(m)
	}
	opts.PreviousModels = slices.Clone(s.models)
	s.resetState()

	o := opts.Clone()
	o.Silent = true
	added := s.Add(items, o)

	if !opts.Silent {
		s.Trigger("reset", s, opts)
	}
	return added
}

// Push appends an item.
func (s *Set) Push(item any, opts *entity.Options) *entity.Entity {
	o := opts.Clone()
	o.At = entity.Int(len(s.models))
	return first(s.Add(item, o))
}

// Pop removes and returns the last member.
func (s *Set) Pop(opts *entity.Options) *entity.Entity {
	m := s.At(-1)
	if m == nil {
		return nil
	}
	return first(s.Remove(m, opts))
}

// Unshift prepends an item.
func (s *Set) Unshift(item any, opts *entity.Options) *entity.Entity {
	o := opts.Clone()
	o.At = entity.Int(0)
	return first(s.Add(item, o))
}

// Shift removes and returns the first member.
func (s *Set) Shift(opts *entity.Options) *entity.Entity {
	m := s.At(0)
	if m == nil {
		return nil
	}
	return first(s.Remove(m, opts))
}

// Slice returns the members in [start, end). Negative bounds count from the
// end; bounds are clamped.
func (s *Set) Slice(start, end int) []*entity.Entity {
	n := len(s.models)
	clamp := func(i int) int {
		if i < 0 {
			i += n
		}
		return min(max(i, 0), n)
	}
	start, end = clamp(start), clamp(end)
	if start >= end {
		return []*entity.Entity{}
	}
	return slices.Clone(s.models[start:end])
}

// Get resolves an entity, attribute bag, id or cid to a member, or nil.
func (s *Set) Get(obj any) *entity.Entity {
	switch v := obj.(type) {
	case nil:
		return nil
	case *entity.Entity:
		if v == nil {
			return nil
		}
		if k, ok := s.idKey(v.Attributes()); ok {
			if m := s.byID[k]; m != nil {
				return m
			}
		}
		return s.byID[v.CID()]
	case entity.Attributes:
		return s.getAttributes(v)
	case map[string]any:
		return s.getAttributes(v)
	case bool:
		return nil
	}
	return s.byID[transport.IDString(obj)]
}

func (s *Set) getAttributes(attrs entity.Attributes) *entity.Entity {
	if k, ok := s.idKey(attrs); ok {
		if m := s.byID[k]; m != nil {
			return m
		}
	}
	if cid, ok := attrs["cid"].(string); ok {
		return s.byID[cid]
	}
	return nil
}

// Has reports whether obj resolves to a member.
func (s *Set) Has(obj any) bool { return s.Get(obj) != nil }

// At returns the member at index, counting from the end when negative, or nil
// when out of range.
func (s *Set) At(index int) *entity.Entity {
	if index < 0 {
		index += len(s.models)
	}
	if index < 0 || index >= len(s.models) {
		return nil
	}
	return s.models[index]
}

// IndexOf returns the position of m, or -1.
func (s *Set) IndexOf(m *entity.Entity) int { return slices.Index(s.models, m) }

// Where returns the members whose attributes match attrs.
func (s *Set) Where(attrs entity.Attributes) []*entity.Entity {
	return s.Filter(func(m *entity.Entity, _ int) bool { return m.Matches(attrs) })
}

// FindWhere returns the first member whose attributes match attrs.
func (s *Set) FindWhere(attrs entity.Attributes) *entity.Entity {
	return s.Find(func(m *entity.Entity, _ int) bool { return m.Matches(attrs) })
}

// Sort re-sorts the set with its comparator and fires "sort" unless silent.
func (s *Set) Sort(opts *entity.Options) error {
	if s.config.Comparator == nil {
		return ErrNoComparator
	}
	s.sortModels()
	if o := opts.Clone(); !o.Silent {
		s.Trigger("sort", s, o)
	}
	return nil
}

func (s *Set) sortModels() {
	sorted := slices.Clone(s.models)
	s.config.Comparator.sortEntities(sorted)
	s.models = sorted
}

// Pluck returns the value of attr for every member.
func (s *Set) Pluck(attr string) []any {
	return Map(s, func(m *entity.Entity, _ int) any { return m.Get(attr) })
}

// Clone returns a new set with the same configuration and members.
func (s *Set) Clone() *Set {
	cfg := s.config
	cfg.Entity = nil
	return New(slices.Clone(s.models), &cfg)
}

// ToJSON returns every member's serialized form in order.
func (s *Set) ToJSON() []entity.Attributes {
	return Map(s, func(m *entity.Entity, _ int) entity.Attributes { return m.ToJSON() })
}

// MarshalJSON implements json.Marshaler.
func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToJSON())
}

// prepare turns an item into an entity ready to be added. Entities are taken
// as they are (and owned by s if unowned); anything else is materialized. A
// materialized entity that fails validation fires "invalid" on s and is
// dropped.
func (s *Set) prepare(item any, opts *entity.Options) (*entity.Entity, error) {
	if e, ok := item.(*entity.Entity); ok {
		if e.Collection() == nil {
			e.SetCollection(s)
		}
		return e, nil
	}

	o := opts.Clone()
	o.Collection = s
	attrs := s.itemAttributes(item)

	var e *entity.Entity
	if s.config.Factory != nil {
		e = s.config.Factory(attrs, o)
	} else {
		e = entity.New(s.config.Kind, attrs, o)
	}
	if e == nil {
		return nil, fmt.Errorf("entityset: factory returned no entity for %v", item)
	}
	if e.Collection() == nil {
		e.SetCollection(s)
	}
	if err := e.ValidationError(); err != nil {
		s.Trigger("invalid", s, err, o)
		return nil, err
	}
	return e, nil
}

// itemAttributes returns the attributes an item carries. A bare id becomes a
// bag holding just the id.
func (s *Set) itemAttributes(item any) entity.Attributes {
	switch v := item.(type) {
	case *entity.Entity:
		return v.Attributes()
	case entity.Attributes:
		return v
	case map[string]any:
		return entity.Attributes(v)
	case nil:
		return entity.Attributes{}
	}
	return entity.Attributes{s.config.Kind.IDAttr(): item}
}

func (s *Set) addReference(m *entity.Entity) {
	s.byID[m.CID()] = m
	if k, ok := s.idKey(m.Attributes()); ok {
		s.byID[k] = m
	}
	m.On("all", s.onModel, s)
}

func (s *Set) dropIndexes(m *entity.Entity) {
	delete(s.byID, m.CID())
	if k, ok := s.idKey(m.Attributes()); ok {
		delete(s.byID, k)
	}
}

func (s *Set) removeReference(m *entity.Entity) {
	s.dropIndexes(m)
	if owner, ok := m.Collection().(*Set); ok && owner == s {
		m.SetCollection(nil)
	}
	m.Off("all", s.onModel, s)
}

// onModelEvent forwards every member event through the set. "add" and
// "remove" from other sets are dropped, "destroy" removes the member and
// "change" re-indexes a changed id.
func (s *Set) onModelEvent(args ...any) {
	name, _ := args[0].(string)
	var m *entity.Entity
	if len(args) > 1 {
		m, _ = args[1].(*entity.Entity)
	}

	if m != nil {
		if name == "add" || name == "remove" {
			if len(args) < 3 {
				return
			}
			if from, ok := args[2].(*Set); !ok || from != s {
				return
			}
		}

		if name == "destroy" {
			var opts *entity.Options
			if len(args) > 3 {
				opts, _ = args[3].(*entity.Options)
			}
			s.Remove(m, opts)
		}

		if name == "change" {
			prev, hadPrev := s.idKey(m.PreviousAttributes())
			cur, hasCur := s.idKey(m.Attributes())
			if prev != cur || hadPrev != hasCur {
				if hadPrev {
					delete(s.byID, prev)
				}
				if hasCur {
					s.byID[cur] = m
				}
			}
		}
	}

	s.Trigger(name, args[1:]...)
}

// toItems normalizes an input to a list of items and reports whether it was a
// single item.
func toItems(input any) ([]any, bool) {
	switch v := input.(type) {
	case []any:
		return slices.Clone(v), false
	case []*entity.Entity:
		return anySlice(v), false
	}
	rv := reflect.ValueOf(input)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{input}, true
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, false
}

func anySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func nonNil(in []*entity.Entity) []*entity.Entity {
	if in == nil {
		return []*entity.Entity{}
	}
	return in
}

func first(in []*entity.Entity) *entity.Entity {
	if len(in) == 0 {
		return nil
	}
	return in[0]
}
