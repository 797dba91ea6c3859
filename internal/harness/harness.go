package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/bindery/internal/entity"
	"github.com/roach88/bindery/internal/entityset"
	"github.com/roach88/bindery/internal/events"
	"github.com/roach88/bindery/internal/transport"
	"github.com/roach88/bindery/internal/transport/sqlstore"
)

// Harness runs one scenario against one set.
type Harness struct {
	set    *entityset.Set
	rest   *transport.REST
	clock  *entity.Clock
	logger *slog.Logger

	result  *Result
	aliases map[*entity.Entity]string
}

// Option configures a run.
type Option func(*config)

type config struct {
	logger  *slog.Logger
	store   transport.ResourceStore
	wire    string
	metrics *transport.Metrics
	ids     transport.IDGenerator
}

// WithLogger sets the logger the set, its entities and the REST endpoint
// report to.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithStore serves the scenario's REST endpoint from st instead of a fresh
// in-memory database. The caller owns st.
func WithStore(st transport.ResourceStore) Option {
	return func(c *config) {
		c.store = st
	}
}

// WithWire selects how sync calls reach the REST endpoint: WireDirect (the
// default), WireHTTP or WireWebSocket.
func WithWire(wire string) Option {
	return func(c *config) {
		c.wire = wire
	}
}

// WithMetrics records every sync call the set makes in m.
func WithMetrics(m *transport.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithIDGenerator sets how the REST endpoint names created resources. The
// default numbers them s1, s2, ... per run.
func WithIDGenerator(g transport.IDGenerator) Option {
	return func(c *config) {
		c.ids = g
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open a fresh in-memory database (unless WithStore) and seed the server
//     resources into it
//  2. Connect to the REST endpoint over the selected wire
//  3. Build the set from the scenario's set config, silently
//  4. Run the steps, recording every event the set emits
//  5. Evaluate the assertions against the trace and the final membership
//
// Step and assertion failures are reported in the result. The error is for
// scenarios that cannot run at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.DiscardHandler), wire: WireDirect}
	for _, opt := range opts {
		opt(&cfg)
	}

	st := cfg.store
	if st == nil {
		db, err := sqlstore.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer db.Close()
		st = db
	}

	ctx := context.Background()
	h, closeWire, err := newHarness(ctx, scenario, st, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := closeWire(); err != nil {
			cfg.logger.Warn("error closing wire", "wire", cfg.wire, "error", err)
		}
	}()

	for i, step := range scenario.Steps {
		err := h.execute(ctx, step)
		switch {
		case err != nil && !step.ExpectError:
			h.result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Op, err))
		case err == nil && step.ExpectError:
			h.result.AddError(fmt.Sprintf("steps[%d] %s: expected an error, got none", i, step.Op))
		}
	}

	for _, m := range h.set.Models() {
		h.result.FinalIDs = append(h.result.FinalIDs, h.label(m))
		h.result.Final = append(h.result.Final, m.ToJSON())
	}

	for _, msg := range EvaluateAssertions(h.result, h.set, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func newHarness(ctx context.Context, scenario *Scenario, st transport.ResourceStore, rc config) (*Harness, func() error, error) {
	logger := rc.logger
	cfg := scenario.Set
	url := cfg.URL
	if url == "" {
		url = "/items"
	}
	idAttr := cfg.IDAttribute
	if idAttr == "" {
		idAttr = "id"
	}

	ids := rc.ids
	if ids == nil {
		ids = &sequentialIDs{prefix: "s"}
	}
	rest := transport.NewREST(st,
		transport.WithIDAttribute(idAttr),
		transport.WithIDGenerator(ids),
		transport.WithRESTLogger(logger),
	)
	if err := rest.Seed(ctx, url, scenario.Server...); err != nil {
		return nil, nil, fmt.Errorf("failed to seed server: %w", err)
	}

	syncer, closeWire, err := connect(ctx, rc.wire, rest, logger)
	if err != nil {
		return nil, nil, err
	}
	if rc.metrics != nil {
		syncer = rc.metrics.Wrap(syncer)
	}

	kind := &entity.Kind{
		Name:        "item",
		IDAttribute: idAttr,
		Defaults:    entity.Attributes(cfg.Defaults),
		Logger:      logger,
	}
	if len(cfg.Required) > 0 {
		kind.Validate = requireAttributes(cfg.Required)
	}

	var comparator entityset.Comparator
	if cfg.Comparator != "" {
		comparator = entityset.Attr(cfg.Comparator)
	}

	var models any
	if len(cfg.Models) > 0 {
		models = anyModels(cfg.Models)
	}

	h := &Harness{
		rest:    rest,
		clock:   entity.NewClock(),
		logger:  logger,
		result:  NewResult(),
		aliases: make(map[*entity.Entity]string),
	}
	h.set = entityset.New(models, &entityset.Options{
		Kind:       kind,
		Comparator: comparator,
		URL:        url,
		Sync:       syncer,
		Logger:     logger,
	})
	h.set.On("all", events.Func(h.record), h)
	return h, closeWire, nil
}

// execute runs one step.
func (h *Harness) execute(ctx context.Context, step Step) error {
	opts := step.Options.entityOptions()
	h.logger.Debug("step", "op", step.Op)

	switch step.Op {
	case OpSet:
		h.set.Set(stepItems(step), opts)
	case OpAdd:
		return h.checkInvalid(h.set.Add(stepItems(step), opts), step)
	case OpReset:
		h.set.Reset(stepItems(step), opts)
	case OpRemove:
		h.set.Remove(step.IDs, opts)
	case OpPush:
		if h.set.Push(step.Models[0], opts) == nil {
			return entity.ErrInvalid
		}
	case OpUnshift:
		if h.set.Unshift(step.Models[0], opts) == nil {
			return entity.ErrInvalid
		}
	case OpPop:
		h.set.Pop(opts)
	case OpShift:
		h.set.Shift(opts)
	case OpSort:
		return h.set.Sort(opts)
	case OpModelSet:
		m, err := h.member(step.ID)
		if err != nil {
			return err
		}
		if !m.Set(entity.Attributes(step.Attrs), opts) {
			return fmt.Errorf("%w: %w", entity.ErrInvalid, m.ValidationError())
		}
	case OpModelUnset:
		m, err := h.member(step.ID)
		if err != nil {
			return err
		}
		if !m.Unset(step.Attr, opts) {
			return fmt.Errorf("%w: %w", entity.ErrInvalid, m.ValidationError())
		}
	case OpDestroy:
		m, err := h.member(step.ID)
		if err != nil {
			return err
		}
		_, err = m.Destroy(ctx, opts)
		return err
	case OpFetch:
		_, err := h.set.Fetch(ctx, opts)
		return err
	case OpCreate:
		_, _, err := h.set.Create(ctx, step.Models[0], opts)
		return err
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// checkInvalid reports an add whose items were all rejected by validation.
func (h *Harness) checkInvalid(added []*entity.Entity, step Step) error {
	if !step.Options.Validate {
		return nil
	}
	if len(added) > 0 && !slices.Contains(added, nil) {
		return nil
	}
	return entity.ErrInvalid
}

func (h *Harness) member(id any) (*entity.Entity, error) {
	m := h.set.Get(id)
	if m == nil {
		return nil, fmt.Errorf("no member with id %v", id)
	}
	return m, nil
}

// record appends one set event to the trace. Handlers on "all" receive the
// event name first.
func (h *Harness) record(args ...any) {
	name, _ := args[0].(string)
	payload := args[1:]
	ev := TraceEvent{Seq: h.clock.Next(), Name: name}

	if len(payload) > 0 {
		if m, ok := payload[0].(*entity.Entity); ok {
			ev.CID = h.alias(m)
			ev.ID = m.ID()
		}
	}
	opts := findOptions(payload)

	switch {
	case name == "add" || name == "remove":
		if opts != nil && opts.Index != nil {
			i := *opts.Index
			ev.Index = &i
		}
	case name == "update":
		if opts != nil && opts.Changes != nil {
			ev.Changes = &TraceChanges{
				Added:   h.labels(opts.Changes.Added),
				Removed: h.labels(opts.Changes.Removed),
				Merged:  h.labels(opts.Changes.Merged),
			}
		}
	case strings.HasPrefix(name, "change:"):
		if len(payload) > 1 {
			ev.Value = payload[1]
		}
	case name == "request":
		if len(payload) > 1 {
			if req, ok := payload[1].(*transport.Request); ok {
				ev.Method = string(req.Method)
				ev.URL = req.URL
			}
		}
	case name == "sync" || name == "error":
		if len(payload) > 1 {
			if resp, ok := payload[1].(*transport.Response); ok && resp != nil {
				ev.Status = resp.Status
			}
		}
	}

	h.result.Trace = append(h.result.Trace, ev)
}

// alias names entities c1, c2, ... by first appearance.
func (h *Harness) alias(m *entity.Entity) string {
	if a, ok := h.aliases[m]; ok {
		return a
	}
	a := fmt.Sprintf("c%d", len(h.aliases)+1)
	h.aliases[m] = a
	return a
}

// label is an entity's id, or its alias when it has none.
func (h *Harness) label(m *entity.Entity) string {
	if id := m.ID(); id != nil {
		return transport.IDString(id)
	}
	return h.alias(m)
}

func (h *Harness) labels(ms []*entity.Entity) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, h.label(m))
	}
	return out
}

func findOptions(payload []any) *entity.Options {
	for _, arg := range slices.Backward(payload) {
		if opts, ok := arg.(*entity.Options); ok {
			return opts
		}
	}
	return nil
}

func stepItems(step Step) []any {
	items := anyModels(step.Models)
	return append(items, step.IDs...)
}

func anyModels(models []map[string]any) []any {
	out := make([]any, 0, len(models))
	for _, m := range models {
		out = append(out, m)
	}
	return out
}

func requireAttributes(attrs []string) func(entity.Attributes, *entity.Options) error {
	return func(a entity.Attributes, _ *entity.Options) error {
		var errs []error
		for _, attr := range attrs {
			if a[attr] == nil {
				errs = append(errs, fmt.Errorf("%s is required", attr))
			}
		}
		return errors.Join(errs...)
	}
}

// sequentialIDs assigns s1, s2, ... to created resources.
type sequentialIDs struct {
	prefix string
	n      int
}

func (g *sequentialIDs) Generate() string {
	g.n++
	return fmt.Sprintf("%s%d", g.prefix, g.n)
}
