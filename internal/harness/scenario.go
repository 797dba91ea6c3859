package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/bindery/internal/entity"
)

//go:embed schema.cue
var schemaCUE string

// Scenario defines one replay: the initial set, the steps run against it and
// the assertions checked afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Set SetConfig `yaml:"set,omitempty" json:"set,omitempty"`

	// Server lists resources seeded at Set.URL before the first step.
	Server []map[string]any `yaml:"server,omitempty" json:"server,omitempty"`

	Steps []Step `yaml:"steps" json:"steps"`

	Assertions []Assertion `yaml:"assertions,omitempty" json:"assertions,omitempty"`
}

// SetConfig describes the set a scenario starts from.
type SetConfig struct {
	// IDAttribute names the id attribute. Default "id".
	IDAttribute string `yaml:"id_attribute,omitempty" json:"id_attribute,omitempty"`

	// Comparator is the attribute the set is kept sorted by, if any.
	Comparator string `yaml:"comparator,omitempty" json:"comparator,omitempty"`

	// URL is the set's sync URL. Default "/items".
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Required lists attributes a member must have when validated.
	Required []string `yaml:"required,omitempty" json:"required,omitempty"`

	Defaults map[string]any   `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Models   []map[string]any `yaml:"models,omitempty" json:"models,omitempty"`
}

// Step is one operation on the set or one of its members.
type Step struct {
	Op string `yaml:"op" json:"op"`

	// Models are attribute bags (set, add, reset, push, unshift, create).
	Models []map[string]any `yaml:"models,omitempty" json:"models,omitempty"`

	// IDs are bare ids (set, add, reset, remove).
	IDs []any `yaml:"ids,omitempty" json:"ids,omitempty"`

	// ID selects the member for model_set, model_unset and destroy.
	ID any `yaml:"id,omitempty" json:"id,omitempty"`

	Attrs map[string]any `yaml:"attrs,omitempty" json:"attrs,omitempty"`
	Attr  string         `yaml:"attr,omitempty" json:"attr,omitempty"`

	Options StepOptions `yaml:"options,omitempty" json:"options,omitempty"`

	// ExpectError marks a step that must fail (a sync error, an invalid
	// model, sorting without a comparator).
	ExpectError bool `yaml:"expect_error,omitempty" json:"expect_error,omitempty"`
}

// StepOptions are the operation options a step passes through.
type StepOptions struct {
	Merge  *bool `yaml:"merge,omitempty" json:"merge,omitempty"`
	Add    *bool `yaml:"add,omitempty" json:"add,omitempty"`
	Remove *bool `yaml:"remove,omitempty" json:"remove,omitempty"`
	Sort   *bool `yaml:"sort,omitempty" json:"sort,omitempty"`
	At     *int  `yaml:"at,omitempty" json:"at,omitempty"`

	Silent   bool `yaml:"silent,omitempty" json:"silent,omitempty"`
	Parse    bool `yaml:"parse,omitempty" json:"parse,omitempty"`
	Validate bool `yaml:"validate,omitempty" json:"validate,omitempty"`
	Wait     bool `yaml:"wait,omitempty" json:"wait,omitempty"`
	Reset    bool `yaml:"reset,omitempty" json:"reset,omitempty"`
}

func (o StepOptions) entityOptions() *entity.Options {
	return &entity.Options{
		Merge:    o.Merge,
		Add:      o.Add,
		Remove:   o.Remove,
		Sort:     o.Sort,
		At:       o.At,
		Silent:   o.Silent,
		Parse:    o.Parse,
		Validate: o.Validate,
		Wait:     o.Wait,
		Reset:    o.Reset,
	}
}

// Step operations.
const (
	OpSet        = "set"
	OpAdd        = "add"
	OpRemove     = "remove"
	OpReset      = "reset"
	OpSort       = "sort"
	OpPush       = "push"
	OpPop        = "pop"
	OpShift      = "shift"
	OpUnshift    = "unshift"
	OpModelSet   = "model_set"
	OpModelUnset = "model_unset"
	OpDestroy    = "destroy"
	OpFetch      = "fetch"
	OpCreate     = "create"
)

// Assertion validates the trace or the final membership.
type Assertion struct {
	Type string `yaml:"type" json:"type"`

	// Event is the event name (trace_contains, trace_count, trace_absent).
	Event string `yaml:"event,omitempty" json:"event,omitempty"`

	// Events is the expected order (trace_order).
	Events []string `yaml:"events,omitempty" json:"events,omitempty"`

	// ID narrows trace_contains to one entity, or selects the member for
	// final_state.
	ID any `yaml:"id,omitempty" json:"id,omitempty"`

	// Index narrows trace_contains to one index.
	Index *int `yaml:"index,omitempty" json:"index,omitempty"`

	// Count is the expected number (trace_count, length).
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// IDs are the expected member ids in order (final_ids).
	IDs []any `yaml:"ids,omitempty" json:"ids,omitempty"`

	// Expect is a subset of the member's attributes (final_state).
	Expect map[string]any `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertTraceAbsent   = "trace_absent"
	AssertFinalIDs      = "final_ids"
	AssertLength        = "length"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario file. Files ending in .cue are
// checked against the scenario schema; anything else is parsed as YAML.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		scenario, err = parseCUE(path, data)
	} else {
		scenario, err = parseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// IsScenarioFile reports whether path has a scenario file extension.
func IsScenarioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

func parseYAML(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// parseCUE unifies the file with the closed #Scenario definition, so unknown
// fields and bad step ops fail here with CUE's positions.
func parseCUE(path string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile scenario schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	value = schema.LookupPath(cue.ParsePath("#Scenario")).Unify(value)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	var scenario Scenario
	if err := value.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	switch st.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	case OpSet, OpAdd, OpReset:
		if st.Op != OpReset && len(st.Models)+len(st.IDs) == 0 {
			return fmt.Errorf("steps[%d]: models or ids are required for %s", index, st.Op)
		}
	case OpRemove:
		if len(st.IDs) == 0 {
			return fmt.Errorf("steps[%d]: ids are required for remove", index)
		}
	case OpPush, OpUnshift, OpCreate:
		if len(st.Models) != 1 {
			return fmt.Errorf("steps[%d]: exactly one model is required for %s", index, st.Op)
		}
	case OpModelSet:
		if st.ID == nil || len(st.Attrs) == 0 {
			return fmt.Errorf("steps[%d]: id and attrs are required for model_set", index)
		}
	case OpModelUnset:
		if st.ID == nil || st.Attr == "" {
			return fmt.Errorf("steps[%d]: id and attr are required for model_unset", index)
		}
	case OpDestroy:
		if st.ID == nil {
			return fmt.Errorf("steps[%d]: id is required for destroy", index)
		}
	case OpSort, OpPop, OpShift, OpFetch:
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains, AssertTraceCount, AssertTraceAbsent:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertFinalIDs:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids list is required for final_ids (use [] for none)", index)
		}
	case AssertLength:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertFinalState:
		if a.ID == nil || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: id and expect are required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
