package harness

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bindery/internal/transport"
)

func names(result *Result) []string {
	out := make([]string, len(result.Trace))
	for i, ev := range result.Trace {
		out[i] = ev.Name
	}
	return out
}

func find(result *Result, name string) *TraceEvent {
	for i := range result.Trace {
		if result.Trace[i].Name == name {
			return &result.Trace[i]
		}
	}
	return nil
}

func TestRun_SetReconciliation(t *testing.T) {
	scenario := &Scenario{
		Name: "reconcile",
		Set: SetConfig{Models: []map[string]any{
			{"id": 1, "a": 1},
			{"id": 2, "a": 2},
			{"id": 3},
		}},
		Steps: []Step{{
			Op: OpSet,
			Models: []map[string]any{
				{"id": 1, "a": 1},
				{"id": 2, "a": 9},
				{"id": 4},
			},
		}},
		Assertions: []Assertion{
			{Type: AssertFinalIDs, IDs: []any{1, 2, 4}},
			{Type: AssertTraceCount, Event: "update", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	update := find(result, "update")
	require.NotNil(t, update)
	assert.Equal(t, &TraceChanges{
		Added:   []string{"4"},
		Removed: []string{"3"},
		Merged:  []string{"2"},
	}, update.Changes, "an unchanged merge is not reported")

	require.Len(t, result.Final, 3)
	assert.Equal(t, 9, result.Final[1]["a"])
}

func TestRun_IdenticalSetIsSilent(t *testing.T) {
	models := []map[string]any{{"id": 1}, {"id": 2}}
	result, err := Run(&Scenario{
		Name:  "noop",
		Set:   SetConfig{Models: models},
		Steps: []Step{{Op: OpSet, Models: models}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Trace)
	assert.Equal(t, []string{"1", "2"}, result.FinalIDs)
}

func TestRun_Create(t *testing.T) {
	result, err := Run(&Scenario{
		Name:  "create",
		Set:   SetConfig{URL: "/books"},
		Steps: []Step{{Op: OpCreate, Models: []map[string]any{{"title": "Emma"}}}},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	assert.Equal(t, []string{"add", "update", "request", "change:id", "change", "sync"}, names(result))

	add := result.Trace[0]
	assert.Equal(t, "c1", add.CID)
	assert.Nil(t, add.ID, "the id is assigned by the server")
	assert.Equal(t, []string{"c1"}, result.Trace[1].Changes.Added)

	req := result.Trace[2]
	assert.Equal(t, "create", req.Method)
	assert.Equal(t, "/books", req.URL)

	assert.Equal(t, "s1", result.Trace[3].Value)
	assert.Equal(t, http.StatusCreated, result.Trace[5].Status)
	assert.Equal(t, []string{"s1"}, result.FinalIDs)
}

func TestRun_WithStore(t *testing.T) {
	store := transport.NewMemory()
	scenario := &Scenario{
		Name:   "with_store",
		Set:    SetConfig{URL: "/books"},
		Server: []map[string]any{{"id": "b", "title": "Emma"}},
		Steps: []Step{
			{Op: OpFetch},
			{Op: OpCreate, Models: []map[string]any{{"id": "c", "title": "Persuasion"}}},
		},
	}

	result, err := Run(scenario, WithStore(store))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	stored, err := store.List(t.Context(), "/books")
	require.NoError(t, err)
	assert.Len(t, stored, 2, "the caller's store receives the created resource")
}

func TestRun_DestroyWaitFailure(t *testing.T) {
	scenario := &Scenario{
		Name: "destroy_missing",
		Set:  SetConfig{URL: "/books", Models: []map[string]any{{"id": 9}}},
		Steps: []Step{{
			Op:          OpDestroy,
			ID:          9,
			Options:     StepOptions{Wait: true},
			ExpectError: true,
		}},
		Assertions: []Assertion{
			{Type: AssertTraceAbsent, Event: "remove"},
			{Type: AssertLength, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	assert.Equal(t, []string{"request", "error"}, names(result))
	assert.Equal(t, http.StatusNotFound, result.Trace[1].Status)

	scenario.Steps[0].ExpectError = false
	result, err = Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] destroy")
}

func TestRun_ExpectErrorWithoutError(t *testing.T) {
	result, err := Run(&Scenario{
		Name:  "no_error",
		Steps: []Step{{Op: OpAdd, IDs: []any{1}, ExpectError: true}},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected an error, got none")
}

func TestRun_Validation(t *testing.T) {
	result, err := Run(&Scenario{
		Name: "invalid",
		Set:  SetConfig{Required: []string{"title"}},
		Steps: []Step{
			{Op: OpAdd, Models: []map[string]any{{"id": 1}}, Options: StepOptions{Validate: true}, ExpectError: true},
			{Op: OpAdd, Models: []map[string]any{{"id": 2, "title": "Emma"}}, Options: StepOptions{Validate: true}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Event: "invalid", Count: 1},
			{Type: AssertFinalIDs, IDs: []any{2}},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_StepErrors(t *testing.T) {
	result, err := Run(&Scenario{
		Name: "errors",
		Steps: []Step{
			{Op: OpSort},
			{Op: OpModelSet, ID: 404, Attrs: map[string]any{"a": 1}},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "steps[0] sort")
	assert.Contains(t, result.Errors[1], "no member with id 404")
}

func TestRun_ResetAndUnset(t *testing.T) {
	result, err := Run(&Scenario{
		Name: "reset_unset",
		Set:  SetConfig{Models: []map[string]any{{"id": 1}}},
		Steps: []Step{
			{Op: OpReset, Models: []map[string]any{{"id": 2, "x": 1}, {"id": 3}}},
			{Op: OpModelUnset, ID: 2, Attr: "x"},
			{Op: OpRemove, IDs: []any{3}, Options: StepOptions{Silent: true}},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	assert.Equal(t, []string{"reset", "change:x", "change"}, names(result))
	assert.Equal(t, "2 change:x cid=c1 id=2 value=null", FormatEvent(result.Trace[1]))
	assert.Equal(t, []string{"2"}, result.FinalIDs)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/push_pop_at.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, string(Snapshot(scenario.Name, first)), string(Snapshot(scenario.Name, second)))
}
