package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/bindery/internal/entity"
	"github.com/roach88/bindery/internal/entityset"
	"github.com/roach88/bindery/internal/transport"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", FormatEvent(ev))
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, set *entityset.Set, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, set, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, set *entityset.Set, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertTraceAbsent:
		return assertTraceAbsent(result.Trace, a)
	case AssertFinalIDs:
		return assertFinalIDs(result, a)
	case AssertLength:
		return assertLength(result, a)
	case AssertFinalState:
		return assertFinalState(set, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains checks for an event with the given name, narrowed by
// id and index when those are set.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Name != a.Event {
			continue
		}
		if a.ID != nil && transport.IDString(ev.ID) != transport.IDString(a.ID) {
			continue
		}
		if a.Index != nil && (ev.Index == nil || *ev.Index != *a.Index) {
			continue
		}
		return nil
	}

	expected := "event " + a.Event
	if a.ID != nil {
		expected += fmt.Sprintf(" for id %v", a.ID)
	}
	if a.Index != nil {
		expected += fmt.Sprintf(" at index %d", *a.Index)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the events appear in order as a subsequence
// of the trace. Other events may come in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Events) && ev.Name == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", a.Events),
		Actual:   fmt.Sprintf("matched %v, then no %s", a.Events[:next], a.Events[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that the event appears exactly the specified
// number of times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Name == a.Event {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertTraceAbsent(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Name == a.Event {
			return &AssertionError{
				Type:     AssertTraceAbsent,
				Expected: fmt.Sprintf("no %s event", a.Event),
				Actual:   fmt.Sprintf("found at seq %d", ev.Seq),
				Trace:    trace,
			}
		}
	}
	return nil
}

func assertFinalIDs(result *Result, a Assertion) error {
	want := make([]string, len(a.IDs))
	for i, id := range a.IDs {
		want[i] = transport.IDString(id)
	}
	if !slices.Equal(want, result.FinalIDs) {
		return &AssertionError{
			Type:     AssertFinalIDs,
			Expected: fmt.Sprintf("members %v", want),
			Actual:   fmt.Sprintf("members %v", result.FinalIDs),
		}
	}
	return nil
}

func assertLength(result *Result, a Assertion) error {
	if n := len(result.FinalIDs); n != a.Count {
		return &AssertionError{
			Type:     AssertLength,
			Expected: fmt.Sprintf("%d members", a.Count),
			Actual:   fmt.Sprintf("%d members", n),
		}
	}
	return nil
}

// assertFinalState checks a member's attributes against the expected values
// using subset semantics.
func assertFinalState(set *entityset.Set, a Assertion) error {
	m := set.Get(a.ID)
	if m == nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("member with id %v", a.ID),
			Actual:   "not found",
		}
	}

	// Both lines name only the mismatched keys.
	var wanted, mismatches []string
	for _, key := range entity.Attributes(a.Expect).Keys() {
		want := a.Expect[key]
		if got := m.Get(key); !entity.Equal(got, want) {
			wanted = append(wanted, fmt.Sprintf("%s=%v", key, want))
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %v, got %v", key, want, got))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("member %v with %s", a.ID, strings.Join(wanted, ", ")),
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}
