package harness

import "github.com/roach88/bindery/internal/entity"

// TraceEvent is one event emitted by the scenario's set.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Name string `json:"event"`

	// CID and ID identify the entity the event is about, if any. CID is the
	// scenario-local alias, not the entity's real client id.
	CID string `json:"cid,omitempty"`
	ID  any    `json:"id,omitempty"`

	// Index is reported on "add" (when inserted at a position) and "remove".
	Index *int `json:"index,omitempty"`

	// Changes is reported on "update".
	Changes *TraceChanges `json:"changes,omitempty"`

	// Value is the new value on "change:<attr>".
	Value any `json:"value,omitempty"`

	// Method and URL are reported on "request"; Status on "sync" and "error".
	Method string `json:"method,omitempty"`
	URL    string `json:"url,omitempty"`
	Status int    `json:"status,omitempty"`
}

// TraceChanges lists entity labels (ids, or aliases for entities without
// one) of an update.
type TraceChanges struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Merged  []string `json:"merged"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when no step failed unexpectedly and every assertion
	// held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors holds step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalIDs labels the members after the last step, in order.
	FinalIDs []string `json:"final_ids"`

	// Final holds the members' attributes after the last step.
	Final []entity.Attributes `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		FinalIDs: []string{},
	}
}

// AddError adds an error message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Count returns how many trace events have the given name.
func (r *Result) Count(name string) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Name == name {
			n++
		}
	}
	return n
}
