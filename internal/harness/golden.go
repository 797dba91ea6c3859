package harness

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/bindery/internal/transport"
)

// FormatEvent renders one trace event as a single line:
//
//	3 remove cid=c2 id=2 index=1
//	6 update added=[4] removed=[2] merged=[1]
//
// Fields that do not apply to the event are left out.
func FormatEvent(ev TraceEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", ev.Seq, ev.Name)
	if ev.CID != "" {
		b.WriteString(" cid=" + ev.CID)
	}
	if ev.ID != nil {
		b.WriteString(" id=" + transport.IDString(ev.ID))
	}
	if ev.Index != nil {
		b.WriteString(" index=" + strconv.Itoa(*ev.Index))
	}
	if ev.Method != "" {
		b.WriteString(" method=" + ev.Method)
	}
	if ev.URL != "" {
		b.WriteString(" url=" + ev.URL)
	}
	if ev.Status != 0 {
		b.WriteString(" status=" + strconv.Itoa(ev.Status))
	}
	if c := ev.Changes; c != nil {
		fmt.Fprintf(&b, " added=%s removed=%s merged=%s", list(c.Added), list(c.Removed), list(c.Merged))
	}
	if strings.HasPrefix(ev.Name, "change:") {
		b.WriteString(" value=" + formatValue(ev.Value))
	}
	return b.String()
}

// Snapshot renders a result as the text stored in golden files: the scenario
// name, one line per trace event and the final member ids.
func Snapshot(name string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	for _, ev := range result.Trace {
		b.WriteString(FormatEvent(ev))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "final: %s\n", list(result.FinalIDs))
	return []byte(b.String())
}

func list(labels []string) string {
	return "[" + strings.Join(labels, " ") + "]"
}

// formatValue renders attribute values as JSON so strings stay quoted and
// nested values render with sorted keys.
func formatValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario cannot run. Test failure (via goldie) occurs
// if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
