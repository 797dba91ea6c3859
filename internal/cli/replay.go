package cli

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/bindery/internal/entity"
	"github.com/roach88/bindery/internal/harness"
	"github.com/roach88/bindery/internal/transport"
	"github.com/roach88/bindery/internal/transport/sqlstore"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string // serve the scenario's REST endpoint from this SQLite file
	Check    bool   // replay twice and verify the traces match
	Wire     string // how the entity set reaches the REST endpoint
	Metrics  bool   // report sync request counts
}

// ReplayResult is the JSON payload of the replay command.
type ReplayResult struct {
	Scenario      string                   `json:"scenario"`
	Pass          bool                     `json:"pass"`
	Deterministic *bool                    `json:"deterministic,omitempty"`
	Trace         []harness.TraceEvent     `json:"trace"`
	FinalIDs      []string                 `json:"final_ids"`
	Final         []entity.Attributes      `json:"final"`
	Errors        []string                 `json:"errors,omitempty"`
	Requests      []transport.RequestCount `json:"requests,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario>",
		Short: "Replay a scenario and print the events it emits",
		Long: `Replay one scenario file (YAML or CUE) and print every event its entity
set emitted, followed by the final members and any failed assertions.

With --check the scenario is replayed a second time against a fresh store
and the two traces must be identical.

--wire selects how the entity set talks to the scenario's REST endpoint:
direct calls, JSON over HTTP, or JSON frames over a WebSocket. The HTTP
and WebSocket wires serve the endpoint on a loopback port for the length
of the replay. --metrics counts sync requests by verb and status.

With --db, created resources get UUIDv7 ids so repeated replays against
the same database do not collide.

Exit codes:
  0 - Scenario passed
  1 - A step or assertion failed, or the replay was not deterministic
  2 - Command error (scenario not found, invalid scenario, etc.)

Examples:
  bindery replay scenarios/merge.yaml
  bindery replay scenarios/fetch.cue --db ./server.db
  bindery replay scenarios/merge.yaml --check --format json
  bindery replay scenarios/fetch.cue --wire websocket --metrics`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to a SQLite database serving the scenario's resources")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "replay twice and verify determinism")
	cmd.Flags().StringVar(&opts.Wire, "wire", harness.WireDirect, "sync wire: "+strings.Join(harness.Wires, ", "))
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "report sync request counts")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)
	logger := out.Logger()

	if !slices.Contains(harness.Wires, opts.Wire) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown wire %q (want one of %s)", opts.Wire, strings.Join(harness.Wires, ", ")))
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	baseOpts := []harness.Option{harness.WithLogger(logger), harness.WithWire(opts.Wire)}
	runOpts := slices.Clone(baseOpts)
	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		runOpts = append(runOpts, harness.WithMetrics(transport.NewMetrics(reg)))
	}
	if opts.Database != "" {
		st, err := sqlstore.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithStore(st), harness.WithIDGenerator(transport.UUIDv7Generator{}))
	}

	logger.Debug("replaying scenario", "name", scenario.Name, "steps", len(scenario.Steps))
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	replay := ReplayResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Trace:    result.Trace,
		FinalIDs: result.FinalIDs,
		Final:    result.Final,
		Errors:   result.Errors,
	}
	if reg != nil {
		replay.Requests, err = transport.RequestCounts(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read metrics", err)
		}
	}

	if opts.Check {
		// Check runs always use fresh in-memory stores.
		first, err := harness.Run(scenario, baseOpts...)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to replay scenario", err)
		}
		second, err := harness.Run(scenario, baseOpts...)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to replay scenario", err)
		}
		deterministic := bytes.Equal(harness.Snapshot(scenario.Name, first), harness.Snapshot(scenario.Name, second))
		replay.Deterministic = &deterministic
	}

	if out.JSON() {
		if err := out.Success(replay); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd, replay)
	}

	switch {
	case !replay.Pass:
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	case replay.Deterministic != nil && !*replay.Deterministic:
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s is not deterministic", scenario.Name))
	}
	return nil
}

func outputReplayText(cmd *cobra.Command, r ReplayResult) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Scenario: %s\n", r.Scenario)
	for _, ev := range r.Trace {
		fmt.Fprintf(w, "  %s\n", harness.FormatEvent(ev))
	}
	fmt.Fprintf(w, "Final: %v\n", r.FinalIDs)

	if len(r.Requests) > 0 {
		fmt.Fprintln(w, "Sync requests:")
		for _, rc := range r.Requests {
			fmt.Fprintf(w, "  %s %s: %g\n", rc.Method, rc.Code, rc.Count)
		}
	}

	if r.Deterministic != nil {
		if *r.Deterministic {
			fmt.Fprintln(w, "✓ Deterministic")
		} else {
			fmt.Fprintln(w, "✗ Traces differ between replays")
		}
	}

	if r.Pass {
		fmt.Fprintln(w, "✓ Passed")
		return
	}
	fmt.Fprintln(w, "✗ Failed")
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
