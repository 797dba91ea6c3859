package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bindery/internal/events"
	"github.com/roach88/bindery/internal/history"
	"github.com/roach88/bindery/internal/router"
)

// RouteOptions holds flags for the route command.
type RouteOptions struct {
	*RootOptions
	Root string // overrides the table's root
}

// RouteMatch is the resolution of one fragment.
type RouteMatch struct {
	Fragment string `json:"fragment"`
	Matched  bool   `json:"matched"`
	Name     string `json:"name,omitempty"`
	Args     []any  `json:"args,omitempty"`
}

// NewRouteCommand creates the route command.
func NewRouteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RouteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "route <routes> <fragment>...",
		Short: "Resolve fragments against a route table",
		Long: `Resolve URL fragments against a route table and print the route each one
dispatches to, with the arguments extracted from the fragment.

The route table is a YAML file, a CUE file or a directory of CUE files.
Routes are tried in table order.

Exit codes:
  0 - Every fragment matched a route
  1 - At least one fragment matched no route
  2 - Command error (invalid table, bad pattern, etc.)

Examples:
  bindery route routes.yaml "search/ruby/p7"
  bindery route routes.cue "docs/intro" "help" --format json`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Root, "root", "", "history root (overrides the table)")

	return cmd
}

func runRoute(opts *RouteOptions, path string, fragments []string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)
	logger := out.Logger()

	table, err := LoadRoutes(path)
	if err != nil {
		if out.JSON() {
			if encErr := out.Error(loadErrorCode(err), err.Error(), nil); encErr != nil {
				return encErr
			}
		}
		return WrapExitError(ExitCommandError, "failed to load route table", err)
	}

	root := table.Root
	if opts.Root != "" {
		root = opts.Root
	}

	matches, err := resolveFragments(table, root, fragments, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build router", err)
	}

	unmatched := 0
	for _, m := range matches {
		if !m.Matched {
			unmatched++
		}
	}

	if out.JSON() {
		if err := out.Success(matches); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, m := range matches {
			fmt.Fprintln(w, formatMatch(m))
		}
	}

	if unmatched > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d fragment(s) matched no route", unmatched))
	}
	return nil
}

// resolveFragments starts a history at root, binds the table to a router
// and loads each fragment in turn.
func resolveFragments(table *RouteTable, root string, fragments []string, logger *slog.Logger) ([]RouteMatch, error) {
	h := history.New(history.NewMemoryLocation(rootURL(root)), history.WithLogger(logger))

	routes := make([]router.Route, len(table.Routes))
	for i, rt := range table.Routes {
		routes[i] = router.Route{Pattern: rt.Pattern, Name: rt.Name}
	}
	r, err := router.New(h, router.Options{Routes: routes, Logger: logger})
	if err != nil {
		return nil, err
	}
	if _, err := h.Start(history.StartOptions{Root: root, Silent: true}); err != nil {
		return nil, err
	}
	defer h.Stop()

	var current *RouteMatch
	r.On("route", events.Func(func(args ...any) {
		current.Name, _ = args[0].(string)
		current.Args, _ = args[1].([]any)
	}), nil)

	matches := make([]RouteMatch, 0, len(fragments))
	for _, frag := range fragments {
		m := RouteMatch{Fragment: frag}
		current = &m
		m.Matched = h.LoadFragment(frag)
		logger.Debug("resolved fragment", "fragment", frag, "matched", m.Matched, "name", m.Name)
		matches = append(matches, m)
	}
	return matches, nil
}

// rootURL is the URL a history rooted at root starts from.
func rootURL(root string) string {
	trimmed := strings.Trim(root, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed + "/"
}

func formatMatch(m RouteMatch) string {
	if !m.Matched {
		return fmt.Sprintf("%s -> (no match)", m.Fragment)
	}
	args, err := json.Marshal(m.Args)
	if err != nil {
		args = []byte(fmt.Sprint(m.Args))
	}
	return fmt.Sprintf("%s -> %s %s", m.Fragment, m.Name, args)
}
