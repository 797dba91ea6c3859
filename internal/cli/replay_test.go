package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bindery/internal/transport"
)

func runReplayCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestReplayCommandMissingScenario(t *testing.T) {
	_, err := runReplayCommand(t, "text", "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestReplayCommandText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "merge.yaml", passingScenario)

	out, err := runReplayCommand(t, "text", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Scenario: merge")
	assert.Contains(t, out, "1 change:rank cid=c1 id=1 value=3")
	assert.Contains(t, out, "Final: [2 1]")
	assert.Contains(t, out, "✓ Passed")
}

func TestReplayCommandFailure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "wrong.yaml", failingScenario)

	out, err := runReplayCommand(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Failed")
	assert.Contains(t, out, "1 remove cid=c1 id=1 index=0")
}

func TestReplayCommandCheckJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "merge.yaml", passingScenario)

	out, err := runReplayCommand(t, "json", path, "--check")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	require.NotNil(t, resp.Data.Deterministic)
	assert.True(t, *resp.Data.Deterministic)
	assert.Equal(t, []string{"2", "1"}, resp.Data.FinalIDs)
}

func TestReplayCommandDatabase(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "fetch.yaml", `name: fetch
set:
  url: /books
server:
  - {id: 1, title: Dune}
  - {id: 2, title: Emma}
steps:
  - op: fetch
assertions:
  - type: length
    count: 2
`)
	db := filepath.Join(dir, "server.db")

	out, err := runReplayCommand(t, "text", path, "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "request method=read url=/books")
	assert.FileExists(t, db)
}

const fetchCreateScenario = `name: fetch_create
set:
  url: /books
server:
  - {id: 1, title: Dune}
steps:
  - op: fetch
  - op: create
    models:
      - {title: Emma}
assertions:
  - type: length
    count: 2
`

func TestReplayCommandWires(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fetch_create.yaml", fetchCreateScenario)

	direct, err := runReplayCommand(t, "text", path)
	require.NoError(t, err, direct)

	for _, wire := range []string{"http", "websocket"} {
		t.Run(wire, func(t *testing.T) {
			out, err := runReplayCommand(t, "text", path, "--wire", wire, "--check")
			require.NoError(t, err, out)
			assert.Contains(t, out, "✓ Deterministic")
			assert.Equal(t, direct, strings.Replace(out, "✓ Deterministic\n", "", 1))
		})
	}
}

func TestReplayCommandUnknownWire(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fetch_create.yaml", fetchCreateScenario)

	_, err := runReplayCommand(t, "text", path, "--wire", "smoke")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown wire "smoke"`)
}

func TestReplayCommandMetrics(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fetch_create.yaml", fetchCreateScenario)

	out, err := runReplayCommand(t, "json", path, "--metrics", "--wire", "http")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Pass)
	assert.ElementsMatch(t, []transport.RequestCount{
		{Method: "create", Code: "201", Count: 1},
		{Method: "read", Code: "200", Count: 1},
	}, resp.Data.Requests)

	text, err := runReplayCommand(t, "text", path, "--metrics")
	require.NoError(t, err)
	assert.Contains(t, text, "Sync requests:")
	assert.Contains(t, text, "  read 200: 1")
}
