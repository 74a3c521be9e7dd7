package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpcforge/simrun/pkg/runstore"
)

func writeTestManifest(t *testing.T, dir string) string {
	t.Helper()
	content := `version: "1.0"
experiment:
  name: cmd-sweep
applications:
  - name: sim
    exe: echo
    ensemble:
      params:
        STEPS: ["1", "2"]
`
	path := filepath.Join(dir, "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("SIMRUN_POLL_LOCAL_INTERVAL", "10ms")
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestLaunchCommand_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := writeTestManifest(t, dir)

	require.NoError(t, runCommand(t, "launch", "--job", path))

	store := runstore.NewStore(filepath.Join(dir, ".simrun", "runs"))
	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, "cmd-sweep", run.Experiment)
	assert.Equal(t, runstore.RunStateSuccess, run.State)
	assert.Equal(t, "local", run.Launcher)
	require.Len(t, run.Jobs, 2)
	for _, j := range run.Jobs {
		assert.Equal(t, "COMPLETED", j.Status)
		require.NotNil(t, j.ReturnCode)
		assert.Equal(t, 0, *j.ReturnCode)
	}

	if assert.NotEmpty(t, run.EventsPath) {
		_, err := os.Stat(run.EventsPath)
		assert.NoError(t, err, "events log should exist")
	}
}

func TestLaunchCommand_FailedJobsFailTheRun(t *testing.T) {
	dir := t.TempDir()
	content := `version: "1.0"
experiment:
  name: cmd-fail
applications:
  - name: bad
    exe: "false"
`
	path := filepath.Join(dir, "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	err := runCommand(t, "launch", "--job", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 jobs failed")

	store := runstore.NewStore(filepath.Join(dir, ".simrun", "runs"))
	runs, lerr := store.List()
	require.NoError(t, lerr)
	require.Len(t, runs, 1)
	assert.Equal(t, runstore.RunStateFailed, runs[0].State)
}

func TestLaunchCommand_MissingManifest(t *testing.T) {
	err := runCommand(t, "launch", "--job", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid manifest")
}

func TestStatusCommand_ListsRuns(t *testing.T) {
	dir := t.TempDir()
	path := writeTestManifest(t, dir)

	require.NoError(t, runCommand(t, "launch", "--job", path))
	require.NoError(t, runCommand(t, "status", "--path", dir, "--output", "json"))
}
