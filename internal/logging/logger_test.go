package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAppendsAcrossRuns(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	for _, msg := range []string{"first-run", "second-run"} {
		runtime, err := New(false)
		require.NoError(t, err)
		require.Equal(t, filepath.Join(state, "parley", "log.jsonl"), runtime.Path)
		runtime.Logger.Info(msg)
		require.NoError(t, runtime.Close())
	}

	contents, err := os.ReadFile(filepath.Join(state, "parley", "log.jsonl"))
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(contents), "\n"))
	require.Contains(t, string(contents), "first-run")
	require.Contains(t, string(contents), "second-run")
}

func TestCloseZeroRuntime(t *testing.T) {
	require.NoError(t, Runtime{}.Close())
	Discard().Info("dropped")
}

func TestNewCreatesWritableJSONLogFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	runtime, err := New(false)
	require.NoError(t, err)

	runtime.Logger.Debug("hidden-debug-log")
	runtime.Logger.Info("unit-test-log", "component", "logging")
	require.NoError(t, runtime.Close())

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"msg":"unit-test-log"`)
	require.Contains(t, string(contents), `"component":"logging"`)
	require.Contains(t, string(contents), `"pid":`)
	require.NotContains(t, string(contents), "hidden-debug-log")

	stat, err := os.Stat(runtime.Path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), stat.Mode().Perm())
}

func TestNewVerboseKeepsDebugRecords(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	runtime, err := New(true)
	require.NoError(t, err)
	runtime.Logger.Debug("visible-debug-log")
	require.NoError(t, runtime.Close())

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "visible-debug-log")
}
