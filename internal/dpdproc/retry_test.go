package dpdproc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStartWithRetryDoesNotRetryOnDaemonImmediateExit confirms a double-
// forking spec is judged by its own pidfile, not by the immediate child's
// exit: the immediate "sh" process here forks a background sleep, writes
// that grandchild's pid to the pidfile, and exits right away -- exactly
// the pattern a legitimate daemon follows, and one that must not be
// classified as a quick-exit failure.
func TestStartWithRetryDoesNotRetryOnDaemonImmediateExit(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "daemon.pid")
	opts := StartOpts{
		Daemon:   true,
		WritePID: false,
		PIDFile:  pidFile,
	}

	ctx := context.Background()
	pid, err := StartWithRetry(ctx, "sh", []string{"-c", `sleep 5 & echo $! > "$1"`, "sh", pidFile}, opts, DefaultBackoff, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, IsProcessAlive(pid), "confirmed pid should be the live grandchild, not the exited immediate child")

	KillProcess(pid, 0)
}

// TestStartWithRetryReportsGenuineDaemonFailure confirms a daemon spec
// whose pidfile never materializes is still eventually reported as a
// failure rather than retried forever.
func TestStartWithRetryReportsGenuineDaemonFailure(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "never-written.pid")
	opts := StartOpts{
		Daemon:   true,
		WritePID: false,
		PIDFile:  pidFile,
	}

	ctx := context.Background()
	_, err := StartWithRetry(ctx, "true", nil, opts, BackoffSchedule{Initial: 10 * time.Millisecond, Multiplier: 1, Max: 10 * time.Millisecond}, 300*time.Millisecond)
	assert.Error(t, err)
}
