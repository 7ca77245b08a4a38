package profile

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/dpd/internal/dpdproc"
)

// TestInitializeAdoptsExistingLiveProcess exercises testable property 2:
// starting against an existing pidfile whose pid is alive yields
// state=running with no new spawn, and nb_starts=0.
func TestInitializeAdoptsExistingLiveProcess(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "adopt.pid")

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	defer func() { _ = cmd.Process.Kill() }()

	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0o600))

	spec := dpdproc.ProcessSpec{Name: "adoptee", Run: "sleep", Args: []string{"30"}, PIDFile: pidFile, Restart: true}
	p, err := New(spec, nil)
	require.NoError(t, err)

	p.Initialize()

	assert.Equal(t, Running, p.State())
	assert.Equal(t, cmd.Process.Pid, p.PID())
	assert.Equal(t, 0, p.nbStarts, "adopting a live process performs no spawn")
}

// TestInitializeIgnoresStalePidfile confirms a pidfile pointing at a dead
// process is not adopted, leaving the profile in its initial Waiting state
// so the next tick's Start actually spawns a child.
func TestInitializeIgnoresStalePidfile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "stale.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte("999999"), 0o600))

	spec := dpdproc.ProcessSpec{Name: "stale", Run: "true", PIDFile: pidFile, Restart: true}
	p, err := New(spec, nil)
	require.NoError(t, err)

	p.Initialize()

	assert.Equal(t, Waiting, p.State())
	assert.Equal(t, 0, p.PID())
}
