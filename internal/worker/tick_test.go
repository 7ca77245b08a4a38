package worker

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/dpd/internal/dpdproc"
	"github.com/loykin/dpd/internal/profile"
)

// TestTickIsMonotoneOnceSettled exercises testable property 4: after the
// active set has settled (profiles already running and alive), repeated
// ticks perform no new spawns and leave the running set unchanged.
func TestTickIsMonotoneOnceSettled(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "settled.pid")
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	defer func() { _ = cmd.Process.Kill() }()
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0o600))

	spec := dpdproc.ProcessSpec{Name: "settled", Run: "sleep", Args: []string{"30"}, PIDFile: pidFile, Restart: true}
	p, err := profile.New(spec, nil)
	require.NoError(t, err)
	p.Initialize()
	require.Equal(t, profile.Running, p.State())

	w := &Worker{active: []*profile.Profile{p}}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		w.tick(ctx)
		require.Len(t, w.active, 1, "tick %d should not drop the settled profile", i)
		assert.Equal(t, profile.Running, w.active[0].State())
		assert.Equal(t, cmd.Process.Pid, w.active[0].PID(), "settled profile keeps the same pid across ticks")
	}
}

// TestTickDropsAdminDownProfiles confirms a profile that transitions to
// AdminDown during a tick is removed from the active set by end of tick,
// rather than mutated out from under an in-progress iteration.
func TestTickDropsAdminDownProfiles(t *testing.T) {
	spec := dpdproc.ProcessSpec{Name: "gone", Run: "true", PIDFile: filepath.Join(t.TempDir(), "gone.pid"), Restart: false}
	p, err := profile.New(spec, nil)
	require.NoError(t, err)

	w := &Worker{active: []*profile.Profile{p}}
	w.active[0].MarkErrorUp() // ErrorUp -> Stop -> AdminDown (no live pid, so Stop reports it stopped)

	ctx := context.Background()
	w.tick(ctx)

	assert.Empty(t, w.active, "a profile that settles into AdminDown is dropped by end of tick")
}
