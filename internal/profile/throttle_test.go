package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/dpd/internal/dpdproc"
)

// TestStartThrottleCapsAtMaxStarts exercises testable property 1: within a
// 60s window at most MaxStarts spawns are allowed before the profile is
// pushed into AdminNotRestarted.
func TestStartThrottleCapsAtMaxStarts(t *testing.T) {
	spec := dpdproc.ProcessSpec{
		Name:     "thrash",
		Run:      "sleep",
		Args:     []string{"5"},
		Restart:  true,
		WritePID: true,
		PIDFile:  t.TempDir() + "/thrash.pid",
	}
	p, err := New(spec, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < MaxStarts; i++ {
		p.state = Waiting
		p.Start(ctx)
		assert.Equal(t, Running, p.State(), "start %d should succeed", i+1)
		dpdproc.KillProcess(p.PID(), 0)
	}
	assert.Equal(t, MaxStarts, p.nbStarts)

	p.state = Waiting
	p.Start(ctx)
	assert.Equal(t, AdminNotRestarted, p.State(), "6th start within the window must be throttled")
	assert.Equal(t, MaxStarts, p.nbStarts, "a throttled start performs no spawn")
}

// TestStartThrottleResetsOutsideWindow confirms the rate gate only looks at
// the MaxStarts-th-from-last entry, so an old burst falling outside the
// rolling window no longer blocks new spawns.
func TestStartThrottleResetsOutsideWindow(t *testing.T) {
	spec := dpdproc.ProcessSpec{Name: "settled", Run: "sleep", Args: []string{"5"}, Restart: true, WritePID: true, PIDFile: t.TempDir() + "/settled.pid"}
	p, err := New(spec, nil)
	require.NoError(t, err)

	base := time.Now().Add(-ThrottleWindow - time.Minute)
	p.now = func() time.Time { return base }

	ctx := context.Background()
	for i := 0; i < MaxStarts; i++ {
		p.state = Waiting
		p.Start(ctx)
		require.Equal(t, Running, p.State())
		dpdproc.KillProcess(p.PID(), 0)
	}

	// Advance the clock past the window: the burst above should no longer count.
	p.now = time.Now
	p.state = Waiting
	p.Start(ctx)
	assert.Equal(t, Running, p.State(), "an old burst outside the window must not throttle a new start")
	dpdproc.KillProcess(p.PID(), 0)
}
