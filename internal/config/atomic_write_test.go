package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/dpd/internal/dpdproc"
)

// TestAtomicWriteNeverTruncates exercises testable property 5: a reader
// racing a writer always observes either the prior full content or the new
// full content, never a truncated/partial one.
func TestAtomicWriteNeverTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dpd.json")
	require.NoError(t, AtomicWrite(path, Envelope{PIDFile: "/var/run/dpd.pid", Procs: []dpdproc.ProcessSpec{{Name: "a"}}}))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			procs := make([]dpdproc.ProcessSpec, i%5+1)
			for j := range procs {
				procs[j] = dpdproc.ProcessSpec{Name: "p"}
			}
			_ = AtomicWrite(path, Envelope{PIDFile: "/var/run/dpd.pid", Procs: procs})
		}
	}()

	for i := 0; i < 200; i++ {
		env, err := Load(path)
		require.NoError(t, err, "a racing reader must never see a partial write")
		assert.Equal(t, "/var/run/dpd.pid", env.PIDFile)
	}
	close(stop)
	wg.Wait()
}

// TestLoadMissingFile confirms a missing file is a plain error, the
// "recoverable, treat as no prior content" case callers rely on.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
