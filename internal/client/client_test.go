package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/dpd/internal/config"
	"github.com/loykin/dpd/internal/dpdproc"
)

// TestExpandNodeName exercises spec.md §8's hostname-expansion scenario: a
// node_name of "%H" subscribes under the machine's own hostname, while any
// other node_name is used verbatim.
func TestExpandNodeName(t *testing.T) {
	hostname, err := os.Hostname()
	require.NoError(t, err)

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"literal placeholder expands to hostname", "%H", hostname},
		{"plain node name passes through unchanged", "alpha", "alpha"},
		{"empty node name passes through unchanged", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExpandNodeName(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// TestApplyUpdateWritesLocalEnvelope confirms applyUpdate writes the
// published process list into the local configuration file's "procs" field,
// and that a missing local file is treated as an empty envelope rather than
// a hard failure.
func TestApplyUpdateWritesLocalEnvelope(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "worker.json")

	c := &Client{nodeName: "alpha", configPath: configPath}

	procs := []dpdproc.ProcessSpec{{Name: "svc", Run: "svc-bin"}}
	payload, err := json.Marshal(procs)
	require.NoError(t, err)

	require.NoError(t, c.applyUpdate(payload))

	env, err := config.Load(configPath)
	require.NoError(t, err)
	require.Len(t, env.Procs, 1)
	assert.Equal(t, "svc", env.Procs[0].Name)
}
