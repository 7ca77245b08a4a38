package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdatesSubjectIsPerNode(t *testing.T) {
	assert.Equal(t, "updates.alpha", updatesSubject("alpha"))
	assert.Equal(t, "updates.beta", updatesSubject("beta"))
}

// TestSplitNodePayload exercises the legacy "<node> <json>" wire body split
// preserved from original_source/lib/client.py's `config.split(" ", 1)`.
func TestSplitNodePayload(t *testing.T) {
	cases := []struct {
		name        string
		in          string
		wantNode    string
		wantPayload string
		wantOK      bool
	}{
		{"node and json body", `alpha [{"name":"svc"}]`, "alpha", `[{"name":"svc"}]`, true},
		{"no separating space", "alpha", "", "", false},
		{"empty payload after space", "alpha ", "alpha", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			node, payload, ok := splitNodePayload([]byte(tc.in))
			assert.Equal(t, tc.wantOK, ok)
			if !tc.wantOK {
				return
			}
			assert.Equal(t, tc.wantNode, node)
			assert.Equal(t, tc.wantPayload, string(payload))
		})
	}
}

func TestNewCorrelationIDIsUniquePerCall(t *testing.T) {
	a := newCorrelationID()
	b := newCorrelationID()
	assert.NotEmpty(t, a)
	assert.NotEmpty(t, b)
	assert.NotEqual(t, a, b)
}
