package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loykin/dpd/internal/dpdproc"
)

// TestDiffPartitionIsExhaustiveAndDisjoint exercises testable property 3:
// for any pair (old, new), the four buckets are pairwise disjoint and
// their union equals old.names ∪ new.names.
func TestDiffPartitionIsExhaustiveAndDisjoint(t *testing.T) {
	oldSpecs := []dpdproc.ProcessSpec{
		{Name: "a", Run: "/bin/a"},
		{Name: "b", Run: "/bin/b"},
		{Name: "c", Run: "/bin/c"},
	}
	newSpecs := []dpdproc.ProcessSpec{
		{Name: "b", Run: "/bin/b"},                 // unchanged -> keep
		{Name: "c", Run: "/bin/c", Args: []string{"-v"}}, // changed -> reload
		{Name: "d", Run: "/bin/d"},                 // new -> start
	}

	part := Diff(oldSpecs, newSpecs)

	assert.ElementsMatch(t, []string{"a"}, part.ToStop)
	assert.ElementsMatch(t, []string{"d"}, part.ToStart)
	assert.ElementsMatch(t, []string{"c"}, part.ToReload)
	assert.ElementsMatch(t, []string{"b"}, part.ToKeep)

	union := map[string]bool{}
	for _, bucket := range [][]string{part.ToStop, part.ToStart, part.ToReload, part.ToKeep} {
		for _, n := range bucket {
			assert.False(t, union[n], "name %s appeared in more than one bucket", n)
			union[n] = true
		}
	}

	expected := map[string]bool{"a": true, "b": true, "c": true, "d": true}
	assert.Equal(t, expected, union)
}

// TestDiffEmptyInputs confirms the degenerate cases produce empty, not nil-
// panicking, partitions.
func TestDiffEmptyInputs(t *testing.T) {
	part := Diff(nil, nil)
	assert.Empty(t, part.ToStop)
	assert.Empty(t, part.ToStart)
	assert.Empty(t, part.ToReload)
	assert.Empty(t, part.ToKeep)
}
