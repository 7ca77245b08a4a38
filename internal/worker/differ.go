package worker

import "github.com/loykin/dpd/internal/dpdproc"

// Partition is the result of diffing an old and new set of ProcessSpecs by
// name, per spec.md §4.3. Grounded on
// original_source/lib/worker.py's FileRefresher.diffProfiles, which builds
// the same four buckets from two name-keyed dicts.
type Partition struct {
	ToStop   []string
	ToStart  []string
	ToReload []string
	ToKeep   []string
}

// Diff computes Partition for oldSpecs -> newSpecs. Testable property 3
// (spec.md §8) requires ToStop/ToStart/ToReload/ToKeep to be pairwise
// disjoint and their union to equal the name sets of both inputs; that
// falls out directly from this being a single pass over each name bucket.
func Diff(oldSpecs, newSpecs []dpdproc.ProcessSpec) Partition {
	oldByName := make(map[string]dpdproc.ProcessSpec, len(oldSpecs))
	for _, s := range oldSpecs {
		oldByName[s.Name] = s
	}
	newByName := make(map[string]dpdproc.ProcessSpec, len(newSpecs))
	for _, s := range newSpecs {
		newByName[s.Name] = s
	}

	var part Partition
	for name := range oldByName {
		if _, ok := newByName[name]; !ok {
			part.ToStop = append(part.ToStop, name)
		}
	}
	for name := range newByName {
		if _, ok := oldByName[name]; !ok {
			part.ToStart = append(part.ToStart, name)
		}
	}
	for name, oldSpec := range oldByName {
		newSpec, ok := newByName[name]
		if !ok {
			continue
		}
		if !oldSpec.Equal(newSpec) {
			part.ToReload = append(part.ToReload, name)
		} else {
			part.ToKeep = append(part.ToKeep, name)
		}
	}
	return part
}

// SpecByName indexes specs for O(1) lookup by name, used by Worker.applyPartition
// to fetch the new spec a to_start/to_reload name refers to.
func SpecByName(specs []dpdproc.ProcessSpec) map[string]dpdproc.ProcessSpec {
	m := make(map[string]dpdproc.ProcessSpec, len(specs))
	for _, s := range specs {
		m[s.Name] = s
	}
	return m
}
