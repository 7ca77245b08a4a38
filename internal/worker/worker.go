// Package worker implements the supervisor tick loop (spec.md §4.2) that
// drives a node's set of profile.Profile state machines, and the
// configuration differ (§4.3) that reconciles that set against an updated
// local configuration file. Grounded on
// original_source/lib/worker.py's Run/Supervise/FileRefresher trio.
package worker

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/loykin/dpd/internal/config"
	"github.com/loykin/dpd/internal/dpdproc"
	"github.com/loykin/dpd/internal/metrics"
	"github.com/loykin/dpd/internal/profile"
)

// TickInterval is the nominal time between supervisor ticks; spec.md §4.2
// calls for 1s ± 10% jitter to avoid synchronized herds across a fleet.
const TickInterval = 1 * time.Second

const jitterFraction = 0.10

// Worker owns the active Profile set for one node and the file watcher
// that feeds it configuration changes. Grounded on
// original_source/lib/worker.py's Run, which holds `profiles` as a plain
// list mutated by module-level Supervise/FileRefresher functions; here
// that mutable list and its watcher are bundled into one owning type.
type Worker struct {
	configPath string
	watcher    *config.FileWatcher
	active     []*profile.Profile
	lastSpecs  []dpdproc.ProcessSpec

	log *slog.Logger
}

// New constructs a Worker against configPath, without yet loading it.
func New(configPath string, log *slog.Logger) *Worker {
	return &Worker{
		configPath: configPath,
		watcher:    config.NewFileWatcher(configPath),
		log:        log,
	}
}

// Bootstrap loads the initial configuration and Initializes a Profile per
// declared process, adopting any already-running children found via their
// pidfiles (spec.md §4.1's worker-startup recovery path).
func (w *Worker) Bootstrap() error {
	env, err := config.Load(w.configPath)
	if err != nil {
		return err
	}
	// Force the next watcher.Changed() call to report false, since we just
	// consumed this mtime as part of startup, mirroring
	// original_source/lib/worker.py's Run, which loads procs once before
	// entering the refresh-driven loop.
	_, _ = w.watcher.Changed()

	w.lastSpecs = env.Procs
	for _, spec := range env.Procs {
		p, err := profile.New(spec, w.log)
		if err != nil {
			if w.log != nil {
				w.log.Error("dropping unconfigurable profile", "profile", spec.Name, "err", err)
			}
			continue
		}
		p.Initialize()
		w.active = append(w.active, p)
	}
	return nil
}

// Run executes the supervisor loop until ctx is cancelled. Grounded on
// original_source/lib/worker.py's Run: tick, sleep with jitter, refresh.
func (w *Worker) Run(ctx context.Context) error {
	for {
		w.tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitteredInterval()):
		}

		if err := w.refresh(); err != nil && w.log != nil {
			w.log.Debug("refresh skipped", "err", err)
		}
	}
}

// tick runs one Supervise pass over the active set and drops any profile
// that landed in ADMIN_down, rebuilding the slice fresh rather than
// mutating it mid-iteration (the "mutation during iteration" Design Note:
// original_source/lib/worker.py's Supervise calls list.remove while
// iterating the same list, which this restructures into a filtered copy
// built after every profile has had its Supervise call for the tick).
func (w *Worker) tick(ctx context.Context) {
	next := make([]*profile.Profile, 0, len(w.active))
	for _, p := range w.active {
		p.Supervise(ctx)
		for _, s := range []profile.State{profile.Waiting, profile.Running, profile.AdminDown, profile.AdminNotRestarted, profile.AdminNeedRestart, profile.ErrorDown, profile.ErrorUp} {
			metrics.SetCurrentState(p.Name(), string(s), s == p.State())
		}
		if p.State() == profile.AdminDown {
			if w.log != nil {
				w.log.Info("dropping profile", "profile", p.Name())
			}
			continue
		}
		next = append(next, p)
	}
	w.active = next
}

// refresh checks whether the local configuration file's mtime advanced
// and, if so, diffs it against the last-seen spec set and applies the
// partition to the active profile list. Grounded on
// original_source/lib/worker.py's FileRefresher.refresh/diffProfiles.
func (w *Worker) refresh() error {
	changed, err := w.watcher.Changed()
	if err != nil || !changed {
		return err
	}
	env, err := config.Load(w.configPath)
	if err != nil {
		// Reset the mtime watermark so the next tick's Changed reports a
		// change again and the read is retried.
		w.watcher = config.NewFileWatcher(w.configPath)
		return err
	}
	if w.log != nil {
		w.log.Info("refreshing profiles", "path", w.configPath)
	}
	w.applyPartition(Diff(w.lastSpecs, env.Procs), SpecByName(env.Procs))
	w.lastSpecs = env.Procs
	return nil
}

// applyPartition mutates the active set per spec.md §4.3's "Application to
// the profile list" rules.
func (w *Worker) applyPartition(part Partition, newByName map[string]dpdproc.ProcessSpec) {
	stop := toSet(part.ToStop)
	reload := toSet(part.ToReload)

	for _, p := range w.active {
		switch {
		case stop[p.Name()]:
			if w.log != nil {
				w.log.Debug("to stop", "profile", p.Name())
			}
			p.MarkErrorUp()
		case reload[p.Name()]:
			if w.log != nil {
				w.log.Debug("to reload", "profile", p.Name())
			}
			if err := p.MarkNeedRestart(newByName[p.Name()]); err != nil && w.log != nil {
				w.log.Error("reload reconfigure failed", "profile", p.Name(), "err", err)
			}
		}
	}

	for _, name := range part.ToStart {
		spec := newByName[name]
		if w.log != nil {
			w.log.Debug("to start", "profile", name)
		}
		p, err := profile.New(spec, w.log)
		if err != nil {
			if w.log != nil {
				w.log.Error("dropping unconfigurable profile", "profile", name, "err", err)
			}
			continue
		}
		p.Initialize()
		w.active = append(w.active, p)
	}
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func jitteredInterval() time.Duration {
	delta := (rand.Float64()*2 - 1) * jitterFraction
	return time.Duration(float64(TickInterval) * (1 + delta))
}
