package profile

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/dpd/internal/dpdproc"
	"github.com/loykin/dpd/internal/logger"
	"github.com/loykin/dpd/internal/metrics"
)

// MaxStarts is the restart-throttle ceiling: at most this many spawns are
// allowed inside any rolling 60s window (spec.md §3, §8 property 1).
// Grounded on original_source/lib/worker.py's module-level
// "MAX_STARTS = 5" constant.
const MaxStarts = 5

// ThrottleWindow is the rolling window the throttle counts spawns over.
const ThrottleWindow = 60 * time.Second

// LingerTimeout bounds how long Stop waits for a signalled child to exit
// before reporting it as still alive (the glossary's "Linger timeout").
const LingerTimeout = 5 * time.Second

// DefaultLinger is the linger Stop actually uses day to day; original_source
// calls KillProcess(pid, timeout=1) from Profile.Stop, reserving
// CHILD_LINGER_TIMEOUT=5s as the hard ceiling.
const DefaultLinger = 1 * time.Second

// StartRetryDeadline bounds how long Start's internal quick-exit retry
// (spec.md §7) keeps re-spawning a child that dies immediately before
// giving up and marking the profile ErrorDown.
const StartRetryDeadline = 8 * time.Second

// Profile is the runtime envelope around one managed process: spec.md §3's
// Profile record. Grounded directly on original_source/lib/worker.py's
// Profile class; CheckPid/Start/Stop/Supervise/Initialize/Configure below
// are Go translations of that class's methods, with the
// module-level mutable STATE_* constants replaced by the profile package's
// closed State enum and exceptions replaced by error returns.
type Profile struct {
	Spec dpdproc.ProcessSpec

	pid      int
	state    State
	starts   []time.Time
	nbStarts int
	uid, gid int
	hasUser  bool

	log *slog.Logger
	now func() time.Time
}

// New builds a Profile from spec and runs Configure, mirroring
// original_source/lib/worker.py's Profile.__init__, which calls
// self.Configure(cfg) before any other field is touched.
func New(spec dpdproc.ProcessSpec, log *slog.Logger) (*Profile, error) {
	p := &Profile{state: Waiting, now: time.Now, log: log}
	if err := p.Configure(spec); err != nil {
		return nil, err
	}
	return p, nil
}

// Name is the profile's identity key.
func (p *Profile) Name() string { return p.Spec.Name }

// State returns the profile's current lifecycle state.
func (p *Profile) State() State { return p.state }

// PID returns the last-known child pid (0 if none).
func (p *Profile) PID() int { return p.pid }

// Configure (re)binds spec onto the profile and resolves its user. Called
// both at birth and when the configuration differ marks a profile for
// reload (spec.md §4.3).
func (p *Profile) Configure(spec dpdproc.ProcessSpec) error {
	p.Spec = spec
	p.uid, p.gid, p.hasUser = 0, 0, false
	if spec.User != "" {
		uid, gid, err := dpdproc.ResolveUser(spec.User)
		if err != nil {
			return err
		}
		p.uid, p.gid, p.hasUser = uid, gid, true
	}
	return nil
}

// Initialize probes the pidfile at worker startup and adopts a live process
// without spawning, the supervisor-restart recovery path (spec.md §4.1,
// §8 property 2). Grounded on Profile.Initialize.
func (p *Profile) Initialize() {
	pid, err := dpdproc.ReadPIDFile(p.Spec.PIDFile)
	if err != nil || pid <= 0 {
		return
	}
	if !dpdproc.IsProcessAlive(pid) {
		return
	}
	p.pid = pid
	p.state = Running
	p.nbStarts = 0
	if p.log != nil {
		p.log.Info("recovered running process", "profile", p.Spec.Name, "pid", pid)
	}
}

// Supervise runs one tick of the profile's state machine: CheckPid, then
// Stop if the state calls for it, then Start if the state calls for it.
// Grounded on Profile.Supervise.
func (p *Profile) Supervise(ctx context.Context) {
	p.CheckPid()
	if ShouldStop(p.state) {
		p.Stop()
	}
	if ShouldStart(p.state) {
		p.Start(ctx)
	}
}

// CheckPid verifies a running profile's pid is still alive, re-adopting a
// replacement pid from the pidfile if the original died but something else
// wrote a live pid there in the meantime. Grounded on Profile.CheckPid.
func (p *Profile) CheckPid() {
	if p.state != Running {
		return
	}
	if dpdproc.IsProcessAlive(p.pid) {
		return
	}
	if pid, err := dpdproc.ReadPIDFile(p.Spec.PIDFile); err == nil && pid != p.pid && dpdproc.IsProcessAlive(pid) {
		p.pid = pid
		return
	}
	from := p.state
	if p.Spec.Restart {
		p.state = ErrorDown
	} else {
		p.state = AdminDown
	}
	p.recordTransition(from)
}

// Start spawns the child if the restart-throttle rate gate allows it.
// Grounded on Profile.Start; the "pid written by us vs. by a double-
// forking daemon child" judgement is StartWithRetry's (dpdproc/retry.go).
func (p *Profile) Start(ctx context.Context) {
	from := p.state
	if p.throttled() {
		p.state = AdminNotRestarted
		p.recordTransition(from)
		if p.log != nil {
			p.log.Info("restart throttled", "profile", p.Spec.Name)
		}
		metrics.IncRestartThrottled(p.Spec.Name)
		return
	}

	var logWriter io.WriteCloser
	if p.Spec.Logs != "" {
		logWriter = (logger.RedirectConfig{Path: p.Spec.Logs}).Writer()
		defer func() { _ = logWriter.Close() }()
	}

	opts := dpdproc.StartOpts{
		CWD:       p.Spec.CWD,
		Chroot:    p.Spec.Chroot,
		UID:       p.uid,
		GID:       p.gid,
		HasUser:   p.hasUser,
		Env:       p.Spec.MergedEnv(baseEnv()),
		LogWriter: logWriter,
		WritePID:  p.Spec.WritePID,
		PIDFile:   p.Spec.PIDFile,
		Daemon:    p.Spec.Daemon,
	}

	pid, err := dpdproc.StartWithRetry(ctx, p.Spec.Run, p.Spec.Args, opts, dpdproc.DefaultBackoff, StartRetryDeadline)
	if err != nil {
		if p.log != nil {
			p.log.Error("start failed", "profile", p.Spec.Name, "err", err)
		}
		p.state = ErrorDown
		p.recordTransition(from)
		return
	}

	p.pid = pid
	p.state = Running
	p.nbStarts++
	p.starts = append(p.starts, p.now())
	p.recordTransition(from)
	metrics.IncProfileStart(p.Spec.Name)
	if p.log != nil {
		p.log.Info("started", "profile", p.Spec.Name, "pid", pid)
	}
}

// Stop signals the child and waits for it to exit, observing the
// Open-Question (a) guard from DESIGN.md: a profile already in
// ADMIN_needrestart keeps that state through Stop so Start fires on the
// same tick, instead of being clobbered to ADMIN_down. Grounded on
// Profile.Stop.
func (p *Profile) Stop() {
	from := p.state
	if p.log != nil {
		p.log.Info("stopping", "profile", p.Spec.Name, "pid", p.pid)
	}
	stillAlive := dpdproc.KillProcess(p.pid, DefaultLinger)
	if p.state != AdminNeedRestart {
		p.state = AdminDown
	}
	if stillAlive {
		if p.log != nil {
			p.log.Warn("profile not stopped", "profile", p.Spec.Name, "pid", p.pid)
		}
		p.state = ErrorUp
	}
	p.recordTransition(from)
}

// MarkErrorUp puts the profile in ErrorUp, the configuration differ's
// signal that a profile whose name disappeared from the manifest should be
// stopped on the next tick (spec.md §4.3).
func (p *Profile) MarkErrorUp() {
	from := p.state
	p.state = ErrorUp
	p.recordTransition(from)
}

// MarkNeedRestart puts the profile in AdminNeedRestart and reconfigures it
// with spec, so the next Supervise tick stops the old child before
// starting the new one (spec.md §4.3's to_reload handling).
func (p *Profile) MarkNeedRestart(spec dpdproc.ProcessSpec) error {
	from := p.state
	p.state = AdminNeedRestart
	p.recordTransition(from)
	return p.Configure(spec)
}

// throttled reports whether the rate gate should block a spawn: at least
// MaxStarts starts recorded and the one MaxStarts back is within the
// rolling window. Grounded on Profile.Start's "cut_off = self.starts[-max_start]".
func (p *Profile) throttled() bool {
	if p.nbStarts < MaxStarts || len(p.starts) < MaxStarts {
		return false
	}
	cutoff := p.starts[len(p.starts)-MaxStarts]
	return cutoff.After(p.now().Add(-ThrottleWindow))
}

func (p *Profile) recordTransition(from State) {
	if from == p.state {
		return
	}
	metrics.RecordStateTransition(p.Spec.Name, string(from), string(p.state))
}

func baseEnv() map[string]string {
	base := map[string]string{}
	for _, k := range []string{"PATH", "HOME", "LANG"} {
		if v, ok := os.LookupEnv(k); ok {
			base[k] = v
		}
	}
	return base
}
