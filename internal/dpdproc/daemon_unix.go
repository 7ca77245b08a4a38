//go:build !windows

package dpdproc

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// StartOpts carries everything StartDaemon needs beyond Run/Args: the
// resolved identity, the working directory, optional chroot, the merged
// environment and an optional combined stdout/stderr writer.
type StartOpts struct {
	CWD       string
	Chroot    string
	UID, GID  int
	HasUser   bool
	Env       []string
	LogWriter io.Writer // nil => /dev/null
	WritePID  bool
	PIDFile   string

	// Daemon marks a spec whose child double-forks and writes its own
	// pidfile; StartWithRetry uses this to judge a spawn by the pidfile's
	// eventual pid rather than by the immediate child's liveness.
	Daemon bool
}

// StartDaemon spawns run+args as a new process-group leader so the
// whole tree can be signalled at once, applies the optional chroot and
// credential drop, and, when opts.WritePID is set, writes the pidfile
// itself once the child has actually started. Grounded on provisr's
// internal/process/process.go ConfigureCmd (SysProcAttr{Setpgid: true})
// generalized with Chroot/Credential, which provisr's single-user, no-
// chroot embeddable-library use case never needed.
func StartDaemon(run string, args []string, opts StartOpts) (pid int, err error) {
	// #nosec G204 -- run/args come from an operator-supplied manifest, the
	// same trust boundary as the original daemon's shelling out.
	cmd := exec.Command(run, args...)
	if opts.CWD != "" {
		cmd.Dir = opts.CWD
	}
	if len(opts.Env) > 0 {
		cmd.Env = opts.Env
	}
	attr := &syscall.SysProcAttr{Setpgid: true}
	if opts.Chroot != "" {
		attr.Chroot = opts.Chroot
	}
	if opts.HasUser {
		attr.Credential = &syscall.Credential{Uid: uint32(opts.UID), Gid: uint32(opts.GID)}
	}
	cmd.SysProcAttr = attr

	if opts.LogWriter != nil {
		cmd.Stdout = opts.LogWriter
		cmd.Stderr = opts.LogWriter
	} else {
		null, _ := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		cmd.Stdout = null
		cmd.Stderr = null
	}

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid = cmd.Process.Pid

	// Release the child: the supervisor tracks liveness by pid/pidfile
	// polling, not by holding a Wait() goroutine, per spec.md §4.1's
	// CheckPid-driven model.
	go func() { _, _ = cmd.Process.Wait() }()

	if opts.WritePID && opts.PIDFile != "" {
		if err := WritePIDFile(opts.PIDFile, pid); err != nil {
			return pid, err
		}
	}
	return pid, nil
}

// IsProcessAlive signals pid with 0 to probe liveness without affecting it.
// EPERM still indicates the process exists (owned by another uid).
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// KillProcess signals the process group with SIGTERM, waits up to linger
// for it to exit, then escalates to SIGKILL. Returns true if the process is
// still alive after escalation. Grounded on
// original_source/lib/worker.py Profile.Stop (KillProcess(pid, timeout=1))
// and constants.py's CHILD_LINGER_TIMEOUT, and on provisr's process group
// signal-then-escalate shape in internal/process/process.go Stop/Kill.
func KillProcess(pid int, linger time.Duration) (stillAlive bool) {
	if !IsProcessAlive(pid) {
		return false
	}
	_ = unix.Kill(-pid, unix.SIGTERM)
	deadline := time.Now().Add(linger)
	for time.Now().Before(deadline) {
		if !IsProcessAlive(pid) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !IsProcessAlive(pid) {
		return false
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
	// Give the kernel a brief moment to reap before reporting state.
	time.Sleep(100 * time.Millisecond)
	return IsProcessAlive(pid)
}

// WritePIDFile writes pid as the pidfile's sole content. The supervisor's
// own pidfile format is a bare integer, matching
// original_source/lib/utils (ReadPidFile/WritePidFile) rather than
// provisr's extended multi-line format; nothing in spec.md's pidfile
// description calls for attaching spec/meta JSON to the file.
func WritePIDFile(path string, pid int) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, fmt.Appendf(nil, "%d", pid), 0o600)
}

// ReadPIDFile reads and parses a pidfile written by WritePIDFile (or by a
// well-behaved daemonizing child). A recoverable read/parse failure is
// reported as (0, err); callers treat that as "no prior process" per
// spec.md §7.
func ReadPIDFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(b), "%d", &pid); err != nil {
		return 0, fmt.Errorf("invalid pidfile %s: %w", path, err)
	}
	return pid, nil
}
