// Package dpdproc implements the data model for a managed process
// (ProcessSpec) and the subprocess utility contract the worker's Profile
// state machine is built on: spawn, signal, reap, and pidfile discipline.
// This corresponds to the "low-level subprocess spawning primitives"
// collaborator spec.md §1 calls out as an external contract.
package dpdproc

import "encoding/json"

// defaultCWD, defaultUser, defaultRestart and defaultWritePID are the
// manifest defaults applied when a key is absent from the JSON document,
// mirroring original_source/lib/worker.py's Profile.Configure
// (`cfg.get('cwd', '/')`, `cfg.get('user', 'nobody')`,
// `cfg.get('restart', True)`, `cfg.get('write_pid', True)`).
const (
	defaultCWD      = "/"
	defaultUser     = "nobody"
	defaultRestart  = true
	defaultWritePID = true
)

// ProcessSpec declaratively describes one managed process. Field names and
// JSON tags follow the wire document in spec.md §3/§6.
type ProcessSpec struct {
	Name string `json:"name"`

	Run  string   `json:"run"`
	Args []string `json:"args"`

	PIDFile string `json:"pid_file"`

	CWD  string `json:"cwd"`
	User string `json:"user"`

	Chroot string `json:"chroot,omitempty"`

	Restart bool `json:"restart"`

	// Depends is recorded but never enforced by the core (spec.md §1 Non-goals).
	Depends []string `json:"depends,omitempty"`

	Env map[string]string `json:"env,omitempty"`

	// Daemon indicates the child itself double-forks and writes its own
	// pidfile; the supervisor must re-read the pidfile after spawn.
	Daemon bool `json:"daemon,omitempty"`

	// WritePID: when false, the child is responsible for creating the
	// pidfile (e.g. because Daemon is also set).
	WritePID bool `json:"write_pid"`

	Logs string `json:"logs,omitempty"`
}

// UnmarshalJSON applies the manifest defaults a bare struct unmarshal would
// otherwise silently zero out: an omitted "restart" or "write_pid" key must
// decode to true, not Go's bool zero value, and an omitted "cwd"/"user" key
// must decode to "/" / "nobody" rather than the empty string. Go can't tell
// "key omitted" from "key present with the zero value" on the plain struct,
// so this decodes into a shadow type with pointer fields for the two bools
// and fills in the defaults only when the pointer is nil.
func (s *ProcessSpec) UnmarshalJSON(data []byte) error {
	type shadow ProcessSpec
	aux := struct {
		Restart  *bool `json:"restart"`
		WritePID *bool `json:"write_pid"`
		*shadow
	}{shadow: (*shadow)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Restart != nil {
		s.Restart = *aux.Restart
	} else {
		s.Restart = defaultRestart
	}
	if aux.WritePID != nil {
		s.WritePID = *aux.WritePID
	} else {
		s.WritePID = defaultWritePID
	}
	if s.CWD == "" {
		s.CWD = defaultCWD
	}
	if s.User == "" {
		s.User = defaultUser
	}
	return nil
}

// Equal reports whether two specs are equal for the purpose of the
// configuration differ's to_reload classification (spec.md §4.3: "deep
// equality of spec fields"). It is a field-wise comparison rather than
// reflect.DeepEqual so that nil vs empty slices/maps (a common artifact of
// JSON round-tripping) do not spuriously mark an unchanged spec as reloaded.
func (s ProcessSpec) Equal(o ProcessSpec) bool {
	if s.Name != o.Name || s.Run != o.Run || s.PIDFile != o.PIDFile ||
		s.CWD != o.CWD || s.User != o.User || s.Chroot != o.Chroot ||
		s.Restart != o.Restart || s.Daemon != o.Daemon || s.WritePID != o.WritePID ||
		s.Logs != o.Logs {
		return false
	}
	if !stringSliceEqual(s.Args, o.Args) {
		return false
	}
	if !stringSliceEqual(s.Depends, o.Depends) {
		return false
	}
	if len(s.Env) != len(o.Env) {
		return false
	}
	for k, v := range s.Env {
		if ov, ok := o.Env[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MergedEnv merges spec.Env over the caller's base environment, producing a
// NAME=VALUE slice suitable for exec.Cmd.Env.
func (s ProcessSpec) MergedEnv(base map[string]string) []string {
	merged := make(map[string]string, len(base)+len(s.Env))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range s.Env {
		merged[k] = v
	}
	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out
}
