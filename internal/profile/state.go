// Package profile implements the per-process state machine described by
// spec.md §4.1: a Profile wraps one managed process, tracks its observed
// liveness against the declared spec, and decides whether to stop, start
// or leave it alone on each supervisor tick. Grounded throughout on
// original_source/lib/worker.py's Profile class, translating its Python
// string-state field into a closed Go enum per the "string-based state ->
// enum" Design Note.
package profile

// State is a closed set of profile lifecycle states. Using a named string
// type instead of bare strings lets the compiler catch typos that the
// original's bare STATE_* string constants could not.
type State string

const (
	Waiting            State = "waiting"
	Running            State = "running"
	AdminDown          State = "ADMIN_down"
	AdminNotRestarted  State = "ADMIN_notrestarted"
	AdminNeedRestart   State = "ADMIN_needrestart"
	ErrorDown          State = "ERROR_down"
	ErrorUp            State = "ERROR_up"
)

// toStop and toStart mirror original_source/lib/worker.py's
// STATE_TO_STOP/STATE_TO_START tuples, reimplemented as lookup maps so
// membership is an O(1) map probe rather than tuple scan.
var toStop = map[State]bool{
	ErrorUp:          true,
	AdminNeedRestart: true,
}

var toStart = map[State]bool{
	Waiting:          true,
	ErrorDown:        true,
	AdminNeedRestart: true,
}

// ShouldStop reports whether a profile in state s is due a stop action on
// this tick (spec.md §4.1's Supervise step).
func ShouldStop(s State) bool { return toStop[s] }

// ShouldStart reports whether a profile in state s is due a start action on
// this tick.
func ShouldStart(s State) bool { return toStart[s] }
