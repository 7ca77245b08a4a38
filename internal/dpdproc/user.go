package dpdproc

import (
	"fmt"
	"os/user"
	"strconv"
)

// ResolveUser resolves a ProcessSpec.User value (a username or a numeric
// uid/gid string) to a uid/gid pair. Grounded on
// original_source/lib/worker.py's Profile.Configure, which calls
// pwd.getpwnam(self.user) and raises ConfigurationError on KeyError; here
// that becomes a plain error return per spec.md §7 ("Unknown user in a
// spec" is a fatal-per-profile Configure error).
func ResolveUser(name string) (uid, gid int, err error) {
	if name == "" {
		return 0, 0, nil
	}
	if n, convErr := strconv.Atoi(name); convErr == nil {
		u, lookErr := user.LookupId(strconv.Itoa(n))
		if lookErr != nil {
			return 0, 0, fmt.Errorf("unknown user id %d: %w", n, lookErr)
		}
		return atoiOr(u.Uid, n), atoiOr(u.Gid, n), nil
	}
	u, err := user.Lookup(name)
	if err != nil {
		return 0, 0, fmt.Errorf("unknown user %q: %w", name, err)
	}
	return atoiOr(u.Uid, 0), atoiOr(u.Gid, 0), nil
}

func atoiOr(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
