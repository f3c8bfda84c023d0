package role

import (
	"errors"
	"fmt"
)

// Role is one tier of the admin privilege ladder. The set is totally
// ordered: Editor < Admin < SuperAdmin.
type Role string

const (
	// Editor can manage content but not other principals.
	Editor Role = "editor"
	// Admin can manage content and most site settings.
	Admin Role = "admin"
	// SuperAdmin holds every privilege, including principal management.
	SuperAdmin Role = "super_admin"
)

// ErrUnknownRole is returned by [Parse] for values outside the ordered set.
var ErrUnknownRole = errors.New("unknown role")

var ranks = map[Role]int{
	Editor:     1,
	Admin:      2,
	SuperAdmin: 3,
}

// Parse converts a stored role string into a [Role], rejecting anything
// outside the known set.
func Parse(s string) (Role, error) {
	r := Role(s)
	if _, ok := ranks[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Rank returns the privilege rank of r. Unknown roles rank 0 and therefore
// never authorize anything.
func (r Role) Rank() int {
	return ranks[r]
}

// Known reports whether r is a member of the ordered set.
func (r Role) Known() bool {
	return r.Rank() > 0
}

// Allows reports whether a principal holding r may perform an action that
// requires at least the given role. Both sides must be known roles; an
// unknown requirement is unsatisfiable rather than open.
func (r Role) Allows(required Role) bool {
	req := required.Rank()
	if req == 0 {
		return false
	}
	return r.Rank() >= req
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}
