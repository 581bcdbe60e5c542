//go:build audiodebug

package invariant

// Enabled reports whether failed checks are fatal.
const Enabled = true

// Check panics with a Violation when cond is false.
func Check(cond bool, msg string) bool {
	if !cond {
		panic(Violation{Msg: msg})
	}
	return true
}
