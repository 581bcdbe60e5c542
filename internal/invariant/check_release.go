//go:build !audiodebug

package invariant

// Enabled reports whether failed checks are fatal.
const Enabled = false

// Check returns cond unchanged.
func Check(cond bool, _ string) bool {
	return cond
}
