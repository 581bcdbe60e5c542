// Package invariant guards preconditions on the audio hot path.
//
// Built with -tags audiodebug a failed check panics. Otherwise Check only
// reports the condition so the caller can bail out without crashing the
// render thread.
package invariant

// Violation is the panic value raised by a failed check in debug builds.
type Violation struct {
	Msg string
}

func (v Violation) Error() string {
	return "invariant violated: " + v.Msg
}
