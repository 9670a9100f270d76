package merge

import "fmt"

// invariantViolation panics with a message identifying which of the merge
// engine's core invariants broke. Per spec §7, this must not occur in
// correct operation; it exists so a bug surfaces immediately at the point
// of corruption rather than as a confusing downstream symptom.
func invariantViolation(format string, args ...any) {
	panic(fmt.Sprintf("merge: invariant violation: "+format, args...))
}
