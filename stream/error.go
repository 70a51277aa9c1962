package stream

import "fmt"

// Err is an error type for fatal stream problems:
// * requested version range no longer retained upstream
// * version ordering broken
type Err string

func (err Err) Error() string {
	return string(err)
}

// ExitCode fulfils run.WithExitCode.
//
// Both conditions require operator intervention (repointing the processor or
// repairing the upstream stream). To distinguish them from other errors, they
// cause the process to exit with code 100.
func (Err) ExitCode() int {
	return 100
}

// ErrRangeUnavailable means the requested range starts before the oldest
// version the source still retains
const ErrRangeUnavailable Err = "requested version range unavailable"

// ErrOrderingViolation means the source delivered a version out of order
const ErrOrderingViolation Err = "version ordering violation"

// OrderingViolation returns an ErrOrderingViolation annotated with the
// expected and actual versions
func OrderingViolation(expected, actual uint64) error {
	return fmt.Errorf("%w: expected version %d, got %d", ErrOrderingViolation, expected, actual)
}
