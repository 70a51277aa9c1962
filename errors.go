package alluvium

// Err is an error type for fatal pipeline problems
type Err string

func (err Err) Error() string {
	return string(err)
}

// ExitCode fulfils run.WithExitCode.
//
// Both conditions require operator intervention (restoring the sink or
// repointing the processor at the right stream), so they share exit code 100
// with the fatal stream errors.
func (Err) ExitCode() int {
	return 100
}

// ErrSinkExhausted means a batch commit kept failing until the retry budget
// ran out
const ErrSinkExhausted Err = "sink retry budget exhausted"

// ErrChainMismatch means the stream carries transactions of a different
// chain than the processor is configured for
const ErrChainMismatch Err = "chain identity mismatch"
