package process

import "time"

// Result holds the output and status of a completed Run.
type Result struct {
	// Pid is the child's process id.
	Pid int
	// Stdout is the captured standard output.
	Stdout []byte
	// Stderr is the captured standard error.
	Stderr []byte
	// ExitCode is the exit code, 128 plus the signal number for a signalled
	// child, or -1 if it was killed on cancellation.
	ExitCode int
	// Killed is set when the run was cancelled and the child stopped.
	Killed bool
	// Duration is how long the run took.
	Duration time.Duration
}
