package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Caller-visible configuration errors. A Command that fails with one of
// these never spawns.
const (
	// ErrCodeConfiguration indicates a Command or stream was misconfigured
	// (missing program, nonexistent path, inaccessible directory).
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"
	// ErrCodeInvalidInput indicates an invalid argument (nil handler,
	// non-positive timeout, negative stream timeout).
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeNotFound indicates a referenced file or entry does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Environment errors
const (
	// ErrCodeResourceExhausted indicates the OS refused a pipe or a new
	// process. The default reporter treats this as fatal.
	ErrCodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
	// ErrCodeChildSetup indicates the child could not chdir, rewire its
	// stdio or exec the program.
	ErrCodeChildSetup ErrorCode = "CHILD_SETUP"
	// ErrCodeTimeout indicates an operation ran out of time.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// I/O errors
const (
	// ErrCodeStreamClosed indicates a stream was closed after a write error
	// or a peer close.
	ErrCodeStreamClosed ErrorCode = "STREAM_CLOSED"
	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeResourceExhausted: true,
	ErrCodeTimeout:           true,
	ErrCodeInternal:          false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
