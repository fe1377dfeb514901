package stream

import (
	"fmt"
	"time"

	"github.com/kbukum/monitkit/errors"
	"github.com/kbukum/monitkit/logger"
	"github.com/kbukum/monitkit/netio"
)

const (
	// BufferSize is the initial buffer capacity, roughly two TCP frames.
	BufferSize = 3000
	// DefaultTimeout bounds a single read or flush.
	DefaultTimeout = 3000 * time.Millisecond
)

// OutputStream is a buffered writer over one descriptor. It is not safe for
// concurrent use.
type OutputStream struct {
	fd           int
	buffer       []byte
	offset       int
	timeout      time.Duration
	closed       bool
	bytesWritten int64
}

// NewOutputStream binds a stream to fd with the default timeout.
func NewOutputStream(fd int) *OutputStream {
	return &OutputStream{
		fd:      fd,
		buffer:  make([]byte, 0, BufferSize),
		timeout: DefaultTimeout,
	}
}

// Descriptor returns the underlying descriptor.
func (s *OutputStream) Descriptor() int { return s.fd }

// Buffered returns the number of bytes not yet sent.
func (s *OutputStream) Buffered() int { return len(s.buffer) - s.offset }

// SetTimeout sets how long Flush may wait for the descriptor.
func (s *OutputStream) SetTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return errors.InvalidInput("timeout", "must not be negative")
	}
	s.timeout = timeout
	return nil
}

// Timeout returns the flush timeout.
func (s *OutputStream) Timeout() time.Duration { return s.timeout }

// IsClosed reports whether a write error or peer close has closed the stream.
func (s *OutputStream) IsClosed() bool { return s.closed }

// BytesWritten returns the total number of bytes handed to the descriptor.
func (s *OutputStream) BytesWritten() int64 { return s.bytesWritten }

// Write appends p to the buffer. Nothing is sent until Flush.
func (s *OutputStream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errors.StreamClosed(s.fd)
	}
	s.buffer = append(s.buffer, p...)
	return len(p), nil
}

// Print formats its operands with fmt.Sprint and appends the result.
func (s *OutputStream) Print(a ...any) {
	if s.closed || len(a) == 0 {
		return
	}
	s.buffer = fmt.Append(s.buffer, a...)
}

// Printf formats according to format and appends the result.
func (s *OutputStream) Printf(format string, a ...any) {
	if s.closed || format == "" {
		return
	}
	s.buffer = fmt.Appendf(s.buffer, format, a...)
}

// Flush makes one attempt to send the buffered bytes within the timeout.
//
// It returns the number of bytes sent, which may be fewer than Buffered;
// call Flush again until Buffered reports zero. A result of 0 with a nil
// error means the descriptor would block. On any other failure the stream
// is closed, its buffer discarded, and Flush returns -1 with an error.
func (s *OutputStream) Flush() (int, error) {
	if s.closed {
		return -1, errors.StreamClosed(s.fd)
	}
	if s.Buffered() == 0 {
		return 0, nil
	}
	n, err := netio.Write(s.fd, s.buffer[s.offset:], s.timeout)
	if err != nil {
		s.close(err)
		return -1, errors.StreamClosed(s.fd).WithCause(err)
	}
	if n > 0 {
		s.offset += n
		s.bytesWritten += int64(n)
		recordBytesWritten(n)
		if s.offset == len(s.buffer) {
			s.reset()
		}
	}
	return n, nil
}

// Clear discards buffered bytes without sending them.
func (s *OutputStream) Clear() {
	s.reset()
}

func (s *OutputStream) reset() {
	s.offset = 0
	s.buffer = s.buffer[:0]
}

func (s *OutputStream) close(cause error) {
	s.closed = true
	s.reset()
	recordClosed("output")
	logger.Get("stream").Debug("output stream closed", logger.Fields(
		logger.FieldFD, s.fd,
		logger.FieldError, cause.Error(),
	))
}

// Detach unbinds the stream from its descriptor once the owner has closed
// it. Buffered bytes are dropped and later calls fail as on a closed stream.
func (s *OutputStream) Detach() {
	s.closed = true
	s.reset()
}
