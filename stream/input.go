package stream

import (
	"bytes"
	"io"
	"time"

	"github.com/kbukum/monitkit/errors"
	"github.com/kbukum/monitkit/netio"
)

// InputStream is a buffered reader over one descriptor. Each refill waits
// at most Timeout for data. It is not safe for concurrent use.
type InputStream struct {
	fd        int
	buffer    []byte
	offset    int
	length    int
	timeout   time.Duration
	closed    bool
	bytesRead int64
}

// NewInputStream binds a stream to fd with the default timeout.
func NewInputStream(fd int) *InputStream {
	return &InputStream{
		fd:      fd,
		buffer:  make([]byte, BufferSize),
		timeout: DefaultTimeout,
	}
}

// Descriptor returns the underlying descriptor.
func (s *InputStream) Descriptor() int { return s.fd }

// Buffered returns the number of bytes read from the descriptor but not yet
// consumed.
func (s *InputStream) Buffered() int { return s.length - s.offset }

// SetTimeout sets how long a refill may wait for data.
func (s *InputStream) SetTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return errors.InvalidInput("timeout", "must not be negative")
	}
	s.timeout = timeout
	return nil
}

// Timeout returns the refill timeout.
func (s *InputStream) Timeout() time.Duration { return s.timeout }

// IsClosed reports whether end of file or a read error has been seen.
func (s *InputStream) IsClosed() bool { return s.closed }

// BytesRead returns the total number of bytes read from the descriptor.
func (s *InputStream) BytesRead() int64 { return s.bytesRead }

// Read implements io.Reader. It returns io.EOF once the peer has closed
// its end, and a TIMEOUT error if no data arrived within the timeout.
func (s *InputStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.Buffered() == 0 {
		if err := s.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, s.buffer[s.offset:s.length])
	s.offset += n
	return n, nil
}

// ReadLine reads up to and including the next newline and returns the line
// without it. At end of file a final unterminated line is returned with a
// nil error. On any error the bytes gathered so far are returned with it.
func (s *InputStream) ReadLine() (string, error) {
	var line []byte
	for {
		if s.Buffered() == 0 {
			if err := s.fill(); err != nil {
				if err == io.EOF && len(line) > 0 {
					return string(line), nil
				}
				return string(line), err
			}
		}
		chunk := s.buffer[s.offset:s.length]
		if i := bytes.IndexByte(chunk, '\n'); i >= 0 {
			line = append(line, chunk[:i]...)
			s.offset += i + 1
			return string(line), nil
		}
		line = append(line, chunk...)
		s.offset = s.length
	}
}

// Clear discards buffered bytes.
func (s *InputStream) Clear() {
	s.offset, s.length = 0, 0
}

// fill refills the buffer. A readable descriptor that yields no bytes is at
// end of file; that check is what separates EOF from a timeout.
func (s *InputStream) fill() error {
	if s.closed {
		return io.EOF
	}
	if !netio.CanRead(s.fd, s.timeout) {
		return errors.Timeout("read")
	}
	n, err := netio.Read(s.fd, s.buffer, 0)
	if err != nil {
		s.closed = true
		s.Clear()
		recordClosed("input")
		return errors.StreamClosed(s.fd).WithCause(err)
	}
	if n == 0 {
		s.closed = true
		recordClosed("input")
		return io.EOF
	}
	s.offset, s.length = 0, n
	s.bytesRead += int64(n)
	return nil
}

// Detach unbinds the stream from its descriptor once the owner has closed
// it. Later reads report end of file.
func (s *InputStream) Detach() {
	s.closed = true
	s.Clear()
}
