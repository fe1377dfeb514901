package netio

import (
	"time"

	"golang.org/x/sys/unix"
)

// SetNonBlocking puts fd in non-blocking mode.
func SetNonBlocking(fd int) bool {
	return unix.SetNonblock(fd, true) == nil
}

// SetBlocking puts fd in blocking mode.
func SetBlocking(fd int) bool {
	return unix.SetNonblock(fd, false) == nil
}

// CanRead waits up to timeout for fd to become readable. A hung-up or
// errored descriptor counts as readable so the following read reports it.
func CanRead(fd int, timeout time.Duration) bool {
	return poll(fd, unix.POLLIN, timeout)
}

// CanWrite waits up to timeout for fd to become writable.
func CanWrite(fd int, timeout time.Duration) bool {
	return poll(fd, unix.POLLOUT, timeout)
}

func poll(fd int, events int16, timeout time.Duration) bool {
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		n, err := unix.Poll(fds, milliseconds(timeout))
		if err == unix.EINTR {
			continue
		}
		return err == nil && n > 0
	}
}

// Read performs one read on fd, retrying on EINTR. If the descriptor
// would block, Read waits up to timeout for it to become readable and tries
// exactly once more.
//
// It returns the number of bytes read. Zero with a nil error means no
// progress: either the wait timed out or the peer reached end of file.
// Callers that need to tell the two apart check readiness first.
func Read(fd int, p []byte, timeout time.Duration) (int, error) {
	return transfer(fd, p, timeout, unix.Read, CanRead)
}

// Write performs one write on fd with the same retry rules as Read. Zero
// with a nil error means the descriptor stayed unwritable for timeout.
func Write(fd int, p []byte, timeout time.Duration) (int, error) {
	return transfer(fd, p, timeout, unix.Write, CanWrite)
}

func transfer(fd int, p []byte, timeout time.Duration,
	op func(int, []byte) (int, error), ready func(int, time.Duration) bool) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := retryEINTR(fd, p, op)
	if wouldBlock(err) {
		if timeout <= 0 || !ready(fd, timeout) {
			return 0, nil
		}
		n, err = retryEINTR(fd, p, op)
		if wouldBlock(err) {
			return 0, nil
		}
	}
	if err != nil {
		return -1, err
	}
	return n, nil
}

func retryEINTR(fd int, p []byte, op func(int, []byte) (int, error)) (int, error) {
	for {
		n, err := op(fd, p)
		if err != unix.EINTR {
			return n, err
		}
	}
}

func wouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// milliseconds converts d for poll(2); negative means wait forever.
func milliseconds(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d.Milliseconds()
	if ms > int64(^uint32(0)>>1) {
		return -1
	}
	return int(ms)
}
