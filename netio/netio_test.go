package netio

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// pipe returns a read/write descriptor pair closed at test cleanup.
func pipe(t *testing.T) (int, int) {
	t.Helper()
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(p[0])
		unix.Close(p[1])
	})
	return p[0], p[1]
}

// fill writes to a non-blocking fd until the kernel buffer is full.
func fill(t *testing.T, fd int) {
	t.Helper()
	chunk := make([]byte, 4096)
	for {
		_, err := unix.Write(fd, chunk)
		if err == unix.EAGAIN {
			return
		}
		if err != nil {
			t.Fatalf("fill: %v", err)
		}
	}
}

func TestBlockingToggles(t *testing.T) {
	r, _ := pipe(t)

	if !SetNonBlocking(r) {
		t.Fatal("SetNonBlocking failed")
	}
	flags, err := unix.FcntlInt(uintptr(r), unix.F_GETFL, 0)
	if err != nil {
		t.Fatalf("fcntl: %v", err)
	}
	if flags&unix.O_NONBLOCK == 0 {
		t.Error("expected O_NONBLOCK to be set")
	}

	if !SetBlocking(r) {
		t.Fatal("SetBlocking failed")
	}
	flags, _ = unix.FcntlInt(uintptr(r), unix.F_GETFL, 0)
	if flags&unix.O_NONBLOCK != 0 {
		t.Error("expected O_NONBLOCK to be cleared")
	}

	if SetNonBlocking(-1) {
		t.Error("expected failure on an invalid descriptor")
	}
}

func TestCanReadAndCanWrite(t *testing.T) {
	r, w := pipe(t)

	if CanRead(r, 10*time.Millisecond) {
		t.Error("empty pipe should not be readable")
	}
	if !CanWrite(w, 10*time.Millisecond) {
		t.Error("empty pipe should be writable")
	}

	if _, err := unix.Write(w, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !CanRead(r, 10*time.Millisecond) {
		t.Error("pipe with data should be readable")
	}

	SetNonBlocking(w)
	fill(t, w)
	if CanWrite(w, 10*time.Millisecond) {
		t.Error("full pipe should not be writable")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	r, w := pipe(t)
	SetNonBlocking(r)
	SetNonBlocking(w)

	n, err := Write(w, []byte("ping"), time.Second)
	if err != nil || n != 4 {
		t.Fatalf("Write = %d, %v", n, err)
	}

	buf := make([]byte, 16)
	n, err = Read(r, buf, time.Second)
	if err != nil || string(buf[:n]) != "ping" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}
}

func TestReadWouldBlockTimesOut(t *testing.T) {
	r, _ := pipe(t)
	SetNonBlocking(r)

	start := time.Now()
	n, err := Read(r, make([]byte, 8), 20*time.Millisecond)
	if n != 0 || err != nil {
		t.Fatalf("expected (0, nil) on timeout, got (%d, %v)", n, err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Error("expected Read to wait for the timeout")
	}

	n, err = Read(r, make([]byte, 8), 0)
	if n != 0 || err != nil {
		t.Fatalf("expected (0, nil) with zero timeout, got (%d, %v)", n, err)
	}
}

func TestReadWaitsForLateData(t *testing.T) {
	r, w := pipe(t)
	SetNonBlocking(r)

	go func() {
		time.Sleep(20 * time.Millisecond)
		unix.Write(w, []byte("late"))
	}()

	buf := make([]byte, 8)
	n, err := Read(r, buf, time.Second)
	if err != nil || string(buf[:n]) != "late" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}
}

func TestReadEOF(t *testing.T) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(p[0])
	unix.Close(p[1])

	n, err := Read(p[0], make([]byte, 8), 10*time.Millisecond)
	if n != 0 || err != nil {
		t.Fatalf("expected (0, nil) at EOF, got (%d, %v)", n, err)
	}
}

func TestWriteWouldBlockReturnsZero(t *testing.T) {
	_, w := pipe(t)
	SetNonBlocking(w)
	fill(t, w)

	n, err := Write(w, []byte("more"), 10*time.Millisecond)
	if n != 0 || err != nil {
		t.Fatalf("expected (0, nil) on a full pipe, got (%d, %v)", n, err)
	}
}

func TestWriteErrors(t *testing.T) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	unix.Close(p[0])
	defer unix.Close(p[1])

	n, err := Write(p[1], []byte("x"), 10*time.Millisecond)
	if err != unix.EPIPE || n != -1 {
		t.Errorf("expected (-1, EPIPE) with no reader, got (%d, %v)", n, err)
	}

	n, err = Write(-1, []byte("x"), 10*time.Millisecond)
	if err != unix.EBADF || n != -1 {
		t.Errorf("expected (-1, EBADF) on a bad descriptor, got (%d, %v)", n, err)
	}
}

func TestEmptyBufferIsNoop(t *testing.T) {
	n, err := Write(-1, nil, time.Second)
	if n != 0 || err != nil {
		t.Errorf("expected (0, nil) for empty write, got (%d, %v)", n, err)
	}
	n, err = Read(-1, nil, time.Second)
	if n != 0 || err != nil {
		t.Errorf("expected (0, nil) for empty read, got (%d, %v)", n, err)
	}
}

func TestMilliseconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 0},
		{1500 * time.Microsecond, 1},
		{3 * time.Second, 3000},
		{-time.Second, -1},
	}
	for _, tc := range tests {
		if got := milliseconds(tc.in); got != tc.want {
			t.Errorf("milliseconds(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
