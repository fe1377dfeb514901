package process

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kbukum/monitkit/stream"
)

const (
	// DefaultGracePeriod is the wait between SIGTERM and SIGKILL.
	DefaultGracePeriod = 5 * time.Second

	captureInterval = 50 * time.Millisecond
	readsPerPass    = 16
)

// RunOption configures Run.
type RunOption func(*runOptions)

type runOptions struct {
	stdin       []byte
	gracePeriod time.Duration
}

// WithStdin feeds data to the child's stdin, which is closed once all of
// it has been written.
func WithStdin(data []byte) RunOption {
	return func(o *runOptions) { o.stdin = data }
}

// WithGracePeriod sets the wait between SIGTERM and SIGKILL on cancellation.
func WithGracePeriod(d time.Duration) RunOption {
	return func(o *runOptions) {
		if d > 0 {
			o.gracePeriod = d
		}
	}
}

// Run executes c and waits for it to complete, capturing stdout and stderr.
// c itself is not modified. A Command timeout bounds the run like a context
// deadline. When ctx is done the child's process group receives SIGTERM,
// then SIGKILL after the grace period.
//
// Stdin is fed while output is drained, so input larger than the pipe
// buffers reaches a child that echoes it. Input the child never accepted
// is reported as an error.
func Run(ctx context.Context, c *Command, opts ...RunOption) (*Result, error) {
	o := runOptions{gracePeriod: DefaultGracePeriod}
	for _, opt := range opts {
		opt(&o)
	}
	if t := c.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t)*time.Second)
		defer cancel()
	}

	rc := c.Clone()
	rc.onTimeout, rc.timeout = nil, 0
	result := &Result{ExitCode: -1}
	var stdinErr error
	rc.onExec = func(p *Process) {
		stdinErr = capture(ctx, p, &o, result)
	}

	start := time.Now()
	if err := rc.Execute(); err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)

	if err := runErr(ctx, result); err != nil {
		return result, err
	}
	return result, stdinErr
}

func runErr(ctx context.Context, result *Result) error {
	if result.Killed {
		cause := ctx.Err()
		if cause == nil {
			// The Command's own timeout expired.
			cause = context.DeadlineExceeded
		}
		return fmt.Errorf("process: killed by context: %w", cause)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("process: exit code %d", result.ExitCode)
	}
	return nil
}

// capture feeds stdin and collects output until the child exits or ctx is
// done. It returns an error when stdin could not be delivered in full.
func capture(ctx context.Context, p *Process, o *runOptions, result *Result) error {
	result.Pid = p.Pid()

	in := p.OutputStream()
	in.SetTimeout(captureInterval)
	in.Write(o.stdin)
	var stdinErr error
	stdinDone := false

	stdout, stderr := p.InputStream(), p.ErrorStream()
	stdout.SetTimeout(captureInterval)
	stderr.SetTimeout(captureInterval)
	var outBuf, errBuf bytes.Buffer

	for {
		if !stdinDone {
			stdinDone, stdinErr = feed(p, in, len(o.stdin))
		}
		drain(stdout, &outBuf)
		drain(stderr, &errBuf)
		if code, exited := p.ExitStatus(); exited {
			result.ExitCode = code
			break
		}
		if ctx.Err() != nil {
			result.Killed = true
			stop(p, o.gracePeriod)
			break
		}
		if stdinDone && stdout.IsClosed() && stderr.IsClosed() {
			time.Sleep(captureInterval)
		}
	}
	if !stdinDone {
		unsent := in.Buffered()
		p.CloseInput()
		stdinErr = fmt.Errorf("process: stdin closed with %d of %d bytes unsent", unsent, len(o.stdin))
	}
	drain(stdout, &outBuf)
	drain(stderr, &errBuf)

	result.Stdout = outBuf.Bytes()
	result.Stderr = errBuf.Bytes()
	return stdinErr
}

// feed makes one flush attempt and closes the child's stdin once nothing is
// left to send. It reports whether stdin is finished.
func feed(p *Process, in *stream.OutputStream, total int) (bool, error) {
	if unsent := in.Buffered(); unsent > 0 {
		if _, err := in.Flush(); err != nil {
			p.CloseInput()
			return true, fmt.Errorf("process: stdin closed with %d of %d bytes unsent: %w", unsent, total, err)
		}
		if in.Buffered() > 0 {
			return false, nil
		}
	}
	p.CloseInput()
	return true, nil
}

// drain copies what s yields within a bounded number of reads.
func drain(s *stream.InputStream, buf *bytes.Buffer) {
	chunk := make([]byte, 4096)
	for i := 0; i < readsPerPass; i++ {
		n, err := s.Read(chunk)
		buf.Write(chunk[:n])
		if err != nil {
			return
		}
	}
}

// stop sends SIGTERM to the child's process group and SIGKILL if it is
// still alive after grace.
func stop(p *Process, grace time.Duration) {
	unix.Kill(-p.Pid(), unix.SIGTERM)
	if waitFor(p, grace) {
		return
	}
	unix.Kill(-p.Pid(), unix.SIGKILL)
	waitFor(p, time.Second)
}

func waitFor(p *Process, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if _, exited := p.ExitStatus(); exited {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}
