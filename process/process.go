package process

import (
	"os"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/kbukum/monitkit/stream"
)

// Process is a child spawned by Command.Execute. It is handed to event
// handlers and is only valid while they run: its pipes are closed as soon
// as Execute returns.
type Process struct {
	id      uuid.UUID
	pid     int
	uid     uint32
	gid     uint32
	dir     string
	timeout int
	args    []string
	env     []string

	proc   *os.Process
	exited bool
	status int

	// Parent ends: stdin[1], stdout[0], stderr[0]. Child ends are
	// closed in the parent right after the spawn. -1 marks a closed end.
	stdin  [2]int
	stdout [2]int
	stderr [2]int

	in  *stream.InputStream
	err *stream.InputStream
	out *stream.OutputStream
}

func newProcess(c *Command) *Process {
	env := append(make([]string, 0, len(c.env)), c.env...)
	return &Process{
		id:      uuid.New(),
		dir:     c.dir,
		timeout: c.timeout,
		args:    append([]string(nil), c.args...),
		env:     env,
		status:  -1,
		stdin:   [2]int{-1, -1},
		stdout:  [2]int{-1, -1},
		stderr:  [2]int{-1, -1},
	}
}

// ID identifies this spawn in logs.
func (p *Process) ID() string { return p.id.String() }

// Pid returns the child's process id.
func (p *Process) Pid() int { return p.pid }

// Uid returns the user id the child actually runs as.
func (p *Process) Uid() uint32 { return p.uid }

// Gid returns the group id the child actually runs as.
func (p *Process) Gid() uint32 { return p.gid }

// Dir returns the child's working directory, "" for the parent's.
func (p *Process) Dir() string { return p.dir }

// Timeout returns the onTimeout budget in seconds captured at spawn.
func (p *Process) Timeout() int { return p.timeout }

// Command returns the argument list the child was started with.
func (p *Process) Command() []string { return append([]string(nil), p.args...) }

// IsRunning reports whether the child still exists. A child that exited
// but was not yet reaped counts as running.
func (p *Process) IsRunning() bool {
	if p.exited {
		return false
	}
	return p.proc.Signal(syscall.Signal(0)) != os.ErrProcessDone
}

// Terminate sends SIGTERM to the child.
func (p *Process) Terminate() error {
	return p.signal(syscall.SIGTERM)
}

// Kill sends SIGKILL to the child.
func (p *Process) Kill() error {
	return p.signal(syscall.SIGKILL)
}

func (p *Process) signal(sig syscall.Signal) error {
	if p.exited {
		return os.ErrProcessDone
	}
	return p.proc.Signal(sig)
}

// ExitStatus reaps the child if it has exited, without blocking. It returns
// the exit code, or 128 plus the signal number for a signalled child, and
// true once the child is gone.
func (p *Process) ExitStatus() (int, bool) {
	p.poll()
	return p.status, p.exited
}

// OutputStream returns a stream writing to the child's stdin.
func (p *Process) OutputStream() *stream.OutputStream {
	if p.out == nil {
		p.out = stream.NewOutputStream(p.stdin[1])
	}
	return p.out
}

// InputStream returns a stream reading the child's stdout.
func (p *Process) InputStream() *stream.InputStream {
	if p.in == nil {
		p.in = stream.NewInputStream(p.stdout[0])
	}
	return p.in
}

// ErrorStream returns a stream reading the child's stderr.
func (p *Process) ErrorStream() *stream.InputStream {
	if p.err == nil {
		p.err = stream.NewInputStream(p.stderr[0])
	}
	return p.err
}

// CloseInput closes the child's stdin so it sees end of file. Unflushed
// bytes in the output stream are dropped.
func (p *Process) CloseInput() {
	if p.out != nil {
		p.out.Detach()
	}
	closeEnd(&p.stdin[1])
}

// poll reaps the child with WNOHANG and reports whether it has exited.
func (p *Process) poll() bool {
	if p.exited {
		return true
	}
	var ws unix.WaitStatus
	pid, err := unix.Wait4(p.pid, &ws, unix.WNOHANG, nil)
	for err == unix.EINTR {
		pid, err = unix.Wait4(p.pid, &ws, unix.WNOHANG, nil)
	}
	switch {
	case err != nil:
		// ECHILD: already reaped.
		p.exited = true
	case pid == p.pid:
		p.exited = true
		p.status = exitCode(ws)
	}
	return p.exited
}

func exitCode(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	}
	return -1
}
