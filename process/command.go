package process

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/kbukum/monitkit/errors"
)

// DefaultPath is the only environment entry of a new Command. The caller's
// environment is never inherited.
const DefaultPath = "PATH=/bin:/usr/bin:/usr/local/bin:/opt/csw/bin:/usr/sfw/bin"

// Handler is called with the spawned Process while Execute blocks.
type Handler func(p *Process)

// Command describes a program to spawn. Changing a Command never affects
// processes it already spawned. It is not safe for concurrent use.
type Command struct {
	uid       uint32
	gid       uint32
	timeout   int
	env       []string
	args      []string
	dir       string
	onExec    Handler
	onTimeout Handler
}

// New returns an empty Command whose environment holds only DefaultPath.
func New() *Command {
	return &Command{env: []string{DefaultPath}}
}

// Clone returns an independent copy of c, handlers included.
func (c *Command) Clone() *Command {
	clone := *c
	clone.env = append([]string(nil), c.env...)
	clone.args = append([]string(nil), c.args...)
	return &clone
}

// SetCommand sets the program to run and its arguments, replacing any
// earlier ones. path becomes argument 0 verbatim. It fails if path does
// not exist.
func (c *Command) SetCommand(path string, args ...string) error {
	if _, err := os.Stat(path); path == "" || err != nil {
		return errors.Configuration("File '%s' does not exist", path).WithCause(err)
	}
	c.args = append(append(make([]string, 0, len(args)+1), path), args...)
	return nil
}

// Command returns a copy of the argument list, program path first.
func (c *Command) Command() []string {
	return append([]string(nil), c.args...)
}

// SetDir sets the child's working directory. The directory must exist and
// be searchable. Trailing separators are dropped. An empty dir means the
// caller's working directory.
func (c *Command) SetDir(dir string) error {
	if dir == "" {
		c.dir = ""
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return errors.Configuration("The working directory '%s' is not a directory", dir).WithCause(err)
	}
	if err := unix.Access(dir, unix.X_OK); err != nil {
		return errors.Configuration("The working directory '%s' is not accessible", dir).WithCause(err)
	}
	c.dir = removeTrailingSeparator(dir)
	return nil
}

// Dir returns the configured working directory, or "" for the caller's.
func (c *Command) Dir() string { return c.dir }

// SetUid sets the user id the child runs as. 0 means the caller's.
func (c *Command) SetUid(uid uint32) { c.uid = uid }

// Uid returns the configured user id.
func (c *Command) Uid() uint32 { return c.uid }

// SetGid sets the group id the child runs as. 0 means the caller's.
func (c *Command) SetGid(gid uint32) { c.gid = gid }

// Gid returns the configured group id.
func (c *Command) Gid() uint32 { return c.gid }

// Timeout returns the onTimeout budget in seconds, 0 if none is set.
func (c *Command) Timeout() int { return c.timeout }

// SetOnExec registers the handler called right after the child starts.
// It replaces any earlier onExec handler.
func (c *Command) SetOnExec(h Handler) error {
	if h == nil {
		return errors.InvalidInput("onExec", "handler must not be nil")
	}
	c.onExec = h
	return nil
}

// SetOnTimeout registers the handler called when the child is still
// running timeout seconds after onExec returned. It replaces any earlier
// onTimeout handler.
func (c *Command) SetOnTimeout(timeout int, h Handler) error {
	if timeout <= 0 {
		return errors.InvalidInput("timeout", "must be greater than zero")
	}
	if h == nil {
		return errors.InvalidInput("onTimeout", "handler must not be nil")
	}
	c.timeout = timeout
	c.onTimeout = h
	return nil
}

// Execute spawns the program. See the package documentation for the
// difference between detached and handler-driven execution.
func (c *Command) Execute() error {
	if len(c.args) == 0 {
		recordSpawn(outcomeConfig)
		return errors.Configuration("Command does not contain a program to execute")
	}
	return c.spawn()
}

func (c *Command) hasHandlers() bool {
	return c.onExec != nil || c.onTimeout != nil
}

func removeTrailingSeparator(path string) string {
	trimmed := strings.TrimRight(path, string(os.PathSeparator))
	if trimmed == "" {
		return string(os.PathSeparator)
	}
	return trimmed
}
