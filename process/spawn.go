package process

import (
	"errors"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	apperrors "github.com/kbukum/monitkit/errors"
	"github.com/kbukum/monitkit/logger"
	"github.com/kbukum/monitkit/netio"
	"github.com/kbukum/monitkit/system"
)

// pollInterval is the step of the onTimeout countdown.
var pollInterval = time.Second

func (c *Command) spawn() error {
	log := logger.Get("process")
	p := newProcess(c)

	var stdio []*os.File
	if c.hasHandlers() {
		files, err := p.openPipes()
		if err != nil {
			recordSpawn(outcomeExhausted)
			system.Abort("Command: cannot create pipes -- %v", err)
			return apperrors.ResourceExhausted("pipe", err)
		}
		stdio = files
	} else {
		devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		if err != nil {
			recordSpawn(outcomeChildSetup)
			system.Error("Command: cannot open %s -- %v", os.DevNull, err)
			return apperrors.ChildSetup(p.args[0], err)
		}
		defer devNull.Close()
		stdio = []*os.File{devNull, devNull, devNull}
	}

	proc, err := p.start(c, stdio)
	p.closeChildEnds(stdio)
	if err != nil {
		p.closeParentEnds()
		return spawnFailed(p, err)
	}
	p.proc = proc
	p.pid = proc.Pid
	recordSpawn(outcomeOK)
	log.Debug("process started", logger.Fields(
		logger.FieldRunID, p.ID(),
		logger.FieldPID, p.pid,
		logger.FieldPath, p.args[0],
		logger.FieldUID, p.uid,
		logger.FieldGID, p.gid,
		logger.FieldDir, p.dir,
	))

	defer reap(p)
	if !c.hasHandlers() {
		return nil
	}
	defer p.closeParentEnds()

	for _, fd := range []int{p.stdin[1], p.stdout[0], p.stderr[0]} {
		netio.SetNonBlocking(fd)
	}
	if c.onExec != nil {
		runHandler("onExec", c.onExec, p)
	}
	if c.onTimeout != nil && !p.waitExit(p.timeout) {
		recordTimeout()
		log.Info("process timed out", logger.Fields(
			logger.FieldRunID, p.ID(),
			logger.FieldPID, p.pid,
			logger.FieldTimeout, p.timeout,
		))
		runHandler("onTimeout", c.onTimeout, p)
	}
	return nil
}

// start spawns the child. A uid/gid switch refused with EPERM is retried
// with the caller's ids, one id at a time; p records the ids in effect.
func (p *Process) start(c *Command, stdio []*os.File) (*os.Process, error) {
	callerUID, callerGID := uint32(os.Getuid()), uint32(os.Getgid())
	uid, gid := c.uid, c.gid
	if uid == 0 {
		uid = callerUID
	}
	if gid == 0 {
		gid = callerGID
	}

	var proc *os.Process
	var err error
	for _, ids := range credentialCandidates(uid, gid, callerUID, callerGID) {
		p.uid, p.gid = ids[0], ids[1]
		proc, err = os.StartProcess(p.args[0], p.args, &os.ProcAttr{
			Dir:   p.dir,
			Env:   p.env,
			Files: stdio,
			Sys: &syscall.SysProcAttr{
				Setsid:     true,
				Credential: credential(ids[0], ids[1], callerUID, callerGID),
			},
		})
		if err == nil || !errors.Is(err, syscall.EPERM) {
			break
		}
		logger.Get("process").Warn("cannot switch credentials, falling back", logger.Fields(
			logger.FieldPath, p.args[0],
			logger.FieldUID, ids[0],
			logger.FieldGID, ids[1],
			logger.FieldError, err.Error(),
		))
	}
	return proc, err
}

// credentialCandidates lists the uid/gid pairs to try in order, ending
// with the caller's own ids.
func credentialCandidates(uid, gid, callerUID, callerGID uint32) [][2]uint32 {
	candidates := [][2]uint32{{uid, gid}}
	if uid != callerUID && gid != callerGID {
		candidates = append(candidates, [2]uint32{uid, callerGID}, [2]uint32{callerUID, gid})
	}
	if uid != callerUID || gid != callerGID {
		candidates = append(candidates, [2]uint32{callerUID, callerGID})
	}
	return candidates
}

func credential(uid, gid, callerUID, callerGID uint32) *syscall.Credential {
	if uid == callerUID && gid == callerGID {
		return nil
	}
	// Only root may drop supplementary groups.
	return &syscall.Credential{Uid: uid, Gid: gid, NoSetGroups: os.Geteuid() != 0}
}

func spawnFailed(p *Process, err error) error {
	if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.ENOMEM) {
		recordSpawn(outcomeExhausted)
		system.Abort("Command: cannot create a new subprocess -- %v", err)
		return apperrors.ResourceExhausted("fork", err)
	}
	recordSpawn(outcomeChildSetup)
	system.Error("Command: failed to execute '%s' -- %v", p.args[0], err)
	return apperrors.ChildSetup(p.args[0], err)
}

// openPipes creates the three stdio pipes and returns the child's ends.
func (p *Process) openPipes() ([]*os.File, error) {
	for _, pair := range []*[2]int{&p.stdin, &p.stdout, &p.stderr} {
		if err := cloexecPipe(pair); err != nil {
			p.closeParentEnds()
			closeEnd(&p.stdin[0])
			closeEnd(&p.stdout[1])
			closeEnd(&p.stderr[1])
			return nil, err
		}
	}
	return []*os.File{
		os.NewFile(uintptr(p.stdin[0]), "stdin"),
		os.NewFile(uintptr(p.stdout[1]), "stdout"),
		os.NewFile(uintptr(p.stderr[1]), "stderr"),
	}, nil
}

// cloexecPipe creates a pipe whose ends are not inherited across exec.
// ForkLock keeps a concurrent spawn from inheriting them before the flag
// is set.
func cloexecPipe(pair *[2]int) error {
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	*pair = fds
	return nil
}

// closeChildEnds closes the parent's copies of the child's stdio. The
// /dev/null file of a detached spawn is closed by its owner.
func (p *Process) closeChildEnds(stdio []*os.File) {
	if p.stdin[0] < 0 {
		return
	}
	for _, f := range stdio {
		f.Close()
	}
	p.stdin[0], p.stdout[1], p.stderr[1] = -1, -1, -1
}

// closeParentEnds closes the parent's pipe ends and detaches any stream
// still bound to them.
func (p *Process) closeParentEnds() {
	if p.out != nil {
		p.out.Detach()
	}
	if p.in != nil {
		p.in.Detach()
	}
	if p.err != nil {
		p.err.Detach()
	}
	closeEnd(&p.stdin[1])
	closeEnd(&p.stdout[0])
	closeEnd(&p.stderr[0])
}

func closeEnd(fd *int) {
	if *fd >= 0 {
		unix.Close(*fd)
		*fd = -1
	}
}

// waitExit polls the child once per pollInterval for up to timeout steps
// and reports whether it exited.
func (p *Process) waitExit(timeout int) bool {
	for remaining := timeout; ; remaining-- {
		if p.poll() {
			return true
		}
		if remaining <= 0 {
			return false
		}
		time.Sleep(pollInterval)
	}
}

// reap collects the child's exit status so it never lingers as a zombie.
func reap(p *Process) {
	if p.exited {
		p.proc.Release()
		return
	}
	system.Detach("reaper", func() {
		state, err := p.proc.Wait()
		if err != nil {
			return
		}
		logger.Get("process").Debug("process exited", logger.Fields(
			logger.FieldRunID, p.ID(),
			logger.FieldPID, p.pid,
			logger.FieldExitCode, state.ExitCode(),
		))
	})
}
