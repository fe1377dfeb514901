package system

import (
	"fmt"
	"sync"

	"github.com/kbukum/monitkit/logger"
)

// Reporter receives formatted error reports. Abort is used for conditions
// the agent cannot recover from; an implementation that returns from Abort
// lets the caller unwind with an error instead.
type Reporter interface {
	Abort(msg string)
	Error(msg string)
}

// ReporterFuncs adapts two plain functions to a Reporter. A nil field falls
// back to the default behaviour for that kind of report.
type ReporterFuncs struct {
	OnAbort func(msg string)
	OnError func(msg string)
}

// Abort implements Reporter.
func (r ReporterFuncs) Abort(msg string) {
	if r.OnAbort == nil {
		defaultReporter{}.Abort(msg)
		return
	}
	r.OnAbort(msg)
}

// Error implements Reporter.
func (r ReporterFuncs) Error(msg string) {
	if r.OnError == nil {
		defaultReporter{}.Error(msg)
		return
	}
	r.OnError(msg)
}

type defaultReporter struct{}

func (defaultReporter) Abort(msg string) {
	logger.Get("system").Fatal(msg)
}

func (defaultReporter) Error(msg string) {
	logger.Get("system").Error(msg)
}

var (
	mu       sync.RWMutex
	reporter Reporter = defaultReporter{}
)

// Init installs r as the process-wide reporter. A nil r restores the default.
func Init(r Reporter) {
	mu.Lock()
	defer mu.Unlock()
	if r == nil {
		r = defaultReporter{}
	}
	reporter = r
}

// Reset restores the default reporter.
func Reset() {
	Init(nil)
}

func current() Reporter {
	mu.RLock()
	defer mu.RUnlock()
	return reporter
}

// Abort reports an unrecoverable condition. With the default reporter the
// process exits; with an installed reporter control returns to the caller.
func Abort(format string, a ...any) {
	current().Abort(fmt.Sprintf(format, a...))
}

// Error reports a recoverable error.
func Error(format string, a ...any) {
	current().Error(fmt.Sprintf(format, a...))
}
