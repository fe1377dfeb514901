package process

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/monitkit/logger"
	"github.com/kbukum/monitkit/observability"
	"github.com/kbukum/monitkit/resilience"
)

// Config configures a process adapter.
type Config struct {
	// Name identifies this adapter instance in logs.
	Name string `yaml:"name,omitempty" mapstructure:"name"`
	// GracePeriod is the default grace period for SIGTERM→SIGKILL.
	GracePeriod time.Duration `yaml:"grace_period,omitempty" mapstructure:"grace_period"`
	// Timeout is the default execution timeout. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
	// Retry governs respawning after a retryable spawn failure.
	Retry resilience.RetryConfig `yaml:"retry,omitempty" mapstructure:"retry"`
}

// Adapter runs configured programs with shared defaults.
type Adapter struct {
	config Config
}

// NewAdapter creates a new process adapter.
func NewAdapter(cfg Config) *Adapter {
	return &Adapter{config: cfg}
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return a.config.Name
}

// Run executes c, applying adapter-level defaults. A spawn that fails
// with a retryable error, such as EAGAIN, is retried per the Retry config.
func (a *Adapter) Run(ctx context.Context, c *Command, opts ...RunOption) (*Result, error) {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}
	if a.config.GracePeriod > 0 {
		opts = append([]RunOption{WithGracePeriod(a.config.GracePeriod)}, opts...)
	}

	var (
		result *Result
		runErr error
	)
	err := resilience.RetryFunc(ctx, a.config.Retry, func() error {
		result, runErr = Run(ctx, c, opts...)
		if result != nil {
			// The child ran; its outcome is final.
			return nil
		}
		return runErr
	})
	if err != nil {
		return nil, err
	}
	return result, runErr
}

// RunProgram builds p and runs it inside a span. The program's own
// timeout, when set, applies on top of the adapter's.
func (a *Adapter) RunProgram(ctx context.Context, p Program) (result *Result, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanProgramRun, trace.WithAttributes(
		attribute.String(observability.AttrProgram, p.Name),
		attribute.String(observability.AttrPath, p.Path),
	))
	defer func() {
		if result != nil {
			span.SetAttributes(observability.ProcessAttributes(
				result.Pid, result.ExitCode, result.Killed, result.Duration.Milliseconds())...)
		}
		observability.SetSpanError(span, err)
		span.End()
	}()

	c, err := p.Build()
	if err != nil {
		return nil, err
	}
	if t := p.runTimeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	var opts []RunOption
	if p.Stdin != "" {
		opts = append(opts, WithStdin([]byte(p.Stdin)))
	}

	log := logger.Get("process").WithFields(logger.Fields(logger.FieldProgram, p.Name, logger.FieldPath, p.Path))
	result, err = a.Run(ctx, c, opts...)
	if err != nil {
		log.WithError(err).Warn("program failed")
		return result, err
	}
	log.Info("program finished", logger.Fields(
		logger.FieldPID, result.Pid,
		logger.FieldExitCode, result.ExitCode,
		logger.FieldDuration, result.Duration.Milliseconds(),
	))
	return result, nil
}
