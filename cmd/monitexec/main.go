// monitexec runs the programs defined in an agent configuration file.
//
// Each named program (all of them when none is named) is spawned in its
// own session with only its configured environment. By default monitexec
// waits for the program, relays its stdout and stderr, and exits with the
// first non-zero exit code. With --detach the programs are started with
// their stdio on /dev/null and monitexec exits at once.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/kbukum/monitkit/config"
	"github.com/kbukum/monitkit/errors"
	"github.com/kbukum/monitkit/logger"
	"github.com/kbukum/monitkit/observability"
	"github.com/kbukum/monitkit/process"
	"github.com/kbukum/monitkit/version"
)

const agentName = "monitexec"

// exitError carries a program's exit code out of run.
type exitError struct {
	program string
	code    int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("program %s exited with code %d", e.program, e.code)
}

func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := run(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		appErr := errors.Wrap(err)
		logger.Error("monitexec failed", logger.Fields(
			"code", string(appErr.Code),
			logger.FieldError, err.Error(),
		))
		os.Exit(1)
	}
}

type options struct {
	configFile string
	envFile    string
	logLevel   string
	detach     bool
	list       bool
	version    bool
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet(agentName, pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configFile, "config", "c", "", "path to the agent config file (default: search standard locations)")
	flagSet.StringVar(&opts.envFile, "env-file", "", "dotenv file applied before environment overrides")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "override logging.level")
	flagSet.BoolVarP(&opts.detach, "detach", "d", false, "start programs without waiting for them")
	flagSet.BoolVar(&opts.list, "list", false, "list configured programs and exit")
	flagSet.BoolVar(&opts.version, "version", false, "print version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return errors.InvalidInput("flags", err.Error())
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if opts.version {
		fmt.Println(agentName, version.Get())
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger.Init(&cfg.Logging, cfg.Name)
	log := logger.WithComponent("main")
	log.Info("agent starting", version.Get().Fields())

	if opts.list {
		for _, name := range cfg.ProgramNames() {
			fmt.Println(name)
		}
		return nil
	}

	programs, err := selectPrograms(cfg, flagSet.Args())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, &cfg.Metrics)
		if err != nil {
			logger.Warn("metrics disabled", logger.ErrorFields("init_meter", err))
		} else {
			defer shutdown(mp.Shutdown)
		}
	}
	if cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, &cfg.Tracing)
		if err != nil {
			logger.Warn("tracing disabled", logger.ErrorFields("init_tracer", err))
		} else {
			defer shutdown(tp.Shutdown)
		}
	}

	if opts.detach {
		return startDetached(programs)
	}
	return runAll(ctx, process.NewAdapter(cfg.Runner), programs)
}

// shutdown flushes a telemetry provider with a bounded wait.
func shutdown(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Warn("telemetry shutdown failed", logger.ErrorFields("shutdown", err))
	}
}

func loadConfig(opts options) (*config.AgentConfig, error) {
	var loaderOpts []config.LoaderOption
	if opts.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(opts.configFile))
	}
	if opts.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(opts.envFile))
	}

	var cfg config.AgentConfig
	if err := config.LoadConfig(agentName, &cfg, loaderOpts...); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = agentName
	}
	cfg.ApplyDefaults()
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func selectPrograms(cfg *config.AgentConfig, names []string) ([]process.Program, error) {
	if len(names) == 0 {
		if len(cfg.Programs) == 0 {
			return nil, errors.Configuration("no programs configured")
		}
		return cfg.Programs, nil
	}
	programs := make([]process.Program, 0, len(names))
	for _, name := range names {
		p, err := cfg.Program(name)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, nil
}

func startDetached(programs []process.Program) error {
	for _, p := range programs {
		c, err := p.Build()
		if err != nil {
			return err
		}
		if err := c.Execute(); err != nil {
			return err
		}
		logger.Info("program started", logger.Fields(logger.FieldProgram, p.Name, logger.FieldPath, p.Path))
	}
	return nil
}

func runAll(ctx context.Context, adapter *process.Adapter, programs []process.Program) error {
	var first error
	for _, p := range programs {
		result, err := adapter.RunProgram(ctx, p)
		if result != nil {
			os.Stdout.Write(result.Stdout)
			os.Stderr.Write(result.Stderr)
		}
		if err != nil && first == nil {
			first = err
			if result != nil && result.ExitCode > 0 {
				first = &exitError{program: p.Name, code: result.ExitCode}
			}
		}
		if ctx.Err() != nil {
			logger.Debug("stopping after signal", logger.Fields(logger.FieldProgram, p.Name))
			break
		}
	}
	return first
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `monitexec runs programs defined in an agent config file.

Usage:
  monitexec [flags] [program...]

With no program names every configured program runs in file order.

Examples:
  # Run every program and wait for each
  monitexec --config /etc/monitexec/config.yml

  # Start one program in the background
  monitexec -c config.yml --detach nightly-backup

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
