package process_test

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/monitkit/errors"
	"github.com/kbukum/monitkit/observability"
	"github.com/kbukum/monitkit/process"
	"github.com/kbukum/monitkit/resilience"
)

func newCommand(t *testing.T, name string, args ...string) *process.Command {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	c := process.New()
	if err := c.SetCommand(path, args...); err != nil {
		t.Fatalf("SetCommand: %v", err)
	}
	return c
}

func TestRunEcho(t *testing.T) {
	result, err := process.Run(context.Background(), newCommand(t, "echo", "hello", "world"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
	out := strings.TrimSpace(string(result.Stdout))
	if out != "hello world" {
		t.Fatalf("expected 'hello world', got %q", out)
	}
	if result.Pid <= 0 {
		t.Errorf("expected a pid, got %d", result.Pid)
	}
}

func TestRunStdin(t *testing.T) {
	result, err := process.Run(context.Background(), newCommand(t, "cat"),
		process.WithStdin([]byte("from stdin")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := string(result.Stdout)
	if out != "from stdin" {
		t.Fatalf("expected 'from stdin', got %q", out)
	}
}

func TestRunLargeStdin(t *testing.T) {
	input := bytes.Repeat([]byte("0123456789abcdef"), 512*1024/16)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := process.Run(ctx, newCommand(t, "cat"), process.WithStdin(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Stdout) != len(input) {
		t.Fatalf("expected %d bytes echoed, got %d", len(input), len(result.Stdout))
	}
	if !bytes.Equal(result.Stdout, input) {
		t.Error("echoed bytes differ from stdin")
	}
}

func TestRunStdinNotConsumed(t *testing.T) {
	input := bytes.Repeat([]byte("x"), 1024*1024)
	result, err := process.Run(context.Background(), newCommand(t, "sh", "-c", "exit 0"),
		process.WithStdin(input))
	if err == nil {
		t.Fatal("expected an error for undelivered stdin")
	}
	if !strings.Contains(err.Error(), "unsent") {
		t.Errorf("expected unsent byte count in error, got %v", err)
	}
	if result == nil || result.ExitCode != 0 {
		t.Errorf("expected the exit status to be kept, got %+v", result)
	}
}

func TestRunExitCode(t *testing.T) {
	result, err := process.Run(context.Background(), newCommand(t, "sh", "-c", "exit 42"))
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if result.ExitCode != 42 {
		t.Fatalf("expected exit code 42, got %d", result.ExitCode)
	}
}

func TestRunStderr(t *testing.T) {
	result, err := process.Run(context.Background(), newCommand(t, "sh", "-c", "echo oops >&2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stderr := strings.TrimSpace(string(result.Stderr))
	if stderr != "oops" {
		t.Fatalf("expected 'oops' on stderr, got %q", stderr)
	}
}

func TestRunContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	result, err := process.Run(ctx, newCommand(t, "sleep", "10"),
		process.WithGracePeriod(500*time.Millisecond))
	if err == nil {
		t.Fatal("expected error from context cancellation")
	}
	if !result.Killed {
		t.Error("expected the result to be marked killed")
	}
	if result.Duration > 5*time.Second {
		t.Fatalf("process took too long to kill: %v", result.Duration)
	}
}

func TestRunEmptyCommand(t *testing.T) {
	_, err := process.Run(context.Background(), process.New())
	if !errors.HasCode(err, errors.ErrCodeConfiguration) {
		t.Fatalf("expected CONFIGURATION error, got %v", err)
	}
}

func TestRunDuration(t *testing.T) {
	result, err := process.Run(context.Background(), newCommand(t, "sleep", "0.1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Duration < 50*time.Millisecond {
		t.Fatalf("duration too short: %v", result.Duration)
	}
}

func TestRunEnv(t *testing.T) {
	c := newCommand(t, "sh", "-c", "echo $MY_TEST_VAR")
	c.SetEnv("MY_TEST_VAR", "hello123")
	result, err := process.Run(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := strings.TrimSpace(string(result.Stdout))
	if out != "hello123" {
		t.Fatalf("expected 'hello123', got %q", out)
	}
}

func TestRunLeavesCommandUntouched(t *testing.T) {
	c := newCommand(t, "sh", "-c", "exit 0")
	if _, err := process.Run(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Execute(); err != nil {
		t.Fatalf("expected a detached Execute afterwards, got %v", err)
	}
}

func TestAdapterRunProgram(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	envFile := filepath.Join(dir, "program.env")
	os.WriteFile(envFile, []byte("FROM_FILE=file\n"), 0o644)

	adapter := process.NewAdapter(process.Config{Name: "test", GracePeriod: time.Second})
	if adapter.Name() != "test" {
		t.Errorf("Name = %q", adapter.Name())
	}
	result, err := adapter.RunProgram(context.Background(), process.Program{
		Name:      "printenv",
		Path:      sh,
		Args:      []string{"-c", `read line; echo "$line:$A:$B:$FROM_FILE:$(pwd)"`},
		Env:       []string{"A=map"},
		EnvString: "B=string",
		EnvFile:   envFile,
		Dir:       dir,
		Stdin:     "input\n",
	})
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	want := "input:map:string:file:" + dir
	if got := strings.TrimSpace(string(result.Stdout)); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestAdapterTimeout(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	adapter := process.NewAdapter(process.Config{GracePeriod: 200 * time.Millisecond})
	result, err := adapter.RunProgram(context.Background(), process.Program{
		Name:    "sleeper",
		Path:    sleep,
		Args:    []string{"10"},
		Timeout: 1,
	})
	if err == nil || !result.Killed {
		t.Fatalf("expected the program to be killed, got %v", err)
	}
}

func TestProgramValidation(t *testing.T) {
	tests := []struct {
		name    string
		program process.Program
		field   string
	}{
		{"missing name", process.Program{Path: "/bin/sh"}, "name"},
		{"relative path", process.Program{Name: "x", Path: "sh"}, "path"},
		{"missing binary", process.Program{Name: "x", Path: "/no/such/binary"}, "path"},
		{"negative timeout", process.Program{Name: "x", Path: "/bin/sh", Timeout: -1}, "timeout"},
		{"bad dir", process.Program{Name: "x", Path: "/bin/sh", Dir: "/no/such/dir"}, "dir"},
	}
	for _, tt := range tests {
		_, err := tt.program.Build()
		if !errors.HasCode(err, errors.ErrCodeConfiguration) {
			t.Errorf("%s: expected CONFIGURATION error, got %v", tt.name, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.field+":") {
			t.Errorf("%s: expected field %q in %q", tt.name, tt.field, err)
		}
	}
}

func TestAdapterDoesNotRetryChildSetupErrors(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	dir := filepath.Join(t.TempDir(), "gone")
	os.Mkdir(dir, 0o755)
	c := process.New()
	c.SetCommand(sh, "-c", "exit 0")
	c.SetDir(dir)
	os.Remove(dir)

	adapter := process.NewAdapter(process.Config{Retry: resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}})
	start := time.Now()
	_, err = adapter.Run(context.Background(), c)
	if !errors.HasCode(err, errors.ErrCodeChildSetup) {
		t.Fatalf("expected CHILD_SETUP error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("expected no retry backoff for a permanent failure")
	}
}

func TestAdapterRunProgramSpan(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	adapter := process.NewAdapter(process.Config{Name: "traced"})
	result, err := adapter.RunProgram(context.Background(), process.Program{
		Name: "fails",
		Path: sh,
		Args: []string{"-c", "exit 3"},
	})
	if err == nil {
		t.Fatal("expected an error for exit code 3")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != observability.SpanProgramRun {
		t.Errorf("expected span %q, got %q", observability.SpanProgramRun, span.Name)
	}
	if span.Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", span.Status.Code)
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes {
		attrs[kv.Key] = kv.Value
	}
	if attrs[observability.AttrProgram].AsString() != "fails" {
		t.Errorf("expected program attribute, got %v", attrs[observability.AttrProgram])
	}
	if attrs[observability.AttrPID].AsInt64() != int64(result.Pid) {
		t.Errorf("expected pid %d, got %v", result.Pid, attrs[observability.AttrPID])
	}
	if attrs[observability.AttrExitCode].AsInt64() != 3 {
		t.Errorf("expected exit code 3, got %v", attrs[observability.AttrExitCode])
	}
	if v, ok := attrs[observability.AttrKilled]; !ok || v.AsBool() {
		t.Errorf("expected killed=false attribute, got %v", v)
	}
}
