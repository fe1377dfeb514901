package process

import (
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/monitkit/errors"
)

func binary(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func TestNewCommandDefaults(t *testing.T) {
	c := New()
	if got := c.Env(); !reflect.DeepEqual(got, []string{DefaultPath}) {
		t.Errorf("expected only the default PATH, got %v", got)
	}
	if c.Uid() != 0 || c.Gid() != 0 || c.Timeout() != 0 || c.Dir() != "" {
		t.Error("expected zero uid, gid, timeout and dir")
	}
	if len(c.Command()) != 0 {
		t.Errorf("expected no arguments, got %v", c.Command())
	}
}

func TestExecuteWithoutProgram(t *testing.T) {
	err := New().Execute()
	if !errors.HasCode(err, errors.ErrCodeConfiguration) {
		t.Fatalf("expected CONFIGURATION error, got %v", err)
	}
}

func TestSetCommand(t *testing.T) {
	sh := binary(t, "sh")
	c := New()
	if err := c.SetCommand(sh, "-c", "exit 0"); err != nil {
		t.Fatalf("SetCommand: %v", err)
	}
	if got := c.Command(); !reflect.DeepEqual(got, []string{sh, "-c", "exit 0"}) {
		t.Errorf("unexpected arguments %v", got)
	}

	err := c.SetCommand("/no/such/program")
	if !errors.HasCode(err, errors.ErrCodeConfiguration) {
		t.Fatalf("expected CONFIGURATION error, got %v", err)
	}
	if !strings.Contains(err.Error(), "/no/such/program") {
		t.Errorf("expected the path in the message, got %q", err)
	}
	if got := c.Command(); got[0] != sh {
		t.Errorf("failed SetCommand must keep the previous program, got %v", got)
	}
}

func TestSetEnvReplaces(t *testing.T) {
	c := New()
	c.SetEnv("FOO", "1")
	c.SetEnv("BAR", "2")
	c.SetEnv("FOO", "3")

	if v, ok := c.GetEnv("FOO"); !ok || v != "3" {
		t.Errorf("GetEnv(FOO) = %q, %v", v, ok)
	}
	want := []string{DefaultPath, "BAR=2", "FOO=3"}
	if got := c.Env(); !reflect.DeepEqual(got, want) {
		t.Errorf("Env = %v, want %v", got, want)
	}
	if _, ok := c.GetEnv("FO"); ok {
		t.Error("a name prefix must not match a longer name")
	}
	c.SetEnv("PATH", "/bin")
	if v, _ := c.GetEnv("PATH"); v != "/bin" {
		t.Errorf("expected PATH to be replaced, got %q", v)
	}
}

func TestSetEnvString(t *testing.T) {
	c := New()
	c.SetEnvString(" A = 1 ;B=x=y;  ;C")

	if v, ok := c.GetEnv("A"); !ok || v != "1" {
		t.Errorf("GetEnv(A) = %q, %v", v, ok)
	}
	if v, ok := c.GetEnv("B"); !ok || v != "x=y" {
		t.Errorf("GetEnv(B) = %q, %v", v, ok)
	}
	if _, ok := c.GetEnv("C"); ok {
		t.Error("a fragment without '=' must be ignored")
	}
}

func TestSetEnvStringMalformedMiddle(t *testing.T) {
	c := New()
	c.SetEnvString("A=1;B;C=3")

	want := []string{DefaultPath, "A=1", "C=3"}
	if got := c.Env(); !reflect.DeepEqual(got, want) {
		t.Errorf("Env = %v, want %v", got, want)
	}
	if _, ok := c.GetEnv("B;C"); ok {
		t.Error("a malformed fragment must not merge into the next name")
	}
}

func TestSetEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.env")
	if err := os.WriteFile(path, []byte("ZED=last\nALPHA=first\n# comment\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New()
	if err := c.SetEnvFile(path); err != nil {
		t.Fatalf("SetEnvFile: %v", err)
	}
	want := []string{DefaultPath, "ALPHA=first", "ZED=last"}
	if got := c.Env(); !reflect.DeepEqual(got, want) {
		t.Errorf("Env = %v, want %v", got, want)
	}
	if err := c.SetEnvFile(path + ".missing"); !errors.HasCode(err, errors.ErrCodeConfiguration) {
		t.Errorf("expected CONFIGURATION error, got %v", err)
	}
}

func TestSetDir(t *testing.T) {
	dir := t.TempDir()
	c := New()
	if err := c.SetDir(dir + "//"); err != nil {
		t.Fatalf("SetDir: %v", err)
	}
	if c.Dir() != dir {
		t.Errorf("expected trailing separators dropped, got %q", c.Dir())
	}
	if err := c.SetDir("/"); err != nil || c.Dir() != "/" {
		t.Errorf("SetDir(/) = %v, dir %q", err, c.Dir())
	}

	file := filepath.Join(dir, "file")
	os.WriteFile(file, nil, 0o644)
	for _, bad := range []string{filepath.Join(dir, "missing"), file} {
		if err := c.SetDir(bad); !errors.HasCode(err, errors.ErrCodeConfiguration) {
			t.Errorf("SetDir(%s): expected CONFIGURATION error, got %v", bad, err)
		}
	}
	if c.Dir() != "/" {
		t.Errorf("failed SetDir must keep the previous dir, got %q", c.Dir())
	}
	if err := c.SetDir(""); err != nil || c.Dir() != "" {
		t.Errorf("expected empty dir to reset, got %q, %v", c.Dir(), err)
	}
}

func TestSetHandlersValidation(t *testing.T) {
	c := New()
	if err := c.SetOnExec(nil); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for nil onExec, got %v", err)
	}
	if err := c.SetOnTimeout(0, func(*Process) {}); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for zero timeout, got %v", err)
	}
	if err := c.SetOnTimeout(7, func(*Process) {}); err != nil {
		t.Fatalf("SetOnTimeout: %v", err)
	}
	if c.Timeout() != 7 {
		t.Errorf("Timeout = %d", c.Timeout())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := New()
	c.SetEnv("A", "1")
	clone := c.Clone()
	clone.SetEnv("A", "2")
	clone.SetUid(42)

	if v, _ := c.GetEnv("A"); v != "1" {
		t.Errorf("clone changed the original env: %q", v)
	}
	if c.Uid() != 0 {
		t.Errorf("clone changed the original uid: %d", c.Uid())
	}
}

func TestCredentialCandidates(t *testing.T) {
	tests := []struct {
		name                 string
		uid, gid             uint32
		callerUID, callerGID uint32
		want                 [][2]uint32
	}{
		{"caller ids", 10, 20, 10, 20, [][2]uint32{{10, 20}}},
		{"uid only", 5, 20, 10, 20, [][2]uint32{{5, 20}, {10, 20}}},
		{"both", 5, 6, 10, 20, [][2]uint32{{5, 6}, {5, 20}, {10, 6}, {10, 20}}},
	}
	for _, tt := range tests {
		got := credentialCandidates(tt.uid, tt.gid, tt.callerUID, tt.callerGID)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
	if credential(10, 20, 10, 20) != nil {
		t.Error("expected no credential switch for the caller's own ids")
	}
}

func TestRemoveTrailingSeparator(t *testing.T) {
	for in, want := range map[string]string{"/tmp/": "/tmp", "/tmp": "/tmp", "///": "/"} {
		if got := removeTrailingSeparator(in); got != want {
			t.Errorf("removeTrailingSeparator(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPollIntervalDefault(t *testing.T) {
	if pollInterval != time.Second {
		t.Errorf("expected a one second countdown step, got %s", pollInterval)
	}
}
