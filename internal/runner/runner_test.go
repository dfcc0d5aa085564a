package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	return &Runner{
		Workspace: t.TempDir(),
		Timeout:   10 * time.Second,
		MaxOutput: 1 << 20,
	}
}

func TestRun_Success(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), []string{"echo", "hello"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if !strings.Contains(string(res.Stdout), "hello") {
		t.Errorf("Stdout = %q, want to contain 'hello'", res.Stdout)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.Run(context.Background(), []string{"sh", "-c", "echo broken >&2; exit 3"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(string(res.Stderr), "broken") {
		t.Errorf("Stderr = %q, want to contain 'broken'", res.Stderr)
	}
}

func TestRun_BinaryNotFound(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), []string{"nonexistent-binary-xyz-123"}, "")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !strings.Contains(err.Error(), "nonexistent-binary-xyz-123") {
		t.Errorf("error = %q, want to mention the binary name", err)
	}
}

func TestRun_EmptyArgv(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), nil, "")
	if err == nil {
		t.Fatal("expected error for empty argv")
	}
}

func TestRun_ExplicitEnvironment(t *testing.T) {
	r := newTestRunner(t)
	r.Env = []string{"PATH=/usr/bin:/bin", "LLM_MODEL=llama3.2:3b"}

	res, err := r.Run(context.Background(), []string{"sh", "-c", "echo model=$LLM_MODEL"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(res.Stdout), "model=llama3.2:3b") {
		t.Errorf("Stdout = %q, want the child to see LLM_MODEL", res.Stdout)
	}
}

func TestRun_ResolvesBinaryFromChildPath(t *testing.T) {
	r := newTestRunner(t)
	bin := filepath.Join(t.TempDir(), "bin")
	if err := os.Mkdir(bin, 0o755); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\necho local-tool\n"
	if err := os.WriteFile(filepath.Join(bin, "local-tool-xyz"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	r.Env = []string{"PATH=/usr/bin:/bin:" + bin}

	res, err := r.Run(context.Background(), []string{"local-tool-xyz"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(string(res.Stdout)) != "local-tool" {
		t.Errorf("Stdout = %q, want local-tool", res.Stdout)
	}
}

func TestRun_ChildPathSkipsRelativeEntries(t *testing.T) {
	r := newTestRunner(t)
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\necho relative-tool\n"
	for _, p := range []string{filepath.Join(dir, "bin", "relative-tool-xyz"), filepath.Join(dir, "relative-tool-xyz")} {
		if err := os.WriteFile(p, []byte(script), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// The parent's working directory holds the binary; the child's must not see it.
	t.Chdir(dir)
	r.Env = []string{"PATH=bin::."}

	_, err := r.Run(context.Background(), []string{"relative-tool-xyz"}, "")
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("err = %v, want exec.ErrNotFound", err)
	}
}

func TestLookPath_ReturnsAbsolutePath(t *testing.T) {
	bin := t.TempDir()
	if err := os.WriteFile(filepath.Join(bin, "abs-tool-xyz"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	r := &Runner{Env: []string{"PATH=relative:" + bin}}

	got, err := r.lookPath("abs-tool-xyz")
	if err != nil {
		t.Fatalf("lookPath: %v", err)
	}
	if !filepath.IsAbs(got) || got != filepath.Join(bin, "abs-tool-xyz") {
		t.Errorf("lookPath = %q, want %q", got, filepath.Join(bin, "abs-tool-xyz"))
	}
}

func TestRun_ChildPathMissesBinary(t *testing.T) {
	r := newTestRunner(t)
	r.Env = []string{"PATH=" + t.TempDir()}

	_, err := r.Run(context.Background(), []string{"echo", "hi"}, "")
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("err = %v, want exec.ErrNotFound", err)
	}
}

func TestRun_CWDWithinWorkspace(t *testing.T) {
	r := newTestRunner(t)
	sub := filepath.Join(r.Workspace, "subdir")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), []string{"pwd"}, "subdir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(res.Stdout), "subdir") {
		t.Errorf("Stdout = %q, want to contain 'subdir'", res.Stdout)
	}
}

func TestRun_CWDOutsideWorkspace_Relative(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), []string{"echo"}, "../")
	if err == nil {
		t.Fatal("expected error for cwd outside workspace")
	}
	if !strings.Contains(err.Error(), "outside workspace") {
		t.Errorf("error = %q, want 'outside workspace'", err)
	}
}

func TestRun_CWDOutsideWorkspace_Absolute(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.Run(context.Background(), []string{"echo"}, "/")
	if err == nil {
		t.Fatal("expected error for absolute cwd outside workspace")
	}
	if !strings.Contains(err.Error(), "outside workspace") {
		t.Errorf("error = %q, want 'outside workspace'", err)
	}
}

func TestRun_Timeout(t *testing.T) {
	r := newTestRunner(t)
	r.Timeout = 100 * time.Millisecond

	res, err := r.Run(context.Background(), []string{"sleep", "10"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode == 0 {
		t.Error("ExitCode = 0, want non-zero after timeout")
	}
	if !res.TimedOut {
		t.Error("TimedOut = false, want true")
	}
}

func TestRun_NoTimeoutByDefault(t *testing.T) {
	r := newTestRunner(t)
	r.Timeout = 0

	res, err := r.Run(context.Background(), []string{"sleep", "0.2"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 || res.TimedOut {
		t.Errorf("ExitCode = %d, TimedOut = %v, want 0, false", res.ExitCode, res.TimedOut)
	}
}

func TestRun_OutputTruncation(t *testing.T) {
	r := newTestRunner(t)
	r.MaxOutput = 100 // very small cap

	res, err := r.Run(context.Background(), []string{"sh", "-c", "dd if=/dev/zero bs=200 count=1 2>/dev/null"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(res.Stdout) > r.MaxOutput {
		t.Errorf("len(Stdout) = %d, want <= %d", len(res.Stdout), r.MaxOutput)
	}
}
