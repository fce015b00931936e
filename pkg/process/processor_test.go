package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRun_CapturesOutput(t *testing.T) {
	skipWithoutShell(t)
	p := New(t.TempDir())
	res, err := p.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Stdout != "out\n" || res.Stderr != "err\n" || res.ExitCode != 0 {
		t.Errorf("Unexpected result %+v", res)
	}
}

func TestRun_ExitCodeOneIsSuccess(t *testing.T) {
	skipWithoutShell(t)
	res, err := New("").Run(context.Background(), []string{"sh", "-c", "exit 1"})
	if err != nil {
		t.Fatalf("Expected exit code 1 to succeed, got %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("Expected exit code 1, got %d", res.ExitCode)
	}
}

func TestRun_OtherExitCodesFail(t *testing.T) {
	skipWithoutShell(t)
	_, err := New("").Run(context.Background(), []string{"sh", "-c", "echo boom >&2; exit 3"})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Expected ExitError, got %v", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("Expected code 3, got %d", exitErr.Code)
	}
	if !strings.Contains(exitErr.Error(), "boom") {
		t.Errorf("Expected stderr in message, got %s", exitErr.Error())
	}
}

func TestRun_Timeout(t *testing.T) {
	skipWithoutShell(t)
	p := &Processor{Timeout: 100 * time.Millisecond}
	start := time.Now()
	res, err := p.Run(context.Background(), []string{"sleep", "5"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if res.ExitCode != 124 {
		t.Errorf("Expected exit code 124, got %d", res.ExitCode)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("Timeout took too long: %s", time.Since(start))
	}
}

func TestRun_CancellationPropagates(t *testing.T) {
	skipWithoutShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := New("").Run(ctx, []string{"sleep", "5"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRun_CancellationKeepsCause(t *testing.T) {
	skipWithoutShell(t)
	closed := errors.New("owner closed")
	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel(closed)
	}()
	_, err := New("").Run(ctx, []string{"sleep", "5"})
	if !errors.Is(err, closed) {
		t.Errorf("Expected the cancellation cause, got %v", err)
	}
}

func TestRun_UsesWorkingDirectory(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello.sh"), []byte("echo \"hi $1\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := New(dir).Run(context.Background(), []string{"sh", "hello.sh", "there"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Stdout != "hi there\n" {
		t.Errorf("Unexpected output %q", res.Stdout)
	}
}

func TestRun_EmptyCommand(t *testing.T) {
	if _, err := New("").Run(context.Background(), nil); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("Expected ErrEmptyCommand, got %v", err)
	}
}

func TestRun_MissingBinary(t *testing.T) {
	_, err := New("").Run(context.Background(), []string{"definitely-not-a-binary-pref-editor"})
	if err == nil {
		t.Fatal("Expected error for missing binary")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Errorf("Expected launch failure, got exit error %v", err)
	}
}

func TestRun_LimiterRespectsCancellation(t *testing.T) {
	p := New("")
	p.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	p.Limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Run(ctx, []string{"true"}); err == nil {
		t.Error("Expected error when the limiter cannot be satisfied")
	}
}

func TestScrubEnv(t *testing.T) {
	env := []string{"PATH=/bin", "HTTP_PROXY=http://x", "https_proxy=http://y", "HOME=/root", "NO_PROXY_FOO=1"}
	got := scrubEnv(env)
	expected := []string{"PATH=/bin", "HOME=/root", "NO_PROXY_FOO=1"}
	if !slices.Equal(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestSucceeded(t *testing.T) {
	for code, want := range map[int]bool{0: true, 1: true, 2: false, 124: false, -1: false} {
		if Succeeded(code) != want {
			t.Errorf("Succeeded(%d) = %v", code, !want)
		}
	}
}
