// Package process runs the external commands (adb, sh, cat) that read and patch preference files.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout bounds every command unless the Processor overrides it
const DefaultTimeout = 10 * time.Second

var (
	// ErrTimeout is returned when a command exceeds its timeout. The command is not retried.
	ErrTimeout = errors.New("command timed out")
	// ErrEmptyCommand is returned for an empty argv
	ErrEmptyCommand = errors.New("empty command")
)

// Result holds the captured output of a finished command
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes an argv and waits for it
type Runner interface {
	Run(ctx context.Context, argv []string) (Result, error)
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, argv []string) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, argv []string) (Result, error) {
	return f(ctx, argv)
}

// ExitError reports an exit code outside the accepted set
type ExitError struct {
	Argv   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Argv[0], e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Succeeded reports whether code counts as success. The edit scripts exit 1 for a no-op.
func Succeeded(code int) bool {
	return code == 0 || code == 1
}

var proxyVars = []string{"HTTP_PROXY", "HTTPS_PROXY", "ALL_PROXY", "NO_PROXY", "http_proxy", "https_proxy", "all_proxy", "no_proxy"}

// Processor runs commands as subprocesses.
// Dir is the working directory, so script names in argv resolve against it.
type Processor struct {
	Dir     string
	Timeout time.Duration
	// Limiter throttles process launches; nil means unlimited
	Limiter *rate.Limiter
	// Env is appended to the scrubbed parent environment
	Env []string
}

// New creates a Processor running in dir with the default timeout
func New(dir string) *Processor {
	return &Processor{Dir: dir, Timeout: DefaultTimeout}
}

// Run starts argv, waits for it and classifies the exit code.
// On timeout ErrTimeout is returned; if ctx itself is cancelled the process is killed
// and the cancellation cause of ctx is returned.
func (p *Processor) Run(ctx context.Context, argv []string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, ErrEmptyCommand
	}
	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = p.Dir
	cmd.Env = append(scrubEnv(os.Environ()), p.Env...)
	cmd.Cancel = func() error { return cmd.Process.Kill() }
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() != nil {
		return res, context.Cause(ctx)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.ExitCode = 124
		return res, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, strings.Join(argv, " "))
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return res, fmt.Errorf("failed to start %s: %w", argv[0], err)
		}
		res.ExitCode = exitErr.ExitCode()
	}
	if !Succeeded(res.ExitCode) {
		return res, &ExitError{Argv: argv, Code: res.ExitCode, Stderr: res.Stderr}
	}
	return res, nil
}

// scrubEnv drops proxy variables, adb misbehaves when they point at a local proxy
func scrubEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, e := range env {
		isProxy := false
		for _, v := range proxyVars {
			if strings.HasPrefix(e, v+"=") {
				isProxy = true
				break
			}
		}
		if !isProxy {
			out = append(out, e)
		}
	}
	return out
}
