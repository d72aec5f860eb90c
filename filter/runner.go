package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/picodoc-lang/picodoc/eval"
)

// DefaultTimeout bounds how long a single filter invocation may run.
const DefaultTimeout = 5 * time.Second

// TimeoutError reports a filter process that exceeded its time allowance.
type TimeoutError struct {
	Name  string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("filter '%s' timed out after %s", e.Name, e.Limit)
}

// Timeout marks the failure as a deadline rather than a crash.
func (e *TimeoutError) Timeout() bool { return true }

// ExecError reports a filter process that exited with a nonzero status.
type ExecError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("filter '%s' failed (exit %d)", e.Name, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Runner invokes discovered filter executables over the JSON protocol.
// It satisfies eval.FilterInvoker.
type Runner struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout overrides the per-invocation time limit.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithLogger routes runner diagnostics to l.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner returns a runner that resolves filter names through reg.
func NewRunner(reg *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: reg,
		timeout:  DefaultTimeout,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup reports whether a filter executable exists for name.
func (r *Runner) Lookup(name string) bool {
	_, ok := r.registry.Find(name)
	return ok
}

// Invoke runs the filter for req and returns the markup it produced.
// The request is sent as a single JSON object: every argument as a
// string field, a "body" field only when a body was supplied, and the
// environment under "env".
func (r *Runner) Invoke(ctx context.Context, req *eval.FilterRequest) (string, error) {
	path, ok := r.registry.Find(req.Name)
	if !ok {
		return "", &ExecError{Name: req.Name, Code: -1, Stderr: "executable not found"}
	}

	payload := make(map[string]any, len(req.Args)+2)
	for k, v := range req.Args {
		payload[k] = v
	}
	if req.HasBody {
		payload["body"] = req.Body
	}
	env := req.Env
	if env == nil {
		env = map[string]string{}
	}
	payload["env"] = env

	input, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding filter request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	r.logger.Debug("filter invoked",
		"name", req.Name,
		"path", path,
		"duration", time.Since(start))

	if ctx.Err() == context.DeadlineExceeded {
		return "", &TimeoutError{Name: req.Name, Limit: r.timeout}
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return "", &ExecError{
				Name:   req.Name,
				Code:   exitErr.ExitCode(),
				Stderr: strings.TrimSpace(stderr.String()),
			}
		}
		return "", fmt.Errorf("running filter '%s': %w", req.Name, runErr)
	}

	return stdout.String(), nil
}
