// Package procrun executes external analysis tools under strict wall-clock
// and output-size bounds. Every tool invocation in the pipeline passes
// through a Runner; the bounds are mandatory, never defaulted.
package procrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// ErrInvalidSpec reports a Spec missing a mandatory field.
var ErrInvalidSpec = errors.New("invalid process spec")

// errOutputCap aborts the stream copiers once the cap is hit.
var errOutputCap = errors.New("output cap exceeded")

// Spec describes one bounded external-process invocation. Command and Args
// form an argument vector; nothing is ever passed through a shell.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	Stdin   io.Reader

	// Stdout, when set, receives the process's standard output instead of
	// the capture buffer (Result.Stdout stays empty). Written bytes still
	// count against MaxOutputBytes. Used to pipe one tool into another
	// without materializing the stream.
	Stdout io.Writer

	// Timeout and MaxOutputBytes are mandatory and must be positive.
	Timeout        time.Duration
	MaxOutputBytes int64
}

// Result holds the captured streams and exit status of a completed process.
// A non-zero ExitCode is not an error of Run; callers decide whether it is
// fatal for their operation.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes bounded external processes.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ExecRunner is the os/exec-backed Runner.
type ExecRunner struct {
	logger  *slog.Logger
	observe func(command, outcome string)
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithObserver records every invocation's command and outcome ("ok",
// "nonzero_exit", "timeout", "output_too_large", "launch_error").
func WithObserver(fn func(command, outcome string)) Option {
	return func(r *ExecRunner) { r.observe = fn }
}

// NewExecRunner returns an ExecRunner logging through logger. A nil logger
// discards process telemetry.
func NewExecRunner(logger *slog.Logger, opts ...Option) *ExecRunner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &ExecRunner{logger: logger, observe: func(string, string) {}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the process and waits for it within spec.Timeout. On timeout
// the process is killed and a KindTimeout error is returned; captured
// output up to that point is discarded. If combined stdout+stderr exceeds
// spec.MaxOutputBytes the process is killed and a KindOutputTooLarge error
// is returned before the caller sees any partial data.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Command == "" {
		return Result{}, fmt.Errorf("%w: command is required", ErrInvalidSpec)
	}
	if spec.Timeout <= 0 {
		return Result{}, fmt.Errorf("%w: timeout must be positive", ErrInvalidSpec)
	}
	if spec.MaxOutputBytes <= 0 {
		return Result{}, fmt.Errorf("%w: max output bytes must be positive", ErrInvalidSpec)
	}

	ctx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin
	cmd.WaitDelay = 5 * time.Second

	guard := &outputCap{limit: spec.MaxOutputBytes, kill: cancel}
	var stdout, stderr bytes.Buffer
	if spec.Stdout != nil {
		cmd.Stdout = guard.tee(spec.Stdout)
	} else {
		cmd.Stdout = guard.tee(&stdout)
	}
	cmd.Stderr = guard.tee(&stderr)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		r.observe(spec.Command, "launch_error")
		return Result{}, &Error{Kind: KindLaunch, Command: spec.Command, Err: err}
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	switch {
	case guard.exceeded():
		r.observe(spec.Command, "output_too_large")
		r.logger.Warn("process output cap exceeded",
			"command", spec.Command, "limit_bytes", spec.MaxOutputBytes, "elapsed", elapsed)
		return Result{}, &Error{
			Kind:    KindOutputTooLarge,
			Command: spec.Command,
			Err:     fmt.Errorf("combined output exceeded %d bytes", spec.MaxOutputBytes),
		}
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.observe(spec.Command, "timeout")
		r.logger.Warn("process timed out",
			"command", spec.Command, "timeout", spec.Timeout)
		return Result{}, &Error{
			Kind:    KindTimeout,
			Command: spec.Command,
			Err:     fmt.Errorf("killed after %s", spec.Timeout),
		}
	case ctx.Err() != nil:
		// Caller-side cancellation; the process has already been killed.
		r.observe(spec.Command, "canceled")
		return Result{}, ctx.Err()
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			r.observe(spec.Command, "launch_error")
			return Result{}, &Error{Kind: KindLaunch, Command: spec.Command, Err: waitErr}
		}
		r.observe(spec.Command, "nonzero_exit")
		r.logger.Debug("process exited non-zero",
			"command", spec.Command, "exit_code", exitErr.ExitCode(), "elapsed", elapsed)
		return Result{
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			ExitCode: exitErr.ExitCode(),
		}, nil
	}

	r.observe(spec.Command, "ok")
	r.logger.Debug("process finished",
		"command", spec.Command, "stdout_bytes", stdout.Len(), "elapsed", elapsed)
	return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}

// outputCap tracks the combined size of both captured streams and kills the
// process the moment the limit is crossed.
type outputCap struct {
	mu    sync.Mutex
	limit int64
	n     int64
	over  bool
	kill  context.CancelFunc
}

func (c *outputCap) exceeded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.over
}

func (c *outputCap) tee(dst io.Writer) io.Writer {
	return &capWriter{cap: c, dst: dst}
}

type capWriter struct {
	cap *outputCap
	dst io.Writer
}

func (w *capWriter) Write(p []byte) (int, error) {
	w.cap.mu.Lock()
	defer w.cap.mu.Unlock()
	if w.cap.over {
		return 0, errOutputCap
	}
	w.cap.n += int64(len(p))
	if w.cap.n > w.cap.limit {
		w.cap.over = true
		w.cap.kill()
		return 0, errOutputCap
	}
	return w.dst.Write(p)
}
