// Package refresh runs the external ingestion pipeline as a one-shot
// maintenance job. The child's combined stdout and stderr are tee'd
// synchronously into a per-run log file, which is closed on every
// termination path before Run returns.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ErrTimedOut reports a job killed at its deadline.
var ErrTimedOut = errors.New("refresh job exceeded its timeout")

// Job configures one maintenance run.
type Job struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration
	LogDir  string
	Logger  *slog.Logger
}

// Result reports where the run logged and how the child exited.
type Result struct {
	LogPath  string
	ExitCode int
	Elapsed  time.Duration
}

// Run launches the job and waits for it. The log file is created before
// the child starts; spawn failures still leave a (closed) log behind so
// every run has an artifact.
func (j Job) Run(ctx context.Context) (Result, error) {
	logger := j.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if j.Command == "" {
		return Result{}, fmt.Errorf("refresh: command is required")
	}
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	logPath := filepath.Join(j.LogDir, "refresh-"+time.Now().UTC().Format("2006-01-02-15-04-05")+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("refresh: create log: %w", err)
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil {
			logger.Warn("closing refresh log failed", "path", logPath, "error", cerr)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, j.Command, j.Args...)
	cmd.Dir = j.Dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.WaitDelay = 10 * time.Second

	start := time.Now()
	logger.Info("refresh job starting", "command", j.Command, "log", logPath, "timeout", timeout)
	err = cmd.Run()
	elapsed := time.Since(start)
	res := Result{LogPath: logPath, Elapsed: elapsed}

	switch {
	case err == nil:
		logger.Info("refresh job finished", "elapsed", elapsed, "log", logPath)
		return res, nil
	case ctx.Err() == context.DeadlineExceeded:
		res.ExitCode = -1
		logger.Error("refresh job killed at deadline", "elapsed", elapsed, "log", logPath)
		return res, fmt.Errorf("%w after %s", ErrTimedOut, timeout)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			logger.Error("refresh job exited nonzero", "code", res.ExitCode, "log", logPath)
			return res, fmt.Errorf("refresh: exit code %d (log: %s)", res.ExitCode, logPath)
		}
		res.ExitCode = -1
		return res, fmt.Errorf("refresh: launch %s: %w", j.Command, err)
	}
}
