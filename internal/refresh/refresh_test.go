package refresh

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRun_TeesCombinedOutput(t *testing.T) {
	dir := t.TempDir()
	job := Job{
		Command: "sh",
		Args:    []string{"-c", "echo out; echo err >&2"},
		Timeout: 10 * time.Second,
		LogDir:  dir,
	}
	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d", res.ExitCode)
	}
	data, err := os.ReadFile(res.LogPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got := string(data); !strings.Contains(got, "out") || !strings.Contains(got, "err") {
		t.Errorf("log missing streams: %q", got)
	}
	if !strings.HasPrefix(filepath.Base(res.LogPath), "refresh-") {
		t.Errorf("log name = %q", filepath.Base(res.LogPath))
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	job := Job{
		Command: "sh",
		Args:    []string{"-c", "echo partial; exit 3"},
		Timeout: 10 * time.Second,
		LogDir:  t.TempDir(),
	}
	res, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	data, readErr := os.ReadFile(res.LogPath)
	if readErr != nil {
		t.Fatalf("read log: %v", readErr)
	}
	if !strings.Contains(string(data), "partial") {
		t.Errorf("output before failure not tee'd: %q", data)
	}
}

func TestRun_TimeoutKillsChild(t *testing.T) {
	job := Job{
		Command: "sleep",
		Args:    []string{"30"},
		Timeout: 200 * time.Millisecond,
		LogDir:  t.TempDir(),
	}
	start := time.Now()
	res, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, ErrTimedOut) {
		t.Errorf("error = %v, want ErrTimedOut", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("child not killed promptly, took %v", elapsed)
	}
	if _, statErr := os.Stat(res.LogPath); statErr != nil {
		t.Errorf("log file missing after timeout: %v", statErr)
	}
}

func TestRun_LaunchErrorStillLeavesLog(t *testing.T) {
	job := Job{
		Command: filepath.Join(t.TempDir(), "no-such-binary"),
		Timeout: time.Second,
		LogDir:  t.TempDir(),
	}
	res, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected launch error")
	}
	if _, statErr := os.Stat(res.LogPath); statErr != nil {
		t.Errorf("log file missing after launch failure: %v", statErr)
	}
}

func TestRun_MissingCommand(t *testing.T) {
	if _, err := (Job{LogDir: t.TempDir()}).Run(context.Background()); err == nil {
		t.Fatal("expected error for empty command")
	}
}
