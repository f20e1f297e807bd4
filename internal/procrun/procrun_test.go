package procrun

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func newRunner() *ExecRunner { return NewExecRunner(nil) }

func TestRun_CapturesOutputAndExitCode(t *testing.T) {
	res, err := newRunner().Run(context.Background(), Spec{
		Command:        "sh",
		Args:           []string{"-c", "echo out; echo err >&2"},
		Timeout:        5 * time.Second,
		MaxOutputBytes: 4096,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.TrimSpace(string(res.Stdout)); got != "out" {
		t.Errorf("stdout = %q", got)
	}
	if got := strings.TrimSpace(string(res.Stderr)); got != "err" {
		t.Errorf("stderr = %q", got)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d", res.ExitCode)
	}
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	res, err := newRunner().Run(context.Background(), Spec{
		Command:        "sh",
		Args:           []string{"-c", "echo partial; exit 3"},
		Timeout:        5 * time.Second,
		MaxOutputBytes: 4096,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if got := strings.TrimSpace(string(res.Stdout)); got != "partial" {
		t.Errorf("stdout = %q", got)
	}
}

func TestRun_Timeout(t *testing.T) {
	start := time.Now()
	_, err := newRunner().Run(context.Background(), Spec{
		Command:        "sleep",
		Args:           []string{"10"},
		Timeout:        100 * time.Millisecond,
		MaxOutputBytes: 4096,
	})
	if !IsTimeout(err) {
		t.Fatalf("want timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("process was not killed promptly (took %s)", elapsed)
	}
}

func TestRun_TimeoutDiscardsPartialOutput(t *testing.T) {
	runner := newRunner()
	_, err := runner.Run(context.Background(), Spec{
		Command:        "sh",
		Args:           []string{"-c", "echo early; sleep 10"},
		Timeout:        100 * time.Millisecond,
		MaxOutputBytes: 4096,
	})
	if !IsTimeout(err) {
		t.Fatalf("want timeout error, got %v", err)
	}
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("want *Error, got %T", err)
	}
}

func TestRun_OutputTooLarge(t *testing.T) {
	_, err := newRunner().Run(context.Background(), Spec{
		Command:        "sh",
		Args:           []string{"-c", "i=0; while [ $i -lt 10000 ]; do echo aaaaaaaaaaaaaaaa; i=$((i+1)); done"},
		Timeout:        10 * time.Second,
		MaxOutputBytes: 1024,
	})
	if !IsOutputTooLarge(err) {
		t.Fatalf("want output-too-large error, got %v", err)
	}
}

func TestRun_LaunchError(t *testing.T) {
	_, err := newRunner().Run(context.Background(), Spec{
		Command:        "/nonexistent/binary-that-is-not-there",
		Timeout:        time.Second,
		MaxOutputBytes: 1024,
	})
	if !IsLaunchError(err) {
		t.Fatalf("want launch error, got %v", err)
	}
}

func TestRun_StdinStreaming(t *testing.T) {
	res, err := newRunner().Run(context.Background(), Spec{
		Command:        "cat",
		Stdin:          strings.NewReader("10.0.0.1\n10.0.0.2\n"),
		Timeout:        5 * time.Second,
		MaxOutputBytes: 4096,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(res.Stdout) != "10.0.0.1\n10.0.0.2\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestRun_SpecValidation(t *testing.T) {
	r := newRunner()
	cases := []Spec{
		{Command: "", Timeout: time.Second, MaxOutputBytes: 10},
		{Command: "true", Timeout: 0, MaxOutputBytes: 10},
		{Command: "true", Timeout: time.Second, MaxOutputBytes: 0},
	}
	for i, spec := range cases {
		if _, err := r.Run(context.Background(), spec); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("case %d: want ErrInvalidSpec, got %v", i, err)
		}
	}
}

func TestRun_StdoutRedirect(t *testing.T) {
	var sink strings.Builder
	res, err := newRunner().Run(context.Background(), Spec{
		Command:        "sh",
		Args:           []string{"-c", "echo streamed"},
		Stdout:         &sink,
		Timeout:        5 * time.Second,
		MaxOutputBytes: 4096,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Stdout) != 0 {
		t.Errorf("Result.Stdout should be empty when redirected, got %q", res.Stdout)
	}
	if got := strings.TrimSpace(sink.String()); got != "streamed" {
		t.Errorf("redirected output = %q", got)
	}
}

func TestRun_StdoutRedirectStillCapped(t *testing.T) {
	var sink strings.Builder
	_, err := newRunner().Run(context.Background(), Spec{
		Command:        "sh",
		Args:           []string{"-c", "i=0; while [ $i -lt 10000 ]; do echo aaaaaaaaaaaaaaaa; i=$((i+1)); done"},
		Stdout:         &sink,
		Timeout:        10 * time.Second,
		MaxOutputBytes: 512,
	})
	if !IsOutputTooLarge(err) {
		t.Fatalf("want output-too-large error, got %v", err)
	}
}

func TestErrorPredicates_NilAndForeign(t *testing.T) {
	if IsTimeout(nil) || IsOutputTooLarge(nil) || IsLaunchError(nil) {
		t.Error("predicates must be false for nil")
	}
	plain := errors.New("timeout happened") // text must not matter
	if IsTimeout(plain) {
		t.Error("predicates must not match on message text")
	}
}

func TestRun_ObserverOutcomes(t *testing.T) {
	var mu sync.Mutex
	outcomes := map[string]string{}
	runner := NewExecRunner(nil, WithObserver(func(command, outcome string) {
		mu.Lock()
		outcomes[command] = outcome
		mu.Unlock()
	}))

	if _, err := runner.Run(context.Background(), Spec{
		Command: "true", Timeout: 5 * time.Second, MaxOutputBytes: 1024,
	}); err != nil {
		t.Fatalf("Run true: %v", err)
	}
	if _, err := runner.Run(context.Background(), Spec{
		Command: "false", Timeout: 5 * time.Second, MaxOutputBytes: 1024,
	}); err != nil {
		t.Fatalf("Run false: %v", err)
	}
	_, _ = runner.Run(context.Background(), Spec{
		Command: "sleep", Args: []string{"10"},
		Timeout: 100 * time.Millisecond, MaxOutputBytes: 1024,
	})

	mu.Lock()
	defer mu.Unlock()
	if outcomes["true"] != "ok" {
		t.Errorf("true outcome = %q", outcomes["true"])
	}
	if outcomes["false"] != "nonzero_exit" {
		t.Errorf("false outcome = %q", outcomes["false"])
	}
	if outcomes["sleep"] != "timeout" {
		t.Errorf("sleep outcome = %q", outcomes["sleep"])
	}
}
