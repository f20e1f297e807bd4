// Package extract pulls unique, validated IPv4 addresses out of capture
// files by driving the capture-dump tool through a bounded Runner.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"nfspect/internal/procrun"
)

// sampleLimit caps the record count of the fallback strategy.
const sampleLimit = "10000"

var (
	// ErrEmptyResult reports that no valid address survived filtering.
	// This blocks analysis; it is never treated as a zero-address success.
	ErrEmptyResult = errors.New("no valid addresses extracted")
	// ErrExtraction reports a dump-tool failure (non-zero exit, bad launch).
	ErrExtraction = errors.New("address extraction failed")
)

// Direction selects which address column a directional extraction emits.
type Direction int

const (
	Source Direction = iota
	Destination
)

func (d Direction) String() string {
	if d == Destination {
		return "destination"
	}
	return "source"
}

// format returns the dump tool's positional format for one address column.
func (d Direction) format() string {
	if d == Destination {
		return "fmt:%da"
	}
	return "fmt:%sa"
}

// IPSet is a deduplicated set of validated dotted-quad IPv4 strings,
// scoped to one request.
type IPSet map[string]struct{}

// Add inserts an address; the caller has already validated it.
func (s IPSet) Add(addr string) { s[addr] = struct{}{} }

// Contains reports set membership.
func (s IPSet) Contains(addr string) bool {
	_, ok := s[addr]
	return ok
}

// Sorted returns the addresses in lexical order for stable output.
func (s IPSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for addr := range s {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Extractor runs the capture-dump tool and filters its output.
type Extractor struct {
	runner         procrun.Runner
	nfdump         string
	maxOutputBytes int64
	logger         *slog.Logger
}

// New builds an Extractor. nfdump is the dump tool path (binary name or
// absolute); maxOutputBytes bounds each invocation's captured output.
func New(runner procrun.Runner, nfdump string, maxOutputBytes int64, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{
		runner:         runner,
		nfdump:         nfdump,
		maxOutputBytes: maxOutputBytes,
		logger:         logger,
	}
}

// Extract returns the unique valid IPv4 addresses (both source and
// destination) in the capture file. The primary strategy aggregates by
// src/dst address in CSV mode; if its output blows the size cap, a sampled
// fallback bounded to 10000 records is used instead. Timeouts propagate
// as procrun timeout errors; an empty final set is ErrEmptyResult.
func (e *Extractor) Extract(ctx context.Context, filePath string, timeout time.Duration) (IPSet, error) {
	set, err := e.aggregated(ctx, filePath, timeout)
	if procrun.IsOutputTooLarge(err) {
		e.logger.Warn("aggregated extraction exceeded output cap, sampling instead",
			"file", filePath)
		set, err = e.sampled(ctx, filePath, timeout)
	}
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, ErrEmptyResult
	}
	return set, nil
}

// aggregated is the primary strategy: address-aggregated CSV output.
func (e *Extractor) aggregated(ctx context.Context, filePath string, timeout time.Duration) (IPSet, error) {
	res, err := e.runner.Run(ctx, procrun.Spec{
		Command:        e.nfdump,
		Args:           []string{"-r", filePath, "-q", "-o", "csv", "-A", "srcip,dstip", "ipv4"},
		Timeout:        timeout,
		MaxOutputBytes: e.maxOutputBytes,
	})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w: dump tool exited %d: %s",
			ErrExtraction, res.ExitCode, firstLine(res.Stderr))
	}

	set := IPSet{}
	lines := strings.Split(string(res.Stdout), "\n")
	for i, line := range lines {
		if i == 0 {
			continue // header row
		}
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			continue
		}
		addToSet(set, strings.Trim(fields[0], `"`))
		addToSet(set, strings.Trim(fields[1], `"`))
	}
	return set, nil
}

// sampled is the fallback strategy: positional format, hard record cap.
func (e *Extractor) sampled(ctx context.Context, filePath string, timeout time.Duration) (IPSet, error) {
	res, err := e.runner.Run(ctx, procrun.Spec{
		Command:        e.nfdump,
		Args:           []string{"-r", filePath, "-q", "-o", "fmt:%sa,%da", "-c", sampleLimit, "ipv4"},
		Timeout:        timeout,
		MaxOutputBytes: e.maxOutputBytes,
	})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w: dump tool exited %d: %s",
			ErrExtraction, res.ExitCode, firstLine(res.Stderr))
	}

	set := IPSet{}
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			continue
		}
		addToSet(set, fields[0])
		addToSet(set, fields[1])
	}
	return set, nil
}

// ExtractDirectional returns only source or only destination addresses,
// used by the spectrum path where the two directions are analyzed apart.
func (e *Extractor) ExtractDirectional(ctx context.Context, filePath string, dir Direction, timeout time.Duration) (IPSet, error) {
	res, err := e.runner.Run(ctx, procrun.Spec{
		Command:        e.nfdump,
		Args:           []string{"-r", filePath, "-q", "-o", dir.format(), "-n", "0", "ipv4"},
		Timeout:        timeout,
		MaxOutputBytes: e.maxOutputBytes,
	})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w: dump tool exited %d: %s",
			ErrExtraction, res.ExitCode, firstLine(res.Stderr))
	}

	set := IPSet{}
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		addToSet(set, strings.TrimSpace(line))
	}
	if len(set) == 0 {
		return nil, ErrEmptyResult
	}
	return set, nil
}

func addToSet(set IPSet, field string) {
	field = strings.TrimSpace(field)
	if ValidIPv4(field) {
		set.Add(field)
	}
}

// ValidIPv4 reports whether s is exactly four dot-separated decimal octets,
// each in [0,255], with no surrounding garbage.
func ValidIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if len(part) == 0 || len(part) > 3 {
			return false
		}
		n := 0
		for _, c := range []byte(part) {
			if c < '0' || c > '9' {
				return false
			}
			n = n*10 + int(c-'0')
		}
		if n > 255 {
			return false
		}
	}
	return true
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
