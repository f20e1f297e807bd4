// Package spectrum runs the multifractal analysis binaries over extracted
// address sets and parses their distinct output grammars into typed points.
package spectrum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"nfspect/internal/artifact"
	"nfspect/internal/extract"
	"nfspect/internal/procrun"
)

// structureHeader is the exact first line the structure-function binary
// must emit.
const structureHeader = "q,tauTilde,sd"

// spectrumHeader is the exact first line the spectrum binary must emit.
const spectrumHeader = "alpha,f"

var (
	// ErrEmptyResult reports an analysis that produced zero points.
	ErrEmptyResult = errors.New("analysis produced no points")
	// ErrMalformedOutput reports output that does not match the tool's
	// grammar. The whole operation fails; partial points are never kept.
	ErrMalformedOutput = errors.New("malformed analysis output")
)

// StructureFunctionPoint is one structure-function sample: moment order q,
// scaling exponent tauTilde and its standard deviation.
type StructureFunctionPoint struct {
	Q        float64 `json:"q"`
	TauTilde float64 `json:"tauTilde"`
	SD       float64 `json:"sd"`
}

// QRange is the (min, max) moment-order span of a structure-function run.
type QRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// StructureFunctionResult carries the parsed points plus metadata. QRange
// is nil when no points were produced; it is never computed over an empty
// sequence.
type StructureFunctionResult struct {
	Points []StructureFunctionPoint `json:"points"`
	Count  int                      `json:"count"`
	QRange *QRange                  `json:"qRange,omitempty"`
}

// SpectrumPoint is one point of a singularity spectrum.
type SpectrumPoint struct {
	Alpha float64 `json:"alpha"`
	F     float64 `json:"f"`
}

// Singularity is one ranked per-address multifractal fit.
type Singularity struct {
	Rank      string  `json:"rank"`
	Address   string  `json:"address"`
	Alpha     float64 `json:"alpha"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
	NPls      int     `json:"nPls"`
}

// Config wires the analyzer's tools and bounds. All fields are required.
type Config struct {
	Runner            procrun.Runner
	Artifacts         *artifact.Manager
	NfdumpPath        string
	StructureBinPath  string
	SpectrumBinPath   string
	SingularitiesPath string
	Timeout           time.Duration
	MaxOutputBytes    int64
	Logger            *slog.Logger
}

// Analyzer runs the analysis binaries through a bounded Runner. It never
// retries; timeout and size-cap failures propagate for classification at
// the pipeline boundary.
type Analyzer struct {
	cfg    Config
	logger *slog.Logger
}

// New builds an Analyzer from cfg.
func New(cfg Config) *Analyzer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{cfg: cfg, logger: logger}
}

// StructureFunction writes the addresses to a scoped temp file and runs the
// structure-function binary over it. The first output line must be exactly
// "q,tauTilde,sd"; remaining lines are three comma-separated floats.
func (a *Analyzer) StructureFunction(ctx context.Context, addresses []string, router, slugKey string) (StructureFunctionResult, error) {
	var result StructureFunctionResult

	err := a.cfg.Artifacts.WithAddressFile(addresses, router, slugKey, func(path string) error {
		res, err := a.cfg.Runner.Run(ctx, procrun.Spec{
			Command:        a.cfg.StructureBinPath,
			Args:           []string{path},
			Timeout:        a.cfg.Timeout,
			MaxOutputBytes: a.cfg.MaxOutputBytes,
		})
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("structure-function binary exited %d: %s",
				res.ExitCode, firstLine(res.Stderr))
		}
		points, err := parseHeaderedCSV(res.Stdout, structureHeader, 3, func(f []float64) {
			result.Points = append(result.Points, StructureFunctionPoint{Q: f[0], TauTilde: f[1], SD: f[2]})
		})
		if err != nil {
			return err
		}
		result.Count = points
		return nil
	})
	if err != nil {
		return StructureFunctionResult{}, err
	}

	if result.Count > 0 {
		r := QRange{Min: result.Points[0].Q, Max: result.Points[0].Q}
		for _, p := range result.Points[1:] {
			if p.Q < r.Min {
				r.Min = p.Q
			}
			if p.Q > r.Max {
				r.Max = p.Q
			}
		}
		result.QRange = &r
	}
	return result, nil
}

// Spectrum runs the singularity-spectrum binary over a scoped temp address
// file. Fixed header "alpha,f", then two-float lines.
func (a *Analyzer) Spectrum(ctx context.Context, addresses []string, router, slugKey string) ([]SpectrumPoint, error) {
	var points []SpectrumPoint

	err := a.cfg.Artifacts.WithAddressFile(addresses, router, slugKey, func(path string) error {
		res, err := a.cfg.Runner.Run(ctx, procrun.Spec{
			Command:        a.cfg.SpectrumBinPath,
			Args:           []string{path},
			Timeout:        a.cfg.Timeout,
			MaxOutputBytes: a.cfg.MaxOutputBytes,
		})
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("spectrum binary exited %d: %s",
				res.ExitCode, firstLine(res.Stderr))
		}
		n, err := parseHeaderedCSV(res.Stdout, spectrumHeader, 2, func(f []float64) {
			points = append(points, SpectrumPoint{Alpha: f[0], F: f[1]})
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrEmptyResult
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// Singularities streams the dump tool's directional address output straight
// into the singularities-ranking binary — no temp file — and parses the
// ranked lines. Any malformed line fails the whole operation.
func (a *Analyzer) Singularities(ctx context.Context, filePath string, dir extract.Direction, topN int) ([]Singularity, error) {
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer pw.Close()
		res, err := a.cfg.Runner.Run(gctx, procrun.Spec{
			Command:        a.cfg.NfdumpPath,
			Args:           []string{"-r", filePath, "-q", "-o", dumpFormat(dir), "-n", "0", "ipv4"},
			Stdout:         pw,
			Timeout:        a.cfg.Timeout,
			MaxOutputBytes: a.cfg.MaxOutputBytes,
		})
		if err != nil {
			pw.CloseWithError(err)
			return err
		}
		if res.ExitCode != 0 {
			err := fmt.Errorf("dump tool exited %d: %s", res.ExitCode, firstLine(res.Stderr))
			pw.CloseWithError(err)
			return err
		}
		return nil
	})

	var raw []byte
	g.Go(func() error {
		defer pr.Close()
		res, err := a.cfg.Runner.Run(gctx, procrun.Spec{
			Command:        a.cfg.SingularitiesPath,
			Args:           []string{strconv.Itoa(topN), "/dev/stdin"},
			Stdin:          pr,
			Timeout:        a.cfg.Timeout,
			MaxOutputBytes: a.cfg.MaxOutputBytes,
		})
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("singularities binary exited %d: %s",
				res.ExitCode, firstLine(res.Stderr))
		}
		raw = res.Stdout
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parseSingularities(raw)
}

func dumpFormat(dir extract.Direction) string {
	if dir == extract.Destination {
		return "fmt:%da"
	}
	return "fmt:%sa"
}

// parseHeaderedCSV checks the exact header line and parses each remaining
// non-empty line into fields floats, invoking emit per line. Returns the
// number of parsed lines.
func parseHeaderedCSV(out []byte, header string, fields int, emit func([]float64)) (int, error) {
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) == 0 || lines[0] != header {
		return 0, fmt.Errorf("%w: first line %q, want %q", ErrMalformedOutput, firstOf(lines), header)
	}
	count := 0
	floats := make([]float64, fields)
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != fields {
			return 0, fmt.Errorf("%w: line %q has %d fields, want %d",
				ErrMalformedOutput, line, len(parts), fields)
		}
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return 0, fmt.Errorf("%w: line %q: %v", ErrMalformedOutput, line, err)
			}
			floats[i] = v
		}
		emit(floats)
		count++
	}
	return count, nil
}

// parseSingularities parses "rank:address,alpha,intercept,r2,nPls" lines.
func parseSingularities(out []byte) ([]Singularity, error) {
	var items []Singularity
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rank, rest, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("%w: line %q missing rank separator", ErrMalformedOutput, line)
		}
		parts := strings.Split(rest, ",")
		if len(parts) != 5 {
			return nil, fmt.Errorf("%w: line %q has %d fields, want 5", ErrMalformedOutput, line, len(parts))
		}
		alpha, err1 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		intercept, err2 := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		r2, err3 := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		nPls, err4 := strconv.Atoi(strings.TrimSpace(parts[4]))
		if err := errors.Join(err1, err2, err3, err4); err != nil {
			return nil, fmt.Errorf("%w: line %q: %v", ErrMalformedOutput, line, err)
		}
		items = append(items, Singularity{
			Rank:      strings.TrimSpace(rank),
			Address:   strings.TrimSpace(parts[0]),
			Alpha:     alpha,
			Intercept: intercept,
			R2:        r2,
			NPls:      nPls,
		})
	}
	if len(items) == 0 {
		return nil, ErrEmptyResult
	}
	return items, nil
}

func firstOf(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
