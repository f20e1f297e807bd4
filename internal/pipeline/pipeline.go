// Package pipeline chains slug decoding, record lookup, address
// extraction and spectrum analysis into the request-level operations the
// service exposes. Each operation runs one sequential chain; there is no
// parallelism inside a request and no shared mutable state between
// concurrent requests beyond the read-only store.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"nfspect/internal/extract"
	"nfspect/internal/flowstore"
	"nfspect/internal/metrics"
	"nfspect/internal/slug"
	"nfspect/internal/spectrum"
)

// Store is the record-lookup surface the pipeline needs.
type Store interface {
	LookupFilePath(ctx context.Context, slugKey, router string) (string, error)
	LookupAggregates(ctx context.Context, slugKey, router string) ([]flowstore.CaptureFileRecord, error)
	LookupCardinality(ctx context.Context, router, granularity string, bucketStart int64) (flowstore.CardinalityRecord, error)
}

// Extractor pulls address sets out of capture files.
type Extractor interface {
	Extract(ctx context.Context, filePath string, timeout time.Duration) (extract.IPSet, error)
	ExtractDirectional(ctx context.Context, filePath string, dir extract.Direction, timeout time.Duration) (extract.IPSet, error)
}

// Analyzer runs the multifractal binaries over extracted addresses.
type Analyzer interface {
	StructureFunction(ctx context.Context, addresses []string, router, slugKey string) (spectrum.StructureFunctionResult, error)
	Spectrum(ctx context.Context, addresses []string, router, slugKey string) ([]spectrum.SpectrumPoint, error)
	Singularities(ctx context.Context, filePath string, dir extract.Direction, topN int) ([]spectrum.Singularity, error)
}

// AddressResult is the addresses operation's payload.
type AddressResult struct {
	Count     int      `json:"count"`
	Addresses []string `json:"addresses"`
}

// Service wires the pipeline components. Construct with NewService.
type Service struct {
	store          Store
	extractor      Extractor
	analyzer       Analyzer
	extractTimeout time.Duration
	metrics        *metrics.Set
	logger         *slog.Logger
}

// NewService builds a Service. metrics and logger may be nil.
func NewService(store Store, ex Extractor, an Analyzer, extractTimeout time.Duration, m *metrics.Set, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:          store,
		extractor:      ex,
		analyzer:       an,
		extractTimeout: extractTimeout,
		metrics:        m,
		logger:         logger,
	}
}

// observe records one finished operation. Category "ok" on success,
// the classifier's category otherwise.
func (s *Service) observe(operation string, start time.Time, err error) {
	category := "ok"
	if err != nil {
		cat := Classify(err)
		category = cat.String()
		s.logger.Log(context.Background(), cat.Severity(), "operation failed",
			"operation", operation, "category", category, "error", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveRequest(operation, category, time.Since(start))
	}
}

// Aggregates returns the stored capture-file records for slug/router.
// Router may be empty to cover all routers for the bucket.
func (s *Service) Aggregates(ctx context.Context, slugKey, router string) (recs []flowstore.CaptureFileRecord, err error) {
	start := time.Now()
	defer func() { s.observe("aggregates", start, err) }()
	if _, err = slug.Decode(slugKey); err != nil {
		return nil, err
	}
	recs, err = s.store.LookupAggregates(ctx, slugKey, router)
	return recs, err
}

// Addresses extracts the deduplicated IPv4 set for slug/router.
func (s *Service) Addresses(ctx context.Context, slugKey, router string) (res AddressResult, err error) {
	start := time.Now()
	defer func() { s.observe("addresses", start, err) }()
	path, err := s.resolve(ctx, slugKey, router)
	if err != nil {
		return AddressResult{}, err
	}
	set, err := s.extractor.Extract(ctx, path, s.extractTimeout)
	if err != nil {
		return AddressResult{}, err
	}
	sorted := set.Sorted()
	return AddressResult{Count: len(sorted), Addresses: sorted}, nil
}

// StructureFunction extracts the directional address set and fits the
// structure function over it.
func (s *Service) StructureFunction(ctx context.Context, slugKey, router string, dir extract.Direction) (res spectrum.StructureFunctionResult, err error) {
	start := time.Now()
	defer func() { s.observe("structure", start, err) }()
	addrs, err := s.directional(ctx, slugKey, router, dir)
	if err != nil {
		return spectrum.StructureFunctionResult{}, err
	}
	res, err = s.analyzer.StructureFunction(ctx, addrs, router, slugKey)
	return res, err
}

// Spectrum computes the singularity spectrum for the directional set.
func (s *Service) Spectrum(ctx context.Context, slugKey, router string, dir extract.Direction) (pts []spectrum.SpectrumPoint, err error) {
	start := time.Now()
	defer func() { s.observe("spectrum", start, err) }()
	addrs, err := s.directional(ctx, slugKey, router, dir)
	if err != nil {
		return nil, err
	}
	pts, err = s.analyzer.Spectrum(ctx, addrs, router, slugKey)
	return pts, err
}

// Singularities ranks per-address fits. The capture file is streamed
// straight into the ranking binary; no addresses are materialized here.
func (s *Service) Singularities(ctx context.Context, slugKey, router string, dir extract.Direction, topN int) (items []spectrum.Singularity, err error) {
	start := time.Now()
	defer func() { s.observe("singularities", start, err) }()
	path, err := s.resolve(ctx, slugKey, router)
	if err != nil {
		return nil, err
	}
	items, err = s.analyzer.Singularities(ctx, path, dir, topN)
	return items, err
}

// Cardinality returns the stored distinct-address count for the slug's
// time bucket.
func (s *Service) Cardinality(ctx context.Context, slugKey, router, granularity string) (rec flowstore.CardinalityRecord, err error) {
	start := time.Now()
	defer func() { s.observe("cardinality", start, err) }()
	t, err := slug.Decode(slugKey)
	if err != nil {
		return flowstore.CardinalityRecord{}, err
	}
	rec, err = s.store.LookupCardinality(ctx, router, granularity, slug.Bucket(t))
	return rec, err
}

func (s *Service) resolve(ctx context.Context, slugKey, router string) (string, error) {
	if _, err := slug.Decode(slugKey); err != nil {
		return "", err
	}
	return s.store.LookupFilePath(ctx, slugKey, router)
}

func (s *Service) directional(ctx context.Context, slugKey, router string, dir extract.Direction) ([]string, error) {
	path, err := s.resolve(ctx, slugKey, router)
	if err != nil {
		return nil, err
	}
	set, err := s.extractor.ExtractDirectional(ctx, path, dir, s.extractTimeout)
	if err != nil {
		return nil, err
	}
	return set.Sorted(), nil
}
