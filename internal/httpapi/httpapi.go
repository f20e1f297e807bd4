// Package httpapi is the thin HTTP surface over the analysis pipeline.
// Handlers parse parameters, call one pipeline operation, and encode the
// result; every failure goes through the classifier exactly once.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nfspect/internal/extract"
	"nfspect/internal/flowstore"
	"nfspect/internal/metrics"
	"nfspect/internal/pipeline"
	"nfspect/internal/spectrum"
)

// defaultTopN bounds the singularities ranking when the client does not
// ask for a specific count.
const defaultTopN = 25

// Service is the pipeline surface the handlers call.
type Service interface {
	Aggregates(ctx context.Context, slugKey, router string) ([]flowstore.CaptureFileRecord, error)
	Addresses(ctx context.Context, slugKey, router string) (pipeline.AddressResult, error)
	StructureFunction(ctx context.Context, slugKey, router string, dir extract.Direction) (spectrum.StructureFunctionResult, error)
	Spectrum(ctx context.Context, slugKey, router string, dir extract.Direction) ([]spectrum.SpectrumPoint, error)
	Singularities(ctx context.Context, slugKey, router string, dir extract.Direction, topN int) ([]spectrum.Singularity, error)
	Cardinality(ctx context.Context, slugKey, router, granularity string) (flowstore.CardinalityRecord, error)
}

// Server routes analysis requests to the pipeline.
type Server struct {
	service Service
	metrics *metrics.Set
	logger  *slog.Logger
}

// New builds a Server. metrics may be nil; the /metrics route is only
// registered when it is set.
func New(service Service, m *metrics.Set, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{service: service, metrics: m, logger: logger}
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/flows/{slug}", s.handleFlows)
	mux.HandleFunc("GET /api/v1/addresses/{slug}", s.handleAddresses)
	mux.HandleFunc("GET /api/v1/structure/{slug}", s.handleStructure)
	mux.HandleFunc("GET /api/v1/spectrum/{slug}", s.handleSpectrum)
	mux.HandleFunc("GET /api/v1/singularities/{slug}", s.handleSingularities)
	mux.HandleFunc("GET /api/v1/cardinality/{slug}", s.handleCardinality)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) handleFlows(w http.ResponseWriter, r *http.Request) {
	// Router is optional here: an empty value returns every router's
	// record for the bucket.
	recs, err := s.service.Aggregates(r.Context(), r.PathValue("slug"), r.URL.Query().Get("router"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (s *Server) handleAddresses(w http.ResponseWriter, r *http.Request) {
	router, err := requiredRouter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.service.Addresses(r.Context(), r.PathValue("slug"), router)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	router, err := requiredRouter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.service.StructureFunction(r.Context(), r.PathValue("slug"), router, direction(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSpectrum(w http.ResponseWriter, r *http.Request) {
	router, err := requiredRouter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pts, err := s.service.Spectrum(r.Context(), r.PathValue("slug"), router, direction(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"points": pts})
}

func (s *Server) handleSingularities(w http.ResponseWriter, r *http.Request) {
	router, err := requiredRouter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	topN := defaultTopN
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 1 {
			s.writeError(w, r, fmt.Errorf("%w: top must be a positive integer", pipeline.ErrMissingParameter))
			return
		}
		topN = n
	}
	items, err := s.service.Singularities(r.Context(), r.PathValue("slug"), router, direction(r), topN)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleCardinality(w http.ResponseWriter, r *http.Request) {
	router, err := requiredRouter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	granularity := r.URL.Query().Get("granularity")
	if granularity == "" {
		granularity = "5m"
	}
	rec, err := s.service.Cardinality(r.Context(), r.PathValue("slug"), router, granularity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requiredRouter(r *http.Request) (string, error) {
	router := r.URL.Query().Get("router")
	if router == "" {
		return "", fmt.Errorf("%w: router", pipeline.ErrMissingParameter)
	}
	return router, nil
}

// direction reads the source boolean parameter; default true (source
// addresses).
func direction(r *http.Request) extract.Direction {
	if r.URL.Query().Get("source") == "false" {
		return extract.Destination
	}
	return extract.Source
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encoding response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	cat := pipeline.Classify(err)
	s.logger.Log(r.Context(), cat.Severity(), "request failed",
		"path", r.URL.Path, "category", cat.String(), "error", err)
	s.writeJSON(w, cat.HTTPStatus(), map[string]string{"error": err.Error()})
}
