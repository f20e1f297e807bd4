package main

import (
	"fmt"

	"nfspect/internal/artifact"
	"nfspect/internal/config"
	"nfspect/internal/extract"
	"nfspect/internal/flowstore"
	"nfspect/internal/logging"
	"nfspect/internal/metrics"
	"nfspect/internal/pipeline"
	"nfspect/internal/procrun"
	"nfspect/internal/spectrum"
)

// app bundles everything a command needs after bootstrap.
type app struct {
	cfg     *config.Config
	store   *flowstore.Store
	service *pipeline.Service
	metrics *metrics.Set
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// bootstrap loads config, initializes logging, opens the store and wires
// the pipeline. Callers must close() the returned app.
func bootstrap() (*app, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	store, err := flowstore.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	m := metrics.New()
	runner := procrun.NewExecRunner(logging.New("procrun"),
		procrun.WithObserver(m.ObserveProcessRun))
	extractor := extract.New(runner, cfg.Tools.Nfdump, cfg.Limits.MaxOutputBytes, logging.New("extract"))
	artifacts := artifact.NewManager(cfg.TempDir, logging.New("artifact"))
	analyzer := spectrum.New(spectrum.Config{
		Runner:            runner,
		Artifacts:         artifacts,
		NfdumpPath:        cfg.Tools.Nfdump,
		StructureBinPath:  cfg.Tools.StructureFunction,
		SpectrumBinPath:   cfg.Tools.Spectrum,
		SingularitiesPath: cfg.Tools.Singularities,
		Timeout:           cfg.Limits.AnalyzeTimeout.Std(),
		MaxOutputBytes:    cfg.Limits.MaxOutputBytes,
		Logger:            logging.New("spectrum"),
	})

	service := pipeline.NewService(store, extractor, analyzer,
		cfg.Limits.ExtractTimeout.Std(), m, logging.New("pipeline"))

	return &app{cfg: cfg, store: store, service: service, metrics: m}, nil
}
