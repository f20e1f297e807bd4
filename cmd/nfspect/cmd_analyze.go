package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"nfspect/internal/extract"
)

var analyzeFlags struct {
	slug        string
	router      string
	analysis    string
	source      bool
	topN        int
	granularity string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis for a slug/router and print JSON",
	Long: `Runs a single analysis pass against the configured store and tools,
bypassing the HTTP layer. The analysis flag selects one of: addresses,
structure, spectrum, singularities, cardinality, flows.`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.slug, "slug", "", "12-digit timestamp key YYYYMMDDHHmm (required)")
	f.StringVar(&analyzeFlags.router, "router", "", "Router identifier (required)")
	f.StringVar(&analyzeFlags.analysis, "analysis", "structure", "Analysis to run")
	f.BoolVar(&analyzeFlags.source, "source", true, "Use source addresses (false for destination)")
	f.IntVar(&analyzeFlags.topN, "top", 25, "Singularities ranking depth")
	f.StringVar(&analyzeFlags.granularity, "granularity", "5m", "Cardinality bucket granularity")

	_ = analyzeCmd.MarkFlagRequired("slug")
	_ = analyzeCmd.MarkFlagRequired("router")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	dir := extract.Source
	if !analyzeFlags.source {
		dir = extract.Destination
	}

	var payload any
	switch analyzeFlags.analysis {
	case "addresses":
		payload, err = a.service.Addresses(ctx, analyzeFlags.slug, analyzeFlags.router)
	case "structure":
		payload, err = a.service.StructureFunction(ctx, analyzeFlags.slug, analyzeFlags.router, dir)
	case "spectrum":
		payload, err = a.service.Spectrum(ctx, analyzeFlags.slug, analyzeFlags.router, dir)
	case "singularities":
		payload, err = a.service.Singularities(ctx, analyzeFlags.slug, analyzeFlags.router, dir, analyzeFlags.topN)
	case "cardinality":
		payload, err = a.service.Cardinality(ctx, analyzeFlags.slug, analyzeFlags.router, analyzeFlags.granularity)
	case "flows":
		payload, err = a.service.Aggregates(ctx, analyzeFlags.slug, analyzeFlags.router)
	default:
		return fmt.Errorf("unknown analysis %q", analyzeFlags.analysis)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
