package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nfspect/internal/config"
	"nfspect/internal/logging"
	"nfspect/internal/refresh"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run the ingestion maintenance job once",
	Long: `Launches the external ingestion pipeline as a single child process with
its own long timeout. Combined output goes to a per-run log file under
the configured log directory.`,
	RunE: runRefresh,
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return err
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	if cfg.Refresh.Command == "" {
		return fmt.Errorf("refresh.command is not configured")
	}
	job := refresh.Job{
		Command: cfg.Refresh.Command,
		Args:    cfg.Refresh.Args,
		Dir:     cfg.Refresh.Dir,
		Timeout: cfg.Refresh.Timeout.Std(),
		LogDir:  cfg.Refresh.LogDir,
		Logger:  logging.New("refresh"),
	}
	res, err := job.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "refresh finished in %s (log: %s)\n", res.Elapsed.Round(time.Second), res.LogPath)
	return nil
}
