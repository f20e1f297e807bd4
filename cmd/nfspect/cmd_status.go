package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the netflow store",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	sum, err := a.store.Summarize(cmd.Context())
	if err != nil {
		return fmt.Errorf("summarize store: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database: %s\n", a.cfg.DatabasePath)
	fmt.Fprintf(out, "Records:  %d\n", sum.Records)
	fmt.Fprintf(out, "Routers:  %s\n", strings.Join(sum.Routers, ", "))
	if sum.LatestBucket > 0 {
		fmt.Fprintf(out, "Latest:   %s\n", time.Unix(sum.LatestBucket, 0).UTC().Format(time.RFC3339))
	}
	return nil
}
