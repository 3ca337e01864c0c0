package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-digest/internal/cache"
)

func statusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last delivered digest",
		Long: `Show when the last digest was delivered and which sections degraded.
Requires the cache to be enabled.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags, cmd.ErrOrStderr(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.service.LastReport(cmd.Context())
			if errors.Is(err, cache.ErrCacheMiss) {
				fmt.Fprintln(cmd.OutOrStdout(), "no digest delivered yet")
				return nil
			}
			if err != nil {
				return fmt.Errorf("read last digest: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "RUN ID\t%s\n", report.RunID)
			fmt.Fprintf(tw, "GENERATED\t%s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Fprintf(tw, "ALERTS (24H)\t%d\n", report.Statistics.AlertCount)
			fmt.Fprintf(tw, "INCIDENTS (24H)\t%d\n", report.Statistics.IncidentCount)
			fmt.Fprintf(tw, "NOISE REDUCTION\t%.2f%%\n", report.Statistics.NoiseReduction)
			if len(report.Errors) == 0 {
				fmt.Fprintln(tw, "DEGRADED\tnone")
			}
			for _, sectionErr := range report.Errors {
				fmt.Fprintf(tw, "DEGRADED\t%s: %s\n", sectionErr.Section, sectionErr.Error)
			}
			return tw.Flush()
		},
	}
}
