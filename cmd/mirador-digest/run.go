package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-digest/internal/services"
)

func runCmd(flags *globalFlags) *cobra.Command {
	var opts services.RunOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the digest and mail it",
		Long: `Build the digest and mail it to the configured recipients.

The report day is claimed in the cache first, so a second run on the same
day exits without sending unless --force is given.

Examples:
  # Send today's digest
  mirador-digest run

  # Build and render without sending or claiming the day
  mirador-digest run --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags, cmd.ErrOrStderr(), appOptions{withMail: !opts.DryRun})
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.pushMetrics(cmd.Context())

			result, err := a.service.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			switch {
			case result.Skipped:
				fmt.Fprintln(cmd.OutOrStdout(), "digest already sent today; use --force to send again")
			case result.Sent:
				fmt.Fprintf(cmd.OutOrStdout(), "digest %s sent to %d recipient(s)\n", result.RunID, len(a.cfg.Mail.To))
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "digest %s rendered (%d bytes), not sent\n", result.RunID, len(result.Rendered))
			}
			if n := len(result.Report.Errors); n > 0 {
				a.logger.Warn("digest has degraded sections", slog.Int("count", n))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "Send even if today's digest was already sent")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Build and render without sending mail")
	return cmd
}
