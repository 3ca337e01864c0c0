// mirador-digest builds the daily Moogsoft report and mails it.
//
// Usage:
//
//	mirador-digest run --config configs/digest.yaml
//	mirador-digest preview --out digest.html
//	mirador-digest rules
//	mirador-digest status
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

type globalFlags struct {
	configPath string
	envFile    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "mirador-digest",
		Short: "Daily Moogsoft monitoring digest",
		Long: `mirador-digest polls the Moogsoft API for alerts, incidents, integration
health, maintenance windows and audit activity, summarises them over the
month to date and the last 24 hours, and mails one HTML report.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file (env MIRADOR_DIGEST_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Dotenv file loaded before the configuration")

	rootCmd.AddCommand(runCmd(flags))
	rootCmd.AddCommand(previewCmd(flags))
	rootCmd.AddCommand(rulesCmd(flags))
	rootCmd.AddCommand(statusCmd(flags))
	return rootCmd
}
