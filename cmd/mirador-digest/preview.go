package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-digest/internal/services"
)

func previewCmd(flags *globalFlags) *cobra.Command {
	var (
		out    string
		format string
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the digest without sending it",
		Long: `Render the digest to a file or stdout without sending mail.

Examples:
  # Write the HTML report to a file
  mirador-digest preview --out digest.html

  # Inspect the composed report as JSON
  mirador-digest preview --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "html" && format != "json" {
				return fmt.Errorf("unsupported format %q: use html or json", format)
			}
			a, err := newApp(flags, cmd.ErrOrStderr(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.service.Run(cmd.Context(), services.RunOptions{DryRun: true})
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			if format == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(result.Report)
			}
			_, err = w.Write(result.Rendered)
			return err
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&format, "format", "html", "Output format: html, json")
	return cmd
}
