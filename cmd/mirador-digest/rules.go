package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-digest/internal/engine"
	"github.com/miradorstack/mirador-digest/internal/utils"
)

func rulesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the effective manager rule table",
		Long: `Print the manager rule table the digest applies, after falling back to the
built-in rules when no table file exists.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := utils.NewLogger(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.JSON)
			rules, err := engine.LoadRules(cfg.Rules.Path, logger)
			if err != nil {
				return fmt.Errorf("load rule table: %w", err)
			}
			return writeRules(cmd.OutOrStdout(), rules)
		},
	}
}

func writeRules(w io.Writer, rules engine.RuleSet) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rules); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return enc.Close()
}
