package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/mirador-digest/internal/cache"
	"github.com/miradorstack/mirador-digest/internal/config"
	"github.com/miradorstack/mirador-digest/internal/engine"
	"github.com/miradorstack/mirador-digest/internal/mail"
	"github.com/miradorstack/mirador-digest/internal/metrics"
	"github.com/miradorstack/mirador-digest/internal/render"
	"github.com/miradorstack/mirador-digest/internal/repo"
	"github.com/miradorstack/mirador-digest/internal/services"
	"github.com/miradorstack/mirador-digest/internal/utils"
)

// app holds the wired components behind every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	rules   engine.RuleSet
	store   cache.Provider
	service *services.ReportService
}

type appOptions struct {
	// withMail wires the SMTP sender; preview and status never send.
	withMail bool
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath, flags.envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newApp(flags *globalFlags, logOut io.Writer, opts appOptions) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := utils.NewLogger(logOut, cfg.Logging.Level, cfg.Logging.JSON)

	loc, err := utils.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		return nil, fmt.Errorf("report timezone: %w", err)
	}

	rules, err := engine.LoadRules(cfg.Rules.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("load rule table: %w", err)
	}

	renderer, err := render.New(cfg.Report.TemplatePath, ruleLabels(rules))
	if err != nil {
		return nil, err
	}

	var sender services.Sender
	if opts.withMail {
		if err := cfg.ValidateMail(); err != nil {
			return nil, fmt.Errorf("invalid mail config: %w", err)
		}
		smtpSender, err := mail.NewSender(cfg.Mail)
		if err != nil {
			return nil, err
		}
		sender = smtpSender
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	var store cache.Provider = cache.NoopProvider{}
	if provider, err := cache.New(cfg.Cache); err != nil {
		logger.Warn("valkey cache unavailable, runs are not de-duplicated", slog.Any("error", err))
	} else {
		store = provider
	}

	service := services.NewReportService(logger, repo.NewMoogsoftClient(cfg.Moogsoft), rules, renderer, sender, store, services.Options{
		Location:              loc,
		Timezone:              cfg.Report.Timezone,
		Subject:               cfg.Report.Subject,
		RecentWindow:          cfg.Report.RecentWindow,
		CatalogLimit:          cfg.Report.CatalogLimit,
		MaintenanceAlertLimit: cfg.Report.MaintenanceAlertLimit,
		InboundQueries:        cfg.Moogsoft.InboundQueries,
		AuditServices:         cfg.Moogsoft.AuditServices,
		ClaimTTL:              cfg.Cache.ClaimTTL,
		FanOut:                engine.FanOut{Workers: cfg.Report.Workers, UnitTimeout: cfg.Report.UnitTimeout},
	})

	return &app{cfg: cfg, logger: logger, rules: rules, store: store, service: service}, nil
}

// pushMetrics hands run metrics to the Pushgateway when one is configured.
func (a *app) pushMetrics(ctx context.Context) {
	if a.cfg.Metrics.PushgatewayURL == "" {
		return
	}
	if err := metrics.Push(context.WithoutCancel(ctx), a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); err != nil {
		a.logger.Warn("push metrics", slog.String("url", a.cfg.Metrics.PushgatewayURL), slog.Any("error", err))
	}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close cache", slog.Any("error", err))
	}
}

func ruleLabels(rules engine.RuleSet) map[string]string {
	labels := make(map[string]string, len(rules.Rules))
	for _, rule := range rules.Rules {
		if rule.Label != "" {
			labels[rule.ID] = rule.Label
		}
	}
	return labels
}
