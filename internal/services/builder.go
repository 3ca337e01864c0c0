package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-digest/internal/engine"
	"github.com/miradorstack/mirador-digest/internal/metrics"
	"github.com/miradorstack/mirador-digest/internal/models"
	"github.com/miradorstack/mirador-digest/internal/utils"
)

// Report section names, used in Report.Errors and logs.
const (
	SectionAlertsMonth    = "alerts.this_month"
	SectionAlertsDay      = "alerts.last_24h"
	SectionIncidentsMonth = "incidents.this_month"
	SectionIncidentsDay   = "incidents.last_24h"
	SectionInbound        = "inbound"
	SectionOutbound       = "outbound"
	SectionMaintenance    = "maintenance"
	SectionCatalogs       = "catalogs"
	SectionAudits         = "audits"
)

// catalogFreshness is how recently every listed catalog must have synced.
const catalogFreshness = 24 * time.Hour

type section struct {
	name string
	run  func(ctx context.Context) error
}

func (s *ReportService) build(ctx context.Context, runID string, now time.Time) (models.Report, error) {
	logger := s.logger.With(slog.String("run_id", runID))
	started := time.Now()
	loc := s.opts.Location

	report := models.Report{
		RunID:       runID,
		GeneratedAt: now.In(loc),
		MonthStart:  utils.MonthStart(now, loc),
		DayStart:    now.Add(-s.opts.RecentWindow).In(loc),
		Timezone:    s.opts.Timezone,
	}

	stats, err := observe(ctx, "statistics", func(ctx context.Context) (models.Statistics, error) {
		return s.api.FetchStatistics(ctx, report.DayStart, now)
	})
	if err != nil {
		return models.Report{}, utils.Wrap("statistics", "fetch overview", err)
	}
	report.Statistics = engine.WithNoiseReduction(stats)

	alerts := engine.NewAlertSummarizer(s.rules)
	incidents := engine.NewIncidentSummarizer(s.rules)
	alertPages := observedPages("alerts", engine.PageFunc[models.Alert](s.api.QueryAlertPage))
	incidentPages := observedPages("incidents", engine.PageFunc[models.Incident](s.api.QueryIncidentPage))

	// Each window is fetched on its own; the day is never derived from the month.
	sections := []section{
		{SectionAlertsMonth, func(ctx context.Context) error {
			records, err := engine.FetchSince[models.Alert](ctx, alertPages, report.MonthStart)
			report.Alerts.ThisMonth = alerts.Summarize(records)
			return err
		}},
		{SectionAlertsDay, func(ctx context.Context) error {
			records, err := engine.FetchSince[models.Alert](ctx, alertPages, report.DayStart)
			report.Alerts.Last24h = alerts.Summarize(records)
			return err
		}},
		{SectionIncidentsMonth, func(ctx context.Context) error {
			records, err := engine.FetchSince[models.Incident](ctx, incidentPages, report.MonthStart)
			report.Incidents.ThisMonth = incidents.Summarize(records)
			return err
		}},
		{SectionIncidentsDay, func(ctx context.Context) error {
			records, err := engine.FetchSince[models.Incident](ctx, incidentPages, report.DayStart)
			report.Incidents.Last24h = incidents.Summarize(records)
			return err
		}},
		{SectionInbound, func(ctx context.Context) error {
			var err error
			report.Inbound, err = s.inbound(ctx, logger, now)
			return err
		}},
		{SectionOutbound, func(ctx context.Context) error {
			var err error
			report.Outbound, err = s.outbound(ctx, logger, now)
			return err
		}},
		{SectionMaintenance, func(ctx context.Context) error {
			var err error
			report.Maintenance, err = s.maintenance(ctx, now)
			return err
		}},
		{SectionCatalogs, func(ctx context.Context) error {
			catalogs, err := observe(ctx, "catalogs", s.api.FetchCatalogs)
			if err != nil {
				catalogs = nil
			}
			report.Catalogs = engine.SummarizeCatalogs(catalogs, now, catalogFreshness, s.opts.CatalogLimit, loc)
			return err
		}},
		{SectionAudits, func(ctx context.Context) error {
			fetch := func(ctx context.Context, service string, start, end time.Time) (int, error) {
				return observe(ctx, "audits", func(ctx context.Context) (int, error) {
					return s.api.FetchAuditCount(ctx, service, start, end)
				})
			}
			report.Audits = engine.CountAudits(ctx, logger, s.opts.FanOut, s.opts.AuditServices, fetch, report.DayStart, now)
			return nil
		}},
	}

	// Sections write disjoint report fields, so they run side by side; the
	// bounded pool applies to the fetches inside each one.
	errs := make([]error, len(sections))
	engine.FanOut{Workers: len(sections)}.Each(ctx, len(sections), func(ctx context.Context, i int) {
		errs[i] = sections[i].run(ctx)
	})

	for i, err := range errs {
		if err == nil {
			continue
		}
		logger.Warn("report section degraded", slog.String("section", sections[i].name), slog.Any("error", err))
		report.Errors = append(report.Errors, models.SectionError{Section: sections[i].name, Error: err.Error()})
	}
	metrics.SetDegradedSections(len(report.Errors))

	logger.Info("digest built",
		slog.Duration("elapsed", time.Since(started)),
		slog.Int("degraded_sections", len(report.Errors)))
	return report, nil
}

func (s *ReportService) inbound(ctx context.Context, logger *slog.Logger, now time.Time) (models.IntegrationSection, error) {
	queries := s.opts.InboundQueries
	if len(queries) == 0 {
		queries = []string{""}
	}
	lists := make([][]models.Integration, len(queries))
	errs := make([]error, len(queries))
	s.opts.FanOut.Each(ctx, len(queries), func(ctx context.Context, i int) {
		lists[i], errs[i] = observe(ctx, "inbound_integrations", func(ctx context.Context) ([]models.Integration, error) {
			return s.api.FetchInboundIntegrations(ctx, queries[i])
		})
		if errs[i] != nil {
			lists[i] = nil
			logger.Warn("inbound integration query failed", slog.String("query", queries[i]), slog.Any("error", errs[i]))
		}
	})

	integrations := engine.MergeIntegrations(lists...)
	var err error
	if allFailed(errs) {
		err = errors.Join(errs...)
	}
	fetch := observedErrors("inbound_errors", s.api.FetchInboundErrors)
	return models.IntegrationSection{
		Total:        len(integrations),
		Integrations: integrations,
		Errors:       engine.NewErrorCorrelator(logger, s.opts.FanOut, s.opts.RecentWindow).Correlate(ctx, integrations, fetch, now),
	}, err
}

func (s *ReportService) outbound(ctx context.Context, logger *slog.Logger, now time.Time) (models.IntegrationSection, error) {
	list, err := observe(ctx, "outbound_integrations", s.api.FetchOutboundIntegrations)
	if err != nil {
		list = nil
	}
	integrations := engine.MergeIntegrations(list)
	fetch := observedErrors("outbound_errors", s.api.FetchOutboundErrors)
	return models.IntegrationSection{
		Total:        len(integrations),
		Integrations: integrations,
		Errors:       engine.NewErrorCorrelator(logger, s.opts.FanOut, s.opts.RecentWindow).Correlate(ctx, integrations, fetch, now),
	}, err
}

func (s *ReportService) maintenance(ctx context.Context, now time.Time) (models.MaintenanceSection, error) {
	loc := s.opts.Location
	empty := engine.SummarizeMaintenance(nil, 0, loc, s.opts.MaintenanceAlertLimit)

	active, err := observe(ctx, "maintenance_windows", s.api.FetchActiveWindows)
	if err != nil {
		return empty, err
	}
	expired, err := observe(ctx, "expired_occurrences", s.api.FetchExpiredOccurrences)
	if err != nil {
		return empty, err
	}
	alerts, err := observe(ctx, "maintenance_alerts", func(ctx context.Context) ([]models.Alert, error) {
		return s.api.FetchMaintenanceAlerts(ctx, now.In(loc))
	})
	if err != nil {
		return empty, err
	}

	windows := engine.MergeWindows(active, expired)
	enriched := engine.EnrichAlerts(alerts, windows)
	return engine.SummarizeMaintenance(enriched, len(windows), loc, s.opts.MaintenanceAlertLimit), nil
}

func allFailed(errs []error) bool {
	for _, err := range errs {
		if err == nil {
			return false
		}
	}
	return len(errs) > 0
}

// observe times fn and records the outcome against source.
func observe[T any](ctx context.Context, source string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := fn(ctx)
	metrics.ObserveFetch(source, time.Since(start), err)
	return v, err
}

func observedPages[T any](source string, fn engine.PageFunc[T]) engine.PageFunc[T] {
	return func(ctx context.Context, lowerBound time.Time, cursor models.Cursor) (models.Page[T], error) {
		return observe(ctx, source, func(ctx context.Context) (models.Page[T], error) {
			return fn(ctx, lowerBound, cursor)
		})
	}
}

func observedErrors(source string, fn engine.ErrorLogFetcher) engine.ErrorLogFetcher {
	return func(ctx context.Context, integrationID string) ([]models.ErrorLogEntry, error) {
		return observe(ctx, source, func(ctx context.Context) ([]models.ErrorLogEntry, error) {
			return fn(ctx, integrationID)
		})
	}
}
