package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-digest/internal/cache"
	"github.com/miradorstack/mirador-digest/internal/engine"
	"github.com/miradorstack/mirador-digest/internal/metrics"
	"github.com/miradorstack/mirador-digest/internal/models"
	"github.com/miradorstack/mirador-digest/internal/utils"
)

// MoogsoftAPI is the subset of the platform client the digest reads from.
type MoogsoftAPI interface {
	QueryAlertPage(ctx context.Context, lowerBound time.Time, cursor models.Cursor) (models.Page[models.Alert], error)
	QueryIncidentPage(ctx context.Context, lowerBound time.Time, cursor models.Cursor) (models.Page[models.Incident], error)
	FetchStatistics(ctx context.Context, start, end time.Time) (models.Statistics, error)
	FetchAuditCount(ctx context.Context, service string, start, end time.Time) (int, error)
	FetchCatalogs(ctx context.Context) ([]models.Catalog, error)
	FetchInboundIntegrations(ctx context.Context, rawQuery string) ([]models.Integration, error)
	FetchOutboundIntegrations(ctx context.Context) ([]models.Integration, error)
	FetchInboundErrors(ctx context.Context, integrationID string) ([]models.ErrorLogEntry, error)
	FetchOutboundErrors(ctx context.Context, integrationID string) ([]models.ErrorLogEntry, error)
	FetchActiveWindows(ctx context.Context) ([]models.MaintenanceWindow, error)
	FetchExpiredOccurrences(ctx context.Context) ([]models.MaintenanceWindow, error)
	FetchMaintenanceAlerts(ctx context.Context, at time.Time) ([]models.Alert, error)
}

// Renderer turns a composed report into an HTML document.
type Renderer interface {
	Render(report models.Report) ([]byte, error)
}

// Sender delivers a rendered report.
type Sender interface {
	Send(ctx context.Context, subject string, htmlBody []byte) error
}

// Options tune report composition and delivery.
type Options struct {
	Location              *time.Location
	Timezone              string
	Subject               string
	RecentWindow          time.Duration
	CatalogLimit          int
	MaintenanceAlertLimit int
	InboundQueries        []string
	AuditServices         []string
	ClaimTTL              time.Duration
	// FanOut bounds concurrent fetches inside a section and the timeout of each.
	FanOut engine.FanOut
}

// RunOptions alter a single Run.
type RunOptions struct {
	// Force sends even when the day was already claimed.
	Force bool
	// DryRun builds and renders without claiming the day or sending mail.
	DryRun bool
}

// RunResult describes what a Run did.
type RunResult struct {
	RunID    string
	Skipped  bool
	Sent     bool
	Report   models.Report
	Rendered []byte
}

const lastReportKey = "digest:last"

// ReportService composes, renders and delivers the daily digest.
type ReportService struct {
	logger   *slog.Logger
	api      MoogsoftAPI
	rules    engine.RuleSet
	renderer Renderer
	sender   Sender
	store    cache.Provider
	opts     Options
	now      func() time.Time
}

// NewReportService constructs the digest service. A nil store disables run claims.
func NewReportService(logger *slog.Logger, api MoogsoftAPI, rules engine.RuleSet, renderer Renderer, sender Sender, store cache.Provider, opts Options) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = cache.NoopProvider{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Timezone == "" {
		opts.Timezone = opts.Location.String()
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 24 * time.Hour
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = 36 * time.Hour
	}
	return &ReportService{
		logger:   logger,
		api:      api,
		rules:    rules,
		renderer: renderer,
		sender:   sender,
		store:    store,
		opts:     opts,
		now:      time.Now,
	}
}

// Build composes the report as of now. Only a failed statistics fetch is
// returned as an error; other sections degrade and are listed in Report.Errors.
func (s *ReportService) Build(ctx context.Context, now time.Time) (models.Report, error) {
	return s.build(ctx, uuid.NewString(), now)
}

// Run builds the report, renders it and mails it once per report day.
func (s *ReportService) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	started := time.Now()
	now := s.now()
	result := RunResult{RunID: uuid.NewString()}
	logger := s.logger.With(slog.String("run_id", result.RunID))

	key := claimKey(now, s.opts.Location)
	claimed := false
	if !opts.DryRun && !opts.Force {
		ok, err := s.store.SetNX(ctx, key, []byte(result.RunID), s.opts.ClaimTTL)
		switch {
		case err != nil:
			logger.Warn("run claim unavailable, continuing without de-duplication", slog.String("key", key), slog.Any("error", err))
		case !ok:
			logger.Info("digest already sent for this day", slog.String("key", key))
			result.Skipped = true
			metrics.ObserveRun(time.Since(started), metrics.OutcomeSkipped)
			return result, nil
		default:
			claimed = true
		}
	}

	fail := func(err error) (RunResult, error) {
		if claimed {
			if relErr := s.store.Del(context.WithoutCancel(ctx), key); relErr != nil {
				logger.Warn("release run claim", slog.String("key", key), slog.Any("error", relErr))
			}
		}
		metrics.ObserveRun(time.Since(started), metrics.OutcomeError)
		logger.Error("digest run failed", slog.String("stage", utils.StageOf(err)), slog.Any("error", err))
		return result, err
	}

	report, err := s.build(ctx, result.RunID, now)
	if err != nil {
		return fail(err)
	}
	result.Report = report

	if s.renderer == nil {
		return fail(utils.Wrap("render", "renderer not configured", errors.New("nil renderer")))
	}
	body, err := s.renderer.Render(report)
	if err != nil {
		return fail(utils.Wrap("render", "render report", err))
	}
	result.Rendered = body

	if opts.DryRun {
		logger.Info("dry run complete, mail not sent", slog.Int("bytes", len(body)))
		metrics.ObserveRun(time.Since(started), metrics.OutcomeSuccess)
		return result, nil
	}

	if s.sender == nil {
		return fail(utils.Wrap("mail", "sender not configured", errors.New("nil sender")))
	}
	if err := s.sender.Send(ctx, s.subject(now), body); err != nil {
		return fail(utils.Wrap("mail", "send digest", err))
	}
	result.Sent = true

	if data, err := json.Marshal(report); err == nil {
		if err := s.store.Set(ctx, lastReportKey, data, s.opts.ClaimTTL); err != nil {
			logger.Warn("store delivered report", slog.Any("error", err))
		}
	}

	metrics.ObserveRun(time.Since(started), metrics.OutcomeSuccess)
	logger.Info("digest sent",
		slog.Duration("elapsed", time.Since(started)),
		slog.Int("degraded_sections", len(report.Errors)))
	return result, nil
}

// LastReport returns the most recently delivered report, or cache.ErrCacheMiss.
func (s *ReportService) LastReport(ctx context.Context) (models.Report, error) {
	data, err := s.store.Get(ctx, lastReportKey)
	if err != nil {
		return models.Report{}, err
	}
	var report models.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return models.Report{}, fmt.Errorf("decode stored report: %w", err)
	}
	return report, nil
}

func (s *ReportService) subject(now time.Time) string {
	return fmt.Sprintf("%s - %s", s.opts.Subject, now.In(s.opts.Location).Format("02 Jan 2006"))
}

func claimKey(now time.Time, loc *time.Location) string {
	return "digest:" + now.In(loc).Format(time.DateOnly)
}
