package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-digest/internal/models"
)

// ErrorLogFetcher returns the error log of one integration.
type ErrorLogFetcher func(ctx context.Context, integrationID string) ([]models.ErrorLogEntry, error)

// ErrorCorrelator splits integration error logs into recent and older buckets.
type ErrorCorrelator struct {
	logger *slog.Logger
	fanOut FanOut
	window time.Duration
}

// NewErrorCorrelator constructs a correlator with the trailing recent window.
func NewErrorCorrelator(logger *slog.Logger, fanOut FanOut, window time.Duration) *ErrorCorrelator {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &ErrorCorrelator{logger: logger, fanOut: fanOut, window: window}
}

// Correlate fetches every integration's error log and buckets the entries by
// display name. Entries at or after now-window are recent; the rest are older.
// Entries without a timestamp are dropped, and an integration whose log cannot
// be fetched contributes nothing.
func (c *ErrorCorrelator) Correlate(ctx context.Context, integrations []models.Integration, fetch ErrorLogFetcher, now time.Time) models.ErrorBuckets {
	logs := make([][]models.ErrorLogEntry, len(integrations))
	c.fanOut.Each(ctx, len(integrations), func(ctx context.Context, i int) {
		entries, err := fetch(ctx, integrations[i].ID)
		if err != nil {
			c.logger.Warn("integration error log unavailable",
				slog.String("integration", integrations[i].Name),
				slog.String("id", integrations[i].ID),
				slog.Any("error", err))
			return
		}
		logs[i] = entries
	})

	threshold := now.Add(-c.window)
	buckets := models.ErrorBuckets{
		Recent: make(map[string]models.RecentErrors),
		Older:  make(map[string]models.OlderErrors),
	}
	reasons := make(map[string]map[string]struct{})

	for i, entries := range logs {
		name := integrations[i].Name
		for _, entry := range entries {
			if entry.Timestamp == nil {
				continue
			}
			if !entry.Timestamp.Before(threshold) {
				recent := buckets.Recent[name]
				recent.Count++
				buckets.Recent[name] = recent
				if reasons[name] == nil {
					reasons[name] = make(map[string]struct{})
				}
				for _, reason := range entry.Reasons {
					reasons[name][reason] = struct{}{}
				}
				continue
			}
			older := buckets.Older[name]
			older.Count++
			buckets.Older[name] = older
		}
	}

	for name, recent := range buckets.Recent {
		recent.Reasons = setToSlice(reasons[name])
		buckets.Recent[name] = recent
	}
	return buckets
}
