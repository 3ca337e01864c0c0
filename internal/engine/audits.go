package engine

import (
	"context"
	"log/slog"
	"time"
)

// AuditFetcher returns the number of audited changes for one service in [start, end].
type AuditFetcher func(ctx context.Context, service string, start, end time.Time) (int, error)

// CountAudits queries every service in catalog independently. A service whose
// query fails is reported as zero, so the result always has one key per service.
func CountAudits(ctx context.Context, logger *slog.Logger, fanOut FanOut, catalog []string, fetch AuditFetcher, start, end time.Time) map[string]int {
	if logger == nil {
		logger = slog.Default()
	}
	counts := make([]int, len(catalog))
	fanOut.Each(ctx, len(catalog), func(ctx context.Context, i int) {
		n, err := fetch(ctx, catalog[i], start, end)
		if err != nil {
			logger.Warn("audit count unavailable", slog.String("service", catalog[i]), slog.Any("error", err))
			return
		}
		if n < 0 {
			n = 0
		}
		counts[i] = n
	})

	result := make(map[string]int, len(catalog))
	for i, service := range catalog {
		result[service] = counts[i]
	}
	return result
}
