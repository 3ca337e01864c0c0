package engine

import (
	"math"

	"github.com/miradorstack/mirador-digest/internal/models"
)

// MergeIntegrations concatenates integration listings, keeping the first entry
// for each id. Entries without an id are dropped; unnamed entries become "Unknown".
func MergeIntegrations(lists ...[]models.Integration) []models.Integration {
	seen := make(map[string]struct{})
	out := make([]models.Integration, 0)
	for _, list := range lists {
		for _, integration := range list {
			if integration.ID == "" {
				continue
			}
			if _, dup := seen[integration.ID]; dup {
				continue
			}
			seen[integration.ID] = struct{}{}
			if integration.Name == "" {
				integration.Name = "Unknown"
			}
			out = append(out, integration)
		}
	}
	return out
}

// WithNoiseReduction fills in the share of events that never became incidents,
// as a percentage rounded to two decimals.
func WithNoiseReduction(stats models.Statistics) models.Statistics {
	stats.NoiseReduction = 0
	if stats.EventCount > 0 {
		ratio := (1 - float64(stats.IncidentCount)/float64(stats.EventCount)) * 100
		stats.NoiseReduction = math.Round(ratio*100) / 100
	}
	return stats
}
