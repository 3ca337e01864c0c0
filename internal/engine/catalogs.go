package engine

import (
	"sort"
	"time"

	"github.com/miradorstack/mirador-digest/internal/models"
)

// CatalogTimeLayout formats catalog update times for display.
const CatalogTimeLayout = "January 02, 2006 03:04 PM MST"

// SummarizeCatalogs keeps the limit most recently updated catalogs. The sync is
// healthy only when every kept catalog was updated within freshness of now.
func SummarizeCatalogs(catalogs []models.Catalog, now time.Time, freshness time.Duration, limit int, loc *time.Location) models.CatalogSection {
	section := models.CatalogSection{Recent: []models.CatalogEntry{}, SyncStatus: models.SyncFailed}
	if len(catalogs) == 0 {
		return section
	}
	if loc == nil {
		loc = time.UTC
	}

	sorted := append([]models.Catalog(nil), catalogs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].LastUpdated > sorted[j].LastUpdated })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	threshold := now.Add(-freshness).UnixMilli()
	fresh := true
	for _, catalog := range sorted {
		name := catalog.Name
		if name == "" {
			name = "Unknown"
		}
		section.Recent = append(section.Recent, models.CatalogEntry{
			Name:        name,
			Entries:     catalog.Entries,
			LastUpdated: time.UnixMilli(catalog.LastUpdated).In(loc).Format(CatalogTimeLayout),
		})
		if catalog.LastUpdated < threshold {
			fresh = false
		}
	}
	if fresh {
		section.SyncStatus = models.SyncSuccess
	}
	return section
}
