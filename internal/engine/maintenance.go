package engine

import (
	"sort"
	"time"

	"github.com/miradorstack/mirador-digest/internal/models"
	"github.com/miradorstack/mirador-digest/internal/utils"
)

// Placeholders used when neither source record names a window.
const (
	NoWindowName        = "(no name)"
	NoWindowDescription = "(no description)"
	UnknownWindowName   = "(unknown)"
	NoConfigItem        = "(none)"
	UnknownMonth        = "Unknown"
	// ConfigItemTag is the alert tag shown as the affected CI.
	ConfigItemTag = "configurationItem"
)

// MergeWindows folds active windows and expired occurrences into one entry per
// id. For every field the latest non-blank value wins over what was merged
// before. Records without an id are skipped.
func MergeWindows(active, expired []models.MaintenanceWindow) map[string]models.MaintenanceEntry {
	merged := make(map[string]models.MaintenanceEntry, len(active)+len(expired))
	all := make([]models.MaintenanceWindow, 0, len(active)+len(expired))
	all = append(all, active...)
	all = append(all, expired...)

	for _, w := range all {
		id := w.ID.String()
		if models.IsBlank(id) {
			continue
		}
		existing := merged[id]
		merged[id] = models.MaintenanceEntry{
			Name:        coalesceString(w.Name, existing.Name),
			Description: coalesceString(w.Description, existing.Description),
			Status:      coalesceString(w.Status, existing.Status),
			Start:       coalesceInt(w.Start, existing.Start),
			Duration:    coalesceInt(w.Duration, existing.Duration),
		}
	}

	for id, entry := range merged {
		if entry.Name == "" {
			entry.Name = NoWindowName
		}
		if entry.Description == "" {
			entry.Description = NoWindowDescription
		}
		merged[id] = entry
	}
	return merged
}

func coalesceString(next *string, existing string) string {
	if !models.IsBlank(next) {
		return *next
	}
	return existing
}

func coalesceInt(next, existing *int64) *int64 {
	if next != nil {
		v := *next
		return &v
	}
	return existing
}

// EnrichAlerts joins alerts to merged windows by their maintenance id. Alerts
// with a missing or unknown id get placeholder values.
func EnrichAlerts(alerts []models.Alert, windows map[string]models.MaintenanceEntry) []models.EnrichedAlert {
	out := make([]models.EnrichedAlert, 0, len(alerts))
	for _, alert := range alerts {
		enriched := models.EnrichedAlert{
			AlertID:         alert.AlertID.String(),
			Manager:         alert.ManagerName(),
			MaintenanceID:   alert.Maintenance.String(),
			MaintenanceName: UnknownWindowName,
			CI:              NoConfigItem,
		}
		if enriched.AlertID == "" {
			enriched.AlertID = "<missing_alert_id>"
		}
		if created, ok := alert.Created(); ok {
			enriched.CreatedAt = &created
		}
		if entry, ok := windows[enriched.MaintenanceID]; ok && enriched.MaintenanceID != "" {
			enriched.MaintenanceName = entry.Name
			enriched.MaintenanceDescription = entry.Description
			enriched.MaintenanceStatus = entry.Status
		}
		if alert.Tags.Has(ConfigItemTag) {
			enriched.CI = alert.Tags.String(ConfigItemTag)
		}
		out = append(out, enriched)
	}
	return out
}

// SummarizeMaintenance groups enriched alerts by creation month in loc and keeps
// the limit most recent alerts that carry a creation time.
func SummarizeMaintenance(enriched []models.EnrichedAlert, windows int, loc *time.Location, limit int) models.MaintenanceSection {
	if loc == nil {
		loc = time.UTC
	}
	byMonth := make(map[string]map[string]int)
	monthStart := make(map[string]time.Time)
	for _, alert := range enriched {
		month := UnknownMonth
		if alert.CreatedAt != nil {
			local := alert.CreatedAt.In(loc)
			month = local.Format(utils.MonthLayout)
			monthStart[month] = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		}
		if byMonth[month] == nil {
			byMonth[month] = make(map[string]int)
		}
		byMonth[month][alert.Manager]++
	}

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	// Newest month first; the unknown bucket sorts last.
	sort.Slice(months, func(i, j int) bool {
		return monthStart[months[i]].After(monthStart[months[j]])
	})

	section := models.MaintenanceSection{
		Windows:      windows,
		Alerts:       len(enriched),
		Monthly:      make([]models.MonthlyCount, 0, len(months)),
		RecentAlerts: []models.EnrichedAlert{},
	}
	for _, month := range months {
		managers := make([]models.ManagerCount, 0, len(byMonth[month]))
		for manager, count := range byMonth[month] {
			managers = append(managers, models.ManagerCount{Manager: manager, Count: count})
		}
		sort.Slice(managers, func(i, j int) bool { return managers[i].Manager < managers[j].Manager })
		section.Monthly = append(section.Monthly, models.MonthlyCount{Month: month, Managers: managers})
	}

	for _, alert := range enriched {
		if alert.CreatedAt != nil {
			section.RecentAlerts = append(section.RecentAlerts, alert)
		}
	}
	sort.SliceStable(section.RecentAlerts, func(i, j int) bool {
		return section.RecentAlerts[i].CreatedAt.After(*section.RecentAlerts[j].CreatedAt)
	})
	if limit > 0 && len(section.RecentAlerts) > limit {
		section.RecentAlerts = section.RecentAlerts[:limit]
	}
	return section
}
