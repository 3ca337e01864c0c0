package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/miradorstack/mirador-digest/internal/models"
)

func TestMergeWindowsPrefersNonBlankInEitherOrder(t *testing.T) {
	a := models.MaintenanceWindow{ID: "1", Name: strPtr("A"), Status: nil}
	b := models.MaintenanceWindow{ID: "1", Name: nil, Status: strPtr("active")}
	want := map[string]models.MaintenanceEntry{
		"1": {Name: "A", Description: NoWindowDescription, Status: "active"},
	}

	if diff := cmp.Diff(want, MergeWindows([]models.MaintenanceWindow{a}, []models.MaintenanceWindow{b})); diff != "" {
		t.Fatalf("active-then-expired mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, MergeWindows([]models.MaintenanceWindow{b}, []models.MaintenanceWindow{a})); diff != "" {
		t.Fatalf("expired-then-active mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeWindowsPlaceholdersAndBlankIDs(t *testing.T) {
	active := []models.MaintenanceWindow{
		{ID: "", Name: strPtr("no id")},
		{ID: "7", Name: strPtr("  "), Start: int64Ptr(1700000000), Duration: int64Ptr(3600)},
	}
	merged := MergeWindows(active, nil)

	if len(merged) != 1 {
		t.Fatalf("expected blank id to be skipped: %+v", merged)
	}
	entry := merged["7"]
	if entry.Name != NoWindowName || entry.Description != NoWindowDescription || entry.Status != "" {
		t.Fatalf("unexpected placeholders: %+v", entry)
	}
	if entry.Start == nil || *entry.Start != 1700000000 || *entry.Duration != 3600 {
		t.Fatalf("expected start and duration to survive: %+v", entry)
	}
}

func TestEnrichAlerts(t *testing.T) {
	var alerts []models.Alert
	if err := json.Unmarshal([]byte(`[
		{"alert_id": 11, "manager": "Nagios", "maintenance": 7, "created_at": 1709251200, "tags": {"configurationItem": "web-01"}},
		{"alert_id": "12", "manager": "", "maintenance": "999"},
		{"manager": "Dynatrace"}
	]`), &alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	windows := map[string]models.MaintenanceEntry{"7": {Name: "Patch night", Description: "OS patching", Status: "active"}}

	enriched := EnrichAlerts(alerts, windows)

	if len(enriched) != 3 {
		t.Fatalf("expected 3 enriched alerts, got %d", len(enriched))
	}
	first := enriched[0]
	if first.AlertID != "11" || first.MaintenanceName != "Patch night" || first.CI != "web-01" || first.CreatedAt == nil {
		t.Fatalf("unexpected first alert: %+v", first)
	}
	second := enriched[1]
	if second.Manager != models.UnknownManager || second.MaintenanceName != UnknownWindowName || second.MaintenanceDescription != "" || second.CI != NoConfigItem {
		t.Fatalf("unexpected unmapped alert: %+v", second)
	}
	if enriched[2].AlertID != "<missing_alert_id>" || enriched[2].MaintenanceName != UnknownWindowName {
		t.Fatalf("unexpected anonymous alert: %+v", enriched[2])
	}
}

func TestSummarizeMaintenance(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	mk := func(id, manager string, created *time.Time) models.EnrichedAlert {
		return models.EnrichedAlert{AlertID: id, Manager: manager, CreatedAt: created}
	}
	feb := time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC)
	// 20:00 UTC on Mar 31 is already April in IST.
	lateMarch := time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC)
	march := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

	section := SummarizeMaintenance([]models.EnrichedAlert{
		mk("1", "Nagios", &feb),
		mk("2", "Dynatrace", &march),
		mk("3", "Nagios", &march),
		mk("4", "Nagios", &lateMarch),
		mk("5", "Splunk", nil),
	}, 2, loc, 3)

	if section.Windows != 2 || section.Alerts != 5 {
		t.Fatalf("unexpected totals: %+v", section)
	}
	want := []models.MonthlyCount{
		{Month: "April 2024", Managers: []models.ManagerCount{{Manager: "Nagios", Count: 1}}},
		{Month: "March 2024", Managers: []models.ManagerCount{{Manager: "Dynatrace", Count: 1}, {Manager: "Nagios", Count: 1}}},
		{Month: "February 2024", Managers: []models.ManagerCount{{Manager: "Nagios", Count: 1}}},
		{Month: UnknownMonth, Managers: []models.ManagerCount{{Manager: "Splunk", Count: 1}}},
	}
	if diff := cmp.Diff(want, section.Monthly); diff != "" {
		t.Fatalf("monthly mismatch (-want +got):\n%s", diff)
	}

	if len(section.RecentAlerts) != 3 {
		t.Fatalf("expected recent list truncated to 3, got %d", len(section.RecentAlerts))
	}
	if section.RecentAlerts[0].AlertID != "4" || section.RecentAlerts[2].AlertID == "1" {
		t.Fatalf("expected newest first: %+v", section.RecentAlerts)
	}
}
