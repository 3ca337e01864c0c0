package engine

import (
	"testing"
	"time"

	"github.com/miradorstack/mirador-digest/internal/models"
	"github.com/miradorstack/mirador-digest/internal/utils"
)

func TestSummarizeCatalogs(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	hoursAgo := func(h int) int64 { return now.Add(-time.Duration(h) * time.Hour).UnixMilli() }

	tests := []struct {
		name       string
		catalogs   []models.Catalog
		limit      int
		wantStatus string
		wantFirst  string
		wantLen    int
	}{
		{name: "empty", wantStatus: models.SyncFailed},
		{
			name:       "fresh",
			catalogs:   []models.Catalog{{Name: "cmdb", LastUpdated: hoursAgo(2)}, {Name: "owners", LastUpdated: hoursAgo(1)}},
			limit:      5,
			wantStatus: models.SyncSuccess,
			wantFirst:  "owners",
			wantLen:    2,
		},
		{
			name:       "stale-listed",
			catalogs:   []models.Catalog{{Name: "cmdb", LastUpdated: hoursAgo(30)}, {Name: "owners", LastUpdated: hoursAgo(1)}},
			limit:      5,
			wantStatus: models.SyncFailed,
			wantFirst:  "owners",
			wantLen:    2,
		},
		{
			name:       "stale-truncated",
			catalogs:   []models.Catalog{{Name: "cmdb", LastUpdated: hoursAgo(30)}, {Name: "owners", LastUpdated: hoursAgo(1)}},
			limit:      1,
			wantStatus: models.SyncSuccess,
			wantFirst:  "owners",
			wantLen:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			section := SummarizeCatalogs(tt.catalogs, now, 24*time.Hour, tt.limit, time.UTC)
			if section.SyncStatus != tt.wantStatus {
				t.Fatalf("expected status %s, got %s", tt.wantStatus, section.SyncStatus)
			}
			if len(section.Recent) != tt.wantLen {
				t.Fatalf("expected %d catalogs, got %d", tt.wantLen, len(section.Recent))
			}
			if tt.wantLen > 0 && section.Recent[0].Name != tt.wantFirst {
				t.Fatalf("expected %s first, got %s", tt.wantFirst, section.Recent[0].Name)
			}
		})
	}
}

func TestSummarizeCatalogsFormatsInLocation(t *testing.T) {
	loc, err := utils.LoadLocation("IST+05:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	updated := time.Date(2024, 3, 15, 6, 30, 0, 0, time.UTC)
	section := SummarizeCatalogs([]models.Catalog{{Name: "cmdb", Entries: 42, LastUpdated: updated.UnixMilli()}}, updated, 24*time.Hour, 5, loc)

	if got := section.Recent[0].LastUpdated; got != "March 15, 2024 12:00 PM IST" {
		t.Fatalf("unexpected formatted time %q", got)
	}
	if section.Recent[0].Entries != 42 {
		t.Fatalf("expected entries to be kept")
	}
}
