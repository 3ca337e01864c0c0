package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-digest/internal/cache"
	"github.com/miradorstack/mirador-digest/internal/engine"
	"github.com/miradorstack/mirador-digest/internal/models"
	"github.com/miradorstack/mirador-digest/internal/repo"
)

var testNow = time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(api *fakeAPI, sender *fakeSender, store cache.Provider) *ReportService {
	svc := NewReportService(quietLogger(), api, engine.DefaultRules(), fakeRenderer{}, sender, store, Options{
		Location:              time.UTC,
		Subject:               "Moogsoft Daily Consolidated Report",
		RecentWindow:          24 * time.Hour,
		CatalogLimit:          5,
		MaintenanceAlertLimit: 10,
		InboundQueries:        []string{"", "integration=NAGIOS"},
		AuditServices:         []string{"ums-sso", "webhooks"},
		FanOut:                engine.FanOut{Workers: 2, UnitTimeout: time.Second},
	})
	svc.now = func() time.Time { return testNow }
	return svc
}

func healthyAPI() *fakeAPI {
	monthStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	dayStart := testNow.Add(-24 * time.Hour)
	recent := testNow.Add(-time.Hour)
	old := testNow.Add(-48 * time.Hour)
	return &fakeAPI{
		stats: models.Statistics{IncidentCount: 10, AlertCount: 50, EventCount: 400},
		alertsByBound: map[int64][]models.Alert{
			monthStart.Unix(): {
				{Manager: "Nagios", EventCount: 4, Tags: models.Tags{"instance": "web-1"}},
				{Manager: "Nagios", EventCount: 6, Tags: models.Tags{"instance": "web-1"}},
				{Manager: "Prometheus", EventCount: 1},
			},
			dayStart.Unix(): {
				{Manager: "Nagios", EventCount: 6, Tags: models.Tags{"instance": "web-1"}},
			},
		},
		incidentsByBound: map[int64][]models.Incident{
			monthStart.Unix(): {
				{Manager: "Dynatrace", Tags: models.Tags{"Workload": "checkout"}},
				{Manager: "Splunk Cloud", Tags: models.Tags{"Workload": "ledger", "SNOWInc": "INC1"}},
			},
		},
		audits:   map[string]int{"ums-sso": 2, "webhooks": 1},
		catalogs: []models.Catalog{{Name: "cmdb", Entries: 10, LastUpdated: recent.UnixMilli()}},
		inbound: map[string][]models.Integration{
			"":                   {{ID: "1", Name: "prometheus"}, {ID: "2", Name: "nagios"}},
			"integration=NAGIOS": {{ID: "2", Name: "nagios"}},
		},
		inboundErrs: map[string][]models.ErrorLogEntry{
			"1": {{Timestamp: &recent, Reasons: []string{"bad payload"}}, {Timestamp: &old, Reasons: []string{"old"}}},
		},
		outbound: []models.Integration{{ID: "w1", Name: "servicenow"}},
		outboundErrs: map[string][]models.ErrorLogEntry{
			"w1": {{Timestamp: &recent, Reasons: []string{"No message"}}},
		},
		active:  []models.MaintenanceWindow{{ID: "7", Name: strPtr("Patch night")}},
		expired: []models.MaintenanceWindow{{ID: "7", Status: strPtr("expired")}},
		maintAlerts: []models.Alert{
			{AlertID: "100", Manager: "Nagios", Maintenance: "7", CreatedAt: floatPtr(float64(recent.Unix()))},
		},
	}
}

func strPtr(s string) *string      { return &s }
func floatPtr(v float64) *float64 { return &v }

func TestBuildComposesAllSections(t *testing.T) {
	api := healthyAPI()
	report, err := newTestService(api, &fakeSender{}, nil).Build(context.Background(), testNow)
	require.NoError(t, err)

	assert.Empty(t, report.Errors)
	assert.Equal(t, 97.5, report.Statistics.NoiseReduction)

	assert.Equal(t, models.AlertCounters{Alerts: 2, Events: 10, NoIncidentEvents: 10}, report.Alerts.ThisMonth.PerManager["Nagios"])
	assert.Equal(t, 6, report.Alerts.Last24h.InstanceBreakdown["nagios"]["web-1"])
	assert.Equal(t, []string{"checkout"}, report.Incidents.ThisMonth.UndiscoveredWorkloads)
	assert.Equal(t, []string{"ledger"}, report.Incidents.ThisMonth.LogPlatformWorkloads)
	assert.Equal(t, 0, report.Incidents.Last24h.Total)

	assert.Equal(t, 2, report.Inbound.Total)
	assert.Equal(t, 1, report.Inbound.Errors.Recent["prometheus"].Count)
	assert.Equal(t, 1, report.Inbound.Errors.Older["prometheus"].Count)
	assert.Equal(t, 1, report.Outbound.Errors.Recent["servicenow"].Count)

	assert.Equal(t, map[string]int{"ums-sso": 2, "webhooks": 1}, report.Audits)
	assert.Equal(t, models.SyncSuccess, report.Catalogs.SyncStatus)

	require.Len(t, report.Maintenance.RecentAlerts, 1)
	assert.Equal(t, 1, report.Maintenance.Windows)
	assert.Equal(t, "Patch night", report.Maintenance.RecentAlerts[0].MaintenanceName)
	assert.Equal(t, "expired", report.Maintenance.RecentAlerts[0].MaintenanceStatus)
	assert.NotEmpty(t, report.RunID)
}

func TestBuildFailsOnlyOnStatistics(t *testing.T) {
	api := healthyAPI()
	api.statsErr = repo.ErrUpstreamStatus
	_, err := newTestService(api, &fakeSender{}, nil).Build(context.Background(), testNow)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrUpstreamStatus)
	assert.Equal(t, 0, api.count("alerts"), "sections must not be fetched after a fatal failure")
}

func TestBuildDegradesFailingSections(t *testing.T) {
	api := healthyAPI()
	api.failAlerts = true
	api.catalogErr = errors.New("timeout")
	api.outboundErr = errors.New("503")
	api.maintErr = errors.New("bad gateway")
	api.auditErr = errors.New("refused")

	report, err := newTestService(api, &fakeSender{}, nil).Build(context.Background(), testNow)
	require.NoError(t, err)

	var names []string
	for _, e := range report.Errors {
		names = append(names, e.Section)
	}
	assert.ElementsMatch(t, []string{SectionAlertsMonth, SectionAlertsDay, SectionOutbound, SectionMaintenance, SectionCatalogs}, names)

	assert.Empty(t, report.Alerts.ThisMonth.PerManager)
	assert.NotNil(t, report.Alerts.ThisMonth.PerManager)
	assert.Equal(t, models.SyncFailed, report.Catalogs.SyncStatus)
	assert.Equal(t, 0, report.Outbound.Total)
	assert.Empty(t, report.Outbound.Integrations)
	assert.Empty(t, report.Outbound.Errors.Recent)
	assert.Equal(t, 0, api.count("outbound_errors"), "a failed listing must not be correlated")
	assert.Empty(t, report.Catalogs.Recent)
	assert.Empty(t, report.Maintenance.RecentAlerts)
	assert.Equal(t, map[string]int{"ums-sso": 0, "webhooks": 0}, report.Audits)
	assert.Equal(t, 2, report.Incidents.ThisMonth.Total, "independent sections are unaffected")
}

func TestBuildToleratesPartialInboundQueries(t *testing.T) {
	api := healthyAPI()
	delete(api.inbound, "integration=NAGIOS")

	report, err := newTestService(api, &fakeSender{}, nil).Build(context.Background(), testNow)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, report.Inbound.Total)

	api.inbound = nil
	report, err = newTestService(api, &fakeSender{}, nil).Build(context.Background(), testNow)
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, SectionInbound, report.Errors[0].Section)
}

func TestRunSendsOncePerDay(t *testing.T) {
	store := cache.NewMemoryProvider()
	sender := &fakeSender{}
	svc := newTestService(healthyAPI(), sender, store)

	first, err := svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.True(t, first.Sent)
	require.Equal(t, 1, sender.sent())
	assert.True(t, strings.HasSuffix(sender.subjects[0], "15 Mar 2024"), sender.subjects[0])

	second, err := svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, 1, sender.sent())

	forced, err := svc.Run(context.Background(), RunOptions{Force: true})
	require.NoError(t, err)
	assert.True(t, forced.Sent)
	assert.Equal(t, 2, sender.sent())

	last, err := svc.LastReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, forced.RunID, last.RunID)
}

func TestRunReleasesClaimWhenSendFails(t *testing.T) {
	store := cache.NewMemoryProvider()
	sender := &fakeSender{err: errors.New("smtp 421")}
	svc := newTestService(healthyAPI(), sender, store)

	_, err := svc.Run(context.Background(), RunOptions{})
	require.Error(t, err)

	sender.err = nil
	result, err := svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.True(t, result.Sent, "a failed delivery must not block the retry")
}

func TestRunDryRunNeverSendsOrClaims(t *testing.T) {
	store := cache.NewMemoryProvider()
	sender := &fakeSender{}
	svc := newTestService(healthyAPI(), sender, store)

	result, err := svc.Run(context.Background(), RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.False(t, result.Sent)
	assert.Contains(t, string(result.Rendered), result.RunID)
	assert.Equal(t, 0, sender.sent())

	_, err = store.Get(context.Background(), claimKey(testNow, time.UTC))
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestRunReportsRenderFailure(t *testing.T) {
	svc := newTestService(healthyAPI(), &fakeSender{}, cache.NewMemoryProvider())
	svc.renderer = fakeRenderer{err: errors.New("template: bad field")}

	_, err := svc.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render")
}

func TestBuildDiscardsDataFromFailedInboundQuery(t *testing.T) {
	api := healthyAPI()
	api.inbound["integration=NAGIOS"] = []models.Integration{{ID: "9", Name: "stale"}}
	api.inboundFail = map[string]error{"integration=NAGIOS": errors.New("gateway timeout")}
	api.inboundErrs["9"] = []models.ErrorLogEntry{{Timestamp: &testNow, Reasons: []string{"stale"}}}

	report, err := newTestService(api, &fakeSender{}, nil).Build(context.Background(), testNow)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, report.Inbound.Total)
	assert.NotContains(t, report.Inbound.Errors.Recent, "stale")
}

func TestBuildQueriesMaintenanceAtReportTime(t *testing.T) {
	api := healthyAPI()
	svc := newTestService(api, &fakeSender{}, nil)
	ist := time.FixedZone("IST", 5*3600+1800)
	svc.opts.Location = ist

	_, err := svc.Build(context.Background(), testNow)
	require.NoError(t, err)
	assert.True(t, api.maintAt.Equal(testNow))
	assert.Equal(t, ist, api.maintAt.Location())
}
