package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/miradorstack/mirador-digest/internal/models"
)

// fakeAPI serves canned data. Every method is safe for concurrent use.
type fakeAPI struct {
	mu sync.Mutex

	alertsByBound    map[int64][]models.Alert
	incidentsByBound map[int64][]models.Incident
	stats            models.Statistics
	statsErr         error
	audits           map[string]int
	auditErr         error
	catalogs         []models.Catalog
	catalogErr       error
	inbound          map[string][]models.Integration
	inboundFail      map[string]error
	inboundErrs      map[string][]models.ErrorLogEntry
	outbound         []models.Integration
	outboundErr      error
	outboundErrs     map[string][]models.ErrorLogEntry
	active           []models.MaintenanceWindow
	expired          []models.MaintenanceWindow
	maintAlerts      []models.Alert
	maintErr         error
	maintAt          time.Time
	failAlerts       bool

	calls map[string]int
}

func (f *fakeAPI) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) QueryAlertPage(_ context.Context, lowerBound time.Time, cursor models.Cursor) (models.Page[models.Alert], error) {
	f.hit("alerts")
	if f.failAlerts {
		return models.Page[models.Alert]{}, errors.New("alerts unavailable")
	}
	if !cursor.Empty() {
		return models.Page[models.Alert]{}, nil
	}
	return models.Page[models.Alert]{Records: f.alertsByBound[lowerBound.Unix()]}, nil
}

func (f *fakeAPI) QueryIncidentPage(_ context.Context, lowerBound time.Time, cursor models.Cursor) (models.Page[models.Incident], error) {
	f.hit("incidents")
	if !cursor.Empty() {
		return models.Page[models.Incident]{}, nil
	}
	return models.Page[models.Incident]{Records: f.incidentsByBound[lowerBound.Unix()]}, nil
}

func (f *fakeAPI) FetchStatistics(context.Context, time.Time, time.Time) (models.Statistics, error) {
	f.hit("statistics")
	return f.stats, f.statsErr
}

func (f *fakeAPI) FetchAuditCount(_ context.Context, service string, _, _ time.Time) (int, error) {
	f.hit("audits")
	if f.auditErr != nil {
		return 0, f.auditErr
	}
	return f.audits[service], nil
}

func (f *fakeAPI) FetchCatalogs(context.Context) ([]models.Catalog, error) {
	f.hit("catalogs")
	return f.catalogs, f.catalogErr
}

func (f *fakeAPI) FetchInboundIntegrations(_ context.Context, rawQuery string) ([]models.Integration, error) {
	f.hit("inbound")
	list, ok := f.inbound[rawQuery]
	if err := f.inboundFail[rawQuery]; err != nil {
		return list, err
	}
	if !ok {
		return nil, errors.New("query rejected")
	}
	return list, nil
}

func (f *fakeAPI) FetchOutboundIntegrations(context.Context) ([]models.Integration, error) {
	f.hit("outbound")
	return f.outbound, f.outboundErr
}

func (f *fakeAPI) FetchInboundErrors(_ context.Context, id string) ([]models.ErrorLogEntry, error) {
	f.hit("inbound_errors")
	return f.inboundErrs[id], nil
}

func (f *fakeAPI) FetchOutboundErrors(_ context.Context, id string) ([]models.ErrorLogEntry, error) {
	f.hit("outbound_errors")
	return f.outboundErrs[id], nil
}

func (f *fakeAPI) FetchActiveWindows(context.Context) ([]models.MaintenanceWindow, error) {
	f.hit("windows")
	return f.active, nil
}

func (f *fakeAPI) FetchExpiredOccurrences(context.Context) ([]models.MaintenanceWindow, error) {
	f.hit("expired")
	return f.expired, nil
}

func (f *fakeAPI) FetchMaintenanceAlerts(_ context.Context, at time.Time) ([]models.Alert, error) {
	f.hit("maintenance_alerts")
	f.mu.Lock()
	f.maintAt = at
	f.mu.Unlock()
	return f.maintAlerts, f.maintErr
}

type fakeRenderer struct {
	err error
}

func (r fakeRenderer) Render(report models.Report) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("<html>" + report.RunID + "</html>"), nil
}

type fakeSender struct {
	mu       sync.Mutex
	err      error
	subjects []string
	bodies   [][]byte
}

func (s *fakeSender) Send(_ context.Context, subject string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.subjects = append(s.subjects, subject)
	s.bodies = append(s.bodies, body)
	return nil
}

func (s *fakeSender) sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subjects)
}
