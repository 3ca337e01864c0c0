package models

import "time"

// AlertCounters are the per-manager alert counters for one window.
type AlertCounters struct {
	Alerts           int `json:"alerts"`
	Events           int `json:"events"`
	NoIncidentEvents int `json:"no_incident_events"`
}

// AlertWindow summarises the alerts of one time window.
type AlertWindow struct {
	PerManager map[string]AlertCounters `json:"per_manager"`
	// InstanceBreakdown maps a breakdown rule id to event counts per instance tag.
	InstanceBreakdown map[string]map[string]int `json:"instance_breakdown"`
}

// IncidentCounters are the categorical incident counters, globally and per manager.
type IncidentCounters struct {
	Total            int `json:"total_count"`
	TicketCreated    int `json:"sn_inc_created"`
	NotCreated       int `json:"not_created_sn"`
	CreationErrors   int `json:"sn_creation_errors"`
	PriorityUpgraded int `json:"priority_upgraded"`
	AutoResolved     int `json:"auto_resolved"`
}

// UnmappedSummary counts incidents with neither a configuration item nor a workload.
type UnmappedSummary struct {
	Count              int      `json:"count"`
	SourceTags         []string `json:"source_tags"`
	NoWorkloadNoSource int      `json:"no_workload_no_source_count"`
}

// IncidentWindow summarises the incidents of one time window.
type IncidentWindow struct {
	IncidentCounters
	PerManager            map[string]IncidentCounters `json:"per_manager"`
	UndiscoveredWorkloads []string                    `json:"undiscovered_workloads"`
	Unmapped              UnmappedSummary             `json:"cmdb_ci_blank_workload_blank"`
	LogPlatformWorkloads  []string                    `json:"log_platform_workloads"`
}

// Windowed pairs the month-to-date and last-24h summaries of one entity type.
type Windowed[T any] struct {
	ThisMonth T `json:"this_month"`
	Last24h   T `json:"last_24h"`
}

// RecentErrors aggregates the errors of one integration inside the recent window.
type RecentErrors struct {
	Count   int      `json:"count"`
	Reasons []string `json:"reasons"`
}

// OlderErrors counts the errors of one integration before the recent window.
type OlderErrors struct {
	Count int `json:"count"`
}

// ErrorBuckets splits integration errors into recent and older, keyed by integration name.
type ErrorBuckets struct {
	Recent map[string]RecentErrors `json:"recent_errors"`
	Older  map[string]OlderErrors  `json:"older_errors"`
}

// IntegrationSection describes one direction (inbound or outbound) of integrations.
type IntegrationSection struct {
	Total        int           `json:"total"`
	Integrations []Integration `json:"integrations"`
	Errors       ErrorBuckets  `json:"errors"`
}

// MaintenanceEntry is a maintenance window merged from all records sharing its id.
type MaintenanceEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Start       *int64 `json:"start,omitempty"`
	Duration    *int64 `json:"duration,omitempty"`
}

// EnrichedAlert is an alert raised during maintenance, joined to its window.
type EnrichedAlert struct {
	AlertID                string     `json:"alert_id"`
	Manager                string     `json:"manager"`
	CreatedAt              *time.Time `json:"created_at,omitempty"`
	MaintenanceID          string     `json:"maintenance_id"`
	MaintenanceName        string     `json:"maintenance_name"`
	MaintenanceDescription string     `json:"maintenance_description"`
	MaintenanceStatus      string     `json:"maintenance_status"`
	CI                     string     `json:"ci"`
}

// ManagerCount is one manager's alert count within a month.
type ManagerCount struct {
	Manager string `json:"manager"`
	Count   int    `json:"count"`
}

// MonthlyCount groups maintenance alerts by creation month.
type MonthlyCount struct {
	Month    string         `json:"month"`
	Managers []ManagerCount `json:"managers"`
}

// MaintenanceSection is the maintenance part of the report.
type MaintenanceSection struct {
	Windows      int             `json:"windows"`
	Alerts       int             `json:"alerts"`
	Monthly      []MonthlyCount  `json:"monthly"`
	RecentAlerts []EnrichedAlert `json:"recent_alerts"`
}

// CatalogEntry is a catalog listing formatted for display.
type CatalogEntry struct {
	Name        string `json:"name"`
	Entries     int    `json:"entries"`
	LastUpdated string `json:"last_updated"`
}

// Catalog sync states.
const (
	SyncSuccess = "Success"
	SyncFailed  = "Failed"
)

// CatalogSection reports the most recently updated catalogs and whether they are fresh.
type CatalogSection struct {
	Recent     []CatalogEntry `json:"recent_catalogs"`
	SyncStatus string         `json:"sync_status"`
}

// SectionError names a report section that degraded to its empty form.
type SectionError struct {
	Section string `json:"section"`
	Error   string `json:"error"`
}

// Report is the fully composed digest handed to the renderer.
type Report struct {
	RunID       string                   `json:"run_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	MonthStart  time.Time                `json:"month_start"`
	DayStart    time.Time                `json:"day_start"`
	Timezone    string                   `json:"timezone"`
	Statistics  Statistics               `json:"statistics"`
	Alerts      Windowed[AlertWindow]    `json:"alerts"`
	Incidents   Windowed[IncidentWindow] `json:"incidents"`
	Inbound     IntegrationSection       `json:"inbound"`
	Outbound    IntegrationSection       `json:"outbound"`
	Maintenance MaintenanceSection       `json:"maintenance"`
	Audits      map[string]int           `json:"audits"`
	Catalogs    CatalogSection           `json:"catalogs"`
	Errors      []SectionError           `json:"section_errors,omitempty"`
}
