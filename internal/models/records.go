package models

import (
	"encoding/json"
	"time"
)

// UnknownManager is used when a record does not name the tool that produced it.
const UnknownManager = "Unknown"

// Alert is a deduplicated alert as returned by the alerts API.
type Alert struct {
	AlertID     FlexID            `json:"alert_id"`
	Manager     string            `json:"manager"`
	EventCount  int               `json:"event_count"`
	Incidents   []json.RawMessage `json:"incidents"`
	Tags        Tags              `json:"tags"`
	Check       string            `json:"check"`
	Maintenance FlexID            `json:"maintenance"`
	CreatedAt   *float64          `json:"created_at"`
}

// ManagerName returns the manager, defaulting to UnknownManager.
func (a Alert) ManagerName() string {
	return managerOrUnknown(a.Manager)
}

// Created converts the epoch-seconds creation time, if present.
func (a Alert) Created() (time.Time, bool) {
	if a.CreatedAt == nil {
		return time.Time{}, false
	}
	sec := int64(*a.CreatedAt)
	nsec := int64((*a.CreatedAt - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec), true
}

// Incident is a correlated incident as returned by the incidents API.
type Incident struct {
	IncidentID FlexID `json:"incident_id"`
	Manager    string `json:"manager"`
	Tags       Tags   `json:"tags"`
	CreatedAt  any    `json:"created_at"`
}

// ManagerName returns the manager, defaulting to UnknownManager.
func (i Incident) ManagerName() string {
	return managerOrUnknown(i.Manager)
}

func managerOrUnknown(manager string) string {
	if IsBlank(manager) {
		return UnknownManager
	}
	return manager
}

// Integration identifies an inbound or outbound integration by id and display name.
type Integration struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ErrorLogEntry is one failure recorded against an integration. Reasons holds the
// inbound error list or the single outbound message.
type ErrorLogEntry struct {
	Timestamp *time.Time
	Reasons   []string
}

// MaintenanceWindow is a scheduled window or one of its expired occurrences.
type MaintenanceWindow struct {
	ID          FlexID  `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Start       *int64  `json:"start"`
	Duration    *int64  `json:"duration"`
}

// Catalog is an enrichment catalog listing.
type Catalog struct {
	Name        string `json:"name"`
	Entries     int    `json:"entries"`
	LastUpdated int64  `json:"last_updated"`
}

// Statistics is the platform overview for a time range.
type Statistics struct {
	IncidentCount  int     `json:"incident_count"`
	AlertCount     int     `json:"alert_count"`
	EventCount     int     `json:"event_count"`
	NoiseReduction float64 `json:"noise_reduction"`
}
