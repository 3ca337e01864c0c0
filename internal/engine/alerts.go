package engine

import "github.com/miradorstack/mirador-digest/internal/models"

// InstanceTag is the alert tag summed by instance breakdown rules.
const InstanceTag = "instance"

// AlertSummarizer builds per-manager alert counters for one window.
type AlertSummarizer struct {
	breakdowns []Rule
}

// NewAlertSummarizer constructs a summarizer using the instance breakdown rules of set.
func NewAlertSummarizer(set RuleSet) *AlertSummarizer {
	return &AlertSummarizer{breakdowns: set.For(BucketInstanceBreakdown)}
}

// Summarize makes a single pass over records. Every alert counts towards its
// manager; alerts never escalated to an incident also feed no_incident_events.
func (s *AlertSummarizer) Summarize(records []models.Alert) models.AlertWindow {
	window := models.AlertWindow{
		PerManager:        make(map[string]models.AlertCounters),
		InstanceBreakdown: make(map[string]map[string]int),
	}
	for _, rule := range s.breakdowns {
		window.InstanceBreakdown[rule.ID] = make(map[string]int)
	}

	for _, alert := range records {
		manager := alert.ManagerName()

		counters := window.PerManager[manager]
		counters.Alerts++
		counters.Events += alert.EventCount
		if len(alert.Incidents) == 0 {
			counters.NoIncidentEvents += alert.EventCount
		}
		window.PerManager[manager] = counters

		if !alert.Tags.Has(InstanceTag) {
			continue
		}
		instance := instanceKey(alert.Tags)
		for _, rule := range s.breakdowns {
			if rule.Matches(manager) {
				window.InstanceBreakdown[rule.ID][instance] += alert.EventCount
			}
		}
	}
	return window
}

func instanceKey(tags models.Tags) string {
	if tags.Blank(InstanceTag) {
		return "(none)"
	}
	return tags.String(InstanceTag)
}
