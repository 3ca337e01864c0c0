package engine

import (
	"sort"

	"github.com/miradorstack/mirador-digest/internal/models"
)

// Incident tags inspected by the summarizer.
const (
	TagTicket          = "SNOWInc"
	TagTicketCreated   = "SNOWIncidentCreated"
	TagUpgraded        = "upgraded"
	TagAutoClose       = "auto_close"
	TagConfigItem      = "cmdb_ci"
	TagWorkload        = "Workload"
	TagSource          = "source"
	ticketCreatedError = "error"
)

// IncidentSummarizer classifies incidents into categorical counters for one window.
type IncidentSummarizer struct {
	undiscovered []Rule
	logPlatforms []Rule
}

// NewIncidentSummarizer constructs a summarizer using the workload rules of set.
func NewIncidentSummarizer(set RuleSet) *IncidentSummarizer {
	return &IncidentSummarizer{
		undiscovered: set.For(BucketUndiscoveredWorkload),
		logPlatforms: set.For(BucketLogPlatformWorkload),
	}
}

// Summarize makes a single pass over records. Counter checks are independent so
// one incident can raise several counters; exactly one of ticket-created and
// not-created is raised per incident.
func (s *IncidentSummarizer) Summarize(records []models.Incident) models.IncidentWindow {
	window := models.IncidentWindow{
		PerManager:            make(map[string]models.IncidentCounters),
		UndiscoveredWorkloads: []string{},
		LogPlatformWorkloads:  []string{},
		Unmapped:              models.UnmappedSummary{SourceTags: []string{}},
	}
	sources := make(map[string]struct{})

	for _, incident := range records {
		manager := incident.ManagerName()
		tags := incident.Tags

		classify(&window.IncidentCounters, tags)
		perManager := window.PerManager[manager]
		classify(&perManager, tags)
		window.PerManager[manager] = perManager

		ciBlank := tags.Blank(TagConfigItem)
		workloadBlank := tags.Blank(TagWorkload)

		if ciBlank && !workloadBlank && anyMatch(s.undiscovered, manager) {
			window.UndiscoveredWorkloads = append(window.UndiscoveredWorkloads, tags.String(TagWorkload))
		}

		if ciBlank && workloadBlank {
			window.Unmapped.Count++
			if !tags.Blank(TagSource) {
				sources[tags.String(TagSource)] = struct{}{}
			} else {
				window.Unmapped.NoWorkloadNoSource++
			}
		}

		if ciBlank && !workloadBlank && anyMatch(s.logPlatforms, manager) {
			window.LogPlatformWorkloads = append(window.LogPlatformWorkloads, tags.String(TagWorkload))
		}
	}

	window.Unmapped.SourceTags = setToSlice(sources)
	return window
}

func classify(c *models.IncidentCounters, tags models.Tags) {
	c.Total++
	if !tags.Blank(TagTicket) {
		c.TicketCreated++
	} else {
		c.NotCreated++
	}
	if tags.Equals(TagTicketCreated, ticketCreatedError) {
		c.CreationErrors++
	}
	if !tags.Blank(TagUpgraded) {
		c.PriorityUpgraded++
	}
	if !tags.Blank(TagAutoClose) {
		c.AutoResolved++
	}
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
