package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/miradorstack/mirador-digest/internal/config"
	"github.com/miradorstack/mirador-digest/internal/models"
	"github.com/miradorstack/mirador-digest/internal/utils"
)

// ErrUpstreamStatus is returned when the API answers with a non-success HTTP
// status or an envelope whose status is not "success".
var ErrUpstreamStatus = errors.New("moogsoft returned non-success status")

const (
	statusSuccess     = "success"
	noOutboundMessage = "No message"
)

var (
	alertFields       = []string{"alert_id", "manager", "event_count", "incidents", "tags", "check", "first_event_time"}
	incidentFields    = []string{"incident_id", "created_at", "tags", "manager"}
	maintenanceFields = []string{"incidents", "maintenance", "manager", "alert_id", "created_at", "tags"}
)

// MoogsoftClient wraps the Moogsoft REST endpoints the digest reads from.
type MoogsoftClient struct {
	baseURL    string
	apiKey     string
	pageSize   int
	paths      config.MoogsoftPaths
	httpClient *http.Client
}

// NewMoogsoftClient constructs a client targeting the configured Moogsoft tenant.
func NewMoogsoftClient(cfg config.MoogsoftConfig) *MoogsoftClient {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 5000
	}
	return &MoogsoftClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		pageSize: pageSize,
		paths:    cfg.Paths,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type resultPage[T any] struct {
	Result      []T           `json:"result"`
	SearchAfter models.Cursor `json:"search_after"`
}

// QueryAlertPage fetches one page of alerts whose first event is at or after lowerBound.
func (c *MoogsoftClient) QueryAlertPage(ctx context.Context, lowerBound time.Time, cursor models.Cursor) (models.Page[models.Alert], error) {
	payload := map[string]any{
		"filter": fmt.Sprintf("first_event_time >= %q", lowerBound.UTC().Format(utils.AlertFilterLayout)),
		"limit":  c.pageSize,
		"fields": alertFields,
	}
	if !cursor.Empty() {
		payload["search_after"] = cursor
	}

	var page resultPage[models.Alert]
	if err := c.postJSON(ctx, c.resolvePath(c.paths.Alerts, nil), payload, &page); err != nil {
		return models.Page[models.Alert]{}, fmt.Errorf("alerts request failed: %w", err)
	}
	return models.Page[models.Alert]{Records: page.Result, Next: page.SearchAfter}, nil
}

// QueryIncidentPage fetches one page of incidents created at or after lowerBound.
func (c *MoogsoftClient) QueryIncidentPage(ctx context.Context, lowerBound time.Time, cursor models.Cursor) (models.Page[models.Incident], error) {
	payload := map[string]any{
		"filter": map[string]any{
			"created_at": map[string]any{
				"filterType": "combined",
				"operator":   "AND",
				"condition1": map[string]any{
					"filterType": "date",
					"type":       "greaterThan",
					"dateFrom":   time.Unix(0, 0).UTC().Format(utils.IncidentFilterLayout),
					"dateTo":     nil,
				},
				"condition2": map[string]any{
					"filterType": "combined",
					"operator":   "AND",
					"condition1": map[string]any{
						"filterType": "date",
						"type":       "greaterThanOrEqual",
						"dateFrom":   lowerBound.UTC().Format(utils.IncidentFilterLayout),
						"dateTo":     nil,
					},
				},
			},
		},
		"limit":  c.pageSize,
		"fields": incidentFields,
	}
	if !cursor.Empty() {
		payload["search_after"] = cursor
	}

	var page resultPage[models.Incident]
	if err := c.postJSON(ctx, c.resolvePath(c.paths.Incidents, nil), payload, &page); err != nil {
		return models.Page[models.Incident]{}, fmt.Errorf("incidents request failed: %w", err)
	}
	return models.Page[models.Incident]{Records: page.Result, Next: page.SearchAfter}, nil
}

// FetchStatistics returns the platform overview for [start, end]. Noise
// reduction is left for the caller to derive.
func (c *MoogsoftClient) FetchStatistics(ctx context.Context, start, end time.Time) (models.Statistics, error) {
	query := url.Values{}
	query.Set("start", strconv.FormatInt(start.Unix(), 10))
	query.Set("end", strconv.FormatInt(end.Unix(), 10))

	var stats models.Statistics
	if err := c.getJSON(ctx, c.resolvePath(c.paths.Statistics, query), &stats); err != nil {
		return models.Statistics{}, fmt.Errorf("statistics request failed: %w", err)
	}
	stats.NoiseReduction = 0
	return stats, nil
}

// FetchAuditCount returns how many audited changes service recorded in [start, end].
func (c *MoogsoftClient) FetchAuditCount(ctx context.Context, service string, start, end time.Time) (int, error) {
	query := url.Values{}
	query.Set("serviceName", service)
	query.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	query.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))

	var response struct {
		Count int `json:"count"`
	}
	if err := c.getJSON(ctx, c.resolvePath(c.paths.Audits, query), &response); err != nil {
		return 0, fmt.Errorf("audits request for %s failed: %w", service, err)
	}
	return response.Count, nil
}

// FetchCatalogs lists enrichment catalogs.
func (c *MoogsoftClient) FetchCatalogs(ctx context.Context) ([]models.Catalog, error) {
	var catalogs []models.Catalog
	if err := c.getJSON(ctx, c.resolvePath(c.paths.Catalogs, nil), &catalogs); err != nil {
		return nil, fmt.Errorf("catalogs request failed: %w", err)
	}
	return catalogs, nil
}

// FetchInboundIntegrations lists BYOAPI integrations matching rawQuery, which
// may be empty.
func (c *MoogsoftClient) FetchInboundIntegrations(ctx context.Context, rawQuery string) ([]models.Integration, error) {
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("inbound query %q: %w", rawQuery, err)
	}
	var items []struct {
		ID           models.FlexID `json:"id"`
		EndpointName string        `json:"endpointName"`
	}
	if err := c.getJSON(ctx, c.resolvePath(c.paths.Inbound, query), &items); err != nil {
		return nil, fmt.Errorf("inbound integrations request failed: %w", err)
	}
	out := make([]models.Integration, 0, len(items))
	for _, item := range items {
		out = append(out, models.Integration{ID: item.ID.String(), Name: item.EndpointName})
	}
	return out, nil
}

// FetchOutboundIntegrations lists webhook integrations.
func (c *MoogsoftClient) FetchOutboundIntegrations(ctx context.Context) ([]models.Integration, error) {
	var items []struct {
		ID   models.FlexID `json:"id"`
		Name string        `json:"name"`
	}
	if err := c.getJSON(ctx, c.resolvePath(c.paths.Outbound, nil), &items); err != nil {
		return nil, fmt.Errorf("outbound integrations request failed: %w", err)
	}
	out := make([]models.Integration, 0, len(items))
	for _, item := range items {
		out = append(out, models.Integration{ID: item.ID.String(), Name: item.Name})
	}
	return out, nil
}

// FetchInboundErrors returns the error log of one BYOAPI integration.
func (c *MoogsoftClient) FetchInboundErrors(ctx context.Context, integrationID string) ([]models.ErrorLogEntry, error) {
	var logs []struct {
		Timestamp *float64 `json:"timestamp"`
		Errors    []string `json:"errors"`
	}
	if err := c.getJSON(ctx, c.resolvePath(withID(c.paths.InboundErrors, integrationID), nil), &logs); err != nil {
		return nil, fmt.Errorf("inbound errors request for %s failed: %w", integrationID, err)
	}
	out := make([]models.ErrorLogEntry, 0, len(logs))
	for _, log := range logs {
		out = append(out, models.ErrorLogEntry{Timestamp: epochMillis(log.Timestamp), Reasons: log.Errors})
	}
	return out, nil
}

// FetchOutboundErrors returns the failed deliveries of one webhook integration.
func (c *MoogsoftClient) FetchOutboundErrors(ctx context.Context, integrationID string) ([]models.ErrorLogEntry, error) {
	query := url.Values{}
	query.Set("errors", "true")
	query.Set("successes", "false")

	var logs []struct {
		Timestamp *float64 `json:"timestamp"`
		Message   *string  `json:"message"`
	}
	if err := c.getJSON(ctx, c.resolvePath(withID(c.paths.OutboundErrors, integrationID), query), &logs); err != nil {
		return nil, fmt.Errorf("outbound errors request for %s failed: %w", integrationID, err)
	}
	out := make([]models.ErrorLogEntry, 0, len(logs))
	for _, log := range logs {
		message := noOutboundMessage
		if !models.IsBlank(log.Message) {
			message = *log.Message
		}
		out = append(out, models.ErrorLogEntry{Timestamp: epochMillis(log.Timestamp), Reasons: []string{message}})
	}
	return out, nil
}

// FetchActiveWindows lists scheduled maintenance windows.
func (c *MoogsoftClient) FetchActiveWindows(ctx context.Context) ([]models.MaintenanceWindow, error) {
	windows, err := c.fetchWindows(ctx, c.paths.MaintenanceWindows)
	if err != nil {
		return nil, fmt.Errorf("maintenance windows request failed: %w", err)
	}
	return windows, nil
}

// FetchExpiredOccurrences lists past occurrences of maintenance windows.
func (c *MoogsoftClient) FetchExpiredOccurrences(ctx context.Context) ([]models.MaintenanceWindow, error) {
	windows, err := c.fetchWindows(ctx, c.paths.ExpiredOccurrences)
	if err != nil {
		return nil, fmt.Errorf("expired occurrences request failed: %w", err)
	}
	return windows, nil
}

func (c *MoogsoftClient) fetchWindows(ctx context.Context, p string) ([]models.MaintenanceWindow, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.pageSize))
	var page resultPage[models.MaintenanceWindow]
	if err := c.getJSON(ctx, c.resolvePath(p, query), &page); err != nil {
		return nil, err
	}
	return page.Result, nil
}

// FetchMaintenanceAlerts returns every alert attached to a maintenance window,
// newest last event first. The API pages these by offset; times are shifted by
// the zone offset in effect at at.
func (c *MoogsoftClient) FetchMaintenanceAlerts(ctx context.Context, at time.Time) ([]models.Alert, error) {
	utcOffset := "GMT" + at.Format("-07:00")

	var all []models.Alert
	for start := 0; ; start += c.pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		payload := map[string]any{
			"limit":     c.pageSize,
			"start":     start,
			"utcOffset": utcOffset,
			"jsonSort":  []map[string]string{{"sort": "desc", "colId": "last_event_time"}},
			"fields":    maintenanceFields,
			"jsonFilter": map[string]any{
				"maintenance": map[string]string{"filterType": "text", "type": "notBlank"},
			},
		}
		var page resultPage[models.Alert]
		if err := c.postJSON(ctx, c.resolvePath(c.paths.Alerts, nil), payload, &page); err != nil {
			return nil, fmt.Errorf("maintenance alerts request at offset %d failed: %w", start, err)
		}
		all = append(all, page.Result...)
		if len(page.Result) < c.pageSize {
			return all, nil
		}
	}
}

func withID(p, id string) string {
	return strings.ReplaceAll(p, "{id}", url.PathEscape(id))
}

func epochMillis(ms *float64) *time.Time {
	if ms == nil {
		return nil
	}
	ts := time.UnixMilli(int64(*ms))
	return &ts
}

func (c *MoogsoftClient) resolvePath(p string, query url.Values) string {
	if c == nil || c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *MoogsoftClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body), out)
}

func (c *MoogsoftClient) getJSON(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *MoogsoftClient) do(ctx context.Context, method, endpoint string, body *bytes.Reader, out any) error {
	if c == nil {
		return fmt.Errorf("moogsoft client not initialised")
	}
	if endpoint == "" {
		return fmt.Errorf("moogsoft base URL not configured")
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: http %s", ErrUpstreamStatus, resp.Status)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Status != statusSuccess {
		return fmt.Errorf("%w: %q", ErrUpstreamStatus, env.Status)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
