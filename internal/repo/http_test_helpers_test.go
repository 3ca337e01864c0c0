package repo

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/miradorstack/mirador-digest/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(rt roundTripFunc) *http.Client {
	return &http.Client{Transport: rt}
}

func newTestMoogsoft(t *testing.T, pageSize int, rt roundTripFunc) *MoogsoftClient {
	t.Helper()
	client := NewMoogsoftClient(config.MoogsoftConfig{
		BaseURL:  "https://api.example.test",
		APIKey:   "secret",
		Timeout:  time.Second,
		PageSize: pageSize,
		Paths: config.MoogsoftPaths{
			Alerts:             "/v1/alerts",
			Incidents:          "/v1/incidents",
			Statistics:         "/v2/stats/overview",
			Audits:             "/v1/audits",
			Catalogs:           "/v2/catalogs",
			Inbound:            "/v1/integrations/byoapi",
			InboundErrors:      "/v1/integrations/byoapi/{id}/errors",
			Outbound:           "/v2/integrations/webhooks/items",
			OutboundErrors:     "/v2/integrations/webhooks/logs/{id}",
			MaintenanceWindows: "/v1/maintenance/windows",
			ExpiredOccurrences: "/v1/maintenance/occurrences/expired",
		},
	})
	client.httpClient = newTestClient(rt)
	return client
}

func jsonResponse(t *testing.T, status int, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
	}
}

func success(data any) map[string]any {
	return map[string]any{"status": "success", "data": data}
}

func decodeBody(t *testing.T, req *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return body
}
