// mock-moogsoft serves canned Moogsoft API responses so the digest can be
// built locally without platform credentials.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"time"
)

type alert struct {
	AlertID     int               `json:"alert_id"`
	Manager     string            `json:"manager"`
	EventCount  int               `json:"event_count"`
	Incidents   []int             `json:"incidents"`
	Tags        map[string]string `json:"tags,omitempty"`
	Maintenance string            `json:"maintenance,omitempty"`
	CreatedAt   int64             `json:"created_at,omitempty"`
}

type incident struct {
	IncidentID int               `json:"incident_id"`
	Manager    string            `json:"manager"`
	Tags       map[string]string `json:"tags"`
	CreatedAt  int64             `json:"created_at"`
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/v1/alerts", func(w http.ResponseWriter, r *http.Request) {
		if !enforceMethod(w, r, http.MethodPost) {
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		// Maintenance listings page by offset; the digest queries page by cursor.
		if _, ok := body["jsonFilter"]; ok {
			writeData(w, map[string]any{"result": maintenanceAlerts()})
			return
		}
		if _, ok := body["search_after"]; ok {
			writeData(w, map[string]any{"result": []alert{}})
			return
		}
		writeData(w, map[string]any{"result": alerts(), "search_after": []any{time.Now().Unix(), 3}})
	})

	mux.HandleFunc("/v1/incidents", func(w http.ResponseWriter, r *http.Request) {
		if !enforceMethod(w, r, http.MethodPost) {
			return
		}
		writeData(w, map[string]any{"result": incidents()})
	})

	mux.HandleFunc("/v2/stats/overview", func(w http.ResponseWriter, r *http.Request) {
		if !enforceMethod(w, r, http.MethodGet) {
			return
		}
		writeData(w, map[string]int{"incident_count": 12, "alert_count": 140, "event_count": 4800})
	})

	mux.HandleFunc("/v1/audits", func(w http.ResponseWriter, r *http.Request) {
		if !enforceMethod(w, r, http.MethodGet) {
			return
		}
		count := len(r.URL.Query().Get("serviceName"))
		writeData(w, map[string]int{"count": count})
	})

	mux.HandleFunc("/v2/catalogs", func(w http.ResponseWriter, r *http.Request) {
		if !enforceMethod(w, r, http.MethodGet) {
			return
		}
		now := time.Now()
		writeData(w, []map[string]any{
			{"name": "cmdb-servers", "entries": 5120, "last_updated": now.Add(-2 * time.Hour).UnixMilli()},
			{"name": "business-services", "entries": 86, "last_updated": now.Add(-6 * time.Hour).UnixMilli()},
			{"name": "ownership", "entries": 412, "last_updated": now.Add(-20 * time.Hour).UnixMilli()},
		})
	})

	mux.HandleFunc("/v1/integrations/byoapi", func(w http.ResponseWriter, r *http.Request) {
		if !enforceMethod(w, r, http.MethodGet) {
			return
		}
		switch r.URL.Query().Get("integration") {
		case "DYNATRACE":
			writeData(w, []map[string]any{{"id": 11, "endpointName": "dynatrace-prod"}})
		case "NAGIOS":
			writeData(w, []map[string]any{{"id": 12, "endpointName": "nagios-dc1"}, {"id": 11, "endpointName": "dynatrace-prod"}})
		default:
			writeData(w, []map[string]any{{"id": 10, "endpointName": "generic-byoapi"}})
		}
	})

	mux.HandleFunc("/v1/integrations/byoapi/{id}/errors", func(w http.ResponseWriter, r *http.Request) {
		if !enforceMethod(w, r, http.MethodGet) {
			return
		}
		if r.PathValue("id") != "12" {
			writeData(w, []any{})
			return
		}
		now := time.Now()
		writeData(w, []map[string]any{
			{"timestamp": now.Add(-time.Hour).UnixMilli(), "errors": []string{"payload missing severity", "unknown host"}},
			{"timestamp": now.Add(-3 * time.Hour).UnixMilli(), "errors": []string{"unknown host"}},
			{"timestamp": now.Add(-72 * time.Hour).UnixMilli(), "errors": []string{"auth rejected"}},
		})
	})

	mux.HandleFunc("/v2/integrations/webhooks/items", func(w http.ResponseWriter, r *http.Request) {
		if !enforceMethod(w, r, http.MethodGet) {
			return
		}
		writeData(w, []map[string]any{{"id": "wh-1", "name": "servicenow"}, {"id": "wh-2", "name": "teams"}})
	})

	mux.HandleFunc("/v2/integrations/webhooks/logs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !enforceMethod(w, r, http.MethodGet) {
			return
		}
		if r.PathValue("id") != "wh-1" {
			writeData(w, []any{})
			return
		}
		writeData(w, []map[string]any{
			{"timestamp": time.Now().Add(-30 * time.Minute).UnixMilli(), "message": "502 Bad Gateway"},
			{"timestamp": time.Now().Add(-50 * time.Hour).UnixMilli()},
		})
	})

	mux.HandleFunc("/v1/maintenance/windows", func(w http.ResponseWriter, r *http.Request) {
		if !enforceMethod(w, r, http.MethodGet) {
			return
		}
		writeData(w, map[string]any{"result": []map[string]any{
			{"id": "mw-1", "name": "Core switch upgrade", "status": "active", "start": time.Now().Add(-time.Hour).Unix(), "duration": 7200},
		}})
	})

	mux.HandleFunc("/v1/maintenance/occurrences/expired", func(w http.ResponseWriter, r *http.Request) {
		if !enforceMethod(w, r, http.MethodGet) {
			return
		}
		writeData(w, map[string]any{"result": []map[string]any{
			{"id": "mw-0", "name": "Storage patching", "description": "Quarterly firmware", "status": "expired"},
			{"id": "mw-1", "description": "Replace chassis"},
		}})
	})

	logger := log.New(log.Writer(), "moogsoft-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func alerts() []alert {
	created := time.Now().Add(-2 * time.Hour).Unix()
	return []alert{
		{AlertID: 1, Manager: "Nagios", EventCount: 40, Tags: map[string]string{"instance": "dc1-web-01"}, CreatedAt: created},
		{AlertID: 2, Manager: "Nagios", EventCount: 12, Incidents: []int{101}, Tags: map[string]string{"instance": "dc1-db-02"}, CreatedAt: created},
		{AlertID: 3, Manager: "Dynatrace", EventCount: 7, Incidents: []int{102}, CreatedAt: created},
	}
}

func incidents() []incident {
	created := time.Now().Add(-90 * time.Minute).Unix()
	return []incident{
		{IncidentID: 101, Manager: "Nagios", Tags: map[string]string{"SNOWInc": "INC0012001", "cmdb_ci": "dc1-db-02"}, CreatedAt: created},
		{IncidentID: 102, Manager: "Dynatrace", Tags: map[string]string{"Workload": "checkout", "SNOWIncidentCreated": "error"}, CreatedAt: created},
		{IncidentID: 103, Manager: "Splunk Cloud", Tags: map[string]string{"Workload": "ledger", "auto_close": "yes"}, CreatedAt: created},
		{IncidentID: 104, Manager: "", Tags: map[string]string{"source": "edge-proxy"}, CreatedAt: created},
	}
}

func maintenanceAlerts() []alert {
	return []alert{
		{AlertID: 201, Manager: "Nagios", Maintenance: "mw-1", Tags: map[string]string{"configurationItem": "core-sw-1"}, CreatedAt: time.Now().Add(-30 * time.Minute).Unix()},
		{AlertID: 202, Manager: "Dynatrace", Maintenance: "mw-0", CreatedAt: time.Now().AddDate(0, -1, 0).Unix()},
		{AlertID: 203, Manager: "Nagios", Maintenance: "mw-9"},
	}
}

func enforceMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": data}); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
