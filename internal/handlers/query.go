package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pipewatch/internal/assistant"
	"pipewatch/internal/ledger"
	"pipewatch/internal/models"
	"pipewatch/internal/policy"
	"pipewatch/internal/series"
)

// SparklinePoints is the default tail window for alert context charts,
// matching the dashboard's short sparkline slices.
const SparklinePoints = 12

// AlertsHandler serves the alert list with status and active filters
type AlertsHandler struct {
	Ledger *ledger.Ledger
	Store  *series.Store
}

// AlertView is one alert in the list response
type AlertView struct {
	*ledger.AlertRecord

	// Current filtering level: peak while open, NORMAL once closed
	Status string `json:"status"`
}

// ServeHTTP handles GET /alerts?status=CRITICAL,WARNING&active=true and
// GET /alerts/{id}/context for sparkline windows
func (h *AlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// /alerts/{id}/context
	if rest, ok := strings.CutPrefix(r.URL.Path, "/alerts/"); ok {
		id, ok := strings.CutSuffix(rest, "/context")
		if !ok || id == "" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		h.serveContext(w, r, id)
		return
	}

	records := h.Ledger.Records()

	if active, _ := strconv.ParseBool(r.URL.Query().Get("active")); active {
		records = ledger.ActiveOnly(records)
	}

	if raw := r.URL.Query().Get("status"); raw != "" && !strings.EqualFold(raw, "ALL") {
		levels, err := parseLevels(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		records = ledger.ByStatus(records, levels...)
	}

	views := make([]AlertView, 0, len(records))
	for _, rec := range records {
		views = append(views, AlertView{AlertRecord: rec, Status: rec.CurrentLevel().String()})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": views,
		"count":  len(views),
	})
}

// serveContext returns the short recent-readings window around an alert
func (h *AlertsHandler) serveContext(w http.ResponseWriter, r *http.Request, id string) {
	rec, ok := h.Ledger.Record(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown alert")
		return
	}

	points := SparklinePoints
	if raw := r.URL.Query().Get("points"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "points must be a positive integer")
			return
		}
		points = n
	}

	snapshot := h.Store.Snapshot(rec.AssetID, rec.MetricID)
	out := make([]seriesPoint, 0, points)
	for reading := range series.Window(snapshot, points) {
		out = append(out, seriesPoint{Timestamp: reading.Timestamp, Value: reading.Value})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alert_id":  rec.ID,
		"asset_id":  rec.AssetID,
		"metric_id": rec.MetricID,
		"readings":  out,
	})
}

// SeriesHandler serves windowed history for one (asset, metric) key
type SeriesHandler struct {
	Store *series.Store
}

type seriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ServeHTTP handles GET /series?asset_id=&metric_id=&from=&to=&last=N.
// With from/to it returns the inclusive range; with last=N the tail window;
// otherwise the full retained history.
func (h *SeriesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	assetID := strings.ToUpper(strings.TrimSpace(q.Get("asset_id")))
	metricID := strings.TrimSpace(q.Get("metric_id"))
	if assetID == "" || metricID == "" {
		writeError(w, http.StatusBadRequest, "asset_id and metric_id are required")
		return
	}

	snapshot := h.Store.Snapshot(assetID, metricID)

	var out []seriesPoint
	switch {
	case q.Get("from") != "" || q.Get("to") != "":
		from, to, err := parseTimeRange(q.Get("from"), q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		for reading := range series.Range(snapshot, from, to) {
			out = append(out, seriesPoint{Timestamp: reading.Timestamp, Value: reading.Value})
		}
	case q.Get("last") != "":
		n, err := strconv.Atoi(q.Get("last"))
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "last must be a positive integer")
			return
		}
		for reading := range series.Window(snapshot, n) {
			out = append(out, seriesPoint{Timestamp: reading.Timestamp, Value: reading.Value})
		}
	default:
		for _, reading := range snapshot {
			out = append(out, seriesPoint{Timestamp: reading.Timestamp, Value: reading.Value})
		}
	}

	if out == nil {
		out = []seriesPoint{} // empty result is valid, not an error
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset_id":  assetID,
		"metric_id": metricID,
		"readings":  out,
	})
}

// StatusHandler serves current KPI tile state: latest value, level, and the
// approaching-threshold advisory for each requested key
type StatusHandler struct {
	Store    *series.Store
	Registry *policy.Registry
}

// StatusView is one KPI tile
type StatusView struct {
	AssetID     string    `json:"asset_id"`
	MetricID    string    `json:"metric_id"`
	Value       float64   `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	Approaching bool      `json:"approaching"`
}

// ServeHTTP handles GET /status?asset_id=PUMP-402
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	assetID := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("asset_id")))
	if assetID == "" {
		writeError(w, http.StatusBadRequest, "asset_id is required")
		return
	}

	views := make([]StatusView, 0)
	for _, metricID := range h.Registry.Metrics() {
		snapshot := h.Store.Snapshot(assetID, metricID)
		if len(snapshot) == 0 {
			continue
		}
		latest := snapshot[len(snapshot)-1]

		pol, err := h.Registry.Lookup(metricID)
		if err != nil {
			continue
		}
		level, err := policy.Classify(latest.Value, pol)
		if err != nil {
			continue
		}
		approaching, _ := policy.IsApproaching(latest.Value, pol)

		views = append(views, StatusView{
			AssetID:     assetID,
			MetricID:    metricID,
			Value:       latest.Value,
			Timestamp:   latest.Timestamp,
			Status:      level.String(),
			Approaching: approaching,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset_id": assetID,
		"metrics":  views,
	})
}

// AssistHandler serves the dashboard's canned-response helper
type AssistHandler struct{}

// ServeHTTP handles POST /assist with {"message": "..."}. GET returns the
// opening message shown before the user has said anything.
func (h *AssistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{
			"reply": assistant.Greeting,
		})
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"reply": assistant.Respond(req.Message),
	})
}

// parseLevels parses a comma-separated status list (CRITICAL,WARNING)
func parseLevels(raw string) ([]policy.Level, error) {
	parts := strings.Split(raw, ",")
	levels := make([]policy.Level, 0, len(parts))
	for _, part := range parts {
		lv, ok := policy.ParseLevel(strings.ToUpper(strings.TrimSpace(part)))
		if !ok {
			return nil, policy.ErrUnknownLevel
		}
		levels = append(levels, lv)
	}
	return levels, nil
}

// parseTimeRange parses from/to query parameters, defaulting open ends
func parseTimeRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().UTC()

	if fromRaw != "" {
		t, err := models.ParseTimestamp(fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}
	if toRaw != "" {
		t, err := models.ParseTimestamp(toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}
	return from, to, nil
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
