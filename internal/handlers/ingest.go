package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"pipewatch/internal/metrics"
	"pipewatch/internal/models"
)

// Submitter routes an envelope toward the evaluators. It must not block;
// false means the queue is full and the caller should retry later.
type Submitter interface {
	Submit(envelope *models.Envelope) bool
}

// IngestHandler handles reading ingestion via HTTP
type IngestHandler struct {
	submitter Submitter

	// Node identifier for tracking
	nodeID string

	// Batch counter for generating batch IDs
	batchCounter uint64

	// Max body size (default 10MB)
	maxBodySize int64
}

// IngestConfig holds configuration for the ingest handler
type IngestConfig struct {
	Submitter   Submitter
	NodeID      string
	MaxBodySize int64
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(cfg IngestConfig) *IngestHandler {
	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID, _ = os.Hostname()
		if nodeID == "" {
			nodeID = "unknown"
		}
	}

	maxBodySize := cfg.MaxBodySize
	if maxBodySize == 0 {
		maxBodySize = 10 * 1024 * 1024 // 10MB default
	}

	return &IngestHandler{
		submitter:   cfg.Submitter,
		nodeID:      nodeID,
		maxBodySize: maxBodySize,
	}
}

// IngestRequest represents the incoming JSON payload (single or batch)
type IngestRequest struct {
	// Single reading (if Readings is empty)
	Reading *ReadingInput `json:"reading,omitempty"`

	// Batch of readings
	Readings []ReadingInput `json:"readings,omitempty"`
}

// ReadingInput is the input format for readings (with string timestamp)
type ReadingInput struct {
	AssetID   string  `json:"asset_id"`
	MetricID  string  `json:"metric_id"`
	Timestamp string  `json:"timestamp"` // String for flexible parsing
	Value     float64 `json:"value"`
}

// IngestResponse is the response returned to clients
type IngestResponse struct {
	Success  bool          `json:"success"`
	Accepted int           `json:"accepted"`
	Rejected int           `json:"rejected"`
	Errors   []IngestError `json:"errors,omitempty"`
}

// IngestError describes a validation error for a specific reading
type IngestError struct {
	Index    int    `json:"index"`
	AssetID  string `json:"asset_id,omitempty"`
	MetricID string `json:"metric_id,omitempty"`
	Error    string `json:"error"`
}

// ServeHTTP handles the ingest HTTP request
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only accept POST
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Check content type
	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" && contentType != "" {
		h.writeError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return
	}

	// Limit body size
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	readings, err := h.parseBody(body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(readings) == 0 {
		h.writeError(w, http.StatusBadRequest, "no readings provided")
		return
	}

	metrics.IngestBatchSize.Observe(float64(len(readings)))

	batchID := h.generateBatchID()
	response := h.processReadings(readings, batchID)

	w.Header().Set("Content-Type", "application/json")
	if response.Rejected > 0 && response.Accepted == 0 {
		w.WriteHeader(http.StatusBadRequest)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

// parseBody parses the JSON body into a slice of ReadingInput
func (h *IngestHandler) parseBody(body []byte) ([]ReadingInput, error) {
	// Try parsing as IngestRequest first
	var req IngestRequest
	if err := json.Unmarshal(body, &req); err == nil {
		if len(req.Readings) > 0 {
			return req.Readings, nil
		}
		if req.Reading != nil {
			return []ReadingInput{*req.Reading}, nil
		}
	}

	// Try parsing as array of readings
	var readings []ReadingInput
	if err := json.Unmarshal(body, &readings); err == nil && len(readings) > 0 {
		return readings, nil
	}

	// Try parsing as single reading
	var single ReadingInput
	if err := json.Unmarshal(body, &single); err == nil && single.AssetID != "" {
		return []ReadingInput{single}, nil
	}

	return nil, fmt.Errorf("invalid JSON format: expected reading object or array of readings")
}

// processReadings validates, normalizes, and submits readings for evaluation
func (h *IngestHandler) processReadings(inputs []ReadingInput, batchID string) IngestResponse {
	response := IngestResponse{
		Success: true,
		Errors:  make([]IngestError, 0),
	}

	for i, input := range inputs {
		reading, err := h.convertInput(input)
		if err != nil {
			response.Errors = append(response.Errors, IngestError{
				Index:    i,
				AssetID:  input.AssetID,
				MetricID: input.MetricID,
				Error:    err.Error(),
			})
			response.Rejected++
			metrics.IngestValidationErrors.WithLabelValues("convert").Inc()
			continue
		}

		reading.Normalize()

		if err := reading.Validate(); err != nil {
			response.Errors = append(response.Errors, IngestError{
				Index:    i,
				AssetID:  reading.AssetID,
				MetricID: reading.MetricID,
				Error:    err.Error(),
			})
			response.Rejected++
			metrics.IngestValidationErrors.WithLabelValues("validate").Inc()
			metrics.IngestReadingsTotal.WithLabelValues(reading.AssetID, "rejected").Inc()
			continue
		}

		envelope := models.NewEnvelope(reading, h.nodeID).WithBatch(batchID, i)

		if h.submitter.Submit(envelope) {
			response.Accepted++
			metrics.IngestReadingsTotal.WithLabelValues(reading.AssetID, "accepted").Inc()
		} else {
			// Queue full - reject reading
			response.Errors = append(response.Errors, IngestError{
				Index:    i,
				AssetID:  reading.AssetID,
				MetricID: reading.MetricID,
				Error:    "internal queue full, try again later",
			})
			response.Rejected++
			metrics.IngestReadingsTotal.WithLabelValues(reading.AssetID, "rejected").Inc()
		}
	}

	response.Success = response.Rejected == 0
	return response
}

// convertInput converts ReadingInput to a Reading
func (h *IngestHandler) convertInput(input ReadingInput) (*models.Reading, error) {
	ts, err := models.ParseTimestamp(input.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}

	return &models.Reading{
		AssetID:   input.AssetID,
		MetricID:  input.MetricID,
		Timestamp: ts,
		Value:     input.Value,
	}, nil
}

// generateBatchID generates a unique batch ID
func (h *IngestHandler) generateBatchID() string {
	counter := atomic.AddUint64(&h.batchCounter, 1)
	return fmt.Sprintf("%s-%d-%d", h.nodeID, time.Now().UnixNano(), counter)
}

// writeError writes an error response
func (h *IngestHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
