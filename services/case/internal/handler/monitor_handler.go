package handler

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/services/case/internal/alertlog"
	"github.com/sos-echo/platform/services/case/internal/model"
	"github.com/sos-echo/platform/services/case/internal/monitor"
	"github.com/sos-echo/platform/services/case/internal/policy"
)

const maxFrameBytes = 8 << 20

// MonitorHandler exposes the safety monitor to analysts and governance.
type MonitorHandler struct {
	monitor *monitor.Monitor
	logger  *slog.Logger
}

// NewMonitorHandler creates a new monitor handler.
func NewMonitorHandler(m *monitor.Monitor, log *slog.Logger) *MonitorHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MonitorHandler{monitor: m, logger: log}
}

// RegisterRoutes registers monitor routes.
func (h *MonitorHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/monitor/frames", h.authorized(h.SubmitFrame)).Methods("POST")
	r.HandleFunc("/monitor/retry", h.authorized(h.Retry)).Methods("POST")
	r.HandleFunc("/monitor/status", h.authorized(h.Status)).Methods("GET")
	r.HandleFunc("/monitor/alerts", h.authorized(h.ListAlerts)).Methods("GET")
}

func (h *MonitorHandler) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			respondError(w, r, h.logger, apperrors.Unauthorized("no session"))
			return
		}
		if err := policy.Require(user, policy.CapMonitor); err != nil {
			respondError(w, r, h.logger, err)
			return
		}
		next(w, r)
	}
}

// SubmitFrame classifies one camera frame. The body is raw JPEG, or a JSON
// object {"image": "<base64 or data URL>"}.
func (h *MonitorHandler) SubmitFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := readFrame(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	entry, err := h.monitor.Capture(r.Context(), frame)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// Retry cancels the rate-limit cool-down.
func (h *MonitorHandler) Retry(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.monitor.Retry())
}

// Status reports busy and cool-down state.
func (h *MonitorHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.monitor.Status())
}

// ListAlerts returns the assessment log, newest first.
func (h *MonitorHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := &alertlog.Filter{}

	for _, level := range splitValues(query["risk_level"]) {
		filter.RiskLevels = append(filter.RiskLevels, model.Urgency(level))
	}
	if raw := query.Get("alerts_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, r, h.logger, apperrors.Validation("alerts_only must be a boolean"))
			return
		}
		filter.AlertsOnly = v
	}
	if raw := query.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, r, h.logger, apperrors.Validation("since must be an RFC 3339 timestamp"))
			return
		}
		filter.Since = &since
	}

	var err error
	if filter.Limit, err = intParam(query.Get("limit")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if filter.Offset, err = intParam(query.Get("offset")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.monitor.Alerts(r.Context(), filter)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func readFrame(r *http.Request) ([]byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Image string `json:"image"`
		}
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		data := req.Image
		if i := strings.Index(data, ";base64,"); i >= 0 {
			data = data[i+len(";base64,"):]
		}
		frame, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, apperrors.Validation("image must be base64 encoded")
		}
		return frame, nil
	}

	frame, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBytes+1))
	if err != nil {
		return nil, apperrors.BadRequest("failed to read frame")
	}
	if len(frame) > maxFrameBytes {
		return nil, apperrors.Validation("frame exceeds 8 MiB")
	}
	return frame, nil
}
