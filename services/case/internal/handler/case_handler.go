// Package handler provides HTTP handlers for the case platform.
package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/services/case/internal/model"
	"github.com/sos-echo/platform/services/case/internal/service"
	"github.com/sos-echo/platform/services/case/internal/workflow"
)

const maxOperationBody = 1 << 20

// CaseHandler handles HTTP requests for case management.
type CaseHandler struct {
	service *service.CaseService
	logger  *slog.Logger
}

// NewCaseHandler creates a new case handler.
func NewCaseHandler(service *service.CaseService, log *slog.Logger) *CaseHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CaseHandler{service: service, logger: log}
}

// RegisterRoutes registers case management routes.
func (h *CaseHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/cases", h.CreateCase).Methods("POST")
	r.HandleFunc("/cases", h.ListCases).Methods("GET")
	r.HandleFunc("/cases/summary", h.GetSummary).Methods("GET")
	r.HandleFunc("/cases/{id}", h.GetCase).Methods("GET")

	r.HandleFunc("/cases/{id}/advance", h.operation(func() workflow.Operation { return &workflow.AdvanceStep{} })).Methods("POST")
	r.HandleFunc("/cases/{id}/false-report", h.operation(func() workflow.Operation { return &workflow.MarkFalseReport{} })).Methods("POST")
	r.HandleFunc("/cases/{id}/escalate", h.operation(func() workflow.Operation { return &workflow.Escalate{} })).Methods("POST")
	r.HandleFunc("/cases/{id}/archive", h.operation(func() workflow.Operation { return &workflow.Archive{} })).Methods("POST")
	r.HandleFunc("/cases/{id}/reclassify", h.operation(func() workflow.Operation { return &workflow.Reclassify{} })).Methods("POST")
	r.HandleFunc("/cases/{id}/attachments", h.operation(func() workflow.Operation { return &workflow.AttachEvidence{} })).Methods("POST")

	r.HandleFunc("/workflow/steps", h.ListSteps).Methods("GET")
	r.HandleFunc("/governance/report", h.ExportReport).Methods("GET")
}

// CreateCase files a new case.
func (h *CaseHandler) CreateCase(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, r, h.logger, apperrors.Unauthorized("no session"))
		return
	}

	var req model.CreateCaseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	caseObj, err := h.service.CreateCase(r.Context(), user, &req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, caseObj)
}

// GetCase retrieves a case by ID.
func (h *CaseHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, r, h.logger, apperrors.Unauthorized("no session"))
		return
	}

	caseObj, err := h.service.GetCase(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, caseObj)
}

// ListCases retrieves the cases in the caller's view.
func (h *CaseHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, r, h.logger, apperrors.Unauthorized("no session"))
		return
	}

	filter, err := parseCaseFilter(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.service.ListCases(r.Context(), user, filter)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetSummary retrieves oversight counters.
func (h *CaseHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, r, h.logger, apperrors.Unauthorized("no session"))
		return
	}

	summary, err := h.service.Summary(r.Context(), user, r.URL.Query().Get("programme"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// ListSteps returns the workflow step labels.
func (h *CaseHandler) ListSteps(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"steps":          workflow.Steps(),
		"terminal_label": workflow.StepLabel(model.MaxStep + 1),
	})
}

// ExportReport streams the governance oversight report.
func (h *CaseHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, r, h.logger, apperrors.Unauthorized("no session"))
		return
	}

	query := r.URL.Query()
	export, err := h.service.ExportReport(r.Context(), user, query.Get("format"), query.Get("programme"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Body)))
	w.WriteHeader(http.StatusOK)
	w.Write(export.Body)
}

// operation decodes a workflow operation and an optional expected version
// (body "version" or If-Match header) and applies it.
func (h *CaseHandler) operation(newOp func() workflow.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			respondError(w, r, h.logger, apperrors.Unauthorized("no session"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxOperationBody))
		if err != nil {
			respondError(w, r, h.logger, apperrors.BadRequest("failed to read request body"))
			return
		}

		op := newOp()
		var envelope struct {
			Version int64 `json:"version"`
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			if err := json.Unmarshal(body, op); err != nil {
				respondError(w, r, h.logger, apperrors.BadRequest("invalid request body"))
				return
			}
			if err := json.Unmarshal(body, &envelope); err != nil {
				respondError(w, r, h.logger, apperrors.BadRequest("invalid version"))
				return
			}
		}

		version := envelope.Version
		if version == 0 {
			if version, err = ifMatchVersion(r); err != nil {
				respondError(w, r, h.logger, err)
				return
			}
		}

		updated, err := h.service.Apply(r.Context(), user, mux.Vars(r)["id"], version, op)
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}

		w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(updated.Version, 10)))
		respondJSON(w, http.StatusOK, updated)
	}
}

func ifMatchVersion(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return 0, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	v, err := strconv.ParseInt(strings.Trim(raw, `"`), 10, 64)
	if err != nil || v < 0 {
		return 0, apperrors.BadRequest("If-Match must carry a case version")
	}
	return v, nil
}

func parseCaseFilter(r *http.Request) (model.CaseFilter, error) {
	query := r.URL.Query()
	filter := model.CaseFilter{
		Programme: query.Get("programme"),
		Search:    query.Get("search"),
		SortBy:    model.SortOrder(query.Get("sort_by")),
	}

	for _, s := range splitValues(query["status"]) {
		filter.Status = append(filter.Status, model.CaseStatus(s))
	}
	for _, c := range splitValues(query["category"]) {
		filter.Category = append(filter.Category, model.Category(c))
	}
	for _, u := range splitValues(query["urgency"]) {
		filter.Urgency = append(filter.Urgency, model.Urgency(u))
	}

	if raw := query.Get("ai_detected"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.Validation("ai_detected must be a boolean")
		}
		filter.AIDetected = &v
	}

	var err error
	if filter.Limit, err = intParam(query.Get("limit")); err != nil {
		return filter, err
	}
	if filter.Offset, err = intParam(query.Get("offset")); err != nil {
		return filter, err
	}

	switch filter.SortBy {
	case "", model.SortNewest, model.SortStep, model.SortStatusGroup:
	default:
		return filter, apperrors.Validation(fmt.Sprintf("unknown sort_by %q", filter.SortBy))
	}
	return filter, nil
}

// splitValues accepts both repeated and comma-separated query values.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.Validation(fmt.Sprintf("invalid integer %q", raw))
	}
	return v, nil
}
