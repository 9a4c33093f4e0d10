// Package service provides business logic for incident case management.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/pkg/logger"
	"github.com/sos-echo/platform/services/case/internal/clock"
	"github.com/sos-echo/platform/services/case/internal/metrics"
	"github.com/sos-echo/platform/services/case/internal/model"
	"github.com/sos-echo/platform/services/case/internal/policy"
	"github.com/sos-echo/platform/services/case/internal/report"
	"github.com/sos-echo/platform/services/case/internal/repository"
	"github.com/sos-echo/platform/services/case/internal/workflow"
)

const reportCaseLimit = 10000

// CaseService composes the registry, workflow engine and role policy.
type CaseService struct {
	registry *repository.MemoryRegistry
	engine   *workflow.Engine
	metrics  *metrics.Collector
	validate *validator.Validate
	clock    clock.Clock
	logger   *slog.Logger
}

// NewCaseService creates a new case service.
func NewCaseService(
	registry *repository.MemoryRegistry,
	engine *workflow.Engine,
	collector *metrics.Collector,
	clk clock.Clock,
	log *slog.Logger,
) *CaseService {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &CaseService{
		registry: registry,
		engine:   engine,
		metrics:  collector,
		validate: validator.New(),
		clock:    clk,
		logger:   log,
	}
}

// CreateCase files a human-reported case.
func (s *CaseService) CreateCase(ctx context.Context, user model.User, req *model.CreateCaseRequest) (*model.IncidentCase, error) {
	if err := policy.Require(user, policy.CapCreate); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.Validation("request body is required")
	}
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	reporter := user.ID
	draft := model.Draft{
		Origin:        model.OriginManual,
		ReporterID:    reporter,
		Category:      req.Category,
		Programme:     req.Programme,
		Description:   req.Description,
		IsAnonymous:   req.IsAnonymous,
		ChildName:     req.ChildName,
		AllegedAuthor: req.AllegedAuthor,
		Urgency:       req.Urgency,
		Attachments:   req.Attachments,
	}

	created, err := s.registry.Create(ctx, draft, user)
	if err != nil {
		return nil, err
	}
	s.recordCreated(ctx, created)

	return policy.Redact(user, created), nil
}

// CreateDetectedCase files a case on behalf of the vision classifier.
func (s *CaseService) CreateDetectedCase(ctx context.Context, draft model.Draft) (*model.IncidentCase, error) {
	draft.Origin = model.OriginAI
	draft.ReporterID = model.ReporterSystemAI

	created, err := s.registry.Create(ctx, draft, model.SystemAI)
	if err != nil {
		return nil, err
	}
	s.recordCreated(ctx, created)

	return created, nil
}

func (s *CaseService) recordCreated(ctx context.Context, c *model.IncidentCase) {
	origin := model.OriginManual
	if c.IsAIDetected {
		origin = model.OriginAI
	}
	if s.metrics != nil {
		s.metrics.CaseCreated(string(origin))
	}
	logger.FromContext(ctx, s.logger).Info("case created",
		"case_id", c.ID,
		"origin", origin,
		"category", c.Category,
		"programme", c.Programme,
		"urgency", c.Urgency,
	)
}

// GetCase returns one case as user may see it.
func (s *CaseService) GetCase(ctx context.Context, user model.User, id string) (*model.IncidentCase, error) {
	c, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Visible(user.Role, c) {
		return nil, apperrors.Forbidden(fmt.Sprintf("case %s is outside the %s view", id, user.Role))
	}
	return policy.Redact(user, c), nil
}

// ListCases returns the cases in user's view matching filter.
func (s *CaseService) ListCases(ctx context.Context, user model.User, filter model.CaseFilter) (*model.CaseListResult, error) {
	scoped := policy.Scope(user.Role, filter)
	res, err := s.registry.Query(ctx, &scoped)
	if err != nil {
		return nil, err
	}
	for _, c := range res.Cases {
		policy.Redact(user, c)
	}
	return res, nil
}

// Apply runs one workflow operation against case id. A positive version must
// match the stored case version.
func (s *CaseService) Apply(ctx context.Context, user model.User, id string, version int64, op workflow.Operation) (*model.IncidentCase, error) {
	log := logger.FromContext(ctx, s.logger)

	if op == nil {
		return nil, apperrors.Validation("operation is required")
	}
	if err := policy.Require(user, op.Capability()); err != nil {
		s.countOperation(op, err)
		return nil, err
	}
	if err := s.validateStruct(op); err != nil {
		s.countOperation(op, err)
		return nil, err
	}

	updated, err := s.registry.Update(ctx, id, version, func(c *model.IncidentCase) error {
		return s.engine.Apply(c, user, op)
	})
	s.countOperation(op, err)
	if err != nil {
		log.Info("workflow operation rejected",
			"case_id", id,
			"operation", op.Name(),
			"code", apperrors.Code(err),
			"error", err,
		)
		return nil, err
	}

	log.Info("workflow operation applied",
		"case_id", id,
		"operation", op.Name(),
		"status", updated.Status,
		"step", updated.CurrentStep,
		"version", updated.Version,
	)
	return policy.Redact(user, updated), nil
}

func (s *CaseService) countOperation(op workflow.Operation, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = strings.ToLower(string(apperrors.Code(err)))
	}
	s.metrics.WorkflowOperation(op.Name(), result)
}

// Summary returns oversight counters for user's view, optionally for one programme.
func (s *CaseService) Summary(ctx context.Context, user model.User, programme string) (*model.CaseSummary, error) {
	scoped := policy.Scope(user.Role, model.CaseFilter{Programme: programme})
	return s.registry.Summary(ctx, &scoped)
}

// Export is a rendered report.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportReport renders the governance oversight table.
func (s *CaseService) ExportReport(ctx context.Context, user model.User, format, programme string) (*Export, error) {
	if err := policy.Require(user, policy.CapExportReport); err != nil {
		return nil, err
	}
	f, err := report.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	filter := policy.Scope(user.Role, model.CaseFilter{Programme: programme, Limit: reportCaseLimit})
	list, err := s.registry.Query(ctx, &filter)
	if err != nil {
		return nil, err
	}
	summary, err := s.registry.Summary(ctx, &filter)
	if err != nil {
		return nil, err
	}
	for _, c := range list.Cases {
		policy.Redact(user, c)
	}

	data := &report.Data{
		Title:       "SOS Villages d'Enfants - Governance oversight",
		Programme:   programme,
		GeneratedAt: s.clock.Now(),
		GeneratedBy: user.Name,
		Summary:     summary,
		Cases:       list.Cases,
	}
	body, err := report.Render(f, data)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to render report")
	}

	logger.FromContext(ctx, s.logger).Info("governance report exported",
		"format", f,
		"programme", programme,
		"cases", len(list.Cases),
		"size_bytes", len(body),
	)

	return &Export{
		Filename:    data.Filename(f),
		ContentType: f.ContentType(),
		Body:        body,
	}, nil
}

func (s *CaseService) validateStruct(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		appErr := apperrors.Validation("request validation failed")
		for _, fe := range verrs {
			appErr.WithDetail(strings.ToLower(fe.Field()), fe.Tag())
		}
		return appErr
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	return apperrors.Validation(err.Error())
}
