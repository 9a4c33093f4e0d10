// Package workflow implements the case step and status state machine.
package workflow

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/services/case/internal/clock"
	"github.com/sos-echo/platform/services/case/internal/model"
	"github.com/sos-echo/platform/services/case/internal/policy"
)

// Audit actions written by the engine.
const (
	ActionFalseReport      = "FALSE_REPORT"
	ActionEscalated        = "ESCALATED"
	ActionArchived         = "ARCHIVED"
	ActionReclassified     = "RECLASSIFIED"
	ActionEvidenceAttached = "EVIDENCE_ATTACHED"
)

// StepCompleteAction is the audit action for completing step n.
func StepCompleteAction(step int) string {
	return fmt.Sprintf("STEP_%d_COMPLETE", step)
}

// Step describes one workflow step.
type Step struct {
	Number int    `json:"number"`
	Label  string `json:"label"`
	Field  string `json:"document_field"`
}

var steps = []Step{
	{Number: 1, Label: "Initial Report & Notifications", Field: "dpe_report"},
	{Number: 2, Label: "Full Clinical Evaluation", Field: "full_evaluation"},
	{Number: 3, Label: "Action Plan Definition", Field: "action_plan"},
	{Number: 4, Label: "Follow-up & Final Reports", Field: "follow_up_report"},
	{Number: 5, Label: "Definitive Closing Notice", Field: "closing_notice"},
}

// StepLabel returns the display label for step. Any value outside 1..5 is "Archived".
func StepLabel(step int) string {
	if step >= 1 && step <= len(steps) {
		return steps[step-1].Label
	}
	return "Archived"
}

// Steps lists the five workflow steps in order.
func Steps() []Step {
	return append([]Step(nil), steps...)
}

// Engine applies workflow operations to cases.
type Engine struct {
	clock  clock.Clock
	logger *slog.Logger
}

// NewEngine creates a workflow engine.
func NewEngine(clk clock.Clock, logger *slog.Logger) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{clock: clk, logger: logger}
}

// Apply checks that actor may perform op and mutates c accordingly, appending
// exactly one audit entry. On error c must be discarded; the registry hands the
// engine a private copy so a rejected operation never reaches stored state.
func (e *Engine) Apply(c *model.IncidentCase, actor model.User, op Operation) error {
	if op == nil {
		return apperrors.Validation("operation is required")
	}
	if v := reflect.ValueOf(op); v.Kind() == reflect.Pointer && v.IsNil() {
		return apperrors.Validation("operation is required")
	}
	if err := policy.Require(actor, op.Capability()); err != nil {
		return err
	}

	var (
		action string
		note   string
		err    error
	)

	switch o := op.(type) {
	case AdvanceStep:
		action, err = e.advance(c, o)
	case *AdvanceStep:
		action, err = e.advance(c, *o)
	case MarkFalseReport:
		action, note, err = e.markFalseReport(c, o)
	case *MarkFalseReport:
		action, note, err = e.markFalseReport(c, *o)
	case Escalate:
		action, note, err = e.escalate(c, o)
	case *Escalate:
		action, note, err = e.escalate(c, *o)
	case Archive:
		action, note, err = e.archive(c, actor, o)
	case *Archive:
		action, note, err = e.archive(c, actor, *o)
	case Reclassify:
		action, note, err = e.reclassify(c, o)
	case *Reclassify:
		action, note, err = e.reclassify(c, *o)
	case AttachEvidence:
		action, note, err = e.attachEvidence(c, o)
	case *AttachEvidence:
		action, note, err = e.attachEvidence(c, *o)
	default:
		return apperrors.Validation(fmt.Sprintf("unsupported operation %T", op))
	}
	if err != nil {
		return err
	}

	e.appendAudit(c, actor, action, note)
	return nil
}

func (e *Engine) advance(c *model.IncidentCase, op AdvanceStep) (string, error) {
	doc := strings.TrimSpace(op.Document)
	if doc == "" {
		return "", apperrors.Validation("document text is required")
	}
	if c.Status.Terminal() {
		return "", apperrors.AlreadyCompleted(fmt.Sprintf("case %s is %s", c.ID, c.Status))
	}

	step := op.Step
	if step == 0 {
		step = c.CurrentStep
	}
	switch {
	case step < 1 || step > model.MaxStep:
		return "", apperrors.Validation(fmt.Sprintf("step must be between 1 and %d", model.MaxStep))
	case step < c.CurrentStep || c.Document(step) != "":
		return "", apperrors.AlreadyCompleted(fmt.Sprintf("step %d of case %s is already completed", step, c.ID)).
			WithDetail("step", step)
	case step > c.CurrentStep:
		return "", apperrors.Validation(fmt.Sprintf("case %s is at step %d, cannot complete step %d", c.ID, c.CurrentStep, step))
	}

	c.SetDocument(step, doc)
	if step < model.MaxStep {
		c.CurrentStep = step + 1
		c.Status = model.StatusProcessing
	} else {
		c.Status = model.StatusClosed
	}
	return StepCompleteAction(step), nil
}

func (e *Engine) markFalseReport(c *model.IncidentCase, op MarkFalseReport) (string, string, error) {
	if c.Status.Terminal() {
		return "", "", apperrors.AlreadyCompleted(fmt.Sprintf("case %s is %s", c.ID, c.Status))
	}
	c.Status = model.StatusFalseReport
	return ActionFalseReport, strings.TrimSpace(op.Reason), nil
}

func (e *Engine) escalate(c *model.IncidentCase, op Escalate) (string, string, error) {
	if c.Status.Terminal() {
		return "", "", apperrors.AlreadyCompleted(fmt.Sprintf("case %s is %s", c.ID, c.Status))
	}
	previous := c.Urgency
	c.Urgency = model.UrgencyCritical

	e.logger.Warn("case escalated to governance",
		"case_id", c.ID,
		"programme", c.Programme,
		"previous_urgency", previous,
	)
	return ActionEscalated, strings.TrimSpace(op.Reason), nil
}

func (e *Engine) archive(c *model.IncidentCase, actor model.User, op Archive) (string, string, error) {
	decision := strings.TrimSpace(op.DecisionNote)
	if decision == "" {
		return "", "", apperrors.Validation("decision note is required")
	}
	if c.Status == model.StatusFalseReport {
		return "", "", apperrors.AlreadyCompleted(fmt.Sprintf("case %s was classified as a false report", c.ID))
	}
	if c.DecisionNote != "" || c.ArchivedAt != nil {
		return "", "", apperrors.AlreadyCompleted(fmt.Sprintf("case %s is already archived", c.ID))
	}
	if c.ClosingNotice == "" && !op.Override {
		return "", "", apperrors.Validation(fmt.Sprintf("case %s has no closing notice; archive requires step %d or an override", c.ID, model.MaxStep))
	}

	now := e.clock.Now()
	c.DecisionNote = decision
	c.ArchivedAt = &now
	c.ArchivedBy = actor.ID
	c.Status = model.StatusClosed

	note := ""
	if op.Override && c.ClosingNotice == "" {
		note = "override"
	}
	return ActionArchived, note, nil
}

func (e *Engine) reclassify(c *model.IncidentCase, op Reclassify) (string, string, error) {
	if !op.Category.Valid() {
		return "", "", apperrors.Validation(fmt.Sprintf("unknown category %q", op.Category))
	}
	if c.Status.Terminal() {
		return "", "", apperrors.AlreadyCompleted(fmt.Sprintf("case %s is %s", c.ID, c.Status))
	}
	note := fmt.Sprintf("%s -> %s", c.Category, op.Category)
	c.Category = op.Category
	return ActionReclassified, note, nil
}

func (e *Engine) attachEvidence(c *model.IncidentCase, op AttachEvidence) (string, string, error) {
	ref := strings.TrimSpace(op.Reference)
	if ref == "" {
		return "", "", apperrors.Validation("evidence reference is required")
	}
	if c.Status.Terminal() {
		return "", "", apperrors.AlreadyCompleted(fmt.Sprintf("case %s is %s", c.ID, c.Status))
	}
	c.Attachments = append(c.Attachments, ref)
	return ActionEvidenceAttached, "", nil
}

// appendAudit records one entry whose timestamp never precedes the last one.
func (e *Engine) appendAudit(c *model.IncidentCase, actor model.User, action, note string) {
	ts := e.clock.Now()
	if last, ok := c.LastAudit(); ok && ts.Before(last.Timestamp) {
		ts = last.Timestamp
	}
	c.AuditTrail = append(c.AuditTrail, model.AuditEntry{
		ID:        uuid.New().String(),
		ActorID:   actor.ID,
		Action:    action,
		Timestamp: ts,
		Role:      actor.Role,
		Note:      note,
	})
}
