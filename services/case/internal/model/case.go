// Package model provides data models for incident case management.
package model

import (
	"time"
)

// Category classifies what an incident is about.
type Category string

const (
	CategoryHealth   Category = "health"
	CategoryBehavior Category = "behavior"
	CategoryViolence Category = "violence"
	CategoryAbuse    Category = "abuse"
	CategoryOther    Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryHealth, CategoryBehavior, CategoryViolence, CategoryAbuse, CategoryOther}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Urgency represents how pressing a case is. Also used as the classifier risk level.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Rank orders urgencies from low (1) to critical (4). Unknown values rank 0.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	case UrgencyCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether u is a known urgency level.
func (u Urgency) Valid() bool {
	return u.Rank() > 0
}

// CaseStatus represents case status values.
type CaseStatus string

const (
	StatusPending     CaseStatus = "pending"
	StatusProcessing  CaseStatus = "processing"
	StatusFalseReport CaseStatus = "false-report"
	StatusClosed      CaseStatus = "closed"
)

// Terminal reports whether no workflow operation may change the status any more.
func (s CaseStatus) Terminal() bool {
	return s == StatusClosed || s == StatusFalseReport
}

// Valid reports whether s is a known status.
func (s CaseStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusFalseReport, StatusClosed:
		return true
	}
	return false
}

// Origin tells how a case entered the registry.
type Origin string

const (
	OriginManual Origin = "manual"
	OriginAI     Origin = "ai"
)

// Well-known reporter identifiers.
const (
	ReporterSystemAI  = "SYSTEM_AI"
	ReporterAnonymous = "ANONYMOUS"
)

// MaxStep is the last workflow step.
const MaxStep = 5

// AuditEntry records one mutation of a case.
type AuditEntry struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
	Note      string    `json:"note,omitempty"`
}

// IncidentCase is one reported or detected safety event tracked through the workflow.
type IncidentCase struct {
	ID          string    `json:"id"` // SOS-#### or AI-####
	CreatedAt   time.Time `json:"created_at"`
	ReporterID  string    `json:"reporter_id"`
	Category    Category  `json:"category"`
	Programme   string    `json:"programme"`
	Description string    `json:"description"`
	IsAnonymous bool      `json:"is_anonymous"`

	ChildName     string `json:"child_name,omitempty"`
	AllegedAuthor string `json:"alleged_author,omitempty"`

	Urgency     Urgency    `json:"urgency"`
	Status      CaseStatus `json:"status"`
	CurrentStep int        `json:"current_step"`

	// Step documents, each written exactly once.
	DPEReport      string `json:"dpe_report,omitempty"`
	FullEvaluation string `json:"full_evaluation,omitempty"`
	ActionPlan     string `json:"action_plan,omitempty"`
	FollowUpReport string `json:"follow_up_report,omitempty"`
	ClosingNotice  string `json:"closing_notice,omitempty"`

	// Governance
	DecisionNote string     `json:"decision_note,omitempty"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
	ArchivedBy   string     `json:"archived_by,omitempty"`

	Attachments []string     `json:"attachments"`
	AuditTrail  []AuditEntry `json:"audit_trail"`

	// Classifier metadata, set only on AI-originated cases.
	IsAIDetected          bool           `json:"is_ai_detected"`
	AggressionScore       int            `json:"aggression_score,omitempty"`
	EscalationProbability int            `json:"escalation_probability,omitempty"`
	ObservedBehaviors     []string       `json:"observed_behaviors,omitempty"`
	DetectedFaces         []DetectedFace `json:"detected_faces,omitempty"`

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can never alias registry state.
func (c *IncidentCase) Clone() *IncidentCase {
	if c == nil {
		return nil
	}
	out := *c
	if c.ArchivedAt != nil {
		t := *c.ArchivedAt
		out.ArchivedAt = &t
	}
	out.Attachments = append([]string(nil), c.Attachments...)
	out.AuditTrail = append([]AuditEntry(nil), c.AuditTrail...)
	out.ObservedBehaviors = append([]string(nil), c.ObservedBehaviors...)
	out.DetectedFaces = append([]DetectedFace(nil), c.DetectedFaces...)
	if out.Attachments == nil {
		out.Attachments = []string{}
	}
	if out.AuditTrail == nil {
		out.AuditTrail = []AuditEntry{}
	}
	return &out
}

// Document returns the step document for step, or "" for unknown steps.
func (c *IncidentCase) Document(step int) string {
	switch step {
	case 1:
		return c.DPEReport
	case 2:
		return c.FullEvaluation
	case 3:
		return c.ActionPlan
	case 4:
		return c.FollowUpReport
	case 5:
		return c.ClosingNotice
	}
	return ""
}

// SetDocument writes the step document for step. It reports false for unknown steps.
func (c *IncidentCase) SetDocument(step int, text string) bool {
	switch step {
	case 1:
		c.DPEReport = text
	case 2:
		c.FullEvaluation = text
	case 3:
		c.ActionPlan = text
	case 4:
		c.FollowUpReport = text
	case 5:
		c.ClosingNotice = text
	default:
		return false
	}
	return true
}

// LastAudit returns the most recent audit entry, if any.
func (c *IncidentCase) LastAudit() (AuditEntry, bool) {
	if len(c.AuditTrail) == 0 {
		return AuditEntry{}, false
	}
	return c.AuditTrail[len(c.AuditTrail)-1], true
}

// Draft carries the caller-supplied fields of a case about to be created.
type Draft struct {
	Origin        Origin
	ReporterID    string
	Category      Category
	Programme     string
	Description   string
	IsAnonymous   bool
	ChildName     string
	AllegedAuthor string
	Urgency       Urgency
	Attachments   []string

	AggressionScore       int
	EscalationProbability int
	ObservedBehaviors     []string
	DetectedFaces         []DetectedFace
}

// CreateCaseRequest represents a request to file a new case.
type CreateCaseRequest struct {
	Category      Category `json:"category" validate:"required"`
	Programme     string   `json:"programme" validate:"required,max=200"`
	Description   string   `json:"description" validate:"required,max=10000"`
	IsAnonymous   bool     `json:"is_anonymous"`
	ChildName     string   `json:"child_name,omitempty" validate:"max=200"`
	AllegedAuthor string   `json:"alleged_author,omitempty" validate:"max=200"`
	Urgency       Urgency  `json:"urgency,omitempty"`
	Attachments   []string `json:"attachments,omitempty" validate:"max=20,dive,required"`
}

// SortOrder names a registry ordering.
type SortOrder string

const (
	SortNewest      SortOrder = "newest"
	SortStep        SortOrder = "step"
	SortStatusGroup SortOrder = "status"
)

// CaseFilter defines filters for listing cases.
type CaseFilter struct {
	Status     []CaseStatus `json:"status,omitempty"`
	Programme  string       `json:"programme,omitempty"`
	Category   []Category   `json:"category,omitempty"`
	Urgency    []Urgency    `json:"urgency,omitempty"`
	AIDetected *bool        `json:"ai_detected,omitempty"`
	Search     string       `json:"search,omitempty"`
	SortBy     SortOrder    `json:"sort_by,omitempty"`
	Limit      int          `json:"limit,omitempty"`
	Offset     int          `json:"offset,omitempty"`
}

// CaseListResult contains paginated case results.
type CaseListResult struct {
	Cases   []*IncidentCase `json:"cases"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"has_more"`
}

// CaseSummary provides the oversight counters.
type CaseSummary struct {
	TotalCases       int64                `json:"total_cases"`
	CriticalCases    int64                `json:"critical_cases"`
	PendingCases     int64                `json:"pending_cases"`
	ProcessingCases  int64                `json:"processing_cases"`
	ClosedCases      int64                `json:"closed_cases"`
	FalseReports     int64                `json:"false_reports"`
	AIDetectedCases  int64                `json:"ai_detected_cases"`
	AwaitingArchival int64                `json:"awaiting_archival"`
	ByProgramme      map[string]int64     `json:"by_programme"`
	ByCategory       map[Category]int64   `json:"by_category"`
	ByStep           map[int]int64        `json:"by_step"`
	ByStatus         map[CaseStatus]int64 `json:"by_status"`
}
