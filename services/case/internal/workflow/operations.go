package workflow

import (
	"github.com/sos-echo/platform/services/case/internal/model"
	"github.com/sos-echo/platform/services/case/internal/policy"
)

// Operation is one explicit workflow transition. Each variant carries only the
// fields it is allowed to change.
type Operation interface {
	// Name identifies the operation in logs and metrics.
	Name() string
	// Capability is what the acting role must hold.
	Capability() policy.Capability
}

// AdvanceStep completes a workflow step with its document. Step 0 means the
// case's current step.
type AdvanceStep struct {
	Step     int    `json:"step,omitempty"`
	Document string `json:"document" validate:"required,max=20000"`
}

func (AdvanceStep) Name() string                  { return "advance" }
func (AdvanceStep) Capability() policy.Capability { return policy.CapAdvance }

// MarkFalseReport classifies a case as unfounded. Terminal.
type MarkFalseReport struct {
	Reason string `json:"reason,omitempty" validate:"max=2000"`
}

func (MarkFalseReport) Name() string                  { return "false_report" }
func (MarkFalseReport) Capability() policy.Capability { return policy.CapMarkFalseReport }

// Escalate raises urgency to critical and notifies governance.
type Escalate struct {
	Reason string `json:"reason,omitempty" validate:"max=2000"`
}

func (Escalate) Name() string                  { return "escalate" }
func (Escalate) Capability() policy.Capability { return policy.CapEscalate }

// Archive records the governance decision and closes the case for good.
type Archive struct {
	DecisionNote string `json:"decision_note" validate:"required,max=20000"`
	Override     bool   `json:"override,omitempty"`
}

func (Archive) Name() string                  { return "archive" }
func (Archive) Capability() policy.Capability { return policy.CapArchive }

// Reclassify changes the case category.
type Reclassify struct {
	Category model.Category `json:"category" validate:"required"`
}

func (Reclassify) Name() string                  { return "reclassify" }
func (Reclassify) Capability() policy.Capability { return policy.CapReclassify }

// AttachEvidence appends an evidence reference.
type AttachEvidence struct {
	Reference string `json:"reference" validate:"required,max=2048"`
}

func (AttachEvidence) Name() string                  { return "attach_evidence" }
func (AttachEvidence) Capability() policy.Capability { return policy.CapAttachEvidence }
