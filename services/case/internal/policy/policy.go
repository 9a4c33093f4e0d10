// Package policy decides what each role may see and do.
package policy

import (
	"fmt"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/services/case/internal/model"
)

// Capability names one permitted action.
type Capability string

const (
	CapCreate          Capability = "create"
	CapAdvance         Capability = "advance"
	CapMarkFalseReport Capability = "mark_false_report"
	CapEscalate        Capability = "escalate"
	CapArchive         Capability = "archive"
	CapReclassify      Capability = "reclassify"
	CapAttachEvidence  Capability = "attach_evidence"
	CapMonitor         Capability = "monitor"
	CapExportReport    Capability = "export_report"
)

var analystCaps = []Capability{
	CapAdvance, CapMarkFalseReport, CapEscalate, CapReclassify, CapAttachEvidence, CapMonitor,
}

var grants = map[model.Role]map[Capability]bool{
	model.RoleDeclarant:  set(CapCreate),
	model.RoleAnalyst:    set(analystCaps...),
	model.RoleGovernance: set(append(append([]Capability{}, analystCaps...), CapArchive, CapExportReport)...),
	// The ingestion path files cases on behalf of the classifier.
	model.RoleSystem: set(CapCreate),
}

func set(caps ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return m
}

// Can reports whether role holds capability.
func Can(role model.Role, capability Capability) bool {
	return grants[role][capability]
}

// Capabilities lists what role may do, in a fixed order.
func Capabilities(role model.Role) []Capability {
	all := []Capability{
		CapCreate, CapAdvance, CapMarkFalseReport, CapEscalate, CapArchive,
		CapReclassify, CapAttachEvidence, CapMonitor, CapExportReport,
	}
	out := make([]Capability, 0, len(all))
	for _, c := range all {
		if Can(role, c) {
			out = append(out, c)
		}
	}
	return out
}

// Require returns a FORBIDDEN error unless user holds capability.
func Require(user model.User, capability Capability) error {
	if Can(user.Role, capability) {
		return nil
	}
	return apperrors.Forbidden(fmt.Sprintf("role %q may not %s", user.Role, capability)).
		WithDetail("capability", string(capability))
}

// ViewFilter returns the base registry filter for role's dashboard.
func ViewFilter(role model.Role) model.CaseFilter {
	switch role {
	case model.RoleAnalyst:
		return model.CaseFilter{
			Status: []model.CaseStatus{model.StatusPending, model.StatusProcessing},
			SortBy: model.SortNewest,
		}
	case model.RoleGovernance:
		return model.CaseFilter{SortBy: model.SortStatusGroup}
	default:
		return model.CaseFilter{SortBy: model.SortNewest}
	}
}

// Scope narrows a caller-supplied filter to what role may see. Requested
// statuses outside the role's view are dropped, and an empty intersection
// matches nothing.
func Scope(role model.Role, requested model.CaseFilter) model.CaseFilter {
	base := ViewFilter(role)
	out := requested
	if out.SortBy == "" {
		out.SortBy = base.SortBy
	}
	if len(base.Status) == 0 {
		return out
	}
	if len(requested.Status) == 0 {
		out.Status = base.Status
		return out
	}
	allowed := make(map[model.CaseStatus]bool, len(base.Status))
	for _, s := range base.Status {
		allowed[s] = true
	}
	out.Status = nil
	for _, s := range requested.Status {
		if allowed[s] {
			out.Status = append(out.Status, s)
		}
	}
	if len(out.Status) == 0 {
		out.Status = []model.CaseStatus{"none"}
	}
	return out
}

// Visible reports whether role may read c.
func Visible(role model.Role, c *model.IncidentCase) bool {
	switch role {
	case model.RoleAnalyst:
		return !c.Status.Terminal()
	case model.RoleDeclarant, model.RoleGovernance:
		return true
	default:
		return false
	}
}

// Redact hides the reporter of an anonymous case from anyone but the reporter,
// including the audit entries the reporter wrote.
// It modifies c in place; callers pass registry copies.
func Redact(user model.User, c *model.IncidentCase) *model.IncidentCase {
	if !c.IsAnonymous || c.ReporterID == user.ID {
		return c
	}
	reporter := c.ReporterID
	c.ReporterID = model.ReporterAnonymous
	trail := make([]model.AuditEntry, len(c.AuditTrail))
	copy(trail, c.AuditTrail)
	for i := range trail {
		if trail[i].ActorID == reporter {
			trail[i].ActorID = model.ReporterAnonymous
		}
	}
	c.AuditTrail = trail
	return c
}
