package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/services/case/internal/model"
)

func TestCan(t *testing.T) {
	tests := []struct {
		role model.Role
		cap  Capability
		want bool
	}{
		{model.RoleDeclarant, CapCreate, true},
		{model.RoleDeclarant, CapAdvance, false},
		{model.RoleDeclarant, CapArchive, false},
		{model.RoleAnalyst, CapCreate, false},
		{model.RoleAnalyst, CapAdvance, true},
		{model.RoleAnalyst, CapMarkFalseReport, true},
		{model.RoleAnalyst, CapEscalate, true},
		{model.RoleAnalyst, CapMonitor, true},
		{model.RoleAnalyst, CapArchive, false},
		{model.RoleAnalyst, CapExportReport, false},
		{model.RoleGovernance, CapAdvance, true},
		{model.RoleGovernance, CapArchive, true},
		{model.RoleGovernance, CapExportReport, true},
		{model.RoleGovernance, CapCreate, false},
		{model.Role("intruder"), CapCreate, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.cap), func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.role, tt.cap))
		})
	}
}

func TestCapabilitiesGovernanceSupersetOfAnalyst(t *testing.T) {
	for _, c := range Capabilities(model.RoleAnalyst) {
		assert.True(t, Can(model.RoleGovernance, c), "governance should hold %s", c)
	}
	assert.Equal(t, []Capability{CapCreate}, Capabilities(model.RoleDeclarant))
}

func TestRequire(t *testing.T) {
	analyst := model.User{ID: "u2", Role: model.RoleAnalyst}

	assert.NoError(t, Require(analyst, CapAdvance))

	err := Require(analyst, CapArchive)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
}

func TestScope(t *testing.T) {
	t.Run("analyst sees active queue only", func(t *testing.T) {
		f := Scope(model.RoleAnalyst, model.CaseFilter{})
		assert.ElementsMatch(t, []model.CaseStatus{model.StatusPending, model.StatusProcessing}, f.Status)
	})

	t.Run("analyst cannot widen to closed", func(t *testing.T) {
		f := Scope(model.RoleAnalyst, model.CaseFilter{Status: []model.CaseStatus{model.StatusClosed, model.StatusPending}})
		assert.Equal(t, []model.CaseStatus{model.StatusPending}, f.Status)

		f = Scope(model.RoleAnalyst, model.CaseFilter{Status: []model.CaseStatus{model.StatusFalseReport}})
		require.Len(t, f.Status, 1)
		assert.False(t, f.Status[0].Valid())
	})

	t.Run("governance defaults to status grouping", func(t *testing.T) {
		f := Scope(model.RoleGovernance, model.CaseFilter{Programme: "Village Tunis"})
		assert.Equal(t, model.SortStatusGroup, f.SortBy)
		assert.Empty(t, f.Status)
		assert.Equal(t, "Village Tunis", f.Programme)
	})

	t.Run("explicit sort kept", func(t *testing.T) {
		f := Scope(model.RoleGovernance, model.CaseFilter{SortBy: model.SortStep})
		assert.Equal(t, model.SortStep, f.SortBy)
	})
}

func TestVisible(t *testing.T) {
	closed := &model.IncidentCase{Status: model.StatusClosed}
	falseReport := &model.IncidentCase{Status: model.StatusFalseReport}
	open := &model.IncidentCase{Status: model.StatusProcessing}

	assert.True(t, Visible(model.RoleAnalyst, open))
	assert.False(t, Visible(model.RoleAnalyst, closed))
	assert.False(t, Visible(model.RoleAnalyst, falseReport))
	assert.True(t, Visible(model.RoleGovernance, closed))
	assert.True(t, Visible(model.RoleDeclarant, falseReport))
}

func TestRedact(t *testing.T) {
	reporter := model.User{ID: "u1", Role: model.RoleDeclarant}
	analyst := model.User{ID: "u2", Role: model.RoleAnalyst}

	anon := func() *model.IncidentCase {
		return &model.IncidentCase{
			ReporterID:  "u1",
			IsAnonymous: true,
			AuditTrail: []model.AuditEntry{
				{ActorID: "u1", Action: "CREATED", Role: model.RoleDeclarant},
				{ActorID: "u2", Action: "ESCALATED", Role: model.RoleAnalyst},
			},
		}
	}

	own := Redact(reporter, anon())
	assert.Equal(t, "u1", own.ReporterID)
	assert.Equal(t, "u1", own.AuditTrail[0].ActorID)

	shared := anon()
	trail := shared.AuditTrail
	hidden := Redact(analyst, shared)
	assert.Equal(t, model.ReporterAnonymous, hidden.ReporterID)
	assert.Equal(t, model.ReporterAnonymous, hidden.AuditTrail[0].ActorID)
	assert.Equal(t, "u2", hidden.AuditTrail[1].ActorID)
	assert.Equal(t, "u1", trail[0].ActorID)

	named := &model.IncidentCase{ReporterID: "u1"}
	assert.Equal(t, "u1", Redact(analyst, named).ReporterID)
}
