// Package repository provides the in-memory incident registry.
package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/services/case/internal/clock"
	"github.com/sos-echo/platform/services/case/internal/model"
)

// Audit actions written by the registry itself.
const (
	ActionCreated      = "CREATED"
	ActionAutoDetected = "AUTO_DETECTED"
)

const (
	defaultListLimit = 100
	firstManualSeq   = 4000
	firstAISeq       = 1
)

// MemoryRegistry is the single source of truth for incident cases.
// Every read returns a copy and every write replaces a whole case under the
// write lock, so readers never observe a partially built or partially patched case.
type MemoryRegistry struct {
	mu    sync.RWMutex
	cases map[string]*model.IncidentCase
	order []string // insertion order, oldest first
	seq   map[model.Origin]int
	clock clock.Clock
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry(clk clock.Clock) *MemoryRegistry {
	if clk == nil {
		clk = clock.System{}
	}
	return &MemoryRegistry{
		cases: make(map[string]*model.IncidentCase),
		seq: map[model.Origin]int{
			model.OriginManual: firstManualSeq,
			model.OriginAI:     firstAISeq,
		},
		clock: clk,
	}
}

// Create stores a new case built from draft and returns a copy of it.
func (r *MemoryRegistry) Create(ctx context.Context, draft model.Draft, actor model.User) (*model.IncidentCase, error) {
	if err := validateDraft(&draft); err != nil {
		return nil, err
	}

	action := ActionCreated
	if draft.Origin == model.OriginAI {
		action = ActionAutoDetected
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID(draft.Origin)
	now := r.clock.Now()

	caseObj := &model.IncidentCase{
		ID:                    id,
		CreatedAt:             now,
		ReporterID:            draft.ReporterID,
		Category:              draft.Category,
		Programme:             strings.TrimSpace(draft.Programme),
		Description:           draft.Description,
		IsAnonymous:           draft.IsAnonymous,
		ChildName:             draft.ChildName,
		AllegedAuthor:         draft.AllegedAuthor,
		Urgency:               draft.Urgency,
		Status:                model.StatusPending,
		CurrentStep:           1,
		Attachments:           append([]string{}, draft.Attachments...),
		IsAIDetected:          draft.Origin == model.OriginAI,
		AggressionScore:       draft.AggressionScore,
		EscalationProbability: draft.EscalationProbability,
		ObservedBehaviors:     append([]string(nil), draft.ObservedBehaviors...),
		DetectedFaces:         append([]model.DetectedFace(nil), draft.DetectedFaces...),
		AuditTrail: []model.AuditEntry{{
			ID:        uuid.New().String(),
			ActorID:   actor.ID,
			Action:    action,
			Timestamp: now,
			Role:      actor.Role,
		}},
		Version:   1,
		UpdatedAt: now,
	}

	r.cases[id] = caseObj
	r.order = append(r.order, id)

	return caseObj.Clone(), nil
}

// Get retrieves a copy of the case with the given id.
func (r *MemoryRegistry) Get(ctx context.Context, id string) (*model.IncidentCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caseObj, ok := r.cases[id]
	if !ok {
		return nil, apperrors.NotFound("case", id)
	}
	return caseObj.Clone(), nil
}

// Update applies mutate to a private copy of the case and stores the copy only
// if mutate succeeds. A non-zero expectedVersion must match the stored version.
func (r *MemoryRegistry) Update(ctx context.Context, id string, expectedVersion int64, mutate func(*model.IncidentCase) error) (*model.IncidentCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.cases[id]
	if !ok {
		return nil, apperrors.NotFound("case", id)
	}
	if expectedVersion > 0 && current.Version != expectedVersion {
		return nil, apperrors.Conflict(fmt.Sprintf("case %s was modified concurrently", id)).
			WithDetail("expected_version", expectedVersion).
			WithDetail("current_version", current.Version)
	}

	working := current.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}

	// Identity and creation facts never change through an update.
	working.ID = current.ID
	working.CreatedAt = current.CreatedAt
	working.Description = current.Description
	working.Version = current.Version + 1
	working.UpdatedAt = r.clock.Now()

	r.cases[id] = working
	return working.Clone(), nil
}

// Query lists cases matching filter. Ordering is stable and newest-first
// unless the filter asks for step or status-group ordering.
func (r *MemoryRegistry) Query(ctx context.Context, filter *model.CaseFilter) (*model.CaseListResult, error) {
	if filter == nil {
		filter = &model.CaseFilter{}
	}

	r.mu.RLock()
	var filtered []*model.IncidentCase
	for i := len(r.order) - 1; i >= 0; i-- {
		caseObj := r.cases[r.order[i]]
		if matchesFilter(caseObj, filter) {
			filtered = append(filtered, caseObj.Clone())
		}
	}
	r.mu.RUnlock()

	sortCases(filtered, filter.SortBy)

	total := int64(len(filtered))
	limit := defaultListLimit
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	start := offset
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + limit
	if end > len(filtered) {
		end = len(filtered)
	}

	page := filtered[start:end]
	if page == nil {
		page = []*model.IncidentCase{}
	}

	return &model.CaseListResult{
		Cases:   page,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: end < len(filtered),
	}, nil
}

// Summary computes oversight counters over the cases matching filter.
func (r *MemoryRegistry) Summary(ctx context.Context, filter *model.CaseFilter) (*model.CaseSummary, error) {
	if filter == nil {
		filter = &model.CaseFilter{}
	}

	summary := &model.CaseSummary{
		ByProgramme: make(map[string]int64),
		ByCategory:  make(map[model.Category]int64),
		ByStep:      make(map[int]int64),
		ByStatus:    make(map[model.CaseStatus]int64),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, caseObj := range r.cases {
		if !matchesFilter(caseObj, filter) {
			continue
		}
		summary.TotalCases++
		summary.ByProgramme[caseObj.Programme]++
		summary.ByCategory[caseObj.Category]++
		summary.ByStep[caseObj.CurrentStep]++
		summary.ByStatus[caseObj.Status]++

		if caseObj.Urgency == model.UrgencyCritical {
			summary.CriticalCases++
		}
		if caseObj.IsAIDetected {
			summary.AIDetectedCases++
		}
		switch caseObj.Status {
		case model.StatusPending:
			summary.PendingCases++
		case model.StatusProcessing:
			summary.ProcessingCases++
		case model.StatusClosed:
			summary.ClosedCases++
			if caseObj.DecisionNote == "" {
				summary.AwaitingArchival++
			}
		case model.StatusFalseReport:
			summary.FalseReports++
		}
	}

	return summary, nil
}

// Count returns the number of stored cases.
func (r *MemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cases)
}

func (r *MemoryRegistry) nextID(origin model.Origin) string {
	prefix := "SOS"
	if origin == model.OriginAI {
		prefix = "AI"
	}
	for {
		n := r.seq[origin]
		r.seq[origin] = n + 1
		id := fmt.Sprintf("%s-%04d", prefix, n)
		if _, taken := r.cases[id]; !taken {
			return id
		}
	}
}

func validateDraft(draft *model.Draft) error {
	if draft.Origin == "" {
		draft.Origin = model.OriginManual
	}
	if strings.TrimSpace(draft.Description) == "" {
		return apperrors.Validation("description is required")
	}
	if !draft.Category.Valid() {
		return apperrors.Validation(fmt.Sprintf("unknown category %q", draft.Category))
	}
	if draft.Urgency == "" {
		draft.Urgency = model.UrgencyMedium
	}
	if !draft.Urgency.Valid() {
		return apperrors.Validation(fmt.Sprintf("unknown urgency %q", draft.Urgency))
	}
	if strings.TrimSpace(draft.ReporterID) == "" {
		return apperrors.Validation("reporter is required")
	}
	return nil
}

// matchesFilter checks if a case matches the filter criteria.
func matchesFilter(caseObj *model.IncidentCase, filter *model.CaseFilter) bool {
	if len(filter.Status) > 0 && !containsStatus(filter.Status, caseObj.Status) {
		return false
	}

	if filter.Programme != "" && !strings.EqualFold(filter.Programme, caseObj.Programme) {
		return false
	}

	if len(filter.Category) > 0 {
		found := false
		for _, c := range filter.Category {
			if c == caseObj.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(filter.Urgency) > 0 {
		found := false
		for _, u := range filter.Urgency {
			if u == caseObj.Urgency {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.AIDetected != nil && *filter.AIDetected != caseObj.IsAIDetected {
		return false
	}

	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		haystack := strings.ToLower(strings.Join([]string{
			caseObj.ID, caseObj.Description, caseObj.ChildName, caseObj.Programme,
		}, "\n"))
		if !strings.Contains(haystack, needle) {
			return false
		}
	}

	return true
}

func containsStatus(statuses []model.CaseStatus, s model.CaseStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// statusGroup orders statuses for the oversight view: open work first.
func statusGroup(s model.CaseStatus) int {
	switch s {
	case model.StatusPending:
		return 0
	case model.StatusProcessing:
		return 1
	case model.StatusClosed:
		return 2
	case model.StatusFalseReport:
		return 3
	default:
		return 4
	}
}

// sortCases reorders cases in place. The input is already newest-first, and
// SliceStable keeps that as the tie-breaker.
func sortCases(cases []*model.IncidentCase, order model.SortOrder) {
	switch order {
	case model.SortStep:
		sort.SliceStable(cases, func(i, j int) bool {
			return cases[i].CurrentStep < cases[j].CurrentStep
		})
	case model.SortStatusGroup:
		sort.SliceStable(cases, func(i, j int) bool {
			return statusGroup(cases[i].Status) < statusGroup(cases[j].Status)
		})
	default:
		sort.SliceStable(cases, func(i, j int) bool {
			return cases[i].CreatedAt.After(cases[j].CreatedAt)
		})
	}
}
