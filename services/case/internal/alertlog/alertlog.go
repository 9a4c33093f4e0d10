// Package alertlog keeps the bounded history of classifier assessments shown
// on the monitoring dashboard.
package alertlog

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/services/case/internal/model"
)

// DefaultCapacity is the number of entries kept before the oldest is evicted.
const DefaultCapacity = 50

// Filter defines filters for listing log entries.
type Filter struct {
	RiskLevels []model.Urgency `json:"risk_levels,omitempty"`
	AlertsOnly bool            `json:"alerts_only,omitempty"`
	Since      *time.Time      `json:"since,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Offset     int             `json:"offset,omitempty"`
}

// ListResult contains paginated log entries, newest first.
type ListResult struct {
	Entries []*model.AlertLogEntry `json:"entries"`
	Total   int64                  `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
	HasMore bool                   `json:"has_more"`
}

// Store defines the interface for alert log storage.
type Store interface {
	Append(ctx context.Context, entry *model.AlertLogEntry) error
	Get(ctx context.Context, id string) (*model.AlertLogEntry, error)
	List(ctx context.Context, filter *Filter) (*ListResult, error)
	LinkCase(ctx context.Context, id, caseID string) error
	Len() int
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a capped in-memory alert log.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []*model.AlertLogEntry // oldest first
	capacity int
}

// NewMemoryStore creates a log holding at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		entries:  make([]*model.AlertLogEntry, 0, capacity),
		capacity: capacity,
	}
}

// Append adds an entry, evicting the oldest when full.
func (s *MemoryStore) Append(ctx context.Context, entry *model.AlertLogEntry) error {
	if entry == nil || entry.ID == "" {
		return apperrors.Validation("log entry id is required")
	}
	cp := cloneEntry(entry)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.capacity {
		drop := len(s.entries) - s.capacity + 1
		copy(s.entries, s.entries[drop:])
		for i := len(s.entries) - drop; i < len(s.entries); i++ {
			s.entries[i] = nil
		}
		s.entries = s.entries[:len(s.entries)-drop]
	}
	s.entries = append(s.entries, cp)
	return nil
}

// Get retrieves an entry by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.AlertLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			return cloneEntry(e), nil
		}
	}
	return nil, apperrors.NotFound("alert log entry", id)
}

// LinkCase records the case opened from an entry.
func (s *MemoryStore) LinkCase(ctx context.Context, id, caseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ID == id {
			e.CaseID = caseID
			return nil
		}
	}
	return apperrors.NotFound("alert log entry", id)
}

// List lists entries newest first.
func (s *MemoryStore) List(ctx context.Context, filter *Filter) (*ListResult, error) {
	if filter == nil {
		filter = &Filter{}
	}

	s.mu.RLock()
	var filtered []*model.AlertLogEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if matchesFilter(s.entries[i], filter) {
			filtered = append(filtered, cloneEntry(s.entries[i]))
		}
	}
	s.mu.RUnlock()

	total := int64(len(filtered))
	limit := s.capacity
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
		page = []*model.AlertLogEntry{}
	}

	return &ListResult{
		Entries: page,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: end < len(filtered),
	}, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// matchesFilter checks if an entry matches the filter criteria.
func matchesFilter(e *model.AlertLogEntry, filter *Filter) bool {
	if filter.AlertsOnly && !e.AlertRecommended {
		return false
	}

	if len(filter.RiskLevels) > 0 {
		found := false
		for _, r := range filter.RiskLevels {
			if e.RiskLevel == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.Since != nil && e.ReceivedAt.Before(*filter.Since) {
		return false
	}

	return true
}

func cloneEntry(e *model.AlertLogEntry) *model.AlertLogEntry {
	cp := *e
	cp.ObservedBehaviors = append([]string(nil), e.ObservedBehaviors...)
	cp.DetectedFaces = append([]model.DetectedFace(nil), e.DetectedFaces...)
	return &cp
}
