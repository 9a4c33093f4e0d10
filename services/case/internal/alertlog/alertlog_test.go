package alertlog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/services/case/internal/model"
)

func entry(n int, risk model.Urgency, alert bool) *model.AlertLogEntry {
	return &model.AlertLogEntry{
		ID:         fmt.Sprintf("log-%d", n),
		ReceivedAt: time.Date(2026, 1, 1, 0, 0, n, 0, time.UTC),
		Assessment: model.Assessment{
			AggressionScore:   n,
			RiskLevel:         risk,
			AlertRecommended:  alert,
			ObservedBehaviors: []string{"standing"},
		},
	}
}

func TestAppendEvictsOldest(t *testing.T) {
	store := NewMemoryStore(DefaultCapacity)
	ctx := context.Background()

	for i := 1; i <= DefaultCapacity+5; i++ {
		require.NoError(t, store.Append(ctx, entry(i, model.UrgencyLow, false)))
	}

	assert.Equal(t, DefaultCapacity, store.Len())

	res, err := store.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, DefaultCapacity)
	assert.Equal(t, "log-55", res.Entries[0].ID)
	assert.Equal(t, "log-6", res.Entries[DefaultCapacity-1].ID)

	_, err = store.Get(ctx, "log-5")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestListFilters(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, entry(1, model.UrgencyLow, false)))
	require.NoError(t, store.Append(ctx, entry(2, model.UrgencyCritical, true)))
	require.NoError(t, store.Append(ctx, entry(3, model.UrgencyHigh, true)))
	require.NoError(t, store.Append(ctx, entry(4, model.UrgencyMedium, false)))

	res, err := store.List(ctx, &Filter{AlertsOnly: true})
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "log-3", res.Entries[0].ID)

	res, err = store.List(ctx, &Filter{RiskLevels: []model.Urgency{model.UrgencyCritical, model.UrgencyLow}})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 2)

	since := time.Date(2026, 1, 1, 0, 0, 3, 0, time.UTC)
	res, err = store.List(ctx, &Filter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 2)

	res, err = store.List(ctx, &Filter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 3)
	assert.True(t, res.HasMore)
	assert.Equal(t, int64(4), res.Total)
}

func TestEntriesAreCopies(t *testing.T) {
	store := NewMemoryStore(5)
	ctx := context.Background()

	e := entry(1, model.UrgencyLow, false)
	require.NoError(t, store.Append(ctx, e))
	e.ObservedBehaviors[0] = "mutated"

	got, err := store.Get(ctx, "log-1")
	require.NoError(t, err)
	assert.Equal(t, "standing", got.ObservedBehaviors[0])

	got.RiskLevel = model.UrgencyCritical
	again, err := store.Get(ctx, "log-1")
	require.NoError(t, err)
	assert.Equal(t, model.UrgencyLow, again.RiskLevel)
}

func TestLinkCase(t *testing.T) {
	store := NewMemoryStore(5)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, entry(1, model.UrgencyCritical, true)))
	require.NoError(t, store.LinkCase(ctx, "log-1", "AI-0001"))

	got, err := store.Get(ctx, "log-1")
	require.NoError(t, err)
	assert.Equal(t, "AI-0001", got.CaseID)

	assert.Error(t, store.LinkCase(ctx, "missing", "AI-0002"))
	assert.Error(t, store.Append(ctx, &model.AlertLogEntry{}))
}
