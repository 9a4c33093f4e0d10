package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sos-echo/platform/pkg/logger"
	"github.com/sos-echo/platform/services/case/internal/clock"
	"github.com/sos-echo/platform/services/case/internal/model"
	"github.com/sos-echo/platform/services/case/internal/repository"
	"github.com/sos-echo/platform/services/case/internal/service"
	"github.com/sos-echo/platform/services/case/internal/workflow"
)

func TestRunSeedsConsistentCases(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	reg := repository.NewMemoryRegistry(clk)
	svc := service.NewCaseService(reg, workflow.NewEngine(clk, logger.Discard()), nil, clk, logger.Discard())

	s, err := New(svc, logger.Discard())
	require.NoError(t, err)

	ctx := context.Background()
	res, err := s.Run(ctx, DefaultCount)
	require.NoError(t, err)

	assert.Equal(t, 50, res.Created)
	assert.Equal(t, 9, res.Processing)
	assert.Equal(t, 32, res.Closed)
	assert.Equal(t, 12, res.Archived)
	assert.Equal(t, 4, res.FalseReport)
	assert.Equal(t, 50, reg.Count())

	list, err := reg.Query(ctx, &model.CaseFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, list.Cases, 50)

	programmes := map[string]bool{}
	categories := map[model.Category]bool{}
	for _, c := range list.Cases {
		programmes[c.Programme] = true
		categories[c.Category] = true

		assert.GreaterOrEqual(t, c.CurrentStep, 1, c.ID)
		assert.LessOrEqual(t, c.CurrentStep, model.MaxStep, c.ID)
		assert.Equal(t, int64(len(c.AuditTrail)), c.Version, c.ID)
		for step := 1; step < c.CurrentStep; step++ {
			assert.NotEmpty(t, c.Document(step), "%s step %d", c.ID, step)
		}
		if c.DecisionNote != "" {
			assert.Equal(t, model.StatusClosed, c.Status, c.ID)
			assert.NotEmpty(t, c.ClosingNotice, c.ID)
		}
		if c.Status == model.StatusClosed {
			assert.NotEmpty(t, c.ClosingNotice, c.ID)
		}
	}
	assert.Len(t, programmes, len(Programmes))
	assert.Len(t, categories, len(model.Categories))

	summary, err := reg.Summary(ctx, &model.CaseFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), summary.PendingCases)
	assert.Equal(t, int64(20), summary.AwaitingArchival)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	clk := clock.NewFake(time.Now())
	reg := repository.NewMemoryRegistry(clk)
	svc := service.NewCaseService(reg, workflow.NewEngine(clk, logger.Discard()), nil, clk, logger.Discard())
	s, err := New(svc, logger.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Run(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, reg.Count())
}
