// Package monitor turns classifier assessments of camera frames into log
// entries and, for critical ones, incident cases.
package monitor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/pkg/logger"
	"github.com/sos-echo/platform/services/case/internal/alertlog"
	"github.com/sos-echo/platform/services/case/internal/classifier"
	"github.com/sos-echo/platform/services/case/internal/clock"
	"github.com/sos-echo/platform/services/case/internal/metrics"
	"github.com/sos-echo/platform/services/case/internal/model"
)

// DefaultCooldown is how long capture stays suppressed after a rate limit.
const DefaultCooldown = 45 * time.Second

// CaseCreator files classifier-originated cases.
type CaseCreator interface {
	CreateDetectedCase(ctx context.Context, draft model.Draft) (*model.IncidentCase, error)
}

// Config holds monitor settings.
type Config struct {
	Cooldown    time.Duration
	CallTimeout time.Duration
	Programme   string
}

// Status is the capture state shown on the dashboard.
type Status struct {
	Busy          bool       `json:"busy"`
	CoolingDown   bool       `json:"cooling_down"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	LogEntries    int        `json:"log_entries"`
}

// Monitor runs at most one classification at a time and backs off after
// rate limits.
type Monitor struct {
	classifier classifier.Classifier
	cases      CaseCreator
	log        alertlog.Store
	metrics    *metrics.Collector
	clock      clock.Clock
	logger     *slog.Logger
	cfg        Config

	busy atomic.Bool

	mu            sync.Mutex
	cooldownUntil time.Time
}

// New creates a monitor.
func New(
	cfg Config,
	cls classifier.Classifier,
	cases CaseCreator,
	log alertlog.Store,
	collector *metrics.Collector,
	clk clock.Clock,
	base *slog.Logger,
) *Monitor {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if clk == nil {
		clk = clock.System{}
	}
	if base == nil {
		base = slog.Default()
	}
	if log == nil {
		log = alertlog.NewMemoryStore(alertlog.DefaultCapacity)
	}
	return &Monitor{
		classifier: cls,
		cases:      cases,
		log:        log,
		metrics:    collector,
		clock:      clk,
		logger:     base,
		cfg:        cfg,
	}
}

// Capture classifies one frame. It is rejected locally during a cool-down
// and while another classification is in flight.
func (m *Monitor) Capture(ctx context.Context, frame []byte) (*model.AlertLogEntry, error) {
	log := logger.FromContext(ctx, m.logger)

	if len(frame) == 0 {
		return nil, apperrors.Validation("frame is empty")
	}
	if until, cooling := m.cooldown(); cooling {
		m.countClassifier("suppressed", 0)
		return nil, apperrors.RateLimited("capture suppressed after a gateway rate limit").
			WithDetail("cooldown_until", until.Format(time.RFC3339)).
			WithDetail("retry_after_seconds", int(until.Sub(m.clock.Now()).Seconds()+0.5))
	}
	if !m.busy.CompareAndSwap(false, true) {
		m.countClassifier("busy", 0)
		return nil, apperrors.Busy("a classification is already in flight")
	}
	defer m.busy.Store(false)

	// The gateway call outlives the caller; only the client timeout bounds it.
	callCtx := context.WithoutCancel(ctx)
	if m.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, m.cfg.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	assessment, err := m.classifier.Classify(callCtx, frame)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, classifier.ErrRateLimited) || apperrors.Is(err, apperrors.CodeRateLimited) {
			until := m.enterCooldown()
			m.countClassifier("rate_limited", elapsed)
			log.Warn("vision gateway rate limited, suppressing capture",
				"cooldown_until", until,
				"error", err,
			)
			return nil, err
		}
		m.countClassifier("error", elapsed)
		log.Error("frame classification failed, dropping frame", "error", err)
		return nil, err
	}
	m.countClassifier("ok", elapsed)

	thumbnail := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)
	return m.Ingest(ctx, *assessment, thumbnail)
}

// Ingest records an assessment and opens a case for critical ones.
func (m *Monitor) Ingest(ctx context.Context, assessment model.Assessment, thumbnail string) (*model.AlertLogEntry, error) {
	log := logger.FromContext(ctx, m.logger)

	entry := &model.AlertLogEntry{
		Assessment: assessment,
		ID:         uuid.New().String(),
		ReceivedAt: m.clock.Now(),
		Thumbnail:  thumbnail,
	}
	if err := m.log.Append(ctx, entry); err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.SetAlertLogSize(m.log.Len())
	}

	if !assessment.Critical() {
		return entry, nil
	}

	var attachments []string
	if thumbnail != "" {
		attachments = []string{thumbnail}
	}
	created, err := m.cases.CreateDetectedCase(ctx, model.Draft{
		Origin:                model.OriginAI,
		ReporterID:            model.ReporterSystemAI,
		Category:              model.CategoryViolence,
		Programme:             m.cfg.Programme,
		Description:           describe(assessment),
		Urgency:               model.UrgencyCritical,
		Attachments:           attachments,
		AggressionScore:       assessment.AggressionScore,
		EscalationProbability: assessment.EscalationProbability,
		ObservedBehaviors:     assessment.ObservedBehaviors,
		DetectedFaces:         assessment.DetectedFaces,
	})
	if err != nil {
		log.Error("failed to open case from critical assessment", "log_id", entry.ID, "error", err)
		return entry, fmt.Errorf("open detected case: %w", err)
	}

	if err := m.log.LinkCase(ctx, entry.ID, created.ID); err != nil {
		log.Warn("alert log entry evicted before linking", "log_id", entry.ID, "case_id", created.ID)
	}
	entry.CaseID = created.ID

	log.Warn("critical incident detected",
		"case_id", created.ID,
		"programme", created.Programme,
		"aggression_score", assessment.AggressionScore,
		"admin_alert", assessment.AdminAlertMessage,
	)
	return entry, nil
}

// Retry cancels an active cool-down.
func (m *Monitor) Retry() Status {
	m.mu.Lock()
	m.cooldownUntil = time.Time{}
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SetCooldown(false)
	}
	m.logger.Info("capture cool-down cancelled by manual retry")
	return m.Status()
}

// Status reports the current capture state.
func (m *Monitor) Status() Status {
	st := Status{
		Busy:       m.busy.Load(),
		LogEntries: m.log.Len(),
	}
	if until, cooling := m.cooldown(); cooling {
		st.CoolingDown = true
		st.CooldownUntil = &until
	}
	return st
}

// Alerts lists logged assessments, newest first.
func (m *Monitor) Alerts(ctx context.Context, filter *alertlog.Filter) (*alertlog.ListResult, error) {
	return m.log.List(ctx, filter)
}

func (m *Monitor) cooldown() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cooldownUntil.IsZero() {
		return time.Time{}, false
	}
	if !m.clock.Now().Before(m.cooldownUntil) {
		m.cooldownUntil = time.Time{}
		if m.metrics != nil {
			m.metrics.SetCooldown(false)
		}
		return time.Time{}, false
	}
	return m.cooldownUntil, true
}

func (m *Monitor) enterCooldown() time.Time {
	m.mu.Lock()
	m.cooldownUntil = m.clock.Now().Add(m.cfg.Cooldown)
	until := m.cooldownUntil
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SetCooldown(true)
	}
	return until
}

func (m *Monitor) countClassifier(outcome string, d time.Duration) {
	if m.metrics != nil {
		m.metrics.ClassifierRequest(outcome, d)
	}
}

func describe(a model.Assessment) string {
	for _, s := range []string{a.IncidentSummary, a.AdminAlertMessage} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return fmt.Sprintf("Critical aggression detected by the safety monitor (score %d)", a.AggressionScore)
}
