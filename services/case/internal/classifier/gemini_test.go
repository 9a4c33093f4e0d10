package classifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/pkg/logger"
	"github.com/sos-echo/platform/services/case/internal/model"
)

var frame = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}

const criticalAssessment = `{
	"aggression_score": 94,
	"escalation_probability": 88,
	"risk_level": "critical",
	"escalation_trend": "rising",
	"observed_behaviors": ["striking", "pinning"],
	"possible_distress_detected": true,
	"alert_recommended": true,
	"admin_alert_message": "Fight in courtyard",
	"confidence_score": 81,
	"incident_summary": "Two children fighting near the gate",
	"detected_faces": [{"box_2d": [100, 200, 300, 400], "label": "child A"}]
}`

func candidateBody(text string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{{
			"content": map[string]interface{}{
				"role":  "model",
				"parts": []map[string]string{{"text": text}},
			},
			"finishReason": "STOP",
		}},
	})
	return string(body)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiClient(GeminiConfig{
		Endpoint: srv.URL,
		Model:    "gemini-test",
		APIKey:   "key-123",
		Timeout:  5 * time.Second,
	}, logger.Discard())
}

func TestClassifySendsFrame(t *testing.T) {
	var captured generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("x-goog-api-key"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		_, _ = io.WriteString(w, candidateBody(criticalAssessment))
	})

	a, err := client.Classify(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, 94, a.AggressionScore)
	assert.Equal(t, 88, a.EscalationProbability)
	assert.Equal(t, model.UrgencyCritical, a.RiskLevel)
	assert.True(t, a.AlertRecommended)
	assert.True(t, a.Critical())
	assert.Equal(t, "Two children fighting near the gate", a.IncidentSummary)
	assert.Equal(t, 81, a.ConfidenceScore)
	require.Len(t, a.DetectedFaces, 1)
	assert.Equal(t, [4]int{100, 200, 300, 400}, a.DetectedFaces[0].Box)

	require.Len(t, captured.Contents, 1)
	require.Len(t, captured.Contents[0].Parts, 2)
	inline := captured.Contents[0].Parts[0].InlineData
	require.NotNil(t, inline)
	assert.Equal(t, "image/jpeg", inline.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(frame), inline.Data)
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
	assert.NotEmpty(t, captured.SystemInstruction.Parts[0].Text)
}

func TestClassifyZeroValuesArePresent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, candidateBody(`{
			"aggression_score": 0,
			"escalation_probability": 0,
			"risk_level": "low",
			"observed_behaviors": [],
			"alert_recommended": false,
			"admin_alert_message": "",
			"incident_summary": ""
		}`))
	})

	a, err := client.Classify(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, model.UrgencyLow, a.RiskLevel)
	assert.False(t, a.Critical())
	assert.Empty(t, a.DetectedFaces)
}

func TestClassifyInvalidResponses(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not json", "I cannot help with that"},
		{"missing risk level", `{"aggression_score": 10, "escalation_probability": 5, "observed_behaviors": [], "alert_recommended": false, "admin_alert_message": "", "incident_summary": ""}`},
		{"missing alert flag", `{"aggression_score": 10, "escalation_probability": 5, "risk_level": "low", "observed_behaviors": [], "admin_alert_message": "", "incident_summary": ""}`},
		{"missing summary", `{"aggression_score": 10, "escalation_probability": 5, "risk_level": "low", "observed_behaviors": [], "alert_recommended": false, "admin_alert_message": ""}`},
		{"score out of range", `{"aggression_score": 140, "escalation_probability": 5, "risk_level": "low", "observed_behaviors": [], "alert_recommended": false, "admin_alert_message": "", "incident_summary": ""}`},
		{"unknown risk level", `{"aggression_score": 10, "escalation_probability": 5, "risk_level": "severe", "observed_behaviors": [], "alert_recommended": false, "admin_alert_message": "", "incident_summary": ""}`},
		{"bad face box", `{"aggression_score": 10, "escalation_probability": 5, "risk_level": "low", "observed_behaviors": [], "alert_recommended": false, "admin_alert_message": "", "incident_summary": "", "detected_faces": [{"box_2d": [1, 2, 3], "label": "x"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, candidateBody(tt.text))
			})

			_, err := client.Classify(context.Background(), frame)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidResponse))
			assert.False(t, errors.Is(err, ErrRateLimited))
		})
	}
}

func TestClassifyNoCandidates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates": []}`)
	})

	_, err := client.Classify(context.Background(), frame)
	assert.True(t, errors.Is(err, ErrInvalidResponse))
}

func TestClassifyErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		rateLimited bool
	}{
		{"http 429", http.StatusTooManyRequests, `{"error": {"code": 429, "message": "slow down", "status": "UNAVAILABLE"}}`, true},
		{"resource exhausted", http.StatusBadRequest, `{"error": {"code": 400, "message": "exhausted", "status": "RESOURCE_EXHAUSTED"}}`, true},
		{"quota message", http.StatusForbidden, `{"error": {"code": 403, "message": "Quota exceeded for project", "status": "PERMISSION_DENIED"}}`, true},
		{"server error", http.StatusInternalServerError, `{"error": {"code": 500, "message": "internal", "status": "INTERNAL"}}`, false},
		{"bad key", http.StatusUnauthorized, `not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.Classify(context.Background(), frame)
			require.Error(t, err)
			if tt.rateLimited {
				assert.True(t, errors.Is(err, ErrRateLimited))
				assert.True(t, apperrors.Is(err, apperrors.CodeRateLimited))
			} else {
				assert.True(t, errors.Is(err, ErrGateway))
				assert.True(t, apperrors.Is(err, apperrors.CodeUpstream))
			}
		})
	}
}

func TestClassifyTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	client := NewGeminiClient(GeminiConfig{Endpoint: endpoint, Model: "m", Timeout: time.Second}, logger.Discard())
	_, err := client.Classify(context.Background(), frame)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGateway))
}

func TestClassifyEmptyFrame(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, err := client.Classify(context.Background(), nil)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
	assert.Zero(t, atomic.LoadInt32(&calls))
}
