// Package classifier talks to the external vision model that scores camera frames.
package classifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/services/case/internal/model"
)

// Sentinel errors. Returned errors wrap one of these and carry an AppError code.
var (
	ErrRateLimited     = errors.New("classifier rate limited")
	ErrGateway         = errors.New("classifier gateway failure")
	ErrInvalidResponse = errors.New("classifier response invalid")
)

// Classifier scores one JPEG frame.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*model.Assessment, error)
}

const systemInstruction = `You are a real-time aggression detection and safety alert system for child-care institutions.
Your primary mission is the immediate detection of physical violence, fighting and hitting.

Detect escalating physical aggression, harassment or violent behaviour.
Two people fighting, someone striking another, or someone being pushed forcefully is a CRITICAL safety violation.

When an incident is detected, provide a detailed incident_summary and locate any visible faces involved.
Return them in detected_faces as [ymin, xmin, ymax, xmax] normalised to 0-1000.

Do NOT perform facial recognition. Only detect and locate faces.
Focus on posture, movement, proximity and interaction.
Avoid false positives for non-aggressive contact such as high-fives or hugs.

If violence is occurring, assign an aggression score above 90 and risk level "critical".
Return JSON strictly matching the provided schema.`

const framePrompt = "CRITICAL SAFETY CHECK: Is there a fight, hitting, or physical violence occurring? If so, generate a report, locate the faces of those involved, and return details."

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// GeminiClient classifies frames with the Gemini generateContent API.
type GeminiClient struct {
	http     *httpClient
	model    string
	apiKey   string
	validate *validator.Validate
	logger   *slog.Logger
}

// NewGeminiClient creates a Gemini classifier.
func NewGeminiClient(cfg GeminiConfig, logger *slog.Logger) *GeminiClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &GeminiClient{
		http:     newHTTPClient(strings.TrimRight(cfg.Endpoint, "/"), cfg.Timeout, logger),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		validate: validator.New(),
		logger:   logger,
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string                 `json:"responseMimeType"`
	ResponseSchema   map[string]interface{} `json:"responseSchema"`
}

type generateRequest struct {
	SystemInstruction content          `json:"systemInstruction"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// responseSchema mirrors wireAssessment for the model's structured output mode.
var responseSchema = map[string]interface{}{
	"type": "OBJECT",
	"properties": map[string]interface{}{
		"aggression_score":           map[string]string{"type": "INTEGER"},
		"escalation_probability":     map[string]string{"type": "INTEGER"},
		"risk_level":                 map[string]interface{}{"type": "STRING", "enum": []string{"low", "medium", "high", "critical"}},
		"escalation_trend":           map[string]string{"type": "STRING"},
		"observed_behaviors":         map[string]interface{}{"type": "ARRAY", "items": map[string]string{"type": "STRING"}},
		"possible_distress_detected": map[string]string{"type": "BOOLEAN"},
		"alert_recommended":          map[string]string{"type": "BOOLEAN"},
		"admin_alert_message":        map[string]string{"type": "STRING"},
		"confidence_score":           map[string]string{"type": "INTEGER"},
		"incident_summary":           map[string]string{"type": "STRING"},
		"detected_faces": map[string]interface{}{
			"type": "ARRAY",
			"items": map[string]interface{}{
				"type": "OBJECT",
				"properties": map[string]interface{}{
					"box_2d": map[string]interface{}{"type": "ARRAY", "items": map[string]string{"type": "INTEGER"}},
					"label":  map[string]string{"type": "STRING"},
				},
			},
		},
	},
	"required": []string{
		"aggression_score",
		"escalation_probability",
		"risk_level",
		"observed_behaviors",
		"alert_recommended",
		"admin_alert_message",
		"incident_summary",
	},
}

// wireAssessment is the decoded model output. Pointers distinguish an absent
// field from its zero value.
type wireAssessment struct {
	AggressionScore       *int       `json:"aggression_score" validate:"required,min=0,max=100"`
	EscalationProbability *int       `json:"escalation_probability" validate:"required,min=0,max=100"`
	RiskLevel             *string    `json:"risk_level" validate:"required,oneof=low medium high critical"`
	ObservedBehaviors     []string   `json:"observed_behaviors" validate:"required"`
	AlertRecommended      *bool      `json:"alert_recommended" validate:"required"`
	AdminAlertMessage     *string    `json:"admin_alert_message" validate:"required"`
	IncidentSummary       *string    `json:"incident_summary" validate:"required"`
	DetectedFaces         []wireFace `json:"detected_faces" validate:"omitempty,dive"`
	EscalationTrend       string     `json:"escalation_trend"`
	PossibleDistress      bool       `json:"possible_distress_detected"`
	ConfidenceScore       *int       `json:"confidence_score" validate:"omitempty,min=0,max=100"`
}

type wireFace struct {
	Box   []int  `json:"box_2d" validate:"len=4,dive,min=0,max=1000"`
	Label string `json:"label"`
}

// Classify sends one JPEG frame and returns the validated assessment.
func (c *GeminiClient) Classify(ctx context.Context, image []byte) (*model.Assessment, error) {
	if len(image) == 0 {
		return nil, apperrors.Validation("frame is empty")
	}

	req := generateRequest{
		SystemInstruction: content{Parts: []part{{Text: systemInstruction}}},
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MimeType: "image/jpeg", Data: base64.StdEncoding.EncodeToString(image)}},
				{Text: framePrompt},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
	}

	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model))
	resp, err := c.http.postJSON(ctx, path, req, map[string]string{"x-goog-api-key": c.apiKey})
	if err != nil {
		return nil, gatewayError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyFailure(resp)
	}

	var gen generateResponse
	if err := json.Unmarshal(resp.Body, &gen); err != nil {
		return nil, invalidResponse(fmt.Errorf("decode envelope: %w", err))
	}
	if len(gen.Candidates) == 0 || len(gen.Candidates[0].Content.Parts) == 0 {
		return nil, invalidResponse(errors.New("no candidates in response"))
	}

	var text strings.Builder
	for _, p := range gen.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	assessment, err := c.decodeAssessment([]byte(text.String()))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("frame classified",
		"risk_level", assessment.RiskLevel,
		"aggression_score", assessment.AggressionScore,
		"alert_recommended", assessment.AlertRecommended,
		"latency_ms", resp.Latency.Milliseconds(),
	)
	return assessment, nil
}

// decodeAssessment parses and validates the model's JSON text.
func (c *GeminiClient) decodeAssessment(raw []byte) (*model.Assessment, error) {
	var w wireAssessment
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalidResponse(fmt.Errorf("decode assessment: %w", err))
	}
	if err := c.validate.Struct(&w); err != nil {
		return nil, invalidResponse(err)
	}

	a := &model.Assessment{
		AggressionScore:          *w.AggressionScore,
		EscalationProbability:    *w.EscalationProbability,
		RiskLevel:                model.Urgency(*w.RiskLevel),
		ObservedBehaviors:        w.ObservedBehaviors,
		AlertRecommended:         *w.AlertRecommended,
		AdminAlertMessage:        *w.AdminAlertMessage,
		IncidentSummary:          *w.IncidentSummary,
		EscalationTrend:          w.EscalationTrend,
		PossibleDistressDetected: w.PossibleDistress,
	}
	if w.ConfidenceScore != nil {
		a.ConfidenceScore = *w.ConfidenceScore
	}
	for _, f := range w.DetectedFaces {
		a.DetectedFaces = append(a.DetectedFaces, model.DetectedFace{
			Box:   [4]int{f.Box[0], f.Box[1], f.Box[2], f.Box[3]},
			Label: f.Label,
		})
	}
	return a, nil
}

func classifyFailure(resp *response) error {
	var apiErr apiError
	_ = json.Unmarshal(resp.Body, &apiErr)

	msg := apiErr.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusTooManyRequests ||
		apiErr.Error.Status == "RESOURCE_EXHAUSTED" ||
		strings.Contains(strings.ToLower(msg), "quota") {
		return apperrors.Wrap(fmt.Errorf("%w: %s", ErrRateLimited, msg), apperrors.CodeRateLimited, "vision gateway rate limit reached").
			WithDetail("status", resp.StatusCode)
	}

	return apperrors.Upstream(fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, msg), "vision gateway request failed").
		WithDetail("status", resp.StatusCode)
}

func gatewayError(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "quota") {
		return apperrors.Wrap(fmt.Errorf("%w: %v", ErrRateLimited, err), apperrors.CodeRateLimited, "vision gateway rate limit reached")
	}
	return apperrors.Upstream(fmt.Errorf("%w: %v", ErrGateway, err), "vision gateway unreachable")
}

func invalidResponse(err error) error {
	return apperrors.Upstream(fmt.Errorf("%w: %v", ErrInvalidResponse, err), "vision gateway returned an invalid assessment")
}
