package model

import "time"

// DetectedFace locates a face in a frame. Box is [ymin, xmin, ymax, xmax]
// normalised to 0..1000.
type DetectedFace struct {
	Box   [4]int `json:"box_2d"`
	Label string `json:"label"`
}

// Assessment is the classifier's verdict on one frame.
type Assessment struct {
	AggressionScore       int            `json:"aggression_score"`
	EscalationProbability int            `json:"escalation_probability"`
	RiskLevel             Urgency        `json:"risk_level"`
	ObservedBehaviors     []string       `json:"observed_behaviors"`
	AlertRecommended      bool           `json:"alert_recommended"`
	AdminAlertMessage     string         `json:"admin_alert_message"`
	IncidentSummary       string         `json:"incident_summary"`
	DetectedFaces         []DetectedFace `json:"detected_faces,omitempty"`

	EscalationTrend          string `json:"escalation_trend,omitempty"`
	PossibleDistressDetected bool   `json:"possible_distress_detected,omitempty"`
	ConfidenceScore          int    `json:"confidence_score,omitempty"`
}

// Critical reports whether the assessment must open a case.
func (a *Assessment) Critical() bool {
	return a.AlertRecommended && a.RiskLevel == UrgencyCritical
}

// AlertLogEntry is an assessment as shown on the monitoring dashboard.
type AlertLogEntry struct {
	Assessment
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Thumbnail  string    `json:"thumbnail,omitempty"`
	CaseID     string    `json:"case_id,omitempty"`
}
