package model

import "time"

// HealthState is a link's position in the monitoring state machine.
type HealthState string

const (
	HealthUnknown  HealthState = "unknown"
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthBroken   HealthState = "broken"
)

// LinkHealthRecord is the persisted monitoring state of one url.
type LinkHealthRecord struct {
	URL                     string        `json:"url"`
	LastCheck               time.Time     `json:"last_check"`
	Status                  HealthState   `json:"status"`
	ResponseTime            time.Duration `json:"response_time"`
	ConsecutiveFailureCount int           `json:"consecutive_failure_count"`
	LastFailure             time.Time     `json:"last_failure,omitempty"`
	LastStatusCode          int           `json:"last_status_code,omitempty"`
	LastIssueType           IssueType     `json:"last_issue_type,omitempty"`
}

// Severity ranks an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// MonitoringAlert announces a health state change.
type MonitoringAlert struct {
	ID            string      `json:"id"`
	URL           string      `json:"url"`
	Severity      Severity    `json:"severity"`
	PreviousState HealthState `json:"previous_state"`
	State         HealthState `json:"state"`
	Message       string      `json:"message"`
	RaisedAt      time.Time   `json:"raised_at"`
}
