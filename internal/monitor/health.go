// Package monitor re-validates the corpus urls on an interval, keeps a
// health record per url and raises alerts when a url changes state.
package monitor

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/btraven00/linkmedic/internal/model"
)

// Policy turns validation results into health states.
type Policy struct {
	// FailureThreshold is the number of consecutive failed checks after
	// which a url is broken.
	FailureThreshold int
	// SlowThreshold marks a reachable url as degraded when it answers
	// slower. Zero disables the check.
	SlowThreshold time.Duration
}

// DefaultPolicy breaks a url after three failed checks.
func DefaultPolicy() Policy {
	return Policy{FailureThreshold: 3, SlowThreshold: 5 * time.Second}
}

// Apply folds result into rec and returns the state rec was in before.
func (p Policy) Apply(rec *model.LinkHealthRecord, result *model.ValidationResult, now time.Time) (prev model.HealthState, changed bool) {
	prev = rec.Status
	if prev == "" {
		prev = model.HealthUnknown
	}

	rec.LastCheck = now
	rec.ResponseTime = result.ResponseTime
	rec.LastStatusCode = result.StatusCode
	rec.LastIssueType = result.IssueType

	switch {
	case !result.Reachable():
		rec.ConsecutiveFailureCount++
		rec.LastFailure = now
		if rec.ConsecutiveFailureCount >= p.threshold() {
			rec.Status = model.HealthBroken
		} else {
			rec.Status = model.HealthDegraded
		}
	case p.SlowThreshold > 0 && result.ResponseTime > p.SlowThreshold:
		rec.ConsecutiveFailureCount = 0
		rec.Status = model.HealthDegraded
	default:
		rec.ConsecutiveFailureCount = 0
		rec.Status = model.HealthHealthy
	}

	return prev, rec.Status != prev
}

func (p Policy) threshold() int {
	if p.FailureThreshold < 1 {
		return 1
	}
	return p.FailureThreshold
}

// alertFor returns the alert for a transition, if the transition deserves one.
// Entering broken is critical, entering degraded a warning and getting back
// to healthy from either an info. A first healthy check is silent.
func alertFor(rec *model.LinkHealthRecord, prev model.HealthState, now time.Time) (model.MonitoringAlert, bool) {
	alert := model.MonitoringAlert{
		ID:            uuid.NewString(),
		URL:           rec.URL,
		PreviousState: prev,
		State:         rec.Status,
		RaisedAt:      now,
	}

	switch rec.Status {
	case model.HealthBroken:
		alert.Severity = model.SeverityCritical
		alert.Message = fmt.Sprintf("broken after %d consecutive failed checks%s", rec.ConsecutiveFailureCount, detail(rec))
	case model.HealthDegraded:
		alert.Severity = model.SeverityWarning
		if rec.ConsecutiveFailureCount > 0 {
			alert.Message = fmt.Sprintf("check failed%s", detail(rec))
		} else {
			alert.Message = fmt.Sprintf("slow response: %s", rec.ResponseTime.Round(time.Millisecond))
		}
	case model.HealthHealthy:
		if prev == model.HealthUnknown || prev == model.HealthHealthy {
			return alert, false
		}
		alert.Severity = model.SeverityInfo
		alert.Message = "recovered"
	default:
		return alert, false
	}

	return alert, true
}

func detail(rec *model.LinkHealthRecord) string {
	switch {
	case rec.LastStatusCode != 0:
		return fmt.Sprintf(" (%s, HTTP %d)", rec.LastIssueType, rec.LastStatusCode)
	case rec.LastIssueType != "":
		return fmt.Sprintf(" (%s)", rec.LastIssueType)
	default:
		return ""
	}
}
