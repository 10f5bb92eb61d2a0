package model

import "time"

// Status is the terminal outcome of resolving a url.
type Status string

const (
	StatusValid    Status = "valid"
	StatusRedirect Status = "redirect"
	StatusBroken   Status = "broken"
	StatusTimeout  Status = "timeout"
	StatusError    Status = "error"
)

// IssueType narrows down why a url is not valid. Empty means no issue.
type IssueType string

const (
	IssueNone    IssueType = ""
	IssueHTTP4xx IssueType = "http-4xx"
	IssueHTTP5xx IssueType = "http-5xx"
	IssueSSL     IssueType = "ssl-error"
	IssueTimeout IssueType = "timeout"
	IssuePaywall IssueType = "paywall"
	IssueUnknown IssueType = "unknown-error"
)

// ValidationResult is the outcome of checking one unique url.
type ValidationResult struct {
	URL                      string        `json:"url"`
	Status                   Status        `json:"status"`
	StatusCode               int           `json:"status_code,omitempty"`
	FinalURL                 string        `json:"final_url,omitempty"`
	IssueType                IssueType     `json:"issue_type,omitempty"`
	ResponseTime             time.Duration `json:"response_time"`
	ContentType              string        `json:"content_type,omitempty"`
	PageTitle                string        `json:"page_title,omitempty"`
	Description              string        `json:"description,omitempty"`
	ContentSnippet           string        `json:"content_snippet,omitempty"`
	RequiredBrowserRendering bool          `json:"required_browser_rendering"`
	RetryCount               int           `json:"retry_count"`
	Error                    string        `json:"error,omitempty"`
	CheckedAt                time.Time     `json:"checked_at"`
}

// Reachable reports whether the url served content.
func (r *ValidationResult) Reachable() bool {
	return r.Status == StatusValid || r.Status == StatusRedirect
}

// Settle enforces the status/issue pairing: valid and redirect carry no
// issue, every other status carries exactly one, and final_url is kept only
// for redirects.
func (r *ValidationResult) Settle() {
	switch r.Status {
	case StatusValid:
		r.IssueType = IssueNone
		r.FinalURL = ""
	case StatusRedirect:
		r.IssueType = IssueNone
	case StatusTimeout:
		r.IssueType = IssueTimeout
		r.FinalURL = ""
	default:
		if r.IssueType == IssueNone {
			r.IssueType = IssueUnknown
		}
		r.FinalURL = ""
	}
}

// IssueForStatusCode maps an HTTP error status to its issue type.
func IssueForStatusCode(code int) IssueType {
	switch {
	case code >= 500:
		return IssueHTTP5xx
	case code >= 400:
		return IssueHTTP4xx
	default:
		return IssueNone
	}
}
