package validation

import (
	"bytes"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/btraven00/linkmedic/internal/model"
)

func TestAnalyze(t *testing.T) {
	u, _ := url.Parse("https://example.com/post")

	testCases := []struct {
		name        string
		contentType string
		body        string
		check       func(t *testing.T, a analysis)
	}{
		{
			name:        "client rendered shell",
			contentType: "text/html",
			body:        `<html><body><div id="app"></div></body></html>`,
			check: func(t *testing.T, a analysis) {
				if !a.clientRendered {
					t.Error("expected client-rendered detection")
				}
			},
		},
		{
			name:        "javascript notice",
			contentType: "text/html",
			body:        `<html><body><noscript></noscript><p>Please enable JavaScript to view this site.</p></body></html>`,
			check: func(t *testing.T, a analysis) {
				if !a.needsScript {
					t.Error("expected script requirement")
				}
			},
		},
		{
			name:        "challenge page",
			contentType: "text/html",
			body:        `<html><head><title>Just a moment...</title></head><body>Checking your browser</body></html>`,
			check: func(t *testing.T, a analysis) {
				if !a.challenge {
					t.Error("expected challenge detection")
				}
				if !inconclusive(403, a) {
					t.Error("403 challenge must be inconclusive")
				}
			},
		},
		{
			name:        "og title fallback",
			contentType: "text/html",
			body:        `<html><head><meta property="og:title" content="Open Graph Title"></head><body>x</body></html>`,
			check: func(t *testing.T, a analysis) {
				if a.title != "Open Graph Title" {
					t.Errorf("title = %q", a.title)
				}
			},
		},
		{
			name:        "non html",
			contentType: "application/pdf",
			body:        "%PDF-1.7",
			check: func(t *testing.T, a analysis) {
				if a.html || a.title != "" {
					t.Errorf("pdf must not be parsed as html: %+v", a)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, analyze(tc.contentType, []byte(tc.body), u))
		})
	}
}

func TestPaywalled(t *testing.T) {
	if !(analysis{text: "Already a subscriber? Log in"}).paywalled() {
		t.Error("expected paywall")
	}
	if (analysis{text: "Free to read for everyone"}).paywalled() {
		t.Error("unexpected paywall")
	}
}

func TestInconclusivePlain404(t *testing.T) {
	if inconclusive(404, analysis{}) {
		t.Error("a plain 404 is conclusive")
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	s := strings.Repeat("é", 10)
	got := truncate(s, 5)
	if len(got) > 5 || !strings.HasPrefix(s, got) {
		t.Errorf("truncate = %q", got)
	}
}

func TestProgressTracker(t *testing.T) {
	pt := NewProgressTracker()
	pt.Update(ProgressUpdate{Status: model.StatusValid, Done: 1, Total: 4})
	pt.Update(ProgressUpdate{Status: model.StatusBroken, Done: 2, Total: 4})

	s := pt.Summary()
	if s.Done != 2 || s.Total != 4 || s.StatusCounts[model.StatusBroken] != 1 {
		t.Errorf("unexpected summary %+v", s)
	}

	time.Sleep(5 * time.Millisecond)
	if pt.EstimateCompletion() <= 0 {
		t.Error("expected a positive estimate")
	}

	var buf bytes.Buffer
	pt.Print(&buf)
	if !strings.Contains(buf.String(), "2/4 validated") || !strings.Contains(buf.String(), "(1 broken)") {
		t.Errorf("unexpected progress line %q", buf.String())
	}
}
