package validation

import (
	"bytes"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const snippetLimit = 1000

// paywallPhrases mark pages that hide their content behind a subscription.
var paywallPhrases = []string{
	"subscribe to read",
	"subscribe to continue",
	"subscribe to keep reading",
	"subscribers only",
	"subscription required",
	"this content is for subscribers",
	"this article is for subscribers",
	"already a subscriber",
	"become a member to read",
	"members-only story",
	"sign in to read the full",
	"log in to continue reading",
	"create a free account to continue",
	"you have reached your limit of free articles",
	"purchase access to this article",
	"buy this article",
	"get full access to this article",
}

// challengeMarkers identify bot-protection interstitials.
var challengeMarkers = []string{
	"cf-chl",
	"challenge-platform",
	"just a moment...",
	"attention required! | cloudflare",
	"checking your browser",
	"ddos-guard",
	"px-captcha",
	"g-recaptcha",
	"hcaptcha",
	"please enable cookies",
	"are you a robot",
}

// analysis is what the engine learns from a response body.
type analysis struct {
	html           bool
	title          string
	description    string
	snippet        string
	text           string
	clientRendered bool
	challenge      bool
	needsScript    bool
}

func analyze(contentType string, body []byte, pageURL *url.URL) analysis {
	var a analysis

	lowerBody := strings.ToLower(string(body))
	for _, marker := range challengeMarkers {
		if strings.Contains(lowerBody, marker) {
			a.challenge = true
			break
		}
	}

	if !isHTML(contentType, body) {
		return a
	}
	a.html = true

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return a
	}

	a.title = strings.TrimSpace(doc.Find("title").First().Text())
	if a.title == "" {
		a.title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
		a.title = strings.TrimSpace(a.title)
	}
	if val, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		a.description = strings.TrimSpace(val)
	} else if val, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		a.description = strings.TrimSpace(val)
	}

	bodyText := strings.TrimSpace(doc.Find("body").Text())
	if doc.Find("#root, #app, #__next, [data-reactroot]").Length() > 0 && len(bodyText) < 250 {
		a.clientRendered = true
	}
	if doc.Find("template[data-dgst='BAILOUT_TO_CLIENT_SIDE_RENDERING']").Length() > 0 {
		a.clientRendered = true
	}

	doc.Find("script, style, noscript, template").Remove()
	a.text = strings.Join(strings.Fields(doc.Text()), " ")

	lowerText := strings.ToLower(a.text)
	if len(a.text) < 500 && (strings.Contains(lowerText, "enable javascript") ||
		strings.Contains(lowerText, "javascript is required") ||
		strings.Contains(lowerText, "requires javascript")) {
		a.needsScript = true
	}

	if article, err := readability.FromReader(bytes.NewReader(body), pageURL); err == nil {
		a.snippet = truncate(strings.Join(strings.Fields(article.TextContent), " "), snippetLimit)
		if a.description == "" {
			a.description = strings.TrimSpace(article.Excerpt)
		}
	}
	if a.snippet == "" {
		a.snippet = truncate(a.text, snippetLimit)
	}

	return a
}

// paywalled reports whether the visible text carries a subscription notice.
func (a analysis) paywalled() bool {
	lower := strings.ToLower(a.text)
	for _, phrase := range paywallPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	return false
}

func isHTML(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") {
		return true
	}
	if ct != "" && !strings.HasPrefix(ct, "text/plain") {
		return false
	}

	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}

	return s
}
