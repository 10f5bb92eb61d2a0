package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/btraven00/linkmedic/internal/model"
	"github.com/btraven00/linkmedic/pkg/validators/domains"
)

func githubAPI(t *testing.T, repos map[string]repository) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected token header, got %q", got)
		}
		info, ok := repos[strings.TrimPrefix(r.URL.Path, "/repos/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestCodeHostingValidator(t *testing.T) {
	server := githubAPI(t, map[string]repository{
		"spf13/cobra":   {FullName: "spf13/cobra", DefaultBranch: "main", Stars: 10},
		"old/name":      {FullName: "new-owner/new-name", DefaultBranch: "main"},
		"legacy/tool":   {FullName: "legacy/tool", Archived: true, DefaultBranch: "master"},
		"moved/branchy": {FullName: "moved/branchy", DefaultBranch: "main"},
	})
	v := NewCodeHostingValidator(server.Client(), server.URL, "secret")

	testCases := []struct {
		name      string
		url       string
		valid     bool
		issue     string
		suggested string
	}{
		{
			name:  "healthy repository",
			url:   "https://github.com/spf13/cobra",
			valid: true,
		},
		{
			name:  "missing repository",
			url:   "https://github.com/nobody/nothing",
			valid: false,
			issue: "repository not found",
		},
		{
			name:      "renamed repository",
			url:       "https://github.com/old/name/blob/main/README.md",
			valid:     true,
			issue:     "repository moved; try https://github.com/new-owner/new-name/blob/main/README.md",
			suggested: "https://github.com/new-owner/new-name/blob/main/README.md",
		},
		{
			name:  "archived repository",
			url:   "https://github.com/legacy/tool",
			valid: true,
			issue: "repository archived",
		},
		{
			name:      "stale default branch",
			url:       "https://github.com/moved/branchy/tree/master/docs",
			valid:     true,
			issue:     `links to branch "master" but the default branch is "main"`,
			suggested: "https://github.com/moved/branchy/tree/main/docs",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := v.Validate(context.Background(), tc.url)
			if err != nil {
				t.Fatalf("Validate(%q): %v", tc.url, err)
			}

			if result.Valid != tc.valid {
				t.Errorf("Expected valid=%v, got %v", tc.valid, result.Valid)
			}
			if tc.issue == "" && len(result.Issues) != 0 {
				t.Errorf("Expected no issues, got %v", result.Issues)
			}
			if tc.issue != "" && !slices.Contains(result.Issues, tc.issue) {
				t.Errorf("Expected issue %q, got %v", tc.issue, result.Issues)
			}
			if result.SuggestedURL != tc.suggested {
				t.Errorf("Expected suggested url %q, got %q", tc.suggested, result.SuggestedURL)
			}
		})
	}
}

func TestCodeHostingValidator_OtherForges(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	v := NewCodeHostingValidator(server.Client(), server.URL, "")
	result, err := v.Validate(context.Background(), server.URL+"/group/project")
	if err != nil {
		t.Fatal(err)
	}

	checkResult(t, result, false, "code hosting returns HTTP 404")
}

func TestVideoValidator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		switch {
		case strings.HasSuffix(target, "v=public"):
			json.NewEncoder(w).Encode(oembed{Title: "Gopher talk", AuthorName: "golang"})
		case strings.HasSuffix(target, "v=private"):
			w.WriteHeader(http.StatusUnauthorized)
		case strings.Contains(r.URL.Path, "vimeo"):
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	v := NewVideoValidator(server.Client(), server.URL+"/youtube", server.URL+"/vimeo")

	result, err := v.Validate(context.Background(), "https://www.youtube.com/watch?v=public")
	if err != nil {
		t.Fatal(err)
	}
	checkResult(t, result, true)
	if title := result.Metadata["title"]; title != "Gopher talk" {
		t.Errorf("Expected title Gopher talk, got %v", title)
	}

	result, err = v.Validate(context.Background(), "https://www.youtube.com/watch?v=private")
	if err != nil {
		t.Fatal(err)
	}
	checkResult(t, result, false, "video is private or embedding disabled")

	result, err = v.Validate(context.Background(), "https://vimeo.com/123")
	if err != nil {
		t.Fatal(err)
	}
	checkResult(t, result, false, "video unavailable")
}

func TestDocsValidator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	v := NewDocsValidator(server.Client())
	result, err := v.Validate(context.Background(), server.URL+"/docs/v1.4/install")
	if err != nil {
		t.Fatal(err)
	}

	checkResult(t, result, true, "links to a pinned version")
	if want := server.URL + "/docs/latest/install"; result.SuggestedURL != want {
		t.Errorf("Expected suggested url %s, got %s", want, result.SuggestedURL)
	}
}

func TestSocialValidator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/in/walled":
			w.WriteHeader(999)
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Write([]byte("ok"))
		}
	}))
	defer server.Close()

	v := NewSocialValidator(server.Client())

	result, err := v.Validate(context.Background(), "https://twitter.com/golang")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid || result.SuggestedURL != "https://x.com/golang" {
		t.Errorf("Expected a valid link suggesting https://x.com/golang, got %+v", result)
	}

	result, err = v.Validate(context.Background(), server.URL+"/in/walled")
	if err != nil {
		t.Fatal(err)
	}
	checkResult(t, result, true, "profile requires login; validity not verifiable")

	result, err = v.Validate(context.Background(), server.URL+"/gone")
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Error("Expected a missing profile to be invalid")
	}
}

func TestImageValidator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logo.png":
			w.Header().Set("Content-Type", "image/png")
		case "/huge.png":
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("Content-Length", "10485760")
		case "/page.png":
			w.Header().Set("Content-Type", "text/html")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	v := NewImageValidator(server.Client())

	testCases := []struct {
		path   string
		valid  bool
		issues int
	}{
		{"/logo.png", true, 0},
		{"/huge.png", true, 1},
		{"/page.png", false, 1},
		{"/missing.png", false, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			result, err := v.Validate(context.Background(), server.URL+tc.path)
			if err != nil {
				t.Fatal(err)
			}
			if result.Valid != tc.valid {
				t.Errorf("Expected valid=%v, got %v", tc.valid, result.Valid)
			}
			if len(result.Issues) != tc.issues {
				t.Errorf("Expected %d issues, got %v", tc.issues, result.Issues)
			}
		})
	}
}

func TestNewSet(t *testing.T) {
	set := NewSet(Options{})

	for _, kind := range domains.Kinds() {
		v := set.For(kind)
		if v == nil {
			t.Fatalf("No validator for %s", kind)
		}
		if v.Kind() != kind {
			t.Errorf("Validator for %s reports kind %s", kind, v.Kind())
		}
	}
	if got, want := len(set.ListValidators()), len(domains.Kinds()); got != want {
		t.Errorf("Expected %d validators, got %d", want, got)
	}
}

func checkResult(t *testing.T, result *model.SpecializedResult, valid bool, issues ...string) {
	t.Helper()
	if result.Valid != valid {
		t.Errorf("Expected valid=%v, got %v", valid, result.Valid)
	}
	if !slices.Equal(result.Issues, issues) {
		t.Errorf("Expected issues %v, got %v", issues, result.Issues)
	}
}
