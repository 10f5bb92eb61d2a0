package domains

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/btraven00/linkmedic/internal/model"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		url  string
		want Kind
	}{
		{"https://github.com/spf13/cobra", KindCodeHosting},
		{"https://www.github.com/spf13/cobra/tree/main/doc", KindCodeHosting},
		{"https://gitlab.com/gitlab-org/gitlab", KindCodeHosting},
		{"https://www.youtube.com/watch?v=abc", KindVideo},
		{"https://youtu.be/abc", KindVideo},
		{"https://vimeo.com/76979871", KindVideo},
		{"https://docs.python.org/3/library/os.html", KindDocumentation},
		{"https://requests.readthedocs.io/en/latest/", KindDocumentation},
		{"https://example.com/docs/intro", KindDocumentation},
		{"https://twitter.com/golang", KindSocial},
		{"https://www.linkedin.com/in/someone", KindSocial},
		{"https://example.com/diagram.PNG", KindImage},
		{"https://github.com/org/repo/raw/main/logo.svg", KindImage},
		{"https://example.com/article", KindNone},
		{"not a url", KindNone},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			if got := Classify(tc.url); got != tc.want {
				t.Errorf("Classify(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}

func TestUnpinVersion(t *testing.T) {
	testCases := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://docs.python.org/2.7/library/os.html", "https://docs.python.org/3/library/os.html", true},
		{"https://docs.python.org/3/library/os.html", "", false},
		{"https://requests.readthedocs.io/en/1.2/user/quickstart/", "https://requests.readthedocs.io/en/stable/user/quickstart/", true},
		{"https://example.com/docs/v1.4/guide", "https://example.com/docs/latest/guide", true},
		{"https://example.com/docs/master/guide", "https://example.com/docs/latest/guide", true},
		{"https://example.com/docs/guide", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			got, ok := UnpinVersion(tc.url)
			if ok != tc.ok || got != tc.want {
				t.Errorf("UnpinVersion(%q) = %q, %v; want %q, %v", tc.url, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestRenameDomain(t *testing.T) {
	testCases := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://twitter.com/golang/status/1", "https://x.com/golang/status/1", true},
		{"http://mobile.twitter.com/golang", "https://x.com/golang", true},
		{"https://blog.golang.org/context", "https://go.dev/blog/context", true},
		{"https://golang.org/pkg/net/http/", "https://pkg.go.dev/net/http/", true},
		{"http://requests.readthedocs.org/en/latest/", "https://requests.readthedocs.io/en/latest/", true},
		{"https://x.com/golang", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			got, ok := RenameDomain(tc.url)
			if ok != tc.ok || got != tc.want {
				t.Errorf("RenameDomain(%q) = %q, %v; want %q, %v", tc.url, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestSameLocation(t *testing.T) {
	testCases := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "https://example.com/a", "https://example.com/a", true},
		{"non-ascii escaped", "https://de.wikipedia.org/wiki/Käse", "https://de.wikipedia.org/wiki/K%C3%A4se", true},
		{"space escaped", "https://example.com/a b", "https://example.com/a%20b", true},
		{"empty path", "https://example.com", "https://example.com/", true},
		{"scheme and host case", "HTTPS://Example.COM/Path", "https://example.com/Path", true},
		{"default port", "https://example.com:443/a", "https://example.com/a", true},
		{"fragment", "https://example.com/a#intro", "https://example.com/a", true},
		{"query order", "https://example.com/?b=2&a=1", "https://example.com/?a=1&b=2", true},
		{"path case", "https://example.com/Path", "https://example.com/path", false},
		{"trailing slash", "https://example.com/docs", "https://example.com/docs/", false},
		{"other path", "https://example.com/old", "https://example.com/new", false},
		{"scheme upgrade", "http://example.com/a", "https://example.com/a", false},
		{"other host", "https://example.com/a", "https://www.example.com/a", false},
		{"other query", "https://example.com/?id=1", "https://example.com/?id=2", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SameLocation(tc.a, tc.b); got != tc.want {
				t.Errorf("SameLocation(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestRepository(t *testing.T) {
	owner, repo, rest, ok := Repository("https://github.com/spf13/cobra.git")
	if !ok {
		t.Fatal("Expected a repository url")
	}
	if owner != "spf13" || repo != "cobra" || rest != "" {
		t.Errorf("Repository = %q, %q, %q", owner, repo, rest)
	}

	_, _, rest, ok = Repository("https://github.com/golang/go/tree/master/src/net")
	if !ok || rest != "tree/master/src/net" {
		t.Errorf("Expected rest tree/master/src/net, got %q (ok=%v)", rest, ok)
	}

	for _, u := range []string{"https://github.com/golang", "https://example.com/a/b"} {
		if _, _, _, ok := Repository(u); ok {
			t.Errorf("Repository(%q) should not match", u)
		}
	}
}

type fakeValidator struct {
	kind  Kind
	calls atomic.Int32
	err   error
}

func (f *fakeValidator) Name() string        { return "fake-" + string(f.kind) }
func (f *fakeValidator) Kind() Kind          { return f.kind }
func (f *fakeValidator) Description() string { return "fake" }
func (f *fakeValidator) Patterns() []Pattern { return nil }

func (f *fakeValidator) Validate(ctx context.Context, url string) (*model.SpecializedResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &model.SpecializedResult{Valid: true}, nil
}

func TestSet_ValidateAll(t *testing.T) {
	code := &fakeValidator{kind: KindCodeHosting}
	video := &fakeValidator{kind: KindVideo, err: errors.New("boom")}
	set := &Set{CodeHosting: code, Video: video, Concurrency: 2}

	results, err := set.ValidateAll(context.Background(), []string{
		"https://github.com/a/b",
		"https://github.com/a/b",
		"https://github.com/c/d",
		"https://youtu.be/x",
		"https://example.com/plain",
		"https://docs.example.com/guide",
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
	if n := code.calls.Load(); n != 2 {
		t.Errorf("Duplicates are checked once; expected 2 code-hosting calls, got %d", n)
	}
	if n := video.calls.Load(); n != 1 {
		t.Errorf("Expected 1 video call, got %d", n)
	}

	r := results["https://github.com/a/b"]
	if r == nil {
		t.Fatal("Missing result for https://github.com/a/b")
	}
	if r.URL != "https://github.com/a/b" || r.Kind != string(KindCodeHosting) || r.Validator != "fake-code-hosting" {
		t.Errorf("Unexpected result %+v", r)
	}
}

func TestSet_ListValidators(t *testing.T) {
	set := &Set{Image: &fakeValidator{kind: KindImage}, CodeHosting: &fakeValidator{kind: KindCodeHosting}}

	info := set.ListValidators()
	if len(info) != 2 {
		t.Fatalf("Expected 2 validators, got %d", len(info))
	}
	if info[0].Kind != KindCodeHosting || info[1].Kind != KindImage {
		t.Errorf("Expected display order code-hosting, image; got %s, %s", info[0].Kind, info[1].Kind)
	}
}

func TestSet_ForUnknownKindPanics(t *testing.T) {
	set := &Set{}
	if v := set.For(KindNone); v != nil {
		t.Errorf("Expected no validator for KindNone, got %v", v)
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected a panic for an unknown kind")
		}
	}()
	set.For(Kind("bogus"))
}
