package extractor

import (
	"reflect"
	"strings"
	"testing"

	"github.com/btraven00/linkmedic/internal/model"
)

func extractText(t *testing.T, text string) []model.LinkContext {
	t.Helper()

	doc, err := NewDocument("notes.md", text)
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}

	return New(DefaultOptions()).Extract(doc)
}

func urls(links []model.LinkContext) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.URL)
	}

	return out
}

func TestExtractForms(t *testing.T) {
	testCases := []struct {
		name  string
		text  string
		urls  []string
		forms []model.LinkForm
	}{
		{
			name:  "inline with title",
			text:  `Read [the guide](https://go.dev/doc/effective_go "Effective Go") first.`,
			urls:  []string{"https://go.dev/doc/effective_go"},
			forms: []model.LinkForm{model.FormInline},
		},
		{
			name:  "image",
			text:  `![diagram](https://example.com/img/arch.png)`,
			urls:  []string{"https://example.com/img/arch.png"},
			forms: []model.LinkForm{model.FormImage},
		},
		{
			name:  "autolink and bare",
			text:  `See <https://example.org/a> or https://example.net/b.`,
			urls:  []string{"https://example.org/a", "https://example.net/b"},
			forms: []model.LinkForm{model.FormAutolink, model.FormBare},
		},
		{
			name:  "bare inside parentheses",
			text:  `(mirror at https://mirror.example.com/pkg)`,
			urls:  []string{"https://mirror.example.com/pkg"},
			forms: []model.LinkForm{model.FormBare},
		},
		{
			name:  "balanced parentheses kept",
			text:  `[Go](https://en.wikipedia.org/wiki/Go_(programming_language)) is neat`,
			urls:  []string{"https://en.wikipedia.org/wiki/Go_(programming_language)"},
			forms: []model.LinkForm{model.FormInline},
		},
		{
			name:  "two links on one line",
			text:  `[a](https://a.example.com), [b](https://b.example.com)`,
			urls:  []string{"https://a.example.com", "https://b.example.com"},
			forms: []model.LinkForm{model.FormInline, model.FormInline},
		},
		{
			name:  "relative and anchor links ignored",
			text:  `[next](../next.md) [top](#top) [mail](mailto:a@b.c)`,
			urls:  []string{},
			forms: []model.LinkForm{},
		},
		{
			name:  "scheme-less destination kept for repair",
			text:  `[site](www.example.com/page)`,
			urls:  []string{"www.example.com/page"},
			forms: []model.LinkForm{model.FormInline},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			links := extractText(t, tc.text)
			if got := urls(links); !reflect.DeepEqual(got, tc.urls) {
				t.Fatalf("urls = %q, want %q", got, tc.urls)
			}
			for i, l := range links {
				if l.Form != tc.forms[i] {
					t.Errorf("link %d form = %s, want %s", i, l.Form, tc.forms[i])
				}
			}
		})
	}
}

func TestExtractKeepsUnbalancedParenthesis(t *testing.T) {
	links := extractText(t, "[guide](https://arxiv.org/abs/2104.08935))")
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}

	l := links[0]
	if l.URL != "https://arxiv.org/abs/2104.08935)" {
		t.Errorf("url = %q", l.URL)
	}
	if l.DisplayText != "guide" {
		t.Errorf("display = %q", l.DisplayText)
	}
	if l.Identifier != "arxiv:2104.08935" {
		t.Errorf("identifier = %q", l.Identifier)
	}
	if l.Location.Line != 1 || l.Location.Offset != len("[guide](") {
		t.Errorf("location = %+v", l.Location)
	}
}

func TestExtractReferenceDefinitions(t *testing.T) {
	text := strings.Join([]string{
		"# Title",
		"",
		"The [benchmark paper][bench] reports results.",
		"",
		"[bench]: https://example.com/bench.pdf \"Bench\"",
		"[unused]: https://example.com/unused",
	}, "\n")

	links := extractText(t, text)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %q", len(links), urls(links))
	}

	bench := links[0]
	if bench.Form != model.FormReference || bench.URL != "https://example.com/bench.pdf" {
		t.Fatalf("unexpected first link %+v", bench)
	}
	if bench.Location.Line != 5 {
		t.Errorf("definition line = %d, want 5", bench.Location.Line)
	}
	if bench.DisplayText != "benchmark paper" {
		t.Errorf("display = %q", bench.DisplayText)
	}
	if !strings.Contains(bench.ContextAfter, "reports results") {
		t.Errorf("context after = %q, expected usage context", bench.ContextAfter)
	}
	if bench.Classification != model.ClassCitation {
		t.Errorf("classification = %s", bench.Classification)
	}

	if links[1].DisplayText != "unused" {
		t.Errorf("unused display = %q", links[1].DisplayText)
	}
}

func TestExtractSkipsFrontMatterAndCode(t *testing.T) {
	text := strings.Join([]string{
		"---",
		"title: Notes",
		"source: https://example.com/front",
		"---",
		"Intro https://example.com/body",
		"```",
		"curl https://example.com/code",
		"```",
		"Outro",
	}, "\n")

	doc, err := NewDocument("notes.md", text)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Meta["title"] != "Notes" {
		t.Errorf("meta = %v", doc.Meta)
	}

	links := New(DefaultOptions()).Extract(doc)
	if got := urls(links); !reflect.DeepEqual(got, []string{"https://example.com/body"}) {
		t.Fatalf("urls = %q", got)
	}
	if links[0].Location.Line != 5 {
		t.Errorf("line = %d, want absolute line 5", links[0].Location.Line)
	}
}

func TestExtractIsDeterministicAndRestartable(t *testing.T) {
	text := "A [x](https://x.example.com) and https://y.example.com\n[z]: https://z.example.com\nuse [z]"
	doc, err := NewDocument("d.md", text)
	if err != nil {
		t.Fatal(err)
	}

	ex := New(DefaultOptions())
	first := ex.Extract(doc)
	second := ex.Extract(doc)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("re-extraction produced a different sequence")
	}

	count := 0
	for range ex.Links(doc) {
		count++
		break
	}
	if count != 1 {
		t.Fatal("early break did not stop iteration")
	}
}

func TestContentHashDistinguishesLines(t *testing.T) {
	links := extractText(t, "https://dup.example.com\nhttps://dup.example.com https://dup.example.com")
	if len(links) != 2 {
		t.Fatalf("expected one link per line, got %d", len(links))
	}
	if links[0].ContentHash == links[1].ContentHash {
		t.Error("same url on different lines must hash differently")
	}
}

func TestContextWindowBounds(t *testing.T) {
	before := strings.Repeat("word ", 100)
	links := New(Options{ContextWindow: 20}).Extract(mustDoc(t, before+"[x](https://w.example.com) tail"))
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if len(links[0].ContextBefore) > 20 {
		t.Errorf("context before too long: %q", links[0].ContextBefore)
	}
	if links[0].ContextAfter != "tail" {
		t.Errorf("context after = %q", links[0].ContextAfter)
	}
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		display, before, url string
		want                 model.Classification
	}{
		{"the paper", "", "https://example.com/x", model.ClassCitation},
		{"here", "", "https://doi.org/10.1000/182", model.ClassCitation},
		{"API docs", "", "https://example.com/x", model.ClassDocumentation},
		{"intro", "", "https://proj.readthedocs.io/en/latest/", model.ClassDocumentation},
		{"download the dataset", "", "https://example.com/x", model.ClassResource},
		{"announcement", "the team", "https://example.com/x", model.ClassNews},
		{"Wikipedia", "", "https://example.com/x", model.ClassReference},
		{"click", "", "https://example.com/x", model.ClassInline},
		// citation outranks documentation
		{"docs for the study", "", "https://example.com/x", model.ClassCitation},
	}

	for _, tc := range testCases {
		if got := Classify(tc.display, tc.before, "", tc.url); got != tc.want {
			t.Errorf("Classify(%q, %q) = %s, want %s", tc.display, tc.url, got, tc.want)
		}
	}
}

func TestParseIdentifier(t *testing.T) {
	testCases := []struct {
		url       string
		id        string
		canonical string
	}{
		{"https://arxiv.org/pdf/2104.08935v2.pdf", "arxiv:2104.08935", "https://arxiv.org/abs/2104.08935"},
		{"http://dx.doi.org/10.1016/S0140-6736(20)30183-5", "doi:10.1016/S0140-6736(20)30183-5", "https://doi.org/10.1016/S0140-6736(20)30183-5"},
		{"https://doi.org/10.1038/nature12373).", "doi:10.1038/nature12373", "https://doi.org/10.1038/nature12373"},
		{"https://www.ncbi.nlm.nih.gov/pubmed/31978945", "pubmed:31978945", "https://pubmed.ncbi.nlm.nih.gov/31978945/"},
	}

	for _, tc := range testCases {
		id, ok := ParseIdentifier(tc.url)
		if !ok {
			t.Errorf("no identifier in %s", tc.url)
			continue
		}
		if id.String() != tc.id {
			t.Errorf("ParseIdentifier(%s) = %s, want %s", tc.url, id, tc.id)
		}
		if id.CanonicalURL() != tc.canonical {
			t.Errorf("CanonicalURL(%s) = %s, want %s", tc.url, id.CanonicalURL(), tc.canonical)
		}
	}

	if _, ok := ParseIdentifier("https://example.com/abs/1234"); ok {
		t.Error("unexpected identifier for plain url")
	}
}

func mustDoc(t *testing.T, text string) *Document {
	t.Helper()
	doc, err := NewDocument("doc.md", text)
	if err != nil {
		t.Fatal(err)
	}

	return doc
}
