package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/btraven00/linkmedic/internal/artifacts"
	"github.com/btraven00/linkmedic/internal/orchestrator"
	"github.com/btraven00/linkmedic/pkg/validators/domains"
)

// execute runs the root command in-process and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--quiet"))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestExtractCommand(t *testing.T) {
	corpus := t.TempDir()
	doc := "# Guide\n\nSee [the docs](https://example.com/docs) and https://example.org/faq for more.\n"
	if err := os.WriteFile(filepath.Join(corpus, "guide.md"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "extract", "--corpus", corpus, "--output", "json")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	var r orchestrator.Report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("output is not a json report: %v\n%s", err, out)
	}
	if r.Stage != "extract" {
		t.Errorf("Expected stage extract, got %s", r.Stage)
	}
	if r.Summary.Documents != 1 {
		t.Errorf("Expected 1 document, got %d", r.Summary.Documents)
	}
	if r.Summary.TotalLinks != 2 || r.Summary.UniqueURLs != 2 {
		t.Errorf("Expected 2 links and 2 urls, got %d and %d", r.Summary.TotalLinks, r.Summary.UniqueURLs)
	}

	if _, err := os.Stat(filepath.Join(corpus, ".linkmedic", artifacts.Links)); err != nil {
		t.Errorf("Expected links artifact: %v", err)
	}
}

func TestSetupErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"missing corpus", []string{"extract", "--corpus", filepath.Join(t.TempDir(), "nowhere"), "--output", "human"}},
		{"unknown output", []string{"extract", "--corpus", t.TempDir(), "--output", "yaml"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, tc.args...)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if code := ExitCode(err); code != ExitSetup {
				t.Errorf("Expected exit %d, got %d (%v)", ExitSetup, code, err)
			}
		})
	}

	// later tests share rootCmd
	output = "human"
}

func TestDomainsClassify(t *testing.T) {
	out, err := execute(t, "domains", "--corpus", t.TempDir(), "--output", "json",
		"https://github.com/org/repo", "https://example.com/page")
	if err != nil {
		t.Fatalf("domains failed: %v", err)
	}

	var cs []classification
	if err := json.Unmarshal([]byte(out), &cs); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if len(cs) != 2 {
		t.Fatalf("Expected 2 classifications, got %d", len(cs))
	}
	if cs[0].Kind != domains.KindCodeHosting || cs[0].Validator == "" {
		t.Errorf("Expected code-hosting with a validator, got %+v", cs[0])
	}
	if cs[1].Kind != domains.KindNone || cs[1].Validator != "" {
		t.Errorf("Expected no specialized validator, got %+v", cs[1])
	}
}
