package artifacts

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/btraven00/linkmedic/internal/model"
)

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "work"))

	var missing []model.RepairCandidate
	found, err := s.Load(Repairs, &missing)
	if err != nil {
		t.Fatalf("Load of missing artifact: %v", err)
	}
	if found {
		t.Error("expected missing artifact to report not found")
	}

	want := []model.RepairCandidate{
		model.NewCandidate("https://example.com/a.", "https://example.com/a", model.StrategyStripPunctuation, 98, "removed stray punctuation"),
	}
	if err := s.Save(Repairs, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !s.Exists(Repairs) {
		t.Fatal("artifact not written")
	}

	var got []model.RepairCandidate
	found, err = s.Load(Repairs, &got)
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("got %+v, want %+v", got, want)
	}

	entries, _ := os.ReadDir(s.Dir)
	if len(entries) != 1 {
		t.Errorf("expected only the artifact in the work directory, found %d entries", len(entries))
	}

	if err := s.Remove(Repairs); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(Repairs); err != nil {
		t.Errorf("removing a missing artifact: %v", err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, Links), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	var links []model.LinkContext
	found, err := NewStore(dir).Load(Links, &links)
	if !found || err == nil {
		t.Errorf("expected a parse error, got found=%v err=%v", found, err)
	}
}

func TestEncoderKeepsURLsReadable(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONEncoder(&buf).Encode(map[string]string{"url": "https://example.com/?a=1&b=<2>"}); err != nil {
		t.Fatal(err)
	}

	if !bytes.Contains(buf.Bytes(), []byte("a=1&b=<2>")) {
		t.Errorf("url was escaped: %s", buf.String())
	}
}
