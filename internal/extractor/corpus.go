package extractor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/btraven00/linkmedic/internal/model"
)

// ErrCorpusMissing is returned when the corpus root does not exist.
var ErrCorpusMissing = errors.New("corpus directory not found")

// Corpus locates documents under a root directory.
type Corpus struct {
	Root    string
	Include []string
	Exclude []string
}

// Skipped records a document that could not be read.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ScanResult is the outcome of extracting links from a whole corpus.
type ScanResult struct {
	Documents int                 `json:"documents"`
	Links     []model.LinkContext `json:"links"`
	Skipped   []Skipped           `json:"skipped,omitempty"`
}

// Files lists matching documents relative to Root, sorted.
func (c *Corpus) Files() ([]string, error) {
	info, err := os.Stat(c.Root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrCorpusMissing, c.Root)
	}

	fsys := os.DirFS(c.Root)
	seen := make(map[string]bool)

	var files []string
	for _, pattern := range c.Include {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("bad include pattern %q: %w", pattern, err)
		}

		for _, m := range matches {
			if seen[m] || c.excluded(m) {
				continue
			}
			if st, err := fs.Stat(fsys, m); err != nil || st.IsDir() {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}

	sort.Strings(files)

	return files, nil
}

// Matches reports whether a slash-separated path relative to Root would be
// scanned.
func (c *Corpus) Matches(rel string) bool {
	if c.excluded(rel) {
		return false
	}
	for _, pattern := range c.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}

	return false
}

func (c *Corpus) excluded(rel string) bool {
	for _, pattern := range c.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}

	return false
}

// Scan extracts links from every document. Unreadable documents are skipped
// and logged; only a missing root or a cancelled context aborts the scan.
func (c *Corpus) Scan(ctx context.Context, ex *Extractor, logger *zap.Logger) (*ScanResult, error) {
	files, err := c.Files()
	if err != nil {
		return nil, err
	}

	result := &ScanResult{}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		doc, err := LoadDocument(c.Root, rel)
		if err != nil {
			logger.Warn("skipping document", zap.String("file", rel), zap.Error(err))
			result.Skipped = append(result.Skipped, Skipped{Path: rel, Reason: err.Error()})
			continue
		}

		result.Documents++
		for link := range ex.Links(doc) {
			result.Links = append(result.Links, link)
		}
	}

	logger.Debug("corpus scanned",
		zap.Int("documents", result.Documents),
		zap.Int("links", len(result.Links)),
		zap.Int("skipped", len(result.Skipped)))

	return result, nil
}
