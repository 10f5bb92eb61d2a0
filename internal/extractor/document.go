package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv/v2"
	"gopkg.in/yaml.v3"
)

// ErrNotUTF8 is returned for text documents that do not decode as UTF-8.
var ErrNotUTF8 = errors.New("document is not valid UTF-8")

// convertedExtensions are read through docconv and never rewritten.
var convertedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".odt":  true,
	".rtf":  true,
}

// Document is one corpus file ready for link extraction.
type Document struct {
	// Path is relative to the corpus root and slash separated.
	Path string
	// AbsPath is where the document lives on disk.
	AbsPath string
	Text    string
	// BodyStart is the byte offset of the first line after the metadata header.
	BodyStart int
	Meta      map[string]any
	ReadOnly  bool
}

// NewDocument parses text, splitting off a YAML front matter header.
func NewDocument(path, text string) (*Document, error) {
	doc := &Document{Path: path, AbsPath: path, Text: text}

	header, start, ok := frontMatter(text)
	if !ok {
		return doc, nil
	}

	doc.BodyStart = start
	if err := yaml.Unmarshal([]byte(header), &doc.Meta); err != nil {
		return nil, fmt.Errorf("parsing metadata header of %s: %w", path, err)
	}

	return doc, nil
}

// LoadDocument reads rel from root. Binary formats are converted to text and
// marked read-only.
func LoadDocument(root, rel string) (*Document, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))

	if convertedExtensions[strings.ToLower(filepath.Ext(rel))] {
		resp, err := docconv.ConvertPath(abs)
		if err != nil {
			return nil, fmt.Errorf("converting %s: %w", rel, err)
		}

		return &Document{Path: rel, AbsPath: abs, Text: resp.Body, ReadOnly: true}, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s: %w", rel, ErrNotUTF8)
	}

	doc, err := NewDocument(rel, string(bytes.TrimPrefix(data, []byte("\ufeff"))))
	if err != nil {
		return nil, err
	}
	doc.AbsPath = abs

	return doc, nil
}

// frontMatter returns the header between leading "---" fences and the offset
// just past the closing fence line.
func frontMatter(text string) (string, int, bool) {
	if !strings.HasPrefix(text, "---\n") && !strings.HasPrefix(text, "---\r\n") {
		return "", 0, false
	}

	pos := strings.Index(text, "\n") + 1
	for pos < len(text) {
		end := strings.IndexByte(text[pos:], '\n')
		line := text[pos:]
		next := len(text)
		if end >= 0 {
			line = text[pos : pos+end]
			next = pos + end + 1
		}

		if trimmed := strings.TrimRight(line, "\r \t"); trimmed == "---" || trimmed == "..." {
			first := strings.Index(text, "\n") + 1
			return text[first:pos], next, true
		}
		pos = next
	}

	return "", 0, false
}
