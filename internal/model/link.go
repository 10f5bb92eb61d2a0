// Package model holds the records passed between pipeline stages.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Classification is the inferred purpose of a link in its document.
type Classification string

// Classifications in priority order.
const (
	ClassCitation      Classification = "citation"
	ClassDocumentation Classification = "documentation"
	ClassResource      Classification = "resource"
	ClassNews          Classification = "news"
	ClassReference     Classification = "reference"
	ClassInline        Classification = "inline"
)

// LinkForm is the syntactic form a link was written in.
type LinkForm string

const (
	FormInline    LinkForm = "inline"
	FormImage     LinkForm = "image"
	FormReference LinkForm = "reference"
	FormAutolink  LinkForm = "autolink"
	FormBare      LinkForm = "bare"
)

// Location points at the literal url in a source document.
// Line is 1-based, Offset is the 0-based byte column within the line.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Offset int    `json:"offset"`
}

// LinkContext is an extracted link plus the text around it.
type LinkContext struct {
	URL            string         `json:"url"`
	DisplayText    string         `json:"display_text"`
	Classification Classification `json:"classification"`
	Form           LinkForm       `json:"form"`
	ContextBefore  string         `json:"context_before"`
	ContextAfter   string         `json:"context_after"`
	Location       Location       `json:"source_location"`
	ContentHash    string         `json:"content_hash"`
	Identifier     string         `json:"identifier,omitempty"`
	ReadOnly       bool           `json:"read_only,omitempty"`
}

// Context joins the display text and both context windows.
func (l LinkContext) Context() string {
	return l.ContextBefore + " " + l.DisplayText + " " + l.ContextAfter
}

// ContentHash derives the stable key for a link occurrence.
func ContentHash(file string, line int, url string) string {
	h := sha256.New()
	h.Write([]byte(file))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(line)))
	h.Write([]byte{0})
	h.Write([]byte(url))

	return hex.EncodeToString(h.Sum(nil))[:32]
}
