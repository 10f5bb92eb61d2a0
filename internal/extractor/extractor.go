// Package extractor finds hyperlinks in corpus documents together with the
// text around them.
package extractor

import (
	"iter"
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/btraven00/linkmedic/internal/model"
)

// Options configures the link extraction process.
type Options struct {
	// ContextWindow bounds each of the before/after windows, in bytes.
	ContextWindow int
}

// DefaultOptions returns default extraction options.
func DefaultOptions() Options {
	return Options{ContextWindow: 160}
}

// Extractor turns document text into LinkContexts. It holds no state between
// calls, so the same document always yields the same sequence.
type Extractor struct {
	options Options
}

// New creates an extractor.
func New(options Options) *Extractor {
	if options.ContextWindow <= 0 {
		options.ContextWindow = DefaultOptions().ContextWindow
	}

	return &Extractor{options: options}
}

var (
	linkOpenRe   = regexp.MustCompile(`(!?)\[([^\[\]]*)\]\(`)
	definitionRe = regexp.MustCompile(`^ {0,3}\[([^\]]+)\]:[ \t]*(<[^>]*>|\S+)(?:[ \t]+(?:"[^"]*"|'[^']*'|\([^)]*\)))?[ \t]*$`)
	usageRe      = regexp.MustCompile(`\[([^\[\]]+)\](\[([^\[\]]*)\])?`)
	autolinkRe   = regexp.MustCompile(`<((?i:https?|ftp)://[^>\s]+)>`)
	bareRe       = regexp.MustCompile("(?i)\\b(?:(?:https?|ftp)://|www\\.)[^\\s<>\"'`]+")
	fenceRe      = regexp.MustCompile("^ {0,3}(```|~~~)")
	schemeLessRe = regexp.MustCompile(`(?i)^(?:[a-z0-9-]+\.)+(?:com|org|net|io|dev|edu|gov|co|ai|app|info)(?:[/:?#]|$)`)
)

type line struct {
	start int
	text  string
}

type span struct {
	start, end int
}

func (s span) contains(pos int) bool {
	return pos >= s.start && pos < s.end
}

// found is a link located on a line before it is dressed with context.
type found struct {
	url     string
	display string
	form    model.LinkForm
	line    int
	col     int
	around  span
}

// definition is a reference-style link target and its first usage.
type definition struct {
	url     string
	display string
	line    int
	col     int
	around  span
}

// Links lazily yields the links of doc in document order. Each occurrence of
// a url on a line is yielded once.
func (e *Extractor) Links(doc *Document) iter.Seq[model.LinkContext] {
	return func(yield func(model.LinkContext) bool) {
		lines := splitLines(doc.Text)
		skip := skippedLines(lines, doc.BodyStart)
		defs := collectDefinitions(lines, skip)
		seen := make(map[string]bool)

		for i := range lines {
			if skip[i] {
				continue
			}

			for _, f := range scanLine(lines[i], i, defs) {
				link := e.dress(doc, f)
				if seen[link.ContentHash] {
					continue
				}
				seen[link.ContentHash] = true

				if !yield(link) {
					return
				}
			}
		}
	}
}

// Extract collects Links into a slice.
func (e *Extractor) Extract(doc *Document) []model.LinkContext {
	return slices.Collect(e.Links(doc))
}

func (e *Extractor) dress(doc *Document, f found) model.LinkContext {
	window := e.options.ContextWindow
	before := excerpt(doc.Text, max(doc.BodyStart, f.around.start-window), f.around.start)
	after := excerpt(doc.Text, f.around.end, min(len(doc.Text), f.around.end+window))
	lineNo := f.line + 1

	link := model.LinkContext{
		URL:           f.url,
		DisplayText:   f.display,
		Form:          f.form,
		ContextBefore: before,
		ContextAfter:  after,
		Location:      model.Location{File: doc.Path, Line: lineNo, Offset: f.col},
		ContentHash:   model.ContentHash(doc.Path, lineNo, f.url),
		ReadOnly:      doc.ReadOnly,
	}
	if id, ok := ParseIdentifier(f.url); ok {
		link.Identifier = id.String()
	}
	link.Classification = Classify(f.display, before, after, f.url)

	return link
}

func scanLine(ln line, idx int, defs map[string]*definition) []found {
	if m := definitionRe.FindStringSubmatch(ln.text); m != nil {
		d := defs[normalizeLabel(m[1])]
		if d == nil || d.line != idx {
			return nil
		}

		return []found{{url: d.url, display: d.display, form: model.FormReference, line: idx, col: d.col, around: d.around}}
	}

	var (
		out     []found
		covered []span
	)
	isCovered := func(pos int) bool {
		for _, s := range covered {
			if s.contains(pos) {
				return true
			}
		}
		return false
	}

	for _, m := range linkOpenRe.FindAllStringSubmatchIndex(ln.text, -1) {
		if isCovered(m[0]) {
			continue
		}

		url, at, consumed := destination(ln.text[m[1]:])
		if consumed == 0 || !looksExternal(url) {
			continue
		}

		form := model.FormInline
		if m[3] > m[2] {
			form = model.FormImage
		}

		out = append(out, found{
			url:     url,
			display: strings.TrimSpace(ln.text[m[4]:m[5]]),
			form:    form,
			line:    idx,
			col:     m[1] + at,
			around:  span{ln.start + m[0], ln.start + m[1] + consumed},
		})
		covered = append(covered, span{m[0], m[1] + consumed})
	}

	for _, m := range autolinkRe.FindAllStringSubmatchIndex(ln.text, -1) {
		if isCovered(m[0]) {
			continue
		}

		out = append(out, found{
			url:    ln.text[m[2]:m[3]],
			form:   model.FormAutolink,
			line:   idx,
			col:    m[2],
			around: span{ln.start + m[0], ln.start + m[1]},
		})
		covered = append(covered, span{m[0], m[1]})
	}

	for _, m := range bareRe.FindAllStringIndex(ln.text, -1) {
		if isCovered(m[0]) {
			continue
		}

		url := trimBare(ln.text[m[0]:m[1]])
		if !plausibleBare(url) {
			continue
		}

		out = append(out, found{
			url:    url,
			form:   model.FormBare,
			line:   idx,
			col:    m[0],
			around: span{ln.start + m[0], ln.start + m[0] + len(url)},
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].col < out[j].col })

	return out
}

// destination reads a link destination from rest, which starts just after
// the opening parenthesis. It returns the url as written, its offset in rest,
// and how much of rest the link consumes through its closing parenthesis.
// A destination without a title ends at the last ')' of its token, so an
// unbalanced extra parenthesis stays part of the url.
func destination(rest string) (string, int, int) {
	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
		i++
	}
	if i == len(rest) {
		return "", 0, 0
	}

	if rest[i] == '<' {
		end := strings.IndexByte(rest[i:], '>')
		if end < 0 {
			return "", 0, 0
		}
		consumed := len(rest)
		if closer := strings.IndexByte(rest[i+end:], ')'); closer >= 0 {
			consumed = i + end + closer + 1
		}

		return rest[i+1 : i+end], i + 1, consumed
	}

	j := i
	for j < len(rest) && rest[j] != ' ' && rest[j] != '\t' {
		j++
	}
	token := rest[i:j]
	if k := strings.IndexByte(token, '['); k >= 0 {
		token = token[:k]
		j = i + k
	}

	if !titleFollows(rest[j:]) {
		if k := strings.LastIndexByte(token, ')'); k >= 0 {
			return token[:k], i, i + k + 1
		}
	}

	consumed := len(rest)
	if closer := strings.IndexByte(rest[j:], ')'); closer >= 0 {
		consumed = j + closer + 1
	}

	return token, i, consumed
}

func titleFollows(s string) bool {
	s = strings.TrimLeft(s, " \t")
	return s != "" && (s[0] == '"' || s[0] == '\'')
}

func looksExternal(dest string) bool {
	l := strings.ToLower(dest)
	for _, prefix := range []string{"http:", "https:", "ftp://", "www.", "//", "http//", "https//"} {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}

	return schemeLessRe.MatchString(l)
}

// plausibleBare rejects scheme-only and dotless matches.
func plausibleBare(u string) bool {
	host := u
	if i := strings.Index(u, "://"); i >= 0 {
		host = u[i+3:]
	}
	if strings.HasPrefix(strings.ToLower(host), "www.") {
		host = host[4:]
	}

	return strings.Contains(host, ".") || strings.HasPrefix(host, "localhost")
}

// trimBare strips sentence punctuation a reader would not count as part of
// a url written in running text.
func trimBare(u string) string {
	for {
		trimmed := TrimUnbalanced(strings.TrimRight(u, ".,;:!?'\"*_"))
		if trimmed == u {
			return u
		}
		u = trimmed
	}
}

func collectDefinitions(lines []line, skip []bool) map[string]*definition {
	defs := make(map[string]*definition)

	for i, ln := range lines {
		if skip[i] {
			continue
		}
		m := definitionRe.FindStringSubmatchIndex(ln.text)
		if m == nil {
			continue
		}

		label := normalizeLabel(ln.text[m[2]:m[3]])
		url, col := ln.text[m[4]:m[5]], m[4]
		if strings.HasPrefix(url, "<") && strings.HasSuffix(url, ">") {
			url, col = url[1:len(url)-1], col+1
		}
		if _, dup := defs[label]; dup || !looksExternal(url) {
			continue
		}

		defs[label] = &definition{
			url:     url,
			display: strings.TrimSpace(ln.text[m[2]:m[3]]),
			line:    i,
			col:     col,
			around:  span{ln.start, ln.start + len(ln.text)},
		}
	}

	if len(defs) == 0 {
		return defs
	}

	used := make(map[string]bool)
	for i, ln := range lines {
		if skip[i] || definitionRe.MatchString(ln.text) {
			continue
		}

		for _, m := range usageRe.FindAllStringSubmatchIndex(ln.text, -1) {
			text := ln.text[m[2]:m[3]]
			label := text
			if m[4] >= 0 {
				if m[7] > m[6] {
					label = ln.text[m[6]:m[7]]
				}
			} else if m[1] < len(ln.text) && strings.ContainsRune("(:", rune(ln.text[m[1]])) {
				continue
			}

			key := normalizeLabel(label)
			d := defs[key]
			if d == nil || used[key] {
				continue
			}
			used[key] = true
			d.display = strings.TrimSpace(text)
			d.around = span{ln.start + m[0], ln.start + m[1]}
		}
	}

	return defs
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

func splitLines(text string) []line {
	var lines []line
	start := 0
	for start <= len(text) {
		end := strings.IndexByte(text[start:], '\n')
		if end < 0 {
			if start < len(text) {
				lines = append(lines, line{start: start, text: strings.TrimSuffix(text[start:], "\r")})
			}
			break
		}
		lines = append(lines, line{start: start, text: strings.TrimSuffix(text[start:start+end], "\r")})
		start += end + 1
	}

	return lines
}

// skippedLines marks the metadata header and fenced code blocks.
func skippedLines(lines []line, bodyStart int) []bool {
	skip := make([]bool, len(lines))
	fence := ""
	for i, ln := range lines {
		if ln.start < bodyStart {
			skip[i] = true
			continue
		}

		if m := fenceRe.FindStringSubmatch(ln.text); m != nil {
			switch {
			case fence == "":
				fence = m[1]
				skip[i] = true
				continue
			case fence == m[1]:
				fence = ""
				skip[i] = true
				continue
			}
		}
		skip[i] = fence != ""
	}

	return skip
}

// excerpt returns text[from:to] with whitespace collapsed, widened or
// narrowed to rune boundaries.
func excerpt(text string, from, to int) string {
	if from >= to {
		return ""
	}
	for from < to && !utf8.RuneStart(text[from]) {
		from++
	}
	for to > from && to < len(text) && !utf8.RuneStart(text[to]) {
		to--
	}
	if from >= to {
		return ""
	}

	return strings.Join(strings.Fields(text[from:to]), " ")
}
