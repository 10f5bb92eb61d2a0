package relevance

import (
	"math"
	"net/url"
	"slices"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true, "by": true,
	"for": true, "from": true, "has": true, "have": true, "in": true, "is": true, "it": true, "its": true,
	"of": true, "on": true, "or": true, "that": true, "the": true, "this": true, "to": true, "was": true,
	"were": true, "will": true, "with": true, "you": true, "your": true, "we": true, "our": true,
	"see": true, "here": true, "more": true, "read": true, "click": true, "link": true, "page": true,
	"http": true, "https": true, "www": true, "com": true, "org": true, "net": true, "html": true,
	"htm": true, "index": true, "php": true,
}

// tokenize lowercases text and splits it into content words.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}

	return tokens
}

// urlTokens are the words of a url's host and path.
func urlTokens(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return tokenize(rawURL)
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	if i := strings.LastIndexByte(host, '.'); i > 0 {
		host = host[:i]
	}

	return tokenize(host + " " + u.Path)
}

func set(tokens []string) map[string]bool {
	s := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		s[t] = true
	}

	return s
}

// overlap is |a ∩ b| / min(|a|, |b|) over distinct tokens.
func overlap(a, b []string) float64 {
	sa, sb := set(a), set(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}

	shared := 0
	for t := range sa {
		if sb[t] {
			shared++
		}
	}

	return float64(shared) / float64(min(len(sa), len(sb)))
}

// coverage is the share of distinct tokens of a found in b.
func coverage(a, b []string) float64 {
	sa, sb := set(a), set(b)
	if len(sa) == 0 {
		return 0
	}

	found := 0
	for t := range sa {
		if sb[t] {
			found++
		}
	}

	return float64(found) / float64(len(sa))
}

// stringSimilarity compares token-sorted strings with a normalized
// Levenshtein distance, 1 meaning identical.
func stringSimilarity(a, b []string) float64 {
	x := []rune(strings.Join(sortedCopy(a), " "))
	y := []rune(strings.Join(sortedCopy(b), " "))
	if len(x) == 0 && len(y) == 0 {
		return 0
	}

	return 1 - float64(levenshtein(x, y))/float64(max(len(x), len(y)))
}

func sortedCopy(tokens []string) []string {
	out := slices.Clone(tokens)
	slices.Sort(out)

	return slices.Compact(out)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}

	return math.Sqrt(variance / float64(len(values)))
}
