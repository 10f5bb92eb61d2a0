package relevance

import "math"

// idf holds document frequencies fitted over one scoring batch.
type idf struct {
	df map[string]int
	n  int
}

func newIDF() *idf {
	return &idf{df: make(map[string]int)}
}

// add counts one document.
func (f *idf) add(tokens []string) {
	f.n++
	for t := range set(tokens) {
		f.df[t]++
	}
}

// weight is the smoothed inverse document frequency of t.
func (f *idf) weight(t string) float64 {
	return math.Log(float64(1+f.n)/float64(1+f.df[t])) + 1
}

// vector builds the tf-idf vector of a document.
func (f *idf) vector(tokens []string) map[string]float64 {
	if len(tokens) == 0 {
		return nil
	}

	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	for t, c := range tf {
		tf[t] = c / float64(len(tokens)) * f.weight(t)
	}

	return tf
}

// cosine is the cosine similarity of two sparse vectors; empty vectors give 0
// and ok=false.
func cosine(a, b map[string]float64) (sim float64, ok bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, false
	}

	var dot, na, nb float64
	for t, v := range a {
		na += v * v
		if w, found := b[t]; found {
			dot += v * w
		}
	}
	for _, w := range b {
		nb += w * w
	}
	if na == 0 || nb == 0 {
		return 0, false
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
