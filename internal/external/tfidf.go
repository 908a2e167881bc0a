package external

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vcf-dupe/internal/config"
	"github.com/sells-group/vcf-dupe/internal/contact"
)

// TFIDF scores pairs by cosine similarity of TF-IDF vectors built from each
// record's name, emails and phones. It must be prepared with the corpus
// before scoring.
type TFIDF struct {
	mu   sync.RWMutex
	docs int
	df   map[string]int
}

// NewTFIDF creates an unprepared TF-IDF backend.
func NewTFIDF() *TFIDF {
	return &TFIDF{}
}

// Name implements Backend.
func (t *TFIDF) Name() string { return config.BackendTFIDF }

// Prepare computes document frequencies over records. Calling it again
// replaces the corpus.
func (t *TFIDF) Prepare(records []*contact.Record) {
	df := make(map[string]int)
	for _, r := range records {
		seen := make(map[string]bool)
		for _, term := range terms(r) {
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}

	t.mu.Lock()
	t.docs = len(records)
	t.df = df
	t.mu.Unlock()
}

// Score implements Backend.
func (t *TFIDF) Score(_ context.Context, a, b *contact.Record) (float64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.df == nil {
		return 0, unavailable(t.Name(), eris.New("tfidf: not prepared"))
	}
	va, vb := t.vector(terms(a)), t.vector(terms(b))
	if len(va) == 0 || len(vb) == 0 {
		return 0, unavailable(t.Name(), eris.New("tfidf: record has no terms"))
	}

	var dot float64
	for term, wa := range va {
		dot += wa * vb[term]
	}
	return math.Min(dot, 1), nil
}

// vector returns the L2-normalized tf-idf weights. idf is smoothed so terms
// missing from the corpus still weigh in.
func (t *TFIDF) vector(terms []string) map[string]float64 {
	tf := make(map[string]float64, len(terms))
	for _, term := range terms {
		tf[term]++
	}

	var norm float64
	for term, n := range tf {
		idf := math.Log(float64(1+t.docs)/float64(1+t.df[term])) + 1
		tf[term] = n * idf
		norm += tf[term] * tf[term]
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for term := range tf {
		tf[term] /= norm
	}
	return tf
}

// terms tokenizes "name email tel" into runs of at least two letters or
// digits.
func terms(r *contact.Record) []string {
	view := contact.Normalize(r)
	parts := []string{view.Name.Value}
	for _, k := range view.Emails {
		parts = append(parts, k.Value)
	}
	for _, k := range view.Phones {
		parts = append(parts, k.Value)
	}

	var out []string
	for _, tok := range strings.FieldsFunc(strings.Join(parts, " "), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		if len([]rune(tok)) >= 2 {
			out = append(out, tok)
		}
	}
	return out
}
