// Package vectorizer converts text into n-gram count vectors over a
// fitted vocabulary. It is the counting backend for the standardizer:
// a corpus defines the vocabulary, and any later string is expressed
// as occurrence counts in that fixed space.
package vectorizer

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrEmptyCorpus is returned when Fit is called with no documents
	ErrEmptyCorpus = errors.New("corpus cannot be empty")

	// ErrInvalidNGramRange is returned for a malformed n-gram range
	ErrInvalidNGramRange = errors.New("invalid n-gram range")

	// ErrUnknownAnalyzer is returned for an unrecognized analyzer mode
	ErrUnknownAnalyzer = errors.New("unknown analyzer")

	// ErrNotFitted is returned when Transform is called before Fit
	ErrNotFitted = errors.New("vectorizer has not been fitted")
)

// Vectorizer turns text into count vectors over a learned vocabulary.
type Vectorizer interface {
	// Fit builds the vocabulary from a corpus of documents.
	Fit(docs []string) error

	// Transform converts text into a count vector over the vocabulary.
	Transform(text string) ([]float32, error)

	// TransformBatch converts multiple texts into count vectors.
	TransformBatch(texts []string) ([][]float32, error)

	// Vocabulary returns the fitted vocabulary in index order.
	Vocabulary() []string

	// Dimensions returns the vocabulary size (vector length).
	Dimensions() int
}

// CountVectorizer extracts n-grams of configurable length and mode and
// counts their occurrences against a fitted vocabulary.
type CountVectorizer struct {
	analyzer Analyzer
	ngMin    int
	ngMax    int

	vocab map[string]int // term -> vector index
	terms []string       // index -> term, first-seen order
}

// NewCountVectorizer creates a count vectorizer for n-grams with length
// in [ngMin, ngMax] using the given analyzer mode.
func NewCountVectorizer(analyzer Analyzer, ngMin, ngMax int) (*CountVectorizer, error) {
	if ngMin < 1 || ngMax < 1 {
		return nil, fmt.Errorf("%w: lengths must be positive, got (%d, %d)", ErrInvalidNGramRange, ngMin, ngMax)
	}
	if ngMin > ngMax {
		return nil, fmt.Errorf("%w: min %d exceeds max %d", ErrInvalidNGramRange, ngMin, ngMax)
	}
	if !analyzer.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAnalyzer, analyzer)
	}

	return &CountVectorizer{
		analyzer: analyzer,
		ngMin:    ngMin,
		ngMax:    ngMax,
	}, nil
}

// Fit builds the vocabulary from the corpus. Terms are indexed in
// first-seen order so refitting on an identical corpus reproduces the
// same vector layout. Any previous vocabulary is discarded.
func (v *CountVectorizer) Fit(docs []string) error {
	if len(docs) == 0 {
		return ErrEmptyCorpus
	}

	vocab := make(map[string]int)
	var terms []string

	for _, doc := range docs {
		for _, term := range v.analyze(doc) {
			if _, seen := vocab[term]; !seen {
				vocab[term] = len(terms)
				terms = append(terms, term)
			}
		}
	}

	v.vocab = vocab
	v.terms = terms
	return nil
}

// Transform counts the text's n-grams over the fitted vocabulary.
// N-grams outside the vocabulary are ignored.
func (v *CountVectorizer) Transform(text string) ([]float32, error) {
	if v.vocab == nil {
		return nil, ErrNotFitted
	}

	vec := make([]float32, len(v.terms))
	for _, term := range v.analyze(text) {
		if idx, ok := v.vocab[term]; ok {
			vec[idx]++
		}
	}
	return vec, nil
}

// TransformBatch transforms multiple texts.
func (v *CountVectorizer) TransformBatch(texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := v.Transform(text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Vocabulary returns a copy of the fitted vocabulary in index order.
func (v *CountVectorizer) Vocabulary() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// Dimensions returns the vocabulary size.
func (v *CountVectorizer) Dimensions() int {
	return len(v.terms)
}

// NGramRange returns the configured (min, max) n-gram lengths.
func (v *CountVectorizer) NGramRange() (int, int) {
	return v.ngMin, v.ngMax
}

// analyze extracts the n-grams of a single document according to the
// configured analyzer mode.
func (v *CountVectorizer) analyze(text string) []string {
	switch v.analyzer {
	case AnalyzerWord:
		return wordNGrams(text, v.ngMin, v.ngMax)
	case AnalyzerCharWB:
		return charWBNGrams(text, v.ngMin, v.ngMax)
	default:
		return charNGrams(text, v.ngMin, v.ngMax)
	}
}
