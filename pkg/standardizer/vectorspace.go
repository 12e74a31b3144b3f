package standardizer

import (
	"fmt"

	"github.com/ngmatch/ngmatch/pkg/vectorizer"
)

// vectorSpace owns the vocabulary fitted against the standards and one
// count vector per standard. It is rebuilt from scratch whenever the
// standards change: the vocabulary is global across the corpus, so any
// change alters every vector's dimensionality.
type vectorSpace struct {
	standards []string
	index     map[string]int // standard -> position in standards
	vectors   [][]float32    // one per standard, standards order
	cv        *vectorizer.CountVectorizer
}

// newVectorSpace fits a fresh vocabulary on the standards and vectorizes
// each of them.
func newVectorSpace(standards []string, analyzer vectorizer.Analyzer, ngMin, ngMax int) (*vectorSpace, error) {
	if len(standards) == 0 {
		return nil, ErrEmptyStandards
	}
	for i, s := range standards {
		if s == "" {
			return nil, fmt.Errorf("%w: standard at index %d is blank", ErrEmptyStandards, i)
		}
	}

	cv, err := vectorizer.NewCountVectorizer(analyzer, ngMin, ngMax)
	if err != nil {
		return nil, err
	}
	if err := cv.Fit(standards); err != nil {
		return nil, err
	}

	vectors, err := cv.TransformBatch(standards)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(standards))
	for i, s := range standards {
		if _, dup := index[s]; !dup {
			index[s] = i
		}
	}

	return &vectorSpace{
		standards: standards,
		index:     index,
		vectors:   vectors,
		cv:        cv,
	}, nil
}

// transform vectorizes an arbitrary string into the standards' space.
func (vs *vectorSpace) transform(text string) ([]float32, error) {
	return vs.cv.Transform(text)
}

// contains reports whether the string is itself a standard.
func (vs *vectorSpace) contains(s string) bool {
	_, ok := vs.index[s]
	return ok
}

// dimensions returns the fitted vocabulary size.
func (vs *vectorSpace) dimensions() int {
	return vs.cv.Dimensions()
}
