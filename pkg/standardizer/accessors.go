package standardizer

import (
	"github.com/ngmatch/ngmatch/pkg/vectorizer"
)

// Standards returns the canonical strings in their configured order.
func (s *Standardizer) Standards() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.space.standards))
	copy(out, s.space.standards)
	return out
}

// SetStandards replaces the canonical list and refits the vector space
// from scratch. Any existing session is kept but flagged stale: its
// results were computed in a vocabulary that no longer exists, so
// session reads fail with ErrStaleSession until Standardize runs again.
func (s *Standardizer) SetStandards(standards []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	space, err := newVectorSpace(standards, s.analyzer, s.ngMin, s.ngMax)
	if err != nil {
		return wrapError("set_standards", err)
	}

	s.space = space
	if s.cache != nil {
		s.stale = true
	}

	s.logger.Debug("standards replaced",
		"standards", len(standards),
		"vocabulary", space.dimensions())
	return nil
}

// Threshold returns the current questionable-match threshold.
func (s *Standardizer) Threshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

// SetThreshold updates the threshold. Cached similarity mappings stay
// valid; the questionable classification of an existing session is NOT
// recomputed until the next Standardize call or an explicit Reclassify.
func (s *Standardizer) SetThreshold(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = t
}

// NGramRange returns the configured (min, max) n-gram lengths.
func (s *Standardizer) NGramRange() (int, int) {
	return s.ngMin, s.ngMax
}

// Analyzer returns the configured analyzer mode.
func (s *Standardizer) Analyzer() vectorizer.Analyzer {
	return s.analyzer
}

// Vocabulary returns the fitted vocabulary in index order.
func (s *Standardizer) Vocabulary() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.space.cv.Vocabulary()
}

// StandardVectors returns each standard's count vector. Iterate
// Standards() for the fitted order.
func (s *Standardizer) StandardVectors() map[string][]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]float32, len(s.space.standards))
	for i, std := range s.space.standards {
		out[std] = s.space.vectors[i]
	}
	return out
}

// Raw returns the raw inputs of the current session in batch order.
func (s *Standardizer) Raw() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ensureSession(); err != nil {
		return nil, wrapError("raw", err)
	}
	out := make([]string, len(s.cache.raw))
	copy(out, s.cache.raw)
	return out, nil
}

// NewStrings returns the standardized counterpart of every raw input,
// positionally aligned with Raw.
func (s *Standardizer) NewStrings() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ensureSession(); err != nil {
		return nil, wrapError("new_strings", err)
	}
	out := make([]string, len(s.cache.newStrings))
	copy(out, s.cache.newStrings)
	return out, nil
}

// Results returns the full similarity mapping of every distinct raw
// value in the current session.
func (s *Standardizer) Results() (map[string]Matches, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ensureSession(); err != nil {
		return nil, wrapError("results", err)
	}
	out := make(map[string]Matches, len(s.cache.results))
	for k, v := range s.cache.results {
		out[k] = v
	}
	return out, nil
}

// Questionable returns the raw values whose best score fell at or below
// the session threshold, with their best match.
func (s *Standardizer) Questionable() (map[string]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ensureSession(); err != nil {
		return nil, wrapError("questionable", err)
	}
	out := make(map[string]Match, len(s.cache.questionable))
	for k, v := range s.cache.questionable {
		out[k] = v
	}
	return out, nil
}

// InputVectors returns the count vector computed for every distinct raw
// value in the current session.
func (s *Standardizer) InputVectors() (map[string][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ensureSession(); err != nil {
		return nil, wrapError("input_vectors", err)
	}
	out := make(map[string][]float32, len(s.cache.inputVectors))
	for k, v := range s.cache.inputVectors {
		out[k] = v
	}
	return out, nil
}

// Session returns a self-contained snapshot of the current session,
// suitable for persistence or inspection after this instance moves on.
func (s *Standardizer) Session() (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ensureSession(); err != nil {
		return nil, wrapError("session", err)
	}

	sess := &Session{
		CreatedAt:    s.sessionAt,
		Threshold:    s.cache.threshold,
		Analyzer:     string(s.analyzer),
		NGramMin:     s.ngMin,
		NGramMax:     s.ngMax,
		Standards:    make([]string, len(s.space.standards)),
		Raw:          make([]string, len(s.cache.raw)),
		NewStrings:   make([]string, len(s.cache.newStrings)),
		Results:      make(map[string]Matches, len(s.cache.results)),
		Questionable: make(map[string]Match, len(s.cache.questionable)),
		InputVectors: make(map[string][]float32, len(s.cache.inputVectors)),
	}
	copy(sess.Standards, s.space.standards)
	copy(sess.Raw, s.cache.raw)
	copy(sess.NewStrings, s.cache.newStrings)
	for k, v := range s.cache.results {
		mapping := make(Matches, len(v))
		copy(mapping, v)
		sess.Results[k] = mapping
	}
	for k, v := range s.cache.questionable {
		sess.Questionable[k] = v
	}
	for k, v := range s.cache.inputVectors {
		vec := make([]float32, len(v))
		copy(vec, v)
		sess.InputVectors[k] = vec
	}

	return sess, nil
}
