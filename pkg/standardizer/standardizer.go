// Package standardizer maps noisy free-form strings onto a fixed list
// of canonical standards by cosine similarity in an n-gram count space.
// The standards define the vocabulary; every input is vectorized into
// that space, scored against every standard, and resolved to its best
// match, with low-confidence matches flagged as questionable.
package standardizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ngmatch/ngmatch/pkg/vectorizer"
)

// DefaultThreshold is the confidence cutoff below which (inclusive) a
// best match is considered questionable.
const DefaultThreshold = 0.45

// Standardizer owns a fitted vector space over its standards and the
// results of the most recent standardization batch. One instance serves
// one logical session at a time: every Standardize call replaces the
// previous session, and lookups read only the latest one.
type Standardizer struct {
	mu sync.RWMutex

	space     *vectorSpace
	analyzer  vectorizer.Analyzer
	ngMin     int
	ngMax     int
	threshold float64
	workers   int
	logger    Logger

	cache     *matchCache
	stale     bool // standards changed after the session was computed
	sessionAt time.Time
}

// Option is a functional option for configuring a Standardizer.
type Option func(*Standardizer)

// WithNGramRange sets the minimum and maximum n-gram lengths used to
// build the vocabulary (default 2, 2).
func WithNGramRange(min, max int) Option {
	return func(s *Standardizer) {
		s.ngMin = min
		s.ngMax = max
	}
}

// WithAnalyzer sets the n-gram analyzer mode (default char).
func WithAnalyzer(a vectorizer.Analyzer) Option {
	return func(s *Standardizer) {
		s.analyzer = a
	}
}

// WithThreshold sets the questionable-match threshold (default 0.45).
func WithThreshold(t float64) Option {
	return func(s *Standardizer) {
		s.threshold = t
	}
}

// WithLogger sets the logger (default: discard).
func WithLogger(l Logger) Option {
	return func(s *Standardizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkers caps the number of goroutines used to score distinct
// inputs concurrently (default: GOMAXPROCS worth of workers).
func WithWorkers(n int) Option {
	return func(s *Standardizer) {
		s.workers = n
	}
}

// New creates a Standardizer fitted against the given standards. The
// standards list must be non-empty and free of blank entries; its order
// is preserved and decides ties between equally similar candidates.
func New(standards []string, opts ...Option) (*Standardizer, error) {
	s := &Standardizer{
		analyzer:  vectorizer.AnalyzerChar,
		ngMin:     2,
		ngMax:     2,
		threshold: DefaultThreshold,
		logger:    NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.ngMin < 1 || s.ngMax < 1 {
		return nil, wrapError("new", fmt.Errorf("%w: lengths must be positive, got (%d, %d)", ErrInvalidNGramRange, s.ngMin, s.ngMax))
	}
	if s.ngMin > s.ngMax {
		return nil, wrapError("new", fmt.Errorf("%w: min %d exceeds max %d", ErrInvalidNGramRange, s.ngMin, s.ngMax))
	}
	if _, err := vectorizer.ParseAnalyzer(string(s.analyzer)); err != nil {
		return nil, wrapError("new", fmt.Errorf("%w: %q", ErrInvalidAnalyzer, s.analyzer))
	}

	space, err := newVectorSpace(standards, s.analyzer, s.ngMin, s.ngMax)
	if err != nil {
		return nil, wrapError("new", err)
	}
	s.space = space

	s.logger.Debug("standardizer fitted",
		"standards", len(standards),
		"vocabulary", space.dimensions(),
		"analyzer", s.analyzer)

	return s, nil
}

// StandardizeOption configures a single Standardize call.
type StandardizeOption func(*standardizeConfig)

type standardizeConfig struct {
	threshold *float64
}

// WithSessionThreshold overrides the questionable threshold for this
// call. The override sticks: it becomes the instance threshold, just as
// if SetThreshold had been called first.
func WithSessionThreshold(t float64) StandardizeOption {
	return func(c *standardizeConfig) {
		c.threshold = &t
	}
}

// Standardize scores every raw input against every standard and stores
// the outcome as the current session, replacing any previous one.
// Repeated raw values are vectorized and scored once.
func (s *Standardizer) Standardize(ctx context.Context, raw []string, opts ...StandardizeOption) error {
	var cfg standardizeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.threshold != nil {
		s.threshold = *cfg.threshold
	}

	start := time.Now()
	cache, err := process(ctx, raw, s.space, s.threshold, s.workers)
	if err != nil {
		return wrapError("standardize", err)
	}

	s.cache = cache
	s.stale = false
	s.sessionAt = time.Now()

	s.logger.Info("batch standardized",
		"inputs", len(raw),
		"distinct", len(cache.distinct),
		"questionable", len(cache.questionable),
		"elapsed", time.Since(start))

	return nil
}

// Compare returns the raw inputs of the current session zipped with the
// standards they resolved to, in batch order.
func (s *Standardizer) Compare() ([]Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ensureSession(); err != nil {
		return nil, wrapError("compare", err)
	}
	if len(s.cache.raw) != len(s.cache.newStrings) {
		return nil, wrapError("compare", fmt.Errorf("%w: %d raw vs %d standardized",
			ErrLengthMismatch, len(s.cache.raw), len(s.cache.newStrings)))
	}

	pairs := make([]Pair, len(s.cache.raw))
	for i, r := range s.cache.raw {
		pairs[i] = Pair{Raw: r, Standard: s.cache.newStrings[i]}
	}
	return pairs, nil
}

// Lookup resolves a single key against the current session. RawToNew
// returns the key's candidate standards in rank order; NewToRaw returns
// every raw input whose best match is the key. Index keys resolve
// positionally through the batch. A limit of zero or less means all.
func (s *Standardizer) Lookup(dir Direction, key Key, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.lookupLocked(dir, key, limit)
	if err != nil {
		return nil, wrapError("lookup", err)
	}
	return res, nil
}

// LookupOne resolves a key to its single top answer: the best standard
// for a raw input, or the first raw input that matched a standard.
func (s *Standardizer) LookupOne(dir Direction, key Key) (string, error) {
	res, err := s.Lookup(dir, key, 1)
	if err != nil {
		return "", err
	}
	return res[0], nil
}

// LookupBatch resolves several keys element-wise.
func (s *Standardizer) LookupBatch(dir Direction, keys []Key, limit int) ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]string, len(keys))
	for i, key := range keys {
		res, err := s.lookupLocked(dir, key, limit)
		if err != nil {
			return nil, wrapError("lookup", err)
		}
		out[i] = res
	}
	return out, nil
}

// Get is the indexing shorthand: all candidate standards for a raw
// input, equivalent to Lookup(RawToNew, key, 0).
func (s *Standardizer) Get(key Key) ([]string, error) {
	return s.Lookup(RawToNew, key, 0)
}

func (s *Standardizer) lookupLocked(dir Direction, key Key, limit int) ([]string, error) {
	if err := s.ensureSession(); err != nil {
		return nil, err
	}

	var val string
	switch key.kind {
	case keyValue:
		val = key.str
	case keyIndex:
		// Positional keys index the batch on the side the lookup
		// starts from.
		list := s.cache.raw
		if dir == NewToRaw {
			list = s.cache.newStrings
		}
		if key.idx < 0 || key.idx >= len(list) {
			return nil, fmt.Errorf("%w: %d (batch size %d)", ErrIndexOutOfRange, key.idx, len(list))
		}
		val = list[key.idx]
	default:
		return nil, ErrInvalidKey
	}

	var res []string
	switch dir {
	case RawToNew:
		mapping, ok := s.cache.results[val]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRaw, val)
		}
		res = mapping.Standards()
	case NewToRaw:
		for _, r := range s.cache.distinct {
			if s.cache.results[r].Best().Standard == val {
				res = append(res, r)
			}
		}
		if len(res) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStandard, val)
		}
	default:
		return nil, fmt.Errorf("%w: direction %d", ErrInvalidKey, dir)
	}

	if limit > 0 && limit < len(res) {
		res = res[:limit]
	}
	return res, nil
}

// Reclassify recomputes the questionable set and best-match list from
// the cached similarity mappings under the current threshold, without
// re-vectorizing or re-scoring anything. Use after SetThreshold to
// refresh the classification of an existing session.
func (s *Standardizer) Reclassify() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureSession(); err != nil {
		return wrapError("reclassify", err)
	}

	s.cache.threshold = s.threshold
	s.cache.newStrings, s.cache.questionable = classify(s.cache.raw, s.cache.results, s.threshold)

	s.logger.Debug("session reclassified",
		"threshold", s.threshold,
		"questionable", len(s.cache.questionable))
	return nil
}

// ensureSession verifies that a current, non-stale session exists.
// Callers must hold at least a read lock.
func (s *Standardizer) ensureSession() error {
	if s.cache == nil {
		return ErrNoSession
	}
	if s.stale {
		return ErrStaleSession
	}
	return nil
}
