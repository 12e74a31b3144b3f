package standardizer

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// matchCache holds the complete outcome of one standardization batch.
// Every call to process replaces the previous cache wholesale; lookups
// always read the most recent batch only.
type matchCache struct {
	raw          []string
	distinct     []string // deduplicated raw values, first-seen order
	newStrings   []string
	results      map[string]Matches
	questionable map[string]Match
	inputVectors map[string][]float32
	threshold    float64
}

// process validates and standardizes a raw input batch against the
// vector space. Each distinct raw value is vectorized and scored exactly
// once, even when it repeats in the batch; a value that equals a
// standard gets the synthetic single-entry mapping {standard: 1.0}
// without running the full comparison.
//
// Distinct values are scored concurrently on up to workers goroutines.
// Scoring one value never depends on another, and results are joined
// back by raw key, so batch order and scheduling cannot change the
// outcome.
func process(ctx context.Context, raw []string, space *vectorSpace, threshold float64, workers int) (*matchCache, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyInput
	}
	for i, val := range raw {
		if strings.TrimSpace(val) == "" {
			return nil, fmt.Errorf("%w: index %d", ErrEmptyString, i)
		}
	}

	// Deduplicate before fan-out, preserving first-seen order.
	seen := make(map[string]struct{}, len(raw))
	var distinct []string
	for _, val := range raw {
		if _, ok := seen[val]; !ok {
			seen[val] = struct{}{}
			distinct = append(distinct, val)
		}
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	vectors := make([][]float32, len(distinct))
	mappings := make([]Matches, len(distinct))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, val := range distinct {
		i, val := i, val
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			vec, err := space.transform(val)
			if err != nil {
				return err
			}
			vectors[i] = vec

			if space.contains(val) {
				mappings[i] = Matches{{Standard: val, Score: 1.0}}
				return nil
			}
			mappings[i] = scoreAgainst(vec, space)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cache := &matchCache{
		raw:          raw,
		distinct:     distinct,
		results:      make(map[string]Matches, len(distinct)),
		inputVectors: make(map[string][]float32, len(distinct)),
		threshold:    threshold,
	}
	for i, val := range distinct {
		cache.results[val] = mappings[i]
		cache.inputVectors[val] = vectors[i]
	}

	cache.newStrings, cache.questionable = classify(raw, cache.results, threshold)
	return cache, nil
}

// classify derives the positional best-match list and the questionable
// set from cached similarity mappings. A raw entry is questionable when
// its best score does not exceed the threshold.
func classify(raw []string, results map[string]Matches, threshold float64) ([]string, map[string]Match) {
	newStrings := make([]string, len(raw))
	questionable := make(map[string]Match)

	for i, val := range raw {
		best := results[val].Best()
		newStrings[i] = best.Standard
		if best.Score <= threshold {
			questionable[val] = best
		}
	}

	return newStrings, questionable
}
