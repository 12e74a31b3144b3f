package standardizer

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/ngmatch/ngmatch/pkg/vectorizer"
)

func newCarStandardizer(t *testing.T, opts ...Option) *Standardizer {
	t.Helper()
	s, err := New([]string{"Ford", "Honda"}, opts...)
	if err != nil {
		t.Fatalf("failed to create standardizer: %v", err)
	}
	return s
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name      string
		standards []string
		opts      []Option
		wantErr   error
	}{
		{"empty standards", nil, nil, ErrEmptyStandards},
		{"blank standard", []string{"Ford", ""}, nil, ErrEmptyStandards},
		{"zero ngram min", []string{"Ford"}, []Option{WithNGramRange(0, 2)}, ErrInvalidNGramRange},
		{"zero ngram max", []string{"Ford"}, []Option{WithNGramRange(2, 0)}, ErrInvalidNGramRange},
		{"inverted range", []string{"Ford"}, []Option{WithNGramRange(3, 2)}, ErrInvalidNGramRange},
		{"bad analyzer", []string{"Ford"}, []Option{WithAnalyzer("syllable")}, ErrInvalidAnalyzer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.standards, tt.opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	s := newCarStandardizer(t)

	if s.Threshold() != DefaultThreshold {
		t.Fatalf("expected default threshold %v, got %v", DefaultThreshold, s.Threshold())
	}
	if min, max := s.NGramRange(); min != 2 || max != 2 {
		t.Fatalf("expected default range (2, 2), got (%d, %d)", min, max)
	}
	if s.Analyzer() != vectorizer.AnalyzerChar {
		t.Fatalf("expected default char analyzer, got %q", s.Analyzer())
	}
}

func TestStandardizeCarScenario(t *testing.T) {
	s := newCarStandardizer(t)

	raw := []string{"Ford", "Fordd", "Honnda", "Toyota"}
	if err := s.Standardize(context.Background(), raw); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	newStrings, err := s.NewStrings()
	if err != nil {
		t.Fatalf("new strings unavailable: %v", err)
	}
	want := []string{"Ford", "Ford", "Honda", "Ford"}
	if !reflect.DeepEqual(newStrings, want) {
		t.Fatalf("new strings mismatch: got %v, want %v", newStrings, want)
	}

	results, err := s.Results()
	if err != nil {
		t.Fatalf("results unavailable: %v", err)
	}

	// An exact standard short-circuits to a synthetic one-entry mapping.
	exact := results["Ford"]
	if len(exact) != 1 || exact[0].Standard != "Ford" || exact[0].Score != 1.0 {
		t.Fatalf("expected synthetic {Ford: 1.0} mapping, got %v", exact)
	}

	// Every other mapping covers the full standards set.
	for _, val := range []string{"Fordd", "Honnda", "Toyota"} {
		if len(results[val]) != 2 {
			t.Fatalf("mapping for %q does not cover all standards: %v", val, results[val])
		}
	}

	questionable, err := s.Questionable()
	if err != nil {
		t.Fatalf("questionable unavailable: %v", err)
	}
	toyota, ok := questionable["Toyota"]
	if !ok {
		t.Fatalf("Toyota should be questionable, got %v", questionable)
	}
	if toyota.Score != 0.0 {
		t.Fatalf("Toyota shares no bigrams with the standards, expected score 0, got %v", toyota.Score)
	}
	if _, ok := questionable["Fordd"]; ok {
		t.Fatal("Fordd scored 1.0 and must not be questionable")
	}
}

func TestStandardizeExactMatchLookup(t *testing.T) {
	s := newCarStandardizer(t)

	if err := s.Standardize(context.Background(), []string{"Ford"}); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	got, err := s.LookupOne(RawToNew, ByValue("Ford"))
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got != "Ford" {
		t.Fatalf("expected Ford, got %q", got)
	}
}

func TestStandardizeValidation(t *testing.T) {
	s := newCarStandardizer(t)
	ctx := context.Background()

	if err := s.Standardize(ctx, nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if err := s.Standardize(ctx, []string{"Ford", "  "}); !errors.Is(err, ErrEmptyString) {
		t.Fatalf("expected ErrEmptyString, got %v", err)
	}
}

func TestStandardizeIdempotent(t *testing.T) {
	s := newCarStandardizer(t)
	ctx := context.Background()
	raw := []string{"Fordd", "Honnda", "Toyota", "Fordd"}

	if err := s.Standardize(ctx, raw); err != nil {
		t.Fatalf("first standardize failed: %v", err)
	}
	first, _ := s.Session()

	if err := s.Standardize(ctx, raw); err != nil {
		t.Fatalf("second standardize failed: %v", err)
	}
	second, _ := s.Session()

	if !reflect.DeepEqual(first.NewStrings, second.NewStrings) {
		t.Fatalf("new strings changed across runs: %v vs %v", first.NewStrings, second.NewStrings)
	}
	if !reflect.DeepEqual(first.Results, second.Results) {
		t.Fatal("similarity mappings changed across runs")
	}
	if !reflect.DeepEqual(first.Questionable, second.Questionable) {
		t.Fatal("questionable set changed across runs")
	}
}

func TestStandardizeOrderIndependence(t *testing.T) {
	ctx := context.Background()
	raw := []string{"Fordd", "Honnda", "Toyota"}
	permuted := []string{"Toyota", "Fordd", "Honnda"}

	s1 := newCarStandardizer(t)
	if err := s1.Standardize(ctx, raw); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}
	s2 := newCarStandardizer(t)
	if err := s2.Standardize(ctx, permuted); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	for _, val := range raw {
		best1, err := s1.LookupOne(RawToNew, ByValue(val))
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		best2, err := s2.LookupOne(RawToNew, ByValue(val))
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		if best1 != best2 {
			t.Fatalf("best match for %q depends on batch order: %q vs %q", val, best1, best2)
		}
	}
}

func TestStandardizeDeduplicatesRepeats(t *testing.T) {
	s := newCarStandardizer(t)

	raw := []string{"Fordd", "Fordd", "Fordd"}
	if err := s.Standardize(context.Background(), raw); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	newStrings, _ := s.NewStrings()
	if len(newStrings) != 3 {
		t.Fatalf("new strings must align positionally with raw, got %d entries", len(newStrings))
	}

	results, _ := s.Results()
	if len(results) != 1 {
		t.Fatalf("repeated value must be scored once, got %d mappings", len(results))
	}
}

func TestThresholdBoundaryInclusive(t *testing.T) {
	// "abxcd" shares one bigram with each standard, scoring exactly
	// 1/sqrt(2) against both. A best score equal to the threshold must
	// classify as questionable.
	boundary := CosineSimilarity([]float32{1, 1}, []float32{1, 0})
	if math.Abs(boundary-1/math.Sqrt2) > 1e-12 {
		t.Fatalf("unexpected boundary score: %v", boundary)
	}

	s, err := New([]string{"ab", "cd"}, WithThreshold(boundary))
	if err != nil {
		t.Fatalf("failed to create standardizer: %v", err)
	}
	if err := s.Standardize(context.Background(), []string{"abxcd"}); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	questionable, _ := s.Questionable()
	entry, ok := questionable["abxcd"]
	if !ok {
		t.Fatal("score equal to threshold must be questionable")
	}
	// Tied scores resolve to the earlier standard.
	if entry.Standard != "ab" {
		t.Fatalf("expected tie to resolve to ab, got %q", entry.Standard)
	}
}

func TestRoundTripLookup(t *testing.T) {
	s := newCarStandardizer(t)

	raw := []string{"Fordd", "Honnda", "Toyota", "Ford"}
	if err := s.Standardize(context.Background(), raw); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	pairs, err := s.Compare()
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	for _, p := range pairs {
		raws, err := s.Lookup(NewToRaw, ByValue(p.Standard), 0)
		if err != nil {
			t.Fatalf("reverse lookup for %q failed: %v", p.Standard, err)
		}
		found := false
		for _, r := range raws {
			if r == p.Raw {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("reverse lookup of %q does not contain %q: %v", p.Standard, p.Raw, raws)
		}
	}
}

func TestLookupByIndex(t *testing.T) {
	s := newCarStandardizer(t)

	if err := s.Standardize(context.Background(), []string{"Fordd", "Honnda"}); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	best, err := s.LookupOne(RawToNew, ByIndex(1))
	if err != nil {
		t.Fatalf("lookup by index failed: %v", err)
	}
	if best != "Honda" {
		t.Fatalf("expected Honda, got %q", best)
	}

	// NewToRaw indexes into the standardized list.
	raws, err := s.Lookup(NewToRaw, ByIndex(0), 0)
	if err != nil {
		t.Fatalf("reverse lookup by index failed: %v", err)
	}
	if len(raws) != 1 || raws[0] != "Fordd" {
		t.Fatalf("expected [Fordd], got %v", raws)
	}

	if _, err := s.Lookup(RawToNew, ByIndex(99), 0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := s.Lookup(RawToNew, ByIndex(-1), 0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange for negative index, got %v", err)
	}
}

func TestLookupLimitAndRankOrder(t *testing.T) {
	s := newCarStandardizer(t)

	if err := s.Standardize(context.Background(), []string{"Fordd"}); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	all, err := s.Get(ByValue("Fordd"))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !reflect.DeepEqual(all, []string{"Ford", "Honda"}) {
		t.Fatalf("expected full ranking [Ford Honda], got %v", all)
	}

	top, err := s.Lookup(RawToNew, ByValue("Fordd"), 1)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !reflect.DeepEqual(top, []string{"Ford"}) {
		t.Fatalf("expected [Ford], got %v", top)
	}
}

func TestLookupBatch(t *testing.T) {
	s := newCarStandardizer(t)

	if err := s.Standardize(context.Background(), []string{"Fordd", "Honnda"}); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	got, err := s.LookupBatch(RawToNew, []Key{ByValue("Fordd"), ByIndex(1)}, 1)
	if err != nil {
		t.Fatalf("batch lookup failed: %v", err)
	}
	want := [][]string{{"Ford"}, {"Honda"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("batch lookup mismatch: got %v, want %v", got, want)
	}
}

func TestLookupErrors(t *testing.T) {
	s := newCarStandardizer(t)

	if _, err := s.Lookup(RawToNew, ByValue("Fordd"), 0); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession before standardize, got %v", err)
	}

	if err := s.Standardize(context.Background(), []string{"Fordd"}); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	if _, err := s.Lookup(RawToNew, ByValue("Mazda"), 0); !errors.Is(err, ErrUnknownRaw) {
		t.Fatalf("expected ErrUnknownRaw, got %v", err)
	}
	if _, err := s.Lookup(NewToRaw, ByValue("Honda"), 0); !errors.Is(err, ErrUnknownStandard) {
		t.Fatalf("expected ErrUnknownStandard, got %v", err)
	}
	if _, err := s.Lookup(RawToNew, Key{}, 0); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for zero key, got %v", err)
	}
}

func TestAccessorsBeforeSession(t *testing.T) {
	s := newCarStandardizer(t)

	if _, err := s.Raw(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession from Raw, got %v", err)
	}
	if _, err := s.Questionable(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession from Questionable, got %v", err)
	}
	if _, err := s.InputVectors(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession from InputVectors, got %v", err)
	}
	if _, err := s.Compare(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession from Compare, got %v", err)
	}
}

func TestSetStandardsInvalidatesSession(t *testing.T) {
	s := newCarStandardizer(t)
	ctx := context.Background()

	if err := s.Standardize(ctx, []string{"Fordd"}); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	if err := s.SetStandards([]string{"Mazda", "Toyota"}); err != nil {
		t.Fatalf("set standards failed: %v", err)
	}

	if _, err := s.Raw(); !errors.Is(err, ErrStaleSession) {
		t.Fatalf("expected ErrStaleSession after standards change, got %v", err)
	}
	if !reflect.DeepEqual(s.Standards(), []string{"Mazda", "Toyota"}) {
		t.Fatalf("standards not replaced: %v", s.Standards())
	}

	// A new batch against the refitted space clears the staleness.
	if err := s.Standardize(ctx, []string{"Mazdaa"}); err != nil {
		t.Fatalf("standardize after refit failed: %v", err)
	}
	best, err := s.LookupOne(RawToNew, ByValue("Mazdaa"))
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if best != "Mazda" {
		t.Fatalf("expected Mazda, got %q", best)
	}
}

func TestSetStandardsRejectsEmpty(t *testing.T) {
	s := newCarStandardizer(t)

	if err := s.SetStandards(nil); !errors.Is(err, ErrEmptyStandards) {
		t.Fatalf("expected ErrEmptyStandards, got %v", err)
	}
	// The old space must survive a failed replacement.
	if !reflect.DeepEqual(s.Standards(), []string{"Ford", "Honda"}) {
		t.Fatalf("standards clobbered by failed set: %v", s.Standards())
	}
}

func TestThresholdChangeIsLazy(t *testing.T) {
	s := newCarStandardizer(t, WithThreshold(-0.5))
	ctx := context.Background()

	if err := s.Standardize(ctx, []string{"Toyota"}); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	questionable, _ := s.Questionable()
	if len(questionable) != 0 {
		t.Fatalf("nothing should be questionable below threshold -0.5, got %v", questionable)
	}

	// Raising the threshold alone does not touch the cached session.
	s.SetThreshold(0.45)
	questionable, _ = s.Questionable()
	if len(questionable) != 0 {
		t.Fatalf("threshold change must not reclassify implicitly, got %v", questionable)
	}

	// An explicit reclassification applies the new threshold.
	if err := s.Reclassify(); err != nil {
		t.Fatalf("reclassify failed: %v", err)
	}
	questionable, _ = s.Questionable()
	if _, ok := questionable["Toyota"]; !ok {
		t.Fatalf("Toyota should be questionable after reclassify, got %v", questionable)
	}
}

func TestSessionThresholdOverrideSticks(t *testing.T) {
	s := newCarStandardizer(t)

	err := s.Standardize(context.Background(), []string{"Toyota"}, WithSessionThreshold(0.9))
	if err != nil {
		t.Fatalf("standardize failed: %v", err)
	}
	if s.Threshold() != 0.9 {
		t.Fatalf("session threshold override must persist, got %v", s.Threshold())
	}
}

func TestInputVectorsMatchVocabulary(t *testing.T) {
	s := newCarStandardizer(t)

	if err := s.Standardize(context.Background(), []string{"Fordd", "Toyota"}); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	vectors, err := s.InputVectors()
	if err != nil {
		t.Fatalf("input vectors unavailable: %v", err)
	}
	dims := len(s.Vocabulary())
	for raw, vec := range vectors {
		if len(vec) != dims {
			t.Fatalf("vector for %q has length %d, want %d", raw, len(vec), dims)
		}
	}
}

func TestStandardizeWithWorkers(t *testing.T) {
	s := newCarStandardizer(t, WithWorkers(2))

	raw := []string{"Fordd", "Honnda", "Toyota", "Frd", "Hnda", "Fordd"}
	if err := s.Standardize(context.Background(), raw); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}

	newStrings, _ := s.NewStrings()
	if len(newStrings) != len(raw) {
		t.Fatalf("expected %d results, got %d", len(raw), len(newStrings))
	}
	if newStrings[0] != "Ford" || newStrings[5] != "Ford" {
		t.Fatalf("unexpected results with workers: %v", newStrings)
	}
}

func TestSessionSnapshotIsDetached(t *testing.T) {
	s := newCarStandardizer(t)
	ctx := context.Background()

	if err := s.Standardize(ctx, []string{"Fordd"}); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}
	sess, err := s.Session()
	if err != nil {
		t.Fatalf("session snapshot failed: %v", err)
	}

	// Overwriting the live session must not disturb the snapshot.
	if err := s.Standardize(ctx, []string{"Honnda"}); err != nil {
		t.Fatalf("standardize failed: %v", err)
	}
	if !reflect.DeepEqual(sess.Raw, []string{"Fordd"}) {
		t.Fatalf("snapshot mutated by later run: %v", sess.Raw)
	}
	if sess.NewStrings[0] != "Ford" {
		t.Fatalf("unexpected snapshot contents: %v", sess.NewStrings)
	}
	if sess.Threshold != DefaultThreshold {
		t.Fatalf("snapshot threshold mismatch: %v", sess.Threshold)
	}
}
