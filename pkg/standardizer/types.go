package standardizer

import "time"

// Match pairs a standard with its similarity score against some input.
type Match struct {
	Standard string  `json:"standard"`
	Score    float64 `json:"score"`
}

// Matches is an ordered similarity mapping: one entry per standard,
// sorted by descending score with ties in standards order. The first
// entry is the best match.
type Matches []Match

// Best returns the top-ranked match. Valid only on a non-empty mapping;
// every mapping produced by a standardization run has at least one entry.
func (m Matches) Best() Match {
	return m[0]
}

// Standards returns the standards of the mapping in rank order.
func (m Matches) Standards() []string {
	out := make([]string, len(m))
	for i, match := range m {
		out[i] = match.Standard
	}
	return out
}

// Pair couples a raw input with the standard it resolved to.
type Pair struct {
	Raw      string `json:"raw"`
	Standard string `json:"standard"`
}

// Direction selects which way a lookup travels.
type Direction int

const (
	// RawToNew resolves a raw input to its standardized candidates
	RawToNew Direction = iota
	// NewToRaw resolves a standard to the raw inputs that matched it
	NewToRaw
)

// String returns the string representation of the direction
func (d Direction) String() string {
	switch d {
	case RawToNew:
		return "raw->new"
	case NewToRaw:
		return "new->raw"
	default:
		return "unknown"
	}
}

type keyKind int

const (
	keyInvalid keyKind = iota
	keyValue
	keyIndex
)

// Key identifies a session entry for lookup, either by literal string
// value or by position in the last standardization batch. The zero Key
// is invalid.
type Key struct {
	kind keyKind
	str  string
	idx  int
}

// ByValue builds a key that matches a literal string.
func ByValue(s string) Key {
	return Key{kind: keyValue, str: s}
}

// ByIndex builds a key that resolves positionally into the last batch.
func ByIndex(i int) Key {
	return Key{kind: keyIndex, idx: i}
}

// Session is a snapshot of one standardization run. It is self-contained
// and safe to retain or persist after the Standardizer moves on.
type Session struct {
	ID           string               `json:"id,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
	Threshold    float64              `json:"threshold"`
	Analyzer     string               `json:"analyzer"`
	NGramMin     int                  `json:"ngramMin"`
	NGramMax     int                  `json:"ngramMax"`
	Standards    []string             `json:"standards"`
	Raw          []string             `json:"raw"`
	NewStrings   []string             `json:"newStrings"`
	Results      map[string]Matches   `json:"results"`
	Questionable map[string]Match     `json:"questionable"`
	InputVectors map[string][]float32 `json:"-"`
}
