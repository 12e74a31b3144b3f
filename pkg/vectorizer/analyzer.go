package vectorizer

import (
	"fmt"
	"strings"
	"unicode"
)

// Analyzer selects how a document is decomposed into n-grams.
type Analyzer string

const (
	// AnalyzerWord extracts word-level n-grams: runs of word characters
	// become tokens, and each n-gram is n consecutive tokens joined by
	// a single space. Single-character tokens are dropped.
	AnalyzerWord Analyzer = "word"

	// AnalyzerChar extracts character n-grams across the whole string,
	// whitespace included.
	AnalyzerChar Analyzer = "char"

	// AnalyzerCharWB extracts character n-grams only inside word
	// boundaries; each word is padded with a space on both sides.
	AnalyzerCharWB Analyzer = "char_wb"
)

func (a Analyzer) valid() bool {
	switch a {
	case AnalyzerWord, AnalyzerChar, AnalyzerCharWB:
		return true
	}
	return false
}

// ParseAnalyzer converts a string to an Analyzer, rejecting unknown
// modes.
func ParseAnalyzer(s string) (Analyzer, error) {
	a := Analyzer(s)
	if !a.valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAnalyzer, s)
	}
	return a, nil
}

// preprocess lowercases the text and collapses whitespace runs into a
// single space.
func preprocess(text string) string {
	text = strings.ToLower(text)
	return strings.Join(strings.Fields(text), " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// tokenize splits preprocessed text into word tokens of two or more
// word characters. Shorter tokens carry almost no signal for matching
// and are discarded, matching the standardizer's matching semantics.
func tokenize(text string) []string {
	var tokens []string
	var current []rune

	flush := func() {
		if len(current) >= 2 {
			tokens = append(tokens, string(current))
		}
		current = current[:0]
	}

	for _, r := range text {
		if isWordRune(r) {
			current = append(current, r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// wordNGrams produces n-grams of consecutive word tokens, joined by a
// single space.
func wordNGrams(text string, minN, maxN int) []string {
	tokens := tokenize(preprocess(text))

	var grams []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			grams = append(grams, strings.Join(tokens[i:i+n], " "))
		}
	}
	return grams
}

// charNGrams produces character n-grams over the entire preprocessed
// string. Operates on runes so multibyte input stays intact.
func charNGrams(text string, minN, maxN int) []string {
	runes := []rune(preprocess(text))

	var grams []string
	for n := minN; n <= maxN && n <= len(runes); n++ {
		for i := 0; i+n <= len(runes); i++ {
			grams = append(grams, string(runes[i:i+n]))
		}
	}
	return grams
}

// charWBNGrams produces character n-grams confined to word boundaries.
// Every word is padded with one space on each side before slicing; a
// word shorter than n contributes its padded form once and nothing for
// larger n.
func charWBNGrams(text string, minN, maxN int) []string {
	var grams []string
	for _, word := range strings.Fields(preprocess(text)) {
		padded := []rune(" " + word + " ")
		for n := minN; n <= maxN; n++ {
			if n >= len(padded) {
				grams = append(grams, string(padded))
				break
			}
			for i := 0; i+n <= len(padded); i++ {
				grams = append(grams, string(padded[i:i+n]))
			}
		}
	}
	return grams
}
