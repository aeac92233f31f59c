package ml

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"
)

// DefaultVocabularySize caps the vocabulary learned at fit time.
const DefaultVocabularySize = 100

// TFIDFVectorizer maps free text onto a fixed-width vector over a vocabulary
// learned once at fit time. The width never changes afterwards; terms outside
// the vocabulary contribute zero and never resize the vector.
type TFIDFVectorizer struct {
	MaxFeatures int            `json:"max_features"`
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
}

// NewTFIDFVectorizer returns an unfitted vectorizer with the given
// vocabulary cap. A cap of zero or less falls back to the default.
func NewTFIDFVectorizer(maxFeatures int) *TFIDFVectorizer {
	if maxFeatures <= 0 {
		maxFeatures = DefaultVocabularySize
	}
	return &TFIDFVectorizer{MaxFeatures: maxFeatures}
}

// Width returns the fitted vector width, zero before fitting.
func (v *TFIDFVectorizer) Width() int {
	return len(v.IDF)
}

// Fit learns a vocabulary of at most MaxFeatures terms from the corpus and
// their inverse document frequencies. Missing reviews must be passed as
// empty strings, never skipped, so document counts stay aligned.
func (v *TFIDFVectorizer) Fit(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("corpus is empty")
	}

	termCounts := make(map[string]int)
	docCounts := make(map[string]int)
	for _, text := range corpus {
		tokens := tokenize(text)
		seen := make(map[string]bool, len(tokens))
		for _, token := range tokens {
			termCounts[token]++
			if !seen[token] {
				docCounts[token]++
				seen[token] = true
			}
		}
	}

	terms := make([]string, 0, len(termCounts))
	for term := range termCounts {
		terms = append(terms, term)
	}
	// Most frequent terms win a slot; ties resolve alphabetically so the
	// fitted vocabulary is deterministic.
	sort.Slice(terms, func(i, j int) bool {
		if termCounts[terms[i]] != termCounts[terms[j]] {
			return termCounts[terms[i]] > termCounts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > v.MaxFeatures {
		terms = terms[:v.MaxFeatures]
	}
	sort.Strings(terms)

	vocabulary := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		vocabulary[term] = i
		idf[i] = math.Log((1+n)/(1+float64(docCounts[term]))) + 1
	}

	v.Vocabulary = vocabulary
	v.IDF = idf
	return nil
}

// Transform produces the fixed-width tf-idf vector for one text. Terms
// outside the fitted vocabulary are dropped silently; an empty string yields
// an all-zero vector.
func (v *TFIDFVectorizer) Transform(text string) ([]float64, error) {
	if v.Vocabulary == nil {
		return nil, ErrNotFitted
	}

	vector := make([]float64, len(v.IDF))
	for _, token := range tokenize(text) {
		if idx, ok := v.Vocabulary[token]; ok {
			vector[idx]++
		}
	}

	var norm float64
	for i := range vector {
		if vector[i] > 0 {
			vector[i] *= v.IDF[i]
			norm += vector[i] * vector[i]
		}
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vector {
			vector[i] /= norm
		}
	}
	return vector, nil
}

// Save persists the fitted vocabulary and weights as JSON.
func (v *TFIDFVectorizer) Save(path string) error {
	if v.Vocabulary == nil {
		return ErrNotFitted
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load restores a fitted vectorizer from JSON.
func (v *TFIDFVectorizer) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded TFIDFVectorizer
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if loaded.Vocabulary == nil || len(loaded.Vocabulary) != len(loaded.IDF) {
		return errors.New("invalid vectorizer artifact")
	}
	*v = loaded
	return nil
}

// tokenize lowercases the text and splits it into runs of letters, digits
// and underscores, keeping only tokens of two or more characters.
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	runes := 0
	flush := func() {
		if runes >= 2 {
			tokens = append(tokens, current.String())
		}
		current.Reset()
		runes = 0
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
			runes++
			continue
		}
		flush()
	}
	flush()
	return tokens
}
