package rag

import "strings"

// complexity classifies how much retrieval effort a query deserves.
type complexity int

const (
	complexitySkip complexity = iota
	complexityMedium
	complexityComplex
)

// Default result counts per complexity class.
const (
	mediumTopK  = 3
	complexTopK = 5
)

// complexLength is the message length beyond which a query counts as complex.
const complexLength = 100

var skipPhrases = []string{
	"hi", "hello", "hey", "thanks", "thank you", "ok", "okay",
	"yes", "no", "sure", "got it", "sounds good", "bye", "goodbye",
}

var clarificationPrefixes = []string{
	"what do you mean",
	"can you clarify",
	"can you explain that again",
	"i don't understand",
	"sorry, what",
}

var planningPhrases = []string{
	"plan", "itinerary", "schedule", "organize", "arrange",
	"step by step", "compare", "recommend",
}

// classify buckets a query into skip, medium or complex.
// Trivial greetings and pure clarification requests skip retrieval
// entirely; long or planning-intent queries get the wider result set.
func classify(query string) complexity {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.TrimRight(q, ".!?")

	for _, p := range skipPhrases {
		if q == p {
			return complexitySkip
		}
	}
	for _, p := range clarificationPrefixes {
		if strings.HasPrefix(q, p) {
			return complexitySkip
		}
	}

	if len(q) > complexLength {
		return complexityComplex
	}
	for _, p := range planningPhrases {
		if strings.Contains(q, p) {
			return complexityComplex
		}
	}

	return complexityMedium
}

// topK returns the default result count for the class.
func (c complexity) topK() int {
	if c == complexityComplex {
		return complexTopK
	}
	return mediumTopK
}
