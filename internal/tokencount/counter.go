// Package tokencount counts tokens in text.
//
// The preferred strategy is the cl100k_base subword tokenizer; when its
// encoding cannot be loaded a deterministic word/punctuation approximation
// is used instead. The strategy is picked once at construction and stays
// fixed for the process lifetime so repeated counts agree with the chunker's
// determinism guarantee.
package tokencount

import (
	"regexp"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

const encodingName = "cl100k_base"

// approxRegex splits text into word runs and individual punctuation marks.
var approxRegex = regexp.MustCompile(`[\p{L}\p{N}_']+|[^\s\p{L}\p{N}_]`)

// Counter counts tokens with a fixed strategy.
type Counter struct {
	enc *tiktoken.Tiktoken // nil = regex approximation
}

// New creates a Counter, preferring the subword tokenizer.
// Falls back to the regex approximation when the encoding is unavailable
// (e.g. no network access to fetch the BPE ranks).
func New(logger *zap.Logger) *Counter {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		logger.Warn("Subword tokenizer unavailable, using approximate token counts",
			zap.String("encoding", encodingName), zap.Error(err))
		return &Counter{}
	}
	return &Counter{enc: enc}
}

// NewApprox creates a Counter that always uses the regex approximation.
// Deterministic and dependency-free; used by tests.
func NewApprox() *Counter {
	return &Counter{}
}

// Count returns the token count of text. Always >= 0; 0 for empty text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return len(approxRegex.FindAllStringIndex(text, -1))
}
