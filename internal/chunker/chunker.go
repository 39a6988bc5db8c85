// Package chunker splits markdown documents into retrieval-sized chunks.
//
// Splitting is a two-pass algorithm: documents are first cut into sections at
// ## / ### headers, then sections over the token ceiling are packed greedily
// from paragraphs toward the target size. Identical input and options always
// produce the identical chunk sequence, which makes re-ingestion idempotent.
package chunker

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/waypointhq/ragcore/internal/domain"
	"github.com/waypointhq/ragcore/internal/metrics"
	"github.com/waypointhq/ragcore/internal/tokencount"
)

// Options are the token budgets for one chunking run.
type Options struct {
	TargetTokens  int // preferred chunk size; packing flushes before exceeding it
	MaxTokens     int // hard ceiling; only an unsplittable paragraph may exceed it
	MinTokens     int // a trailing runt below this merges into the previous chunk
	OverlapTokens int // trailing paragraphs carried into the next chunk
}

// DefaultOptions returns the standard token budgets.
func DefaultOptions() Options {
	return Options{
		TargetTokens:  400,
		MaxTokens:     600,
		MinTokens:     50,
		OverlapTokens: 0,
	}
}

func (o Options) validate() error {
	if o.TargetTokens <= 0 || o.MaxTokens <= 0 {
		return fmt.Errorf("target_tokens and max_tokens must be positive")
	}
	if o.TargetTokens > o.MaxTokens {
		return fmt.Errorf("target_tokens (%d) must not exceed max_tokens (%d)", o.TargetTokens, o.MaxTokens)
	}
	if o.OverlapTokens < 0 {
		return fmt.Errorf("overlap_tokens must not be negative")
	}
	return nil
}

// Chunker splits documents. Stateless and reentrant per call.
type Chunker struct {
	counter *tokencount.Counter
	logger  *zap.Logger
}

// New creates a Chunker.
func New(counter *tokencount.Counter, logger *zap.Logger) *Chunker {
	return &Chunker{counter: counter, logger: logger}
}

// Chunk splits text into ordered chunks carrying provenance metadata.
// Frontmatter is attached verbatim to every chunk; the doc_type, destination
// and tags keys are additionally lifted into their typed metadata fields.
// Empty input yields zero chunks, not an error.
func (c *Chunker) Chunk(
	text, contentPath string, frontmatter map[string]string, opts Options,
) ([]domain.Chunk, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var chunks []domain.Chunk
	index := 0

	emit := func(body, header string) {
		chunks = append(chunks, domain.Chunk{
			Text: body,
			Meta: buildMeta(contentPath, index, header, frontmatter),
		})
		index++
	}

	for _, sec := range splitSections(text) {
		body := strings.TrimRight(sec.text, "\n")
		if body == "" {
			continue
		}

		if c.counter.Count(body) <= opts.MaxTokens {
			emit(body, sec.header)
			continue
		}

		for _, part := range c.packSection(body, contentPath, opts) {
			emit(part, sec.header)
		}
	}

	return chunks, nil
}

// section is a header-delimited slice of the document.
type section struct {
	header string // full header line, e.g. "## Dive Sites"; empty when none
	text   string
}

// splitSections cuts the document at ## / ### header lines. The header line
// stays part of its section text. A document without headers is one section.
func splitSections(text string) []section {
	lines := strings.Split(text, "\n")

	var sections []section
	cur := section{}
	var buf []string

	flush := func() {
		if len(buf) > 0 {
			cur.text = strings.Join(buf, "\n")
			sections = append(sections, cur)
		}
	}

	for _, line := range lines {
		if isSectionHeader(line) {
			flush()
			cur = section{header: strings.TrimRight(line, " \t")}
			buf = []string{line}
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return sections
}

func isSectionHeader(line string) bool {
	return strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "### ")
}

// packSection splits an oversized section into paragraphs and packs them
// greedily: a chunk is flushed before adding a paragraph would push it past
// TargetTokens, favoring target-sized over max-sized chunks. A single
// paragraph above MaxTokens is emitted alone as a logged overflow; content
// is never dropped.
func (c *Chunker) packSection(body, contentPath string, opts Options) []string {
	paragraphs := splitParagraphs(body)

	var out []string
	var cur []string
	curTokens := 0
	carryTokens := 0 // tokens in cur that belong to overlap carry

	for _, p := range paragraphs {
		pt := c.counter.Count(p)

		if pt > opts.MaxTokens {
			// unsplittable oversized paragraph: emit alone, discard any carry
			if curTokens > carryTokens {
				out = append(out, strings.Join(cur, "\n\n"))
			}
			cur, curTokens, carryTokens = nil, 0, 0
			c.logger.Warn("Paragraph exceeds max_tokens, emitting oversized chunk",
				zap.String("content_path", contentPath),
				zap.Int("tokens", pt),
				zap.Int("max_tokens", opts.MaxTokens),
			)
			metrics.ChunkOverflowTotal.Inc()
			out = append(out, p)
			continue
		}

		if len(cur) > 0 && curTokens+pt > opts.TargetTokens {
			if curTokens > carryTokens {
				out = append(out, strings.Join(cur, "\n\n"))
				carry, ct := c.overlapCarry(cur, opts.OverlapTokens)
				cur, curTokens, carryTokens = carry, ct, ct
			}
			if len(cur) > 0 && curTokens+pt > opts.TargetTokens {
				// carry alone crowds out the paragraph; start clean
				cur, curTokens, carryTokens = nil, 0, 0
			}
		}

		cur = append(cur, p)
		curTokens += pt
	}

	if curTokens > carryTokens {
		out = append(out, strings.Join(cur, "\n\n"))
	}

	return c.mergeRunt(out, opts)
}

// overlapCarry returns the trailing paragraphs of a flushed chunk whose
// cumulative token count fits the overlap budget.
func (c *Chunker) overlapCarry(paragraphs []string, budget int) ([]string, int) {
	if budget <= 0 {
		return nil, 0
	}
	total := 0
	start := len(paragraphs)
	for i := len(paragraphs) - 1; i >= 0; i-- {
		pt := c.counter.Count(paragraphs[i])
		if total+pt > budget {
			break
		}
		total += pt
		start = i
	}
	if start == len(paragraphs) {
		return nil, 0
	}
	carry := make([]string, len(paragraphs)-start)
	copy(carry, paragraphs[start:])
	return carry, total
}

// mergeRunt folds a trailing chunk below MinTokens into its predecessor
// when the combined size stays within MaxTokens.
func (c *Chunker) mergeRunt(parts []string, opts Options) []string {
	if len(parts) < 2 || opts.MinTokens <= 0 {
		return parts
	}
	last := parts[len(parts)-1]
	if c.counter.Count(last) >= opts.MinTokens {
		return parts
	}
	prev := parts[len(parts)-2]
	if c.counter.Count(prev)+c.counter.Count(last) > opts.MaxTokens {
		return parts
	}
	merged := prev + "\n\n" + last
	return append(parts[:len(parts)-2], merged)
}

// splitParagraphs cuts text at blank lines, dropping empty fragments.
func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.Trim(p, "\n")
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

func buildMeta(contentPath string, index int, header string, frontmatter map[string]string) domain.ChunkMeta {
	meta := domain.ChunkMeta{
		ContentPath:   contentPath,
		ChunkIndex:    index,
		SectionHeader: header,
	}
	if len(frontmatter) == 0 {
		return meta
	}

	meta.Extra = make(map[string]string, len(frontmatter))
	for k, v := range frontmatter {
		meta.Extra[k] = v
	}
	meta.DocType = frontmatter[domain.FieldDocType]
	meta.Destination = frontmatter[domain.FieldDestination]
	if raw, ok := frontmatter[domain.FieldTags]; ok && raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				meta.Tags = append(meta.Tags, t)
			}
		}
	}
	return meta
}
