package chunker

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/waypointhq/ragcore/internal/tokencount"
)

func newTestChunker() *Chunker {
	return New(tokencount.NewApprox(), zap.NewNop())
}

// words returns a paragraph of n single-token words.
func words(prefix string, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix
	}
	return strings.Join(out, " ")
}

func TestChunk_ShortSection(t *testing.T) {
	c := newTestChunker()

	chunks, err := c.Chunk("## A\n\nShort text", "guides/a.md", nil, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	got := chunks[0]
	if got.Text != "## A\n\nShort text" {
		t.Errorf("text = %q", got.Text)
	}
	if got.Meta.SectionHeader != "## A" {
		t.Errorf("section header = %q", got.Meta.SectionHeader)
	}
	if got.Meta.ChunkIndex != 0 {
		t.Errorf("chunk index = %d", got.Meta.ChunkIndex)
	}
	if got.Meta.ContentPath != "guides/a.md" {
		t.Errorf("content path = %q", got.Meta.ContentPath)
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	c := newTestChunker()

	for _, text := range []string{"", "   \n\n  "} {
		chunks, err := c.Chunk(text, "x.md", nil, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if len(chunks) != 0 {
			t.Errorf("input %q: expected no chunks, got %d", text, len(chunks))
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c := newTestChunker()
	text := "## One\n\n" + words("alpha", 30) + "\n\n## Two\n\n" + words("beta", 30)

	first, err := c.Chunk(text, "x.md", map[string]string{"doc_type": "guide"}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Chunk(text, "x.md", map[string]string{"doc_type": "guide"}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical input must produce identical chunks")
	}
}

func TestChunk_SectionHeaders(t *testing.T) {
	c := newTestChunker()
	text := "intro paragraph\n\n## Sites\n\nsites body\n\n### Night Dives\n\nnight body"

	chunks, err := c.Chunk(text, "x.md", nil, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	headers := []string{"", "## Sites", "### Night Dives"}
	for i, want := range headers {
		if chunks[i].Meta.SectionHeader != want {
			t.Errorf("chunk %d header = %q, want %q", i, chunks[i].Meta.SectionHeader, want)
		}
		if chunks[i].Meta.ChunkIndex != i {
			t.Errorf("chunk %d index = %d", i, chunks[i].Meta.ChunkIndex)
		}
	}
}

func TestChunk_PacksOversizedSection(t *testing.T) {
	c := newTestChunker()
	opts := Options{TargetTokens: 13, MaxTokens: 15, MinTokens: 0}
	text := words("one", 6) + "\n\n" + words("two", 6) + "\n\n" + words("three", 6)

	chunks, err := c.Chunk(text, "x.md", nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != words("one", 6)+"\n\n"+words("two", 6) {
		t.Errorf("chunk 0 = %q", chunks[0].Text)
	}
	if chunks[1].Text != words("three", 6) {
		t.Errorf("chunk 1 = %q", chunks[1].Text)
	}
}

func TestChunk_OversizedParagraphEmittedAlone(t *testing.T) {
	c := newTestChunker()
	opts := Options{TargetTokens: 20, MaxTokens: 30, MinTokens: 0}
	big := words("big", 40)
	text := big + "\n\n" + words("small", 5)

	chunks, err := c.Chunk(text, "x.md", nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != big {
		t.Error("oversized paragraph must be emitted alone, never dropped")
	}
}

func TestChunk_TrailingRuntMerges(t *testing.T) {
	c := newTestChunker()
	opts := Options{TargetTokens: 9, MaxTokens: 30, MinTokens: 5}
	text := strings.Join([]string{
		words("a", 8), words("b", 8), words("c", 8), words("d", 8), words("e", 2),
	}, "\n\n")

	chunks, err := c.Chunk(text, "x.md", nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks after runt merge, got %d", len(chunks))
	}
	last := chunks[len(chunks)-1].Text
	if last != words("d", 8)+"\n\n"+words("e", 2) {
		t.Errorf("runt not merged into predecessor: %q", last)
	}
}

func TestChunk_OverlapCarriesTrailingParagraph(t *testing.T) {
	c := newTestChunker()
	opts := Options{TargetTokens: 11, MaxTokens: 15, MinTokens: 0, OverlapTokens: 3}
	tiny := words("tiny", 2)
	text := words("first", 8) + "\n\n" + tiny + "\n\n" + words("second", 8)

	chunks, err := c.Chunk(text, "x.md", nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, tiny) {
		t.Errorf("chunk 0 should end with the carried paragraph: %q", chunks[0].Text)
	}
	if !strings.HasPrefix(chunks[1].Text, tiny) {
		t.Errorf("chunk 1 should start with the carried paragraph: %q", chunks[1].Text)
	}
}

func TestChunk_FrontmatterLifting(t *testing.T) {
	c := newTestChunker()
	fm := map[string]string{
		"doc_type":    "guide",
		"destination": "Bali",
		"tags":        "beach, diving",
		"author":      "jk",
	}

	chunks, err := c.Chunk("body text", "guides/bali.md", fm, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	meta := chunks[0].Meta
	if meta.DocType != "guide" || meta.Destination != "Bali" {
		t.Errorf("typed fields = (%q, %q)", meta.DocType, meta.Destination)
	}
	if !reflect.DeepEqual(meta.Tags, []string{"beach", "diving"}) {
		t.Errorf("tags = %v", meta.Tags)
	}
	if meta.Extra["author"] != "jk" || meta.Extra["doc_type"] != "guide" {
		t.Errorf("extra = %v", meta.Extra)
	}
}

func TestChunk_InvalidOptions(t *testing.T) {
	c := newTestChunker()

	cases := []Options{
		{TargetTokens: 0, MaxTokens: 10},
		{TargetTokens: 10, MaxTokens: 5},
		{TargetTokens: 5, MaxTokens: 10, OverlapTokens: -1},
	}
	for _, opts := range cases {
		if _, err := c.Chunk("text", "x.md", nil, opts); err == nil {
			t.Errorf("options %+v should be rejected", opts)
		}
	}
}
