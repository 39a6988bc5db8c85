package domain

// RetrievalResult is a single ranked chunk hit. Constructed per query,
// never persisted. Score is cosine similarity in [0,1] on the pure-vector
// path; after hybrid fusion it is an unbounded RRF score.
type RetrievalResult struct {
	chunkID string
	text    string
	score   float64
	meta    ChunkMeta
}

// NewRetrievalResult creates a retrieval result.
func NewRetrievalResult(chunkID string, score float64, text string, meta ChunkMeta) RetrievalResult {
	return RetrievalResult{chunkID: chunkID, score: score, text: text, meta: meta}
}

// ChunkID returns the store-assigned chunk identifier.
func (r *RetrievalResult) ChunkID() string { return r.chunkID }

// Text returns the chunk text.
func (r *RetrievalResult) Text() string { return r.text }

// Score returns the ranking score.
func (r *RetrievalResult) Score() float64 { return r.score }

// Meta returns the chunk provenance metadata.
func (r *RetrievalResult) Meta() ChunkMeta { return r.meta }

// SourceCitation derives the user-facing citation from the content path.
func (r *RetrievalResult) SourceCitation() string { return r.meta.ContentPath }

// WithScore returns a copy of the result carrying a different score.
// Used by hybrid fusion to attach the fused RRF score.
func (r *RetrievalResult) WithScore(score float64) RetrievalResult {
	c := *r
	c.score = score
	return c
}
