package domain

// Metadata field names as stored in the chunk index.
const (
	FieldContentPath   = "content_path"
	FieldChunkIndex    = "chunk_index"
	FieldSectionHeader = "section_header"
	FieldDocType       = "doc_type"
	FieldDestination   = "destination"
	FieldTags          = "tags"
)

// ChunkMeta is the provenance metadata attached to every chunk.
// Known fields are typed; ingestion-time frontmatter that does not map to a
// known field travels verbatim in Extra.
type ChunkMeta struct {
	ContentPath   string
	ChunkIndex    int
	SectionHeader string // empty when the source section had no header
	DocType       string
	Destination   string
	Tags          []string
	Extra         map[string]string
}

// Chunk is a retrieval-sized unit of a document. Immutable once created;
// ID is assigned by the store at upsert time.
type Chunk struct {
	ID   string
	Text string
	Meta ChunkMeta
}
