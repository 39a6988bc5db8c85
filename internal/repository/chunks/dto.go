package chunks

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/waypointhq/ragcore/internal/domain"
)

const (
	fieldContent = "__content"
	fieldVector  = "__vector"
	fieldExtra   = "__meta"

	tagSeparator = ","
)

// buildHashFields flattens a chunk and its vector into HSET fields.
// Typed metadata lands in indexed fields; remaining frontmatter is stored
// as a JSON blob that is not indexed.
func buildHashFields(c domain.Chunk, vector []float32) map[string]string {
	m := map[string]string{
		fieldContent:            c.Text,
		fieldVector:             vectorToBytes(vector),
		domain.FieldContentPath: c.Meta.ContentPath,
		domain.FieldChunkIndex:  strconv.Itoa(c.Meta.ChunkIndex),
	}
	if c.Meta.SectionHeader != "" {
		m[domain.FieldSectionHeader] = c.Meta.SectionHeader
	}
	if c.Meta.DocType != "" {
		m[domain.FieldDocType] = c.Meta.DocType
	}
	if c.Meta.Destination != "" {
		m[domain.FieldDestination] = c.Meta.Destination
	}
	if len(c.Meta.Tags) > 0 {
		m[domain.FieldTags] = strings.Join(c.Meta.Tags, tagSeparator)
	}
	if len(c.Meta.Extra) > 0 {
		if blob, err := json.Marshal(c.Meta.Extra); err == nil {
			m[fieldExtra] = string(blob)
		}
	}
	return m
}

// parseHashFields rebuilds chunk text and metadata from flat hash fields.
func parseHashFields(fields map[string]string) (string, domain.ChunkMeta) {
	var text string
	var meta domain.ChunkMeta

	for k, v := range fields {
		switch k {
		case fieldContent:
			text = v
		case fieldVector:
			// not needed on the read path
		case fieldExtra:
			var extra map[string]string
			if err := json.Unmarshal([]byte(v), &extra); err == nil {
				meta.Extra = extra
			}
		case domain.FieldContentPath:
			meta.ContentPath = v
		case domain.FieldChunkIndex:
			if n, err := strconv.Atoi(v); err == nil {
				meta.ChunkIndex = n
			}
		case domain.FieldSectionHeader:
			meta.SectionHeader = v
		case domain.FieldDocType:
			meta.DocType = v
		case domain.FieldDestination:
			meta.Destination = v
		case domain.FieldTags:
			meta.Tags = strings.Split(v, tagSeparator)
		}
	}

	return text, meta
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
