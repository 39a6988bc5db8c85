package db

import "fmt"

// FieldType enumerates the index field kinds the chunk schema uses.
type FieldType string

const (
	FieldTypeTag     FieldType = "TAG"
	FieldTypeText    FieldType = "TEXT"
	FieldTypeNumeric FieldType = "NUMERIC"
	FieldTypeVector  FieldType = "VECTOR"
)

// IndexField describes one schema field of a search index.
type IndexField struct {
	Name string
	Type FieldType

	// Vector fields only. Vectors are indexed with HNSW over FLOAT32
	// using cosine distance; M and EFConstruction tune graph build
	// quality and default to the backend's values when zero.
	VectorDim      int
	M              int
	EFConstruction int
}

// IndexDefinition describes a hash-backed search index.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate checks the definition is well formed before issuing a create.
func (d IndexDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: index name is required", ErrInvalidDefinition)
	}
	if !isValidIdentifier(d.Name) {
		return fmt.Errorf("%w: invalid index name %q", ErrInvalidDefinition, d.Name)
	}
	if len(d.Prefixes) == 0 {
		return fmt.Errorf("%w: at least one key prefix is required", ErrInvalidDefinition)
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("%w: at least one field is required", ErrInvalidDefinition)
	}
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field name is required", ErrInvalidDefinition)
		}
		switch f.Type {
		case FieldTypeTag, FieldTypeText, FieldTypeNumeric:
		case FieldTypeVector:
			if f.VectorDim <= 0 {
				return fmt.Errorf("%w: vector field %q requires a positive dimension", ErrInvalidDefinition, f.Name)
			}
		default:
			return fmt.Errorf("%w: unknown field type %q", ErrInvalidDefinition, f.Type)
		}
	}
	return nil
}

// isValidIdentifier accepts ASCII letters, digits, underscore, dash and
// colon, which covers prefixed index names like "ragcore:chunks".
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-' || c == ':':
		default:
			return false
		}
	}
	return true
}
