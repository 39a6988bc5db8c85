package quota

// Bucket identifies an independently metered API budget.
// A closed enumeration: adding a bucket is a compile-time change.
type Bucket int

// Metered buckets.
const (
	TextGeneration Bucket = iota
	Embedding
)

// String returns the bucket name used in logs, metrics, and snapshots.
func (b Bucket) String() string {
	switch b {
	case TextGeneration:
		return "text_generation"
	case Embedding:
		return "embedding"
	default:
		return "unknown"
	}
}

// Buckets returns all metered buckets.
func Buckets() []Bucket {
	return []Bucket{TextGeneration, Embedding}
}
