package db

import "github.com/waypointhq/ragcore/internal/domain/filter"

// KNNQuery describes a vector nearest-neighbour search.
type KNNQuery struct {
	Index  string
	Vector []float32
	K      int

	// Filter restricts candidates before the KNN scan.
	Filter filter.Filter

	// ReturnFields limits the hash fields loaded per hit. Empty returns
	// all fields.
	ReturnFields []string
}

// TextQuery describes a BM25-scored full-text search.
type TextQuery struct {
	Index string
	Query string
	Limit int

	Filter       filter.Filter
	ReturnFields []string
}

// SearchEntry is one hit of a search, with the hash fields requested.
type SearchEntry struct {
	Key string

	// Score is cosine similarity in [0,1] for KNN queries and the raw
	// BM25 score for text queries.
	Score  float64
	Fields map[string]string
}

// SearchResult carries the ordered hits and the backend's total count.
type SearchResult struct {
	Total   int64
	Entries []SearchEntry
}
