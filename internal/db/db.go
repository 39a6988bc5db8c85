// Package db defines the storage contracts the chunk repository is built
// on. Implementations live in subpackages (currently Redis/Valkey with the
// RediSearch module).
package db

import "context"

// Store is the full capability set a backend must provide.
type Store interface {
	Pinger
	HashStore
	IndexManager
	Searcher

	// Close releases the underlying connection pool.
	Close()
}

// Pinger reports backend liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore persists chunk records as hashes keyed by ID.
type HashStore interface {
	// HSetMulti writes several hashes in one round trip. Partial failures
	// return an error naming the first failed key.
	HSetMulti(ctx context.Context, items map[string]map[string]string) error

	// HGetAll returns every field of the hash at key, or ErrKeyNotFound.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error
}

// IndexManager creates and inspects search indexes.
type IndexManager interface {
	CreateIndex(ctx context.Context, def IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
}

// Searcher runs vector and full-text queries against an index.
type Searcher interface {
	// SearchKNN runs an approximate nearest-neighbour query and returns
	// entries ordered by descending similarity.
	SearchKNN(ctx context.Context, q KNNQuery) (SearchResult, error)

	// SearchText runs a BM25-scored full-text query and returns entries
	// ordered by descending score.
	SearchText(ctx context.Context, q TextQuery) (SearchResult, error)

	// SearchKeys returns only the document keys matching a filter
	// expression, up to limit.
	SearchKeys(ctx context.Context, index, query string, limit int) ([]string, error)
}
