package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/waypointhq/ragcore/internal/db"
	"github.com/waypointhq/ragcore/internal/domain"
	"github.com/waypointhq/ragcore/internal/domain/filter"
)

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
func (s *Store) SearchKNN(ctx context.Context, q db.KNNQuery) (db.SearchResult, error) {
	if q.Index == "" {
		return db.SearchResult{}, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return db.SearchResult{}, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return db.SearchResult{}, fmt.Errorf("k must be positive")
	}

	knnPart := fmt.Sprintf("[KNN %d @vector $BLOB]", q.K)
	queryStr := "*=>" + knnPart
	if filterStr := buildFilter(q.Filter); filterStr != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
	}

	args := []string{q.Index, queryStr}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}

	args = append(args, "PARAMS", "2", "BLOB", vectorToBytes(q.Vector), "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return db.SearchResult{}, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseKNNResult(raw)
}

// SearchText runs a BM25-scored full-text search via FT.SEARCH.
func (s *Store) SearchText(ctx context.Context, q db.TextQuery) (db.SearchResult, error) {
	if q.Index == "" {
		return db.SearchResult{}, fmt.Errorf("index name is required")
	}
	if q.Query == "" {
		return db.SearchResult{}, fmt.Errorf("query is required")
	}
	if q.Limit <= 0 {
		return db.SearchResult{}, fmt.Errorf("limit must be positive")
	}

	textPart := fmt.Sprintf("@%s:(%s)", fieldContent, escapeQuery(q.Query))
	queryStr := textPart
	if filterStr := buildFilter(q.Filter); filterStr != "" {
		queryStr = filterStr + " " + textPart
	}

	args := []string{q.Index, queryStr}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}

	args = append(args,
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return db.SearchResult{}, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseTextResult(raw)
}

// SearchKeys returns only the keys matching a filter query, up to limit.
func (s *Store) SearchKeys(ctx context.Context, index, query string, limit int) ([]string, error) {
	args := []string{
		index, query,
		"NOCONTENT",
		"LIMIT", "0", strconv.Itoa(limit),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	if len(raw) == 0 {
		return nil, nil
	}
	// NOCONTENT layout: [total, key1, key2, ...]
	keys := make([]string, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

const (
	fieldContent     = "__content"
	fieldVectorScore = "__vector_score"
)

// --- Result parsing ---

func parseKNNResult(raw []rueidis.RedisMessage) (db.SearchResult, error) {
	if len(raw) == 0 {
		return db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return db.SearchResult{}, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		}

		if scoreStr, ok := entry.Fields[fieldVectorScore]; ok {
			if s, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				entry.Score = max(0, 1.0-s) // cosine distance → similarity, clamped to [0,1]
			}
			delete(entry.Fields, fieldVectorScore)
		}

		entries = append(entries, entry)
	}

	return db.SearchResult{Total: total, Entries: entries}, nil
}

func parseTextResult(raw []rueidis.RedisMessage) (db.SearchResult, error) {
	if len(raw) == 0 {
		return db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return db.SearchResult{}, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}

		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  score,
			Fields: parseFieldPairs(fields),
		})
	}

	return db.SearchResult{Total: total, Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter building ---

// buildFilter translates a chunk filter into an FT.SEARCH pre-filter
// string. All predicates are AND-combined; each tag must be present.
func buildFilter(f filter.Filter) string {
	if f.IsEmpty() {
		return ""
	}

	var parts []string

	if f.DocType() != "" {
		parts = append(parts, db.TagQuery(domain.FieldDocType, f.DocType()))
	}
	if f.Destination() != "" {
		parts = append(parts, db.TagQuery(domain.FieldDestination, f.Destination()))
	}
	for _, t := range f.Tags() {
		parts = append(parts, db.TagQuery(domain.FieldTags, t))
	}

	return strings.Join(parts, " ")
}

// --- Query helpers ---

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
