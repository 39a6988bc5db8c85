// Package filter defines the metadata predicate applied to chunk queries.
// All predicates are AND-combined and pushed down to the store.
package filter

import "fmt"

// MaxTags bounds the tag containment list.
const MaxTags = 16

// Filter restricts retrieval to chunks matching every set predicate.
// The zero value matches everything.
type Filter struct {
	docType     string
	destination string
	tags        []string
}

// New validates and creates a Filter.
func New(docType, destination string, tags []string) (Filter, error) {
	if len(tags) > MaxTags {
		return Filter{}, fmt.Errorf("too many tag filters (max %d)", MaxTags)
	}
	for _, t := range tags {
		if t == "" {
			return Filter{}, fmt.Errorf("empty tag filter value")
		}
	}
	return Filter{docType: docType, destination: destination, tags: tags}, nil
}

// DocType returns the document type predicate ("" = any).
func (f Filter) DocType() string { return f.docType }

// Destination returns the destination predicate ("" = any).
func (f Filter) Destination() string { return f.destination }

// Tags returns the tag containment predicates; a chunk must carry every one.
func (f Filter) Tags() []string { return f.tags }

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool {
	return f.docType == "" && f.destination == "" && len(f.tags) == 0
}
