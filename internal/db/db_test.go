package db

import (
	"errors"
	"testing"
)

func TestTagQuery(t *testing.T) {
	cases := []struct {
		field, value, want string
	}{
		{"doc_type", "guide", "@doc_type:{guide}"},
		{"content_path", "guides/bali.md", `@content_path:{guides/bali\.md}`},
		{"destination", "Kuala Lumpur", `@destination:{Kuala\ Lumpur}`},
		{"tags", "surf-spots", `@tags:{surf\-spots}`},
	}
	for _, tc := range cases {
		if got := TagQuery(tc.field, tc.value); got != tc.want {
			t.Errorf("TagQuery(%q, %q) = %q, want %q", tc.field, tc.value, got, tc.want)
		}
	}
}

func validDefinition() IndexDefinition {
	return IndexDefinition{
		Name:     "ragcore:chunks:idx",
		Prefixes: []string{"ragcore:chunks:"},
		Fields: []IndexField{
			{Name: "doc_type", Type: FieldTypeTag},
			{Name: "__vector", Type: FieldTypeVector, VectorDim: 1536},
		},
	}
}

func TestIndexDefinitionValidate(t *testing.T) {
	if err := validDefinition().Validate(); err != nil {
		t.Fatalf("valid definition rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*IndexDefinition)
	}{
		{"empty name", func(d *IndexDefinition) { d.Name = "" }},
		{"bad name char", func(d *IndexDefinition) { d.Name = "idx with space" }},
		{"no prefixes", func(d *IndexDefinition) { d.Prefixes = nil }},
		{"no fields", func(d *IndexDefinition) { d.Fields = nil }},
		{"unnamed field", func(d *IndexDefinition) { d.Fields[0].Name = "" }},
		{"unknown type", func(d *IndexDefinition) { d.Fields[0].Type = "GEO" }},
		{"vector without dim", func(d *IndexDefinition) { d.Fields[1].VectorDim = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDefinition()
			tc.mutate(&d)
			err := d.Validate()
			if !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("expected ErrInvalidDefinition, got %v", err)
			}
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	err := NewError(OpSearch, ErrIndexNotFound)
	if !errors.Is(err, ErrIndexNotFound) {
		t.Error("db.Error must unwrap to its cause")
	}
	var dbErr *Error
	if !errors.As(err, &dbErr) || dbErr.Op != OpSearch {
		t.Errorf("err = %v", err)
	}
}
