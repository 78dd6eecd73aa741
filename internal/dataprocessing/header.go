package dataprocessing

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"drillagg/pkg/contracts/domain"
)

var headerReplacer = strings.NewReplacer(" ", "_", "-", "_", "\n", "_")

// NormalizeHeader lower-cases and trims s, then replaces every space,
// hyphen and line break with an underscore, one for one.
func NormalizeHeader(s string) string {
	// A Caser keeps state between calls, so each call gets its own.
	lowered := cases.Lower(language.Und).String(s)
	return headerReplacer.Replace(strings.TrimSpace(lowered))
}

// ComposeHeader flattens a main/sub header pair into field names. Empty
// main cells take the last non-empty main value to their left, which
// restores merged cells that span several columns.
func ComposeHeader(main, sub domain.Row) []string {
	fields := make([]string, 0, len(main)+1)

	var last string
	for i, cell := range main {
		name := cell.DisplayText()
		if name == "" {
			name = last
		} else {
			last = name
		}

		field := NormalizeHeader(name)
		if subName := sub.At(i).DisplayText(); subName != "" {
			field += "_" + NormalizeHeader(subName)
		}
		fields = append(fields, field)
	}

	return fields
}

// BuildHeader composes the header and appends the provenance field
func BuildHeader(main, sub domain.Row, provenanceField string) []string {
	if provenanceField == "" {
		provenanceField = DefaultProvenanceField
	}
	return append(ComposeHeader(main, sub), provenanceField)
}

// HeaderSpec is the run-wide schema. It is set once from the first
// document carrying a header and never modified afterwards.
type HeaderSpec struct {
	fields []string
	source string
}

func newHeaderSpec(fields []string, source string) *HeaderSpec {
	return &HeaderSpec{
		fields: append([]string(nil), fields...),
		source: source,
	}
}

// Fields returns a copy of the field names, provenance field last
func (h *HeaderSpec) Fields() []string {
	return append([]string(nil), h.fields...)
}

// Width is the number of fields every record should carry
func (h *HeaderSpec) Width() int {
	return len(h.fields)
}

// Source is the path of the document the header came from
func (h *HeaderSpec) Source() string {
	return h.source
}
