package retrieval

import (
	"fmt"
	"strings"

	"ai-deptdocs-be/pkg/store"
)

// Filter narrows the vector search by modality and study program. Staff
// records always pass the type filter and general-program chunks always
// pass the year filter, so scoping a query never hides them.
type Filter struct {
	// Type is one of "text", "image", "table" or "all" (default).
	Type string

	// Year is one of the program levels (SARJANA, MAGISTER, DOKTOR) or
	// empty for no year scoping.
	Year string
}

// TypeConditions resolves Type to the chunk type values the search must
// match. Staff chunks are always included.
func (f Filter) TypeConditions() []string {
	var conds []string
	switch strings.ToLower(f.Type) {
	case "text":
		conds = []string{store.TypeText}
	case "image":
		conds = []string{store.TypeImage}
	case "table":
		conds = []string{store.TypeTableRow, store.TypeTableCaption}
	default:
		conds = []string{store.TypeText, store.TypeImage, store.TypeTableRow, store.TypeTableCaption}
	}
	return append(conds, store.TypeStaff)
}

// YearConditions resolves Year to the accepted year values, or nil when
// no year scoping applies. General chunks are always included.
func (f Filter) YearConditions() []string {
	year := strings.ToUpper(strings.TrimSpace(f.Year))
	switch year {
	case store.YearSarjana, store.YearMagister, store.YearDoktor:
		return []string{year, store.YearGeneral}
	default:
		return nil
	}
}

// Describe renders the applied filter for status events.
func (f Filter) Describe() string {
	var parts []string
	if t := strings.ToLower(f.Type); t != "" && t != "all" {
		parts = append(parts, fmt.Sprintf("Types: %s", t))
	}
	if years := f.YearConditions(); years != nil {
		parts = append(parts, fmt.Sprintf("Year: %s", years[0]))
	}
	parts = append(parts, "+ TENDIK always", "+ GENERAL always")
	return strings.Join(parts, " | ")
}
