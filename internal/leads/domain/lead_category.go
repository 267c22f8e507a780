package domain

import "strings"

const (
	CategoryBCH     = "bch"
	CategoryLC1     = "lc1"
	CategoryLC2     = "lc2"
	CategoryLC3     = "lc3"
	CategoryNurture = "nurture"
)

var knownCategories = map[string]struct{}{
	CategoryBCH:     {},
	CategoryLC1:     {},
	CategoryLC2:     {},
	CategoryLC3:     {},
	CategoryNurture: {},
}

// DefaultQualifiedCategories are the categories treated as sales-qualified.
var DefaultQualifiedCategories = []string{CategoryBCH, CategoryLC1, CategoryLC2}

func IsKnownCategory(category string) bool {
	_, ok := knownCategories[category]
	return ok
}

// QualifiedSet answers membership in the configured qualified categories.
type QualifiedSet map[string]struct{}

// NewQualifiedSet builds a QualifiedSet, falling back to the defaults when
// categories is empty.
func NewQualifiedSet(categories []string) QualifiedSet {
	if len(categories) == 0 {
		categories = DefaultQualifiedCategories
	}
	set := make(QualifiedSet, len(categories))
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

// Contains reports whether category is qualified. A NULL category never is.
func (q QualifiedSet) Contains(category *string) bool {
	if category == nil {
		return false
	}
	_, ok := q[*category]
	return ok
}

// Slice returns the members, for SQL ANY($n) filters.
func (q QualifiedSet) Slice() []string {
	out := make([]string, 0, len(q))
	for c := range q {
		out = append(out, c)
	}
	return out
}
