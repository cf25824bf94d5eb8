package prompt

import (
	"fmt"
	"strings"

	"github.com/arbovm/levenshtein"

	apperrors "go-fieldfix/internal/errors"
)

// Category selects which report outline applies to an analysis.
type Category string

const (
	Pest     Category = "pest"
	Ripeness Category = "ripeness"
	Disease  Category = "disease"
	Weed     Category = "weed"
)

// maxCategoryDistance is the largest edit distance accepted when matching a
// misspelled category name.
const maxCategoryDistance = 2

var categoryAliases = map[string]Category{
	"pest":                Pest,
	"pests":               Pest,
	"insect":              Pest,
	"insects":             Pest,
	"pest identification": Pest,
	"ripeness":            Ripeness,
	"ripe":                Ripeness,
	"fruit":               Ripeness,
	"ripeness assessment": Ripeness,
	"disease":             Disease,
	"diseases":            Disease,
	"disease diagnosis":   Disease,
	"weed":                Weed,
	"weeds":               Weed,
	"weed identification": Weed,
}

// Categories returns all categories in display order.
func Categories() []Category {
	return []Category{Pest, Ripeness, Disease, Weed}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := outlines[c]
	return ok
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory resolves user input to a Category. Matching is case-insensitive,
// accepts common aliases and tolerates small typos.
func ParseCategory(input string) (Category, error) {
	key := strings.Join(strings.Fields(strings.ToLower(input)), " ")
	if key == "" {
		return "", apperrors.NewValidationError("category is required", nil)
	}
	if c, ok := categoryAliases[key]; ok {
		return c, nil
	}

	var (
		best      Category
		bestDist  = maxCategoryDistance + 1
		ambiguous bool
	)
	for alias, c := range categoryAliases {
		d := levenshtein.Distance(key, alias)
		switch {
		case d < bestDist:
			best, bestDist, ambiguous = c, d, false
		case d == bestDist && c != best:
			ambiguous = true
		}
	}
	if bestDist <= maxCategoryDistance && !ambiguous {
		return best, nil
	}

	return "", apperrors.NewValidationError(fmt.Sprintf("unknown category %q", input), nil).
		WithDetails("expected one of pest, ripeness, disease, weed")
}
