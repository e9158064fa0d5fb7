package engine

import (
	"strings"

	"github.com/orderstack/order-agent/internal/models"
)

// Predicate reports whether an order satisfies a set of criteria.
type Predicate func(models.Order) bool

// CompilePredicate folds every active criterion into one conjunctive predicate.
func CompilePredicate(criteria models.FilterCriteria) Predicate {
	var state string
	if criteria.State != nil {
		state = strings.TrimSpace(*criteria.State)
	}
	var keywords []string
	if criteria.ItemKeyword != nil {
		keywords = SplitKeywords(*criteria.ItemKeyword)
	}
	minTotal, maxTotal := criteria.MinTotal, criteria.MaxTotal

	return func(o models.Order) bool {
		if state != "" && !strings.EqualFold(strings.TrimSpace(o.State), state) {
			return false
		}
		if minTotal != nil && o.Total < *minTotal {
			return false
		}
		if maxTotal != nil && o.Total > *maxTotal {
			return false
		}
		if len(keywords) > 0 && !itemsMatch(o.Items, keywords) {
			return false
		}
		return true
	}
}

// Filter returns the orders matching criteria, preserving input order.
func Filter(orders []models.Order, criteria models.FilterCriteria) []models.Order {
	match := CompilePredicate(criteria)
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if match(o) {
			out = append(out, o.Clone())
		}
	}
	return out
}

// SplitKeywords lower-cases a keyword expression and splits it on commas and " or ".
// "laptop, headphones or Mouse" yields [laptop headphones mouse].
func SplitKeywords(expr string) []string {
	expr = strings.ReplaceAll(strings.ToLower(expr), ",", " or ")
	parts := strings.Split(expr, " or ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func itemsMatch(items, keywords []string) bool {
	for _, item := range items {
		lower := strings.ToLower(item)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}
