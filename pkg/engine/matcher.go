package engine

import "github.com/docdir/docdir/pkg/domain"

// MatchesQuery checks if a document matches the given equality query.
// A nil or empty query matches every document.
func MatchesQuery(doc domain.Document, query domain.Document) bool {
	for field, expected := range query {
		actual, exists := doc[field]
		if !exists {
			return false
		}
		if !valuesMatch(actual, expected) {
			return false
		}
	}
	return true
}

// valuesMatch compares two values for equality, handling different numeric types
func valuesMatch(actual, expected interface{}) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}

	// Numbers decoded from the log arrive as float64; coerce both sides
	if actualNum, ok1 := toFloat64(actual); ok1 {
		if expectedNum, ok2 := toFloat64(expected); ok2 {
			return actualNum == expectedNum
		}
	}

	return actual == expected
}

// toFloat64 converts various numeric types to float64 for comparison
func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
