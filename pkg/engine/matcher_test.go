package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docdir/docdir/pkg/domain"
)

func TestMatchesQuery(t *testing.T) {
	doc := domain.Document{"name": "Alice", "age": float64(30), "active": true}

	tests := []struct {
		name     string
		query    domain.Document
		expected bool
	}{
		{"nil query matches", nil, true},
		{"empty query matches", domain.Document{}, true},
		{"single field match", domain.Document{"name": "Alice"}, true},
		{"single field mismatch", domain.Document{"name": "Bob"}, false},
		{"missing field", domain.Document{"city": "Oslo"}, false},
		{"numeric cross-type match", domain.Document{"age": 30}, true},
		{"numeric mismatch", domain.Document{"age": 31}, false},
		{"bool match", domain.Document{"active": true}, true},
		{"multi-field all match", domain.Document{"name": "Alice", "age": 30}, true},
		{"multi-field one mismatch", domain.Document{"name": "Alice", "age": 31}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MatchesQuery(doc, tt.query))
		})
	}
}

func TestValuesMatch_Nil(t *testing.T) {
	assert.True(t, valuesMatch(nil, nil))
	assert.False(t, valuesMatch(nil, "x"))
	assert.False(t, valuesMatch("x", nil))
}

func TestToFloat64(t *testing.T) {
	for _, v := range []interface{}{int(1), int32(1), int64(1), uint(1), uint32(1), uint64(1), float32(1), float64(1)} {
		f, ok := toFloat64(v)
		assert.True(t, ok)
		assert.Equal(t, float64(1), f)
	}

	_, ok := toFloat64("1")
	assert.False(t, ok)
}
