package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "nil passes through",
			input: nil,
			want:  nil,
		},
		{
			name:  "trims and drops empties",
			input: []string{" record.declare ", "", "record.register", "   "},
			want:  []string{"record.declare", "record.register"},
		},
		{
			name:  "first occurrence wins",
			input: []string{"record.declare", "record.register", "record.declare"},
			want:  []string{"record.declare", "record.register"},
		},
		{
			name:  "duplicate only after trimming",
			input: []string{"record.declare", "  record.declare"},
			want:  []string{"record.declare"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DedupeAndTrim(tc.input))
		})
	}
}
