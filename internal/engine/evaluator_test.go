package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepEqual(t *testing.T) {
	assert.True(t, deepEqual(float64(1), 1))
	assert.True(t, deepEqual(uint64(7), int32(7)))
	assert.False(t, deepEqual(float64(1.5), 1))
	assert.True(t, deepEqual("a", "a"))
	assert.False(t, deepEqual("1", 1))
	assert.True(t, deepEqual([]any{"a"}, []any{"a"}))
}

func TestContains(t *testing.T) {
	tests := []struct {
		name      string
		container any
		item      any
		want      bool
	}{
		{name: "Substring", container: "alice@maramap.app", item: "@maramap", want: true},
		{name: "Substring Missing", container: "alice@example.com", item: "@maramap"},
		{name: "String Non-String Item", container: "123", item: 1},
		{name: "Slice", container: []any{"a", "b"}, item: "b", want: true},
		{name: "Slice Numeric", container: []any{float64(1), float64(2)}, item: 2, want: true},
		{name: "Typed Slice", container: []string{"x"}, item: "y"},
		{name: "Map Key", container: map[string]any{"k": 1}, item: "k", want: true},
		{name: "Scalar", container: 5, item: 5},
		{name: "Nil", container: nil, item: "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contains(tt.container, tt.item))
		})
	}
}
