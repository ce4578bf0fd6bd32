package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil", input: nil, expected: nil},
		{name: "only blanks", input: []string{" ", ""}, expected: []string{}},
		{name: "trims and keeps order", input: []string{" b ", "a", "b"}, expected: []string{"b", "a"}},
		{name: "case sensitive", input: []string{"gpt-4o", "GPT-4o"}, expected: []string{"gpt-4o", "GPT-4o"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeFold(t *testing.T) {
	got := DedupeFold([]string{"ReceitaWS_CNPJ", " receitaws_cnpj", "viacep"})
	assert.Equal(t, []string{"ReceitaWS_CNPJ", "viacep"}, got)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, SplitList("kafka-1:9092, kafka-2:9092,,kafka-1:9092"))
	assert.Empty(t, SplitList(""))
}
