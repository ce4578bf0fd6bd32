package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		digits string
		kind   Kind
	}{
		{"formatted cnpj", "12.345.678/0001-90", "12345678000190", KindOrganization},
		{"bare cnpj", "12345678000190", "12345678000190", KindOrganization},
		{"formatted cpf", "123.456.789-09", "12345678909", KindIndividual},
		{"empty", "", "", KindUnknown},
		{"letters only", "abc", "", KindUnknown},
		{"too short", "1234", "1234", KindUnknown},
		{"twelve digits", "123456789012", "123456789012", KindUnknown},
		{"non-ascii digits ignored", "١٢٣12345678909", "12345678909", KindIndividual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.raw)
			assert.Equal(t, tt.digits, d.Digits)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.raw, d.Raw)
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	first := Classify("12.345.678/0001-90")
	second := Classify(first.Digits)
	assert.Equal(t, first.Digits, second.Digits)
	assert.Equal(t, first.Kind, second.Kind)
}

func TestLabelsAndParseKind(t *testing.T) {
	assert.Equal(t, "CPF", Classify("12345678909").Label())
	assert.Equal(t, "CNPJ", Classify("12345678000190").Label())
	assert.Equal(t, "", Classify("1").Label())

	for in, want := range map[string]Kind{
		"cpf": KindIndividual, "CNPJ": KindOrganization,
		"individual": KindIndividual, " Organization ": KindOrganization,
	} {
		got, ok := ParseKind(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseKind("RG")
	assert.False(t, ok)
}

func TestFormatted(t *testing.T) {
	assert.Equal(t, "123.456.789-09", Classify("12345678909").Formatted())
	assert.Equal(t, "12.345.678/0001-90", Classify("12345678000190").Formatted())
	assert.Equal(t, "123", Classify("1-2-3").Formatted())
}

func TestParseBatch(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", []string{}},
		{"semicolons and newlines", "111;  222\n333", []string{"111", "222", "333"}},
		{"tabs collapse inside items", "12.345.678/0001-90\t\t;\n\n", []string{"12.345.678/0001-90"}},
		{"crlf lines", "111\r\n222", []string{"111", "222"}},
		{"only separators", " ; ;\n ", []string{}},
		{"inner spaces kept as one", "12 345   678", []string{"12 345 678"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBatch(tt.text))
		})
	}
}
