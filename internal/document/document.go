// Package document normalizes and classifies Brazilian tax identifiers.
//
// Classification depends only on the digit count: 11 digits is an individual (CPF),
// 14 is an organization (CNPJ). Check digits are not validated here; callers that
// need a stricter rule apply it on top.
package document

import (
	"strings"
	"unicode"
)

// Kind classifies a document by the party it identifies.
type Kind string

const (
	KindIndividual   Kind = "INDIVIDUAL"
	KindOrganization Kind = "ORGANIZATION"
	KindUnknown      Kind = "UNKNOWN"
)

const (
	individualDigits   = 11
	organizationDigits = 14
)

// InvalidMessage is the validation message used wherever an unclassifiable document is rejected.
const InvalidMessage = "document must have 11 (CPF) or 14 (CNPJ) digits"

// Document is a normalized identifier. Raw is kept for display only.
type Document struct {
	Raw    string
	Digits string
	Kind   Kind
}

// Classify strips every non-digit from raw and classifies the result.
func Classify(raw string) Document {
	digits := Digits(raw)
	return Document{Raw: raw, Digits: digits, Kind: KindForLength(len(digits))}
}

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func KindForLength(n int) Kind {
	switch n {
	case individualDigits:
		return KindIndividual
	case organizationDigits:
		return KindOrganization
	default:
		return KindUnknown
	}
}

func (d Document) Valid() bool {
	return d.Kind != KindUnknown
}

// Label returns the legacy label: "CPF", "CNPJ", or "" for unknown documents.
func (d Document) Label() string {
	return d.Kind.Label()
}

func (k Kind) Label() string {
	switch k {
	case KindIndividual:
		return "CPF"
	case KindOrganization:
		return "CNPJ"
	default:
		return ""
	}
}

// ParseKind accepts both legacy labels and kind names, case-insensitively.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CPF", string(KindIndividual):
		return KindIndividual, true
	case "CNPJ", string(KindOrganization):
		return KindOrganization, true
	default:
		return KindUnknown, false
	}
}

// Formatted applies the canonical punctuation. Unknown documents are returned as digits.
func (d Document) Formatted() string {
	s := d.Digits
	switch d.Kind {
	case KindIndividual:
		return s[0:3] + "." + s[3:6] + "." + s[6:9] + "-" + s[9:11]
	case KindOrganization:
		return s[0:2] + "." + s[2:5] + "." + s[5:8] + "/" + s[8:12] + "-" + s[12:14]
	default:
		return s
	}
}

// ParseBatch splits pasted text into candidate documents. Runs of whitespace other
// than newlines collapse to one space, items are separated by ';' or newlines, and
// empty items are dropped. Items are not classified.
func ParseBatch(text string) []string {
	var collapsed strings.Builder
	collapsed.Grow(len(text))
	inSpace := false
	for _, r := range text {
		if r != '\n' && unicode.IsSpace(r) {
			if !inSpace {
				collapsed.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		collapsed.WriteRune(r)
	}

	fields := strings.FieldsFunc(collapsed.String(), func(r rune) bool {
		return r == ';' || r == '\n'
	})
	items := make([]string, 0, len(fields))
	for _, f := range fields {
		if item := strings.TrimSpace(f); item != "" {
			items = append(items, item)
		}
	}
	return items
}
