// Package reconcile turns monitoring statistics and change feeds, whose field names
// have drifted over time, into one canonical shape.
package reconcile

import (
	"strings"
	"time"
)

// Placeholder is displayed for a change whose document is unknown.
const Placeholder = "—"

// RawStats accepts every historical stats shape.
type RawStats struct {
	TotalRecords     *int           `json:"total_records,omitempty"`
	TotalMonitored   *int           `json:"total_monitored,omitempty"`
	ByType           map[string]int `json:"by_type,omitempty"`
	TotalCPF         int            `json:"total_cpf,omitempty"`
	TotalCNPJ        int            `json:"total_cnpj,omitempty"`
	WithRestrictions int            `json:"with_restrictions"`
	Active           int            `json:"active"`
	Inactive         *int           `json:"inactive,omitempty"`
	LastUpdate       string         `json:"last_update,omitempty"`
}

// RawRecord carries the timestamps of one record, used to derive a missing last update.
type RawRecord struct {
	LastCheck string `json:"last_check,omitempty"`
	AddedDate string `json:"added_date,omitempty"`
}

type ByType struct {
	CPF  int `json:"CPF"`
	CNPJ int `json:"CNPJ"`
}

// Stats is the canonical statistics view. Its JSON form is itself a valid RawStats.
type Stats struct {
	Total            int        `json:"total_monitored"`
	ByType           ByType     `json:"by_type"`
	WithRestrictions int        `json:"with_restrictions"`
	Active           int        `json:"active"`
	Inactive         int        `json:"inactive"`
	LastUpdate       *time.Time `json:"last_update"`
}

// ReconcileStats never fails; absent values degrade to zero or nil.
func ReconcileStats(raw RawStats, records []RawRecord) Stats {
	s := Stats{
		WithRestrictions: raw.WithRestrictions,
		Active:           raw.Active,
	}
	switch {
	case raw.TotalRecords != nil:
		s.Total = *raw.TotalRecords
	case raw.TotalMonitored != nil:
		s.Total = *raw.TotalMonitored
	}

	if raw.ByType != nil {
		s.ByType = ByType{CPF: raw.ByType["CPF"], CNPJ: raw.ByType["CNPJ"]}
	} else {
		s.ByType = ByType{CPF: raw.TotalCPF, CNPJ: raw.TotalCNPJ}
	}

	if raw.Inactive != nil {
		s.Inactive = *raw.Inactive
	} else {
		s.Inactive = max(s.Total-s.Active, 0)
	}

	if t, ok := parseTime(raw.LastUpdate); ok {
		s.LastUpdate = &t
	} else {
		s.LastUpdate = latest(records)
	}
	return s
}

func latest(records []RawRecord) *time.Time {
	var out *time.Time
	for _, r := range records {
		t, ok := parseTime(r.LastCheck)
		if !ok {
			t, ok = parseTime(r.AddedDate)
		}
		if ok && (out == nil || t.After(*out)) {
			out = &t
		}
	}
	return out
}

// RawChange accepts every historical change-feed entry shape.
type RawChange struct {
	Document          *string `json:"document"`
	DocumentType      string  `json:"document_type,omitempty"`
	ChangeDescription *string `json:"change_description,omitempty"`
	Description       *string `json:"description,omitempty"`
	DetectedAt        string  `json:"detected_at,omitempty"`
	ChangeDate        string  `json:"change_date,omitempty"`
	OldRestrictions   int     `json:"old_restrictions"`
	NewRestrictions   int     `json:"new_restrictions"`
}

// Change is the canonical change entry.
type Change struct {
	Document        *string    `json:"document"`
	DocumentType    string     `json:"document_type"`
	Description     string     `json:"change_description"`
	DetectedAt      *time.Time `json:"detected_at"`
	OldRestrictions int        `json:"old_restrictions"`
	NewRestrictions int        `json:"new_restrictions"`
}

// DisplayDocument returns the document or the placeholder when it is unknown.
func (c Change) DisplayDocument() string {
	if c.Document == nil || *c.Document == "" {
		return Placeholder
	}
	return *c.Document
}

// ReconcileChanges keeps every entry, including those without a document. An empty
// description is treated as missing.
func ReconcileChanges(raw []RawChange) []Change {
	out := make([]Change, 0, len(raw))
	for _, r := range raw {
		c := Change{
			Document:        r.Document,
			DocumentType:    r.DocumentType,
			Description:     "-",
			OldRestrictions: r.OldRestrictions,
			NewRestrictions: r.NewRestrictions,
		}
		switch {
		case r.ChangeDescription != nil && *r.ChangeDescription != "":
			c.Description = *r.ChangeDescription
		case r.Description != nil && *r.Description != "":
			c.Description = *r.Description
		}
		if t, ok := parseTime(r.DetectedAt); ok {
			c.DetectedAt = &t
		} else if t, ok := parseTime(r.ChangeDate); ok {
			c.DetectedAt = &t
		}
		out = append(out, c)
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTime accepts the timestamp spellings seen across backends. Naive timestamps
// are read as UTC.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
