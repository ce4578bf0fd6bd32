package providers

import (
	"context"

	"kycdesk/internal/document"
)

// Query is what a source is asked about. PostalCode is only set for address lookups.
type Query struct {
	Document   document.Document
	PostalCode string
}

// Source is one upstream data provider. Fetch returns the decoded JSON body.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) (any, error)
}
