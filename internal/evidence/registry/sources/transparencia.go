package sources

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"kycdesk/internal/document"
	"kycdesk/internal/dossier/models"
	"kycdesk/internal/evidence/registry/providers"
)

// ErrNotConfigured is returned by every Transparência list when no API key is set.
var ErrNotConfigured = errors.New("transparencia api key not configured")

const apiKeyHeader = "chave-api-dados"

// Transparencia is the Portal da Transparência client. The three sanction lists
// share one API key and one rate limiter.
type Transparencia struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewTransparencia builds the client. ratePerSec bounds calls across all three lists.
func NewTransparencia(baseURL, apiKey string, ratePerSec float64, httpClient *http.Client) *Transparencia {
	burst := max(1, int(ratePerSec))
	return &Transparencia{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

func (t *Transparencia) Configured() bool { return t.apiKey != "" }

// CEIS is the debarment registry.
func (t *Transparencia) CEIS() providers.Source {
	return t.list(models.SourceTransparenciaCEIS, "/ceis", func(d document.Document) (string, bool) {
		if d.Kind == document.KindOrganization {
			return "codigoCpfCnpj", true
		}
		return "cpfCnpj", true
	})
}

// CNEP is the administrative-sanctions registry.
func (t *Transparencia) CNEP() providers.Source {
	return t.list(models.SourceTransparenciaCNEP, "/cnep", func(d document.Document) (string, bool) {
		if d.Kind == document.KindOrganization {
			return "codigoCnpj", true
		}
		return "cpf", true
	})
}

// CEPIM lists non-profits barred from public agreements; it only covers organizations.
func (t *Transparencia) CEPIM() providers.Source {
	return t.list(models.SourceTransparenciaCEPIM, "/cepim", func(d document.Document) (string, bool) {
		return "cnpj", d.Kind == document.KindOrganization
	})
}

func (t *Transparencia) list(name, path string, param func(document.Document) (string, bool)) *sanctionList {
	c := newJSONClient(name, t.baseURL, t.httpClient)
	c.header.Set(apiKeyHeader, t.apiKey)
	c.limiter = t.limiter
	return &sanctionList{owner: t, client: c, path: path, param: param}
}

type sanctionList struct {
	owner  *Transparencia
	client jsonClient
	path   string
	param  func(document.Document) (string, bool)
}

func (s *sanctionList) Name() string { return s.client.name }

func (s *sanctionList) Fetch(ctx context.Context, q providers.Query) (any, error) {
	if !s.owner.Configured() {
		return nil, ErrNotConfigured
	}
	key, applies := s.param(q.Document)
	if !applies {
		return []any{}, nil
	}
	body, err := s.client.get(ctx, s.path, url.Values{key: {q.Document.Digits}})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []any{}, nil
	}
	entries, ok := body.([]any)
	if !ok {
		return nil, badData(s.Name(), "expected a JSON array")
	}
	return entries, nil
}

func (s *sanctionList) Configured() bool { return s.owner.Configured() }
