package sources

import (
	"context"
	"net/http"

	"kycdesk/internal/document"
	"kycdesk/internal/dossier/models"
	"kycdesk/internal/evidence/registry/providers"
)

// BrasilAPI looks up CNPJ registration data.
type BrasilAPI struct {
	client jsonClient
}

func NewBrasilAPI(baseURL string, httpClient *http.Client) *BrasilAPI {
	return &BrasilAPI{client: newJSONClient(models.SourceBrasilAPI, baseURL, httpClient)}
}

func (s *BrasilAPI) Name() string { return models.SourceBrasilAPI }

func (s *BrasilAPI) Fetch(ctx context.Context, q providers.Query) (any, error) {
	if q.Document.Kind != document.KindOrganization {
		return nil, badData(s.Name(), "cnpj required")
	}
	body, err := s.client.get(ctx, "/api/cnpj/v1/"+q.Document.Digits, nil)
	if err != nil {
		return nil, err
	}
	if _, ok := body.(map[string]any); !ok {
		return nil, badData(s.Name(), "expected a JSON object")
	}
	return body, nil
}

// ReceitaWS is the fallback CNPJ registry. It answers 200 with status "ERROR"
// for documents it does not know.
type ReceitaWS struct {
	client jsonClient
}

func NewReceitaWS(baseURL string, httpClient *http.Client) *ReceitaWS {
	return &ReceitaWS{client: newJSONClient(models.SourceReceitaWS, baseURL, httpClient)}
}

func (s *ReceitaWS) Name() string { return models.SourceReceitaWS }

func (s *ReceitaWS) Fetch(ctx context.Context, q providers.Query) (any, error) {
	if q.Document.Kind != document.KindOrganization {
		return nil, badData(s.Name(), "cnpj required")
	}
	body, err := s.client.get(ctx, "/v1/cnpj/"+q.Document.Digits, nil)
	if err != nil {
		return nil, err
	}
	data, ok := body.(map[string]any)
	if !ok {
		return nil, badData(s.Name(), "expected a JSON object")
	}
	if status, _ := data["status"].(string); status == "ERROR" {
		msg, _ := data["message"].(string)
		if msg == "" {
			msg = "receitaws returned an error"
		}
		return nil, notFound(s.Name(), msg)
	}
	return data, nil
}

// ViaCEP resolves a postal code to an address.
type ViaCEP struct {
	client jsonClient
}

func NewViaCEP(baseURL string, httpClient *http.Client) *ViaCEP {
	return &ViaCEP{client: newJSONClient(models.SourceViaCEP, baseURL, httpClient)}
}

func (s *ViaCEP) Name() string { return models.SourceViaCEP }

func (s *ViaCEP) Fetch(ctx context.Context, q providers.Query) (any, error) {
	cep := document.Digits(q.PostalCode)
	if len(cep) != 8 {
		return nil, badData(s.Name(), "postal code must have 8 digits")
	}
	body, err := s.client.get(ctx, "/ws/"+cep+"/json/", nil)
	if err != nil {
		return nil, err
	}
	data, ok := body.(map[string]any)
	if !ok {
		return nil, badData(s.Name(), "expected a JSON object")
	}
	if _, missing := data["erro"]; missing {
		return nil, notFound(s.Name(), "postal code not found")
	}
	return data, nil
}
