package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycdesk/internal/document"
	"kycdesk/internal/evidence/registry/providers"
)

const (
	cnpj = "12345678000190"
	cpf  = "12345678909"
)

func orgQuery() providers.Query {
	return providers.Query{Document: document.Classify(cnpj)}
}

func personQuery() providers.Query {
	return providers.Query{Document: document.Classify(cpf)}
}

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func categoryOf(t *testing.T, err error) providers.ErrorCategory {
	t.Helper()
	require.Error(t, err)
	return providers.GetCategory(err)
}

func TestBrasilAPI(t *testing.T) {
	t.Run("decodes registry object", func(t *testing.T) {
		srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/cnpj/v1/"+cnpj, r.URL.Path)
			_, _ = w.Write([]byte(`{"razao_social":"ACME","capital_social":1000.5}`))
		})
		data, err := NewBrasilAPI(srv.URL, nil).Fetch(context.Background(), orgQuery())
		require.NoError(t, err)
		assert.Equal(t, "ACME", data.(map[string]any)["razao_social"])
	})

	t.Run("status classification", func(t *testing.T) {
		for status, want := range map[int]providers.ErrorCategory{
			http.StatusNotFound:           providers.ErrorNotFound,
			http.StatusTooManyRequests:    providers.ErrorRateLimited,
			http.StatusServiceUnavailable: providers.ErrorProviderOutage,
			http.StatusForbidden:          providers.ErrorAuthentication,
		} {
			srv := serve(t, func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(status) })
			_, err := NewBrasilAPI(srv.URL, nil).Fetch(context.Background(), orgQuery())
			assert.Equal(t, want, categoryOf(t, err), "status %d", status)
		}
	})

	t.Run("rate limit keeps the upstream wait", func(t *testing.T) {
		srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", "12")
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := NewBrasilAPI(srv.URL, nil).Fetch(context.Background(), orgQuery())
		var pe *providers.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 12*time.Second, pe.RetryAfter)
	})

	t.Run("undecodable body is bad data", func(t *testing.T) {
		srv := serve(t, func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`<html>`)) })
		_, err := NewBrasilAPI(srv.URL, nil).Fetch(context.Background(), orgQuery())
		assert.Equal(t, providers.ErrorBadData, categoryOf(t, err))
	})

	t.Run("slow upstream times out", func(t *testing.T) {
		srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := NewBrasilAPI(srv.URL, nil).Fetch(ctx, orgQuery())
		assert.Equal(t, providers.ErrorTimeout, categoryOf(t, err))
	})

	t.Run("individuals are rejected without a call", func(t *testing.T) {
		_, err := NewBrasilAPI("http://127.0.0.1:0", nil).Fetch(context.Background(), personQuery())
		assert.Equal(t, providers.ErrorBadData, categoryOf(t, err))
	})
}

func TestReceitaWS(t *testing.T) {
	t.Run("error status in body is not found", func(t *testing.T) {
		srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/cnpj/"+cnpj, r.URL.Path)
			_, _ = w.Write([]byte(`{"status":"ERROR","message":"CNPJ inválido"}`))
		})
		_, err := NewReceitaWS(srv.URL, nil).Fetch(context.Background(), orgQuery())
		assert.Equal(t, providers.ErrorNotFound, categoryOf(t, err))
		assert.Equal(t, "not_found: CNPJ inválido", providers.Reason(err))
	})

	t.Run("ok body", func(t *testing.T) {
		srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"OK","nome":"ACME"}`))
		})
		data, err := NewReceitaWS(srv.URL, nil).Fetch(context.Background(), orgQuery())
		require.NoError(t, err)
		assert.Equal(t, "ACME", data.(map[string]any)["nome"])
	})
}

func TestViaCEP(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws/01001000/json/" {
			_, _ = w.Write([]byte(`{"cep":"01001-000","localidade":"São Paulo"}`))
			return
		}
		_, _ = w.Write([]byte(`{"erro": true}`))
	})
	client := NewViaCEP(srv.URL, nil)

	data, err := client.Fetch(context.Background(), providers.Query{PostalCode: "01001-000"})
	require.NoError(t, err)
	assert.Equal(t, "São Paulo", data.(map[string]any)["localidade"])

	_, err = client.Fetch(context.Background(), providers.Query{PostalCode: "99999999"})
	assert.Equal(t, providers.ErrorNotFound, categoryOf(t, err))

	_, err = client.Fetch(context.Background(), providers.Query{PostalCode: "123"})
	assert.Equal(t, providers.ErrorBadData, categoryOf(t, err))
}

func TestTransparencia(t *testing.T) {
	var seen []string
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("chave-api-dados"))
		seen = append(seen, r.URL.Path+"?"+r.URL.RawQuery)
		_, _ = w.Write([]byte(`[{"cnpj":"` + cnpj + `"}]`))
	})
	tp := NewTransparencia(srv.URL, "secret", 100, nil)

	t.Run("organization parameters", func(t *testing.T) {
		seen = nil
		for _, src := range []providers.Source{tp.CEIS(), tp.CNEP(), tp.CEPIM()} {
			data, err := src.Fetch(context.Background(), orgQuery())
			require.NoError(t, err)
			assert.Len(t, data, 1)
		}
		assert.Equal(t, []string{
			"/ceis?codigoCpfCnpj=" + cnpj,
			"/cnep?codigoCnpj=" + cnpj,
			"/cepim?cnpj=" + cnpj,
		}, seen)
	})

	t.Run("individual parameters and cepim skipped", func(t *testing.T) {
		seen = nil
		for _, src := range []providers.Source{tp.CEIS(), tp.CNEP(), tp.CEPIM()} {
			_, err := src.Fetch(context.Background(), personQuery())
			require.NoError(t, err)
		}
		assert.Equal(t, []string{"/ceis?cpfCnpj=" + cpf, "/cnep?cpf=" + cpf}, seen)
	})

	t.Run("missing key", func(t *testing.T) {
		unconfigured := NewTransparencia(srv.URL, "", 100, nil)
		_, err := unconfigured.CEIS().Fetch(context.Background(), orgQuery())
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.False(t, unconfigured.Configured())
	})

	t.Run("object body is bad data", func(t *testing.T) {
		objSrv := serve(t, func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"x":1}`)) })
		_, err := NewTransparencia(objSrv.URL, "k", 100, nil).CNEP().Fetch(context.Background(), orgQuery())
		assert.Equal(t, providers.ErrorBadData, categoryOf(t, err))
	})
}
