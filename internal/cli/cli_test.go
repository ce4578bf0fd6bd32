package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dossierhandler "kycdesk/internal/dossier/handler"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClassify(t *testing.T) {
	out, err := execute(t, "classify", "123.456.789-09", "12345678000190", "42")
	require.NoError(t, err)
	assert.Regexp(t, `123\.456\.789-09\s+CPF\s+12345678909\s+123\.456\.789-09`, out)
	assert.Regexp(t, `12345678000190\s+CNPJ\s+12345678000190\s+12\.345\.678/0001-90`, out)
	assert.Regexp(t, `42\s+UNKNOWN\s+42\s+42`, out)
}

func TestBatch(t *testing.T) {
	var got dossierhandler.BatchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dossiers/batch", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(dossierhandler.BatchResponse{
			TotalProcessed: 2, Successful: 1, Failed: 1,
			Errors: []dossierhandler.BatchErrorResponse{{Document: "999", Error: "document must have 11 (CPF) or 14 (CNPJ) digits"}},
		})
	}))
	defer srv.Close()

	file := filepath.Join(t.TempDir(), "docs.txt")
	require.NoError(t, os.WriteFile(file, []byte("12345678909;\n  999  \n\n"), 0o600))

	out, err := execute(t, "batch", "--file", file, "--ai", "--api-url", srv.URL, "--token", "secret")
	require.NoError(t, err)
	assert.Equal(t, []string{"12345678909", "999"}, got.Documents)
	assert.True(t, got.EnableAI)
	assert.Contains(t, out, "2 documents found")
	assert.Contains(t, out, "processed: 2  successful: 1  failed: 1")
	assert.Contains(t, out, "999: document must have")
}

func TestBatch_RefusesEmptyFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(file, []byte(" ; \n"), 0o600))

	out, err := execute(t, "batch", "--file", file, "--api-url", "http://127.0.0.1:0")
	assert.ErrorIs(t, err, errNoDocuments)
	assert.Contains(t, out, "0 documents found")
}

func TestMonitoringStats_ReconcilesLegacyShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/monitoring/stats", r.URL.Path)
		_, _ = w.Write([]byte(`{"total_records":5,"total_cpf":3,"total_cnpj":2,"with_restrictions":1,"active":4}`))
	}))
	defer srv.Close()

	out, err := execute(t, "monitoring", "stats", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Regexp(t, `Total monitored:\s+5\n`, out)
	assert.Regexp(t, `CPF:\s+3\n`, out)
	assert.Regexp(t, `Inactive:\s+1\n`, out)
	assert.Regexp(t, `Last update:\s+—\n`, out)
}

func TestMonitoringChanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		_, _ = w.Write([]byte(`{"changes":[
			{"document":null,"document_type":"CPF","description":"legacy entry","change_date":"2025-06-01T10:00:00Z"},
			{"document":"12345678909","document_type":"CPF","change_description":"restrictions changed from 0 to 2","detected_at":"2025-06-02T10:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	out, err := execute(t, "monitoring", "changes", "--days", "7", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Regexp(t, `—\s+CPF\s+legacy entry`, out)
	assert.Contains(t, out, "restrictions changed from 0 to 2")
}

func TestServerErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"missing token"}`))
	}))
	defer srv.Close()

	_, err := execute(t, "monitoring", "stats", "--api-url", srv.URL)
	assert.EqualError(t, err, "server returned 401: unauthorized: missing token")
}
