package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"kycdesk/pkg/requestcontext"
)

type stubValidator struct {
	claims *Claims
	err    error
}

func (s stubValidator) ValidateToken(string) (*Claims, error) {
	return s.claims, s.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	userID := uuid.New().String()
	companyID := uuid.New().String()

	var seenCompany string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCompany = requestcontext.CompanyID(r.Context()).String()
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		header     string
		validator  stubValidator
		wantStatus int
	}{
		{"missing header", "", stubValidator{}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubValidator{}, http.StatusUnauthorized},
		{"invalid token", "Bearer bad", stubValidator{err: errors.New("expired")}, http.StatusUnauthorized},
		{"bad company claim", "Bearer ok", stubValidator{claims: &Claims{UserID: userID, CompanyID: "x"}}, http.StatusUnauthorized},
		{"valid token", "Bearer ok", stubValidator{claims: &Claims{UserID: userID, CompanyID: companyID}}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenCompany = ""
			req := httptest.NewRequest(http.MethodGet, "/dossiers", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			RequireAuth(tt.validator, logger)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, companyID, seenCompany)
			} else {
				assert.Empty(t, seenCompany)
			}
		})
	}
}
