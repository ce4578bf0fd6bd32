package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kycdesk/pkg/domain-errors"
)

func TestParseDossierID(t *testing.T) {
	valid := uuid.New()

	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{name: "lower case", input: valid.String()},
		{name: "upper case", input: strings.ToUpper(valid.String())},
		{name: "surrounding spaces", input: " " + valid.String() + " "},
		{name: "empty", input: "", wantMsg: "dossier id is required"},
		{name: "nil uuid", input: uuid.Nil.String(), wantMsg: "dossier id cannot be nil"},
		{name: "tax id instead of uuid", input: "12345678000190", wantMsg: "invalid dossier id"},
		{name: "path traversal", input: "../../dossiers", wantMsg: "invalid dossier id"},
		{name: "null byte", input: valid.String()[:8] + "\x00" + valid.String()[8:], wantMsg: "invalid dossier id"},
		{name: "oversized", input: strings.Repeat("a", 1000), wantMsg: "dossier id is too long"},
		{name: "blank", input: "   ", wantMsg: "invalid dossier id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDossierID(tt.input)
			if tt.wantMsg == "" {
				require.NoError(t, err)
				assert.Equal(t, DossierID(valid), got)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			assert.Equal(t, tt.wantMsg, dErrors.MessageOf(err))
		})
	}
}

func TestParse_MessagesNameTheKind(t *testing.T) {
	_, err := ParseUserID("")
	assert.Equal(t, "user id is required", dErrors.MessageOf(err))
	_, err = ParseCompanyID("x")
	assert.Equal(t, "invalid company id", dErrors.MessageOf(err))
	_, err = ParseMonitoringID(uuid.Nil.String())
	assert.Equal(t, "monitoring id cannot be nil", dErrors.MessageOf(err))
}

func TestIDs_JSON(t *testing.T) {
	type payload struct {
		Dossier    DossierID    `json:"dossier_id"`
		Monitoring MonitoringID `json:"record_id"`
	}
	in := payload{Dossier: NewDossierID(), Monitoring: NewMonitoringID()}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"dossier_id":"`+in.Dossier.String()+`"`)

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}

func TestIsNil(t *testing.T) {
	assert.True(t, CompanyID{}.IsNil())
	assert.True(t, UserID{}.IsNil())
	assert.False(t, NewDossierID().IsNil())
	assert.False(t, NewMonitoringID().IsNil())
}
