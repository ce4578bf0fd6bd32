// Package domain holds typed identifiers shared across modules.
//
// Each ID is a distinct named type over uuid.UUID so a CompanyID can never be passed
// where a DossierID is expected. Parsing happens once at the trust boundary.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "kycdesk/pkg/domain-errors"
)

type (
	UserID       uuid.UUID
	CompanyID    uuid.UUID
	DossierID    uuid.UUID
	MonitoringID uuid.UUID
)

const maxIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is too long")
	}
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

func ParseCompanyID(s string) (CompanyID, error) {
	u, err := parseUUID("company id", s)
	return CompanyID(u), err
}

func ParseDossierID(s string) (DossierID, error) {
	u, err := parseUUID("dossier id", s)
	return DossierID(u), err
}

func ParseMonitoringID(s string) (MonitoringID, error) {
	u, err := parseUUID("monitoring id", s)
	return MonitoringID(u), err
}

func NewDossierID() DossierID       { return DossierID(uuid.New()) }
func NewMonitoringID() MonitoringID { return MonitoringID(uuid.New()) }

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id CompanyID) String() string    { return uuid.UUID(id).String() }
func (id DossierID) String() string    { return uuid.UUID(id).String() }
func (id MonitoringID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id CompanyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DossierID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id MonitoringID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets IDs appear as plain UUID strings in JSON payloads.
func (id DossierID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id MonitoringID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id CompanyID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }

func (id *DossierID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *MonitoringID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
