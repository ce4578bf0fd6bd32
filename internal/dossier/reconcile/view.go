// Package reconcile merges a dossier's partially failing source results into one view
// and filters sanction registries down to the subject. Nothing here returns an error:
// missing or malformed values degrade to empty ones.
package reconcile

import (
	"encoding/json"

	"kycdesk/internal/document"
	"kycdesk/internal/dossier/models"
)

// View is the read-side projection of a dossier. It is derived on every read and
// never persisted.
type View struct {
	DocumentType  string
	Identity      Identity
	Address       *Address
	Owners        []Owner
	PEP           *PEP
	Sanctions     Match
	AINarrative   string
	MediaFindings string
	CPFValid      *bool
	SourceErrors  map[string]string

	// Provenance maps each resolved identity field to the accessor that supplied
	// it, e.g. "name" -> "company_summary.razao_social".
	Provenance map[string]string
}

type Identity struct {
	Name               string
	TradeName          string
	RegistrationStatus string
	OpeningDate        string
	Capital            string
	Size               string
	LegalNature        string
}

type Address struct {
	Street       string
	Number       string
	Complement   string
	District     string
	Municipality string
	State        string
	PostalCode   string
}

type Owner struct {
	Name     string
	Role     string
	Document string
}

type PEP struct {
	IsPEP   bool
	Details string
}

// DeriveView builds the view for d. It never fails.
func DeriveView(d *models.Dossier) View {
	s := source{dossier: d, report: d.Report}
	if r := d.Report; r != nil && r.TechnicalReport != nil {
		s.summary = r.TechnicalReport.Derived.CompanySummary
	}
	if res, state := d.Report.Source(models.SourceBrasilAPI); state == models.SourceOK {
		s.brasil = object(res.Data)
	}

	provenance := map[string]string{}
	pick := func(field string, c chain) string {
		v, from := c.resolve(s)
		if from != "" {
			provenance[field] = from
		}
		return v
	}

	name := pick("name", nameChain)
	if name == "" {
		name = nameUnavailable
	}

	v := View{
		DocumentType: normalizeDocumentType(pick("document_type", documentTypeChain)),
		Identity: Identity{
			Name:               name,
			TradeName:          pick("trade_name", tradeNameChain),
			RegistrationStatus: pick("registration_status", registrationStatusChain),
			OpeningDate:        pick("opening_date", openingDateChain),
			Capital:            pick("capital", capitalChain),
			Size:               pick("size", sizeChain),
			LegalNature:        pick("legal_nature", legalNatureChain),
		},
		Address:      deriveAddress(s.brasil),
		Owners:       deriveOwners(s),
		Sanctions:    MatchAll(document.Digits(d.Document), d.Report),
		SourceErrors: sourceErrors(d.Report),
		Provenance:   provenance,
	}
	if valid, ok := cpfValidity(d.Report); ok {
		v.CPFValid = &valid
	}
	if r := d.Report; r != nil {
		v.PEP = derivePEP(r.PEPData)
		v.AINarrative = narrative(r.AIAnalysis)
		v.MediaFindings = text(r.MediaFindings)
	}
	return v
}

// cpfValidity reads the check-digit verdict from technical_report.derived first and
// the top-level block second. A non-boolean "valid" counts as missing.
func cpfValidity(r *models.Report) (valid, ok bool) {
	if r == nil {
		return false, false
	}
	if r.TechnicalReport != nil {
		if valid, ok = r.TechnicalReport.Derived.CPFValidation["valid"].(bool); ok {
			return valid, true
		}
	}
	valid, ok = r.CPFValidation["valid"].(bool)
	return valid, ok
}

// normalizeDocumentType maps any accepted spelling onto the legacy label.
func normalizeDocumentType(s string) string {
	if kind, ok := document.ParseKind(s); ok {
		return kind.Label()
	}
	return s
}

func deriveAddress(brasil map[string]any) *Address {
	if brasil == nil {
		return nil
	}
	nested := object(brasil["endereco"])
	field := func(keys []string) string {
		if v := firstText(nested, keys...); v != "" {
			return v
		}
		return firstText(brasil, keys...)
	}
	a := Address{
		Street:       field(streetKeys),
		Number:       field(numberKeys),
		Complement:   field(complementKeys),
		District:     field(districtKeys),
		Municipality: field(municipalityKeys),
		State:        field(stateKeys),
		PostalCode:   field(postalCodeKeys),
	}
	if a.Street == "" && a.District == "" && a.Municipality == "" && a.State == "" && a.PostalCode == "" {
		return nil
	}
	return &a
}

func deriveOwners(s source) []Owner {
	var items []any
	if s.report != nil && s.report.TechnicalReport != nil {
		items = s.report.TechnicalReport.Derived.QSAEnriched
	}
	if len(items) == 0 {
		items = list(s.brasil["qsa"])
	}

	owners := make([]Owner, 0, len(items))
	for _, item := range items {
		m := object(item)
		if m == nil {
			continue
		}
		name := firstText(m, ownerNameKeys...)
		if name == "" {
			name = defaultOwnerName
		}
		owners = append(owners, Owner{
			Name:     name,
			Role:     firstText(m, ownerRoleKeys...),
			Document: firstText(m, ownerDocumentKeys...),
		})
	}
	return owners
}

// derivePEP returns nil when the PEP check was never run.
func derivePEP(data map[string]any) *PEP {
	if data == nil {
		return nil
	}
	isPEP, _ := data["is_pep"].(bool)
	return &PEP{IsPEP: isPEP, Details: narrative(data["details"])}
}

// narrative renders strings as-is and objects as indented JSON.
func narrative(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func sourceErrors(r *models.Report) map[string]string {
	errs := map[string]string{}
	if r == nil || r.TechnicalReport == nil {
		return errs
	}
	for name, res := range r.TechnicalReport.Sources {
		if !res.OK {
			errs[name] = "failed: " + res.FailureReason()
		}
	}
	return errs
}
