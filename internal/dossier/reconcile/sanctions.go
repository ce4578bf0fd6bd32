package reconcile

import (
	"kycdesk/internal/document"
	"kycdesk/internal/dossier/models"
)

// Entry is one raw sanction record as returned by the Transparência API.
type Entry = map[string]any

// Paths under which a sanction record may carry the sanctioned party's identifier.
// The three registries disagree on naming, and so do versions of the same registry.
var identifierPaths = [][]string{
	{"sancionado", "codigoFormatado"},
	{"pessoa", "cnpjFormatado"},
	{"pessoa", "cpfFormatado"},
	{"cnpjSancionado"},
	{"cpfSancionado"},
	{"cpfCnpjSancionado"},
	{"cnpjCpfSancionado"},
	{"cnpj"},
	{"cpf"},
	{"codigoFormatado"},
}

// MatchSanctions keeps the entries whose identifier, stripped to digits, equals
// digits. The upstream filter is fuzzy, so results are never trusted as returned.
func MatchSanctions(digits string, src models.SourceResult) []Entry {
	matched := []Entry{}
	if digits == "" || !src.OK {
		return matched
	}
	for _, item := range list(src.Data) {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if identifies(entry, digits) {
			matched = append(matched, entry)
		}
	}
	return matched
}

func identifies(entry Entry, digits string) bool {
	for _, path := range identifierPaths {
		if document.Digits(text(at(entry, path...))) == digits {
			return true
		}
	}
	return false
}

// List is the filtered result for one sanction registry.
type List struct {
	Source  string
	Entries []Entry
	Fetched bool
	Error   string
	Total   int
}

// DefaultDisplayLimit caps how many entries a view shows per registry.
const DefaultDisplayLimit = 5

// DisplayEntry is the presentation projection of a sanction record.
type DisplayEntry struct {
	Name         string `json:"name"`
	SanctionType string `json:"sanction_type"`
	Body         string `json:"sanctioning_body"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

// Display returns at most limit entries and how many were left out.
func (l List) Display(limit int) ([]DisplayEntry, int) {
	if limit <= 0 {
		limit = DefaultDisplayLimit
	}
	n := min(limit, len(l.Entries))
	out := make([]DisplayEntry, n)
	for i, e := range l.Entries[:n] {
		out[i] = DisplayEntry{
			Name:         firstPath(e, []string{"sancionado", "nome"}, []string{"pessoa", "nome"}, []string{"pessoa", "razaoSocialReceita"}),
			SanctionType: firstPath(e, []string{"tipoSancao", "descricaoResumida"}, []string{"tipoSancao", "descricaoPortal"}),
			Body:         firstPath(e, []string{"orgaoSancionador", "nome"}, []string{"fonteSancao", "nomeExibicao"}),
			StartDate:    text(e["dataInicioSancao"]),
			EndDate:      text(e["dataFimSancao"]),
		}
	}
	return out, l.Total - n
}

func firstPath(e Entry, paths ...[]string) string {
	for _, p := range paths {
		if s := text(at(e, p...)); s != "" {
			return s
		}
	}
	return ""
}

// Match is the combined sanction result for a subject.
type Match struct {
	CEIS  List
	CNEP  List
	CEPIM List
	Total int
	Clear bool
}

// MatchAll filters the three registries. When a registry's source result is absent,
// the legacy sanctions block is used in its place.
func MatchAll(digits string, report *models.Report) Match {
	m := Match{
		CEIS:  matchSource(digits, report, models.SourceTransparenciaCEIS, legacy(report, func(s *models.SanctionsSummary) []any { return s.CEIS })),
		CNEP:  matchSource(digits, report, models.SourceTransparenciaCNEP, legacy(report, func(s *models.SanctionsSummary) []any { return s.CNEP })),
		CEPIM: matchSource(digits, report, models.SourceTransparenciaCEPIM, legacy(report, func(s *models.SanctionsSummary) []any { return s.CEPIM })),
	}
	m.Total = m.CEIS.Total + m.CNEP.Total + m.CEPIM.Total
	m.Clear = m.Total == 0
	return m
}

func legacy(report *models.Report, pick func(*models.SanctionsSummary) []any) []any {
	if report == nil || report.Sanctions == nil {
		return nil
	}
	return pick(report.Sanctions)
}

func matchSource(digits string, report *models.Report, name string, fallback []any) List {
	l := List{Source: name}
	src, state := report.Source(name)
	switch state {
	case models.SourceFailed:
		l.Error = src.FailureReason()
		l.Entries = []Entry{}
		return l
	case models.SourceAbsent:
		if fallback == nil {
			l.Entries = []Entry{}
			return l
		}
		src = models.Ok(fallback)
	}
	l.Fetched = true
	l.Entries = MatchSanctions(digits, src)
	l.Total = len(l.Entries)
	return l
}
