// Package registry screens a document against every configured upstream source and
// assembles the raw technical report stored on a dossier.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"kycdesk/internal/document"
	"kycdesk/internal/dossier/models"
	"kycdesk/internal/dossier/reconcile"
	"kycdesk/internal/evidence/registry/metrics"
	"kycdesk/internal/evidence/registry/providers"
	"kycdesk/internal/platform/resilience"
)

const (
	defaultSourceTimeout    = 15 * time.Second
	defaultAggregateTimeout = 30 * time.Second
	tracerName              = "kycdesk/evidence/registry"
)

// Cache stores successful source payloads.
type Cache interface {
	Get(ctx context.Context, source, subject string) (any, bool)
	Set(ctx context.Context, source, subject string, data any)
}

// configurable is implemented by sources that can be switched off by missing credentials.
type configurable interface {
	Configured() bool
}

// Sources is the set of upstream clients. A nil entry is skipped and reported absent.
type Sources struct {
	BrasilAPI providers.Source
	ReceitaWS providers.Source
	ViaCEP    providers.Source
	CEIS      providers.Source
	CNEP      providers.Source
	CEPIM     providers.Source
}

// Screening is the outcome of one screen: the report plus the facts derived from it.
type Screening struct {
	Report             *models.Report
	Document           document.Document
	EntityName         string
	RegistrationStatus string
	RiskLevel          models.RiskLevel
	Restrictions       int
}

// Aggregator fetches all sources in parallel. One source failing never affects the
// others; it is recorded as a failed result in the report.
type Aggregator struct {
	sources          Sources
	guard            *resilience.Guard
	cache            Cache
	metrics          *metrics.Metrics
	logger           *slog.Logger
	tracer           trace.Tracer
	sourceTimeout    time.Duration
	aggregateTimeout time.Duration
	now              func() time.Time
}

type Option func(*Aggregator)

func WithCache(c Cache) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.cache = c
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

func WithTimeouts(source, aggregate time.Duration) Option {
	return func(a *Aggregator) {
		if source > 0 {
			a.sourceTimeout = source
		}
		if aggregate > 0 {
			a.aggregateTimeout = aggregate
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(a *Aggregator) { a.tracer = t }
}

func New(sources Sources, guard *resilience.Guard, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources:          sources,
		guard:            guard,
		logger:           slog.Default(),
		tracer:           otel.Tracer(tracerName),
		sourceTimeout:    defaultSourceTimeout,
		aggregateTimeout: defaultAggregateTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.guard == nil {
		a.guard = resilience.NewGuard(resilience.Config{Default: resilience.DefaultPolicy()}, a.logger)
	}
	return a
}

// Screen runs every applicable source for doc. The only error is the aggregate
// deadline (or the caller's context) expiring; nothing partial is returned then.
func (a *Aggregator) Screen(ctx context.Context, doc document.Document) (*Screening, error) {
	ctx, cancel := context.WithTimeout(ctx, a.aggregateTimeout)
	defer cancel()

	ctx, span := a.tracer.Start(ctx, "registry.screen",
		trace.WithAttributes(attribute.String("document.kind", string(doc.Kind))))
	defer span.End()

	var (
		mu      sync.Mutex
		results = models.Sources{}
	)
	run := func(g *errgroup.Group, gctx context.Context, src providers.Source, q providers.Query) {
		if src == nil {
			return
		}
		g.Go(func() error {
			res := a.fetch(gctx, src, q)
			mu.Lock()
			results[src.Name()] = res
			mu.Unlock()
			return nil
		})
	}

	q := providers.Query{Document: doc}
	g, gctx := errgroup.WithContext(ctx)
	if doc.Kind == document.KindOrganization {
		run(g, gctx, a.sources.BrasilAPI, q)
		run(g, gctx, a.sources.ReceitaWS, q)
		run(g, gctx, a.sources.CEPIM, q)
	}
	run(g, gctx, a.sources.CEIS, q)
	run(g, gctx, a.sources.CNEP, q)
	_ = g.Wait()

	if doc.Kind == document.KindIndividual && a.sources.CEPIM != nil {
		results[a.sources.CEPIM.Name()] = models.Ok([]any{})
	}

	brasil := okObject(results, models.SourceBrasilAPI)
	receita := okObject(results, models.SourceReceitaWS)
	summary := companySummary(brasil, receita)

	// The postal code only becomes known once a registry answered.
	if cep := postalCode(summary); cep != "" && a.sources.ViaCEP != nil {
		results[a.sources.ViaCEP.Name()] = a.fetch(ctx, a.sources.ViaCEP, providers.Query{Document: doc, PostalCode: cep})
	}

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate deadline exceeded")
		return nil, err
	}

	return a.assemble(doc, results, summary, ownership(brasil, receita)), nil
}

func (a *Aggregator) assemble(doc document.Document, results models.Sources, summary map[string]any, qsa []any) *Screening {
	label := doc.Label()
	sanctions := &models.SanctionsSummary{
		CEIS:  entries(reconcile.MatchSanctions(doc.Digits, results[models.SourceTransparenciaCEIS])),
		CNEP:  entries(reconcile.MatchSanctions(doc.Digits, results[models.SourceTransparenciaCNEP])),
		CEPIM: entries(reconcile.MatchSanctions(doc.Digits, results[models.SourceTransparenciaCEPIM])),
	}
	sanctions.TotalSanctions = len(sanctions.CEIS) + len(sanctions.CNEP) + len(sanctions.CEPIM)

	report := &models.Report{
		Metadata: &models.Metadata{DocumentType: label, GeneratedAt: a.now().UTC()},
		TechnicalReport: &models.TechnicalReport{
			Input:   models.Input{Document: doc.Digits, Type: label},
			Sources: results,
			Derived: models.Derived{CompanySummary: summary, QSAEnriched: qsa},
		},
		Sanctions: sanctions,
		DocType:   label,
	}

	status := summaryText(summary, "situacao_cadastral")
	return &Screening{
		Report:             report,
		Document:           doc,
		EntityName:         EntityName(doc, summary),
		RegistrationStatus: status,
		RiskLevel:          RiskLevel(doc.Kind, status, sanctions.TotalSanctions),
		Restrictions:       sanctions.TotalSanctions,
	}
}

func entries(matched []reconcile.Entry) []any {
	out := make([]any, len(matched))
	for i, e := range matched {
		out[i] = e
	}
	return out
}

func okObject(results models.Sources, name string) map[string]any {
	res, state := results.Get(name)
	if state != models.SourceOK {
		return nil
	}
	m, _ := res.Data.(map[string]any)
	return m
}

// RiskLevel: any sanction is HIGH; an active organization is LOW and any other
// organization MEDIUM; individuals without sanctions are LOW.
func RiskLevel(kind document.Kind, registrationStatus string, sanctions int) models.RiskLevel {
	switch {
	case sanctions > 0:
		return models.RiskHigh
	case kind == document.KindOrganization:
		if strings.Contains(strings.ToUpper(registrationStatus), "ATIVA") {
			return models.RiskLow
		}
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// EntityName picks the best available name, falling back to "<label> <digits>".
func EntityName(doc document.Document, summary map[string]any) string {
	if name := summaryText(summary, "razao_social", "nome_fantasia", "nome_empresarial", "nome"); name != "" {
		return name
	}
	if doc.Kind == document.KindOrganization {
		return "CNPJ " + doc.Digits
	}
	return "CPF " + doc.Digits
}

func (a *Aggregator) fetch(ctx context.Context, src providers.Source, q providers.Query) models.SourceResult {
	name := src.Name()
	ctx, span := a.tracer.Start(ctx, "registry.fetch", trace.WithAttributes(attribute.String("source", name)))
	defer span.End()

	if c, ok := src.(configurable); ok && !c.Configured() {
		return models.Failed("transparencia api key not configured")
	}

	subject := q.Document.Digits
	if q.PostalCode != "" {
		subject = q.PostalCode
	}
	if a.cache != nil {
		if data, ok := a.cache.Get(ctx, name, subject); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return models.Ok(data)
		}
	}

	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
	defer cancel()

	var data any
	err := a.guard.Run(fetchCtx, name, func(ctx context.Context) error {
		d, err := src.Fetch(ctx, q)
		if err != nil {
			return err
		}
		data = d
		return nil
	}, nil)
	if err != nil {
		category := providers.GetCategory(err)
		if errors.Is(err, context.DeadlineExceeded) {
			category = providers.ErrorTimeout
		}
		a.metrics.ObserveFetch(name, string(category), start)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(category))
		a.logger.WarnContext(ctx, "source fetch failed", "source", name, "category", category, "error", err)
		return models.Failed(providers.Reason(err))
	}

	a.metrics.ObserveFetch(name, "ok", start)
	if a.cache != nil {
		a.cache.Set(ctx, name, subject, data)
	}
	return models.Ok(data)
}
