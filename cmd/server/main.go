package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	dossierhandler "kycdesk/internal/dossier/handler"
	dossiermetrics "kycdesk/internal/dossier/metrics"
	dossiermodels "kycdesk/internal/dossier/models"
	dossierservice "kycdesk/internal/dossier/service"
	dossierstore "kycdesk/internal/dossier/store"
	"kycdesk/internal/evidence/narrative"
	"kycdesk/internal/evidence/registry"
	"kycdesk/internal/evidence/registry/cache"
	registrymetrics "kycdesk/internal/evidence/registry/metrics"
	"kycdesk/internal/evidence/registry/sources"
	jwttoken "kycdesk/internal/jwt_token"
	monitoringhandler "kycdesk/internal/monitoring/handler"
	monitoringmetrics "kycdesk/internal/monitoring/metrics"
	"kycdesk/internal/monitoring/notify"
	monitoringservice "kycdesk/internal/monitoring/service"
	monitoringstore "kycdesk/internal/monitoring/store"
	"kycdesk/internal/platform/config"
	"kycdesk/internal/platform/httpserver"
	"kycdesk/internal/platform/kafka"
	"kycdesk/internal/platform/logger"
	"kycdesk/internal/platform/metrics"
	"kycdesk/internal/platform/postgres"
	"kycdesk/internal/platform/redis"
	"kycdesk/internal/platform/resilience"
	"kycdesk/pkg/platform/audit"
	"kycdesk/pkg/platform/audit/publishers/compliance"
	"kycdesk/pkg/platform/audit/publishers/ops"
	auditmemory "kycdesk/pkg/platform/audit/store/memory"
	auditpg "kycdesk/pkg/platform/audit/store/postgres"
	"kycdesk/pkg/platform/audit/worker"
	"kycdesk/pkg/platform/httputil"
	authmw "kycdesk/pkg/platform/middleware/auth"
	"kycdesk/pkg/platform/middleware/metadata"
	"kycdesk/pkg/platform/middleware/requestid"
	"kycdesk/pkg/platform/middleware/requesttime"
	txcontext "kycdesk/pkg/platform/tx"
)

// main loads configuration, wires the stores and services, and runs the HTTP server
// until SIGINT or SIGTERM.
func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	log := logger.New("kycdesk", cfg.Server.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

type infra struct {
	db       *sql.DB
	redis    *redis.Client
	producer *kafka.Producer
	notifier *notify.Notifier
	tracker  *ops.Tracker
}

func (i *infra) close() {
	if i.tracker != nil {
		i.tracker.Close()
	}
	i.notifier.Close()
	if i.producer != nil {
		i.producer.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var res infra
	defer res.close()

	var (
		dossiers   dossierservice.Store
		monitoring monitoringservice.Store
		auditStore audit.Store
		tx         txcontext.Runner = txcontext.NoopRunner{}
		outbox     *auditpg.Store
	)
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		res.db = db
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		dossiers = dossierstore.NewPostgres(db)
		monitoring = monitoringstore.NewPostgres(db)
		outbox = auditpg.New(db)
		auditStore = outbox
		tx = txcontext.NewSQLRunner(db)
		log.Info("using postgres stores")
	} else {
		dossiers = dossierstore.NewInMemory()
		monitoring = monitoringstore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	res.redis = redisClient

	guard := resilience.NewGuard(resilience.FromConfig(cfg.Resilience), log)
	regMetrics := registrymetrics.New()
	aggOpts := []registry.Option{
		registry.WithMetrics(regMetrics),
		registry.WithLogger(log),
		registry.WithTimeouts(cfg.Sources.SourceTimeout, cfg.Sources.AggregateTimeout),
		registry.WithTracer(otel.Tracer("kycdesk/registry")),
	}
	if redisClient != nil {
		aggOpts = append(aggOpts, registry.WithCache(cache.NewRedisCache(redisClient.Client, cfg.Sources.CacheTTL, regMetrics, log)))
	}
	aggregator := registry.New(buildSources(cfg.Sources), guard, aggOpts...)

	publisher := compliance.New(auditStore, compliance.WithLogger(log), compliance.WithMetrics(compliance.NewMetrics()))
	res.tracker = ops.New(auditStore, ops.WithLogger(log), ops.WithMetrics(ops.NewMetrics()))

	if outbox != nil {
		producer, err := kafka.New(cfg.Kafka)
		if err != nil {
			return err
		}
		if producer != nil {
			res.producer = producer
			if err := producer.EnsureTopic(ctx, cfg.Kafka.AuditTopic, 1); err != nil {
				return fmt.Errorf("ensure audit topic: %w", err)
			}
			relay := worker.NewRelay(outbox, producer, tx, cfg.Kafka.AuditTopic, cfg.Kafka.PollInterval, cfg.Kafka.BatchSize, log)
			go func() {
				if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("audit relay stopped", "error", err)
				}
			}()
		}
	}

	notifier, err := notify.Connect(cfg.NATS.URL, cfg.NATS.ChangesSubject, guard, log)
	if err != nil {
		return err
	}
	res.notifier = notifier

	dossierOpts := []dossierservice.Option{
		dossierservice.WithTxRunner(tx),
		dossierservice.WithAuditPublisher(publisher),
		dossierservice.WithOpsTracker(res.tracker),
		dossierservice.WithMetrics(dossiermetrics.New()),
		dossierservice.WithLogger(log),
		dossierservice.WithCreateTimeout(cfg.Sources.AggregateTimeout),
	}
	if n := narrative.NewOpenAI(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Models, cfg.AI.Timeout, log); n != nil {
		dossierOpts = append(dossierOpts, dossierservice.WithNarrator(n))
	}
	dossierSvc, err := dossierservice.New(dossiers, aggregator, dossierOpts...)
	if err != nil {
		return err
	}

	monitoringOpts := []monitoringservice.Option{
		monitoringservice.WithTxRunner(tx),
		monitoringservice.WithAuditPublisher(publisher),
		monitoringservice.WithOpsTracker(res.tracker),
		monitoringservice.WithMetrics(monitoringmetrics.New()),
		monitoringservice.WithLogger(log),
		monitoringservice.WithCheckTimeout(cfg.Sources.MonitoringTimeout),
	}
	if notifier != nil {
		monitoringOpts = append(monitoringOpts, monitoringservice.WithNotifier(notifier))
	}
	monitoringSvc, err := monitoringservice.New(monitoring, aggregator, monitoringOpts...)
	if err != nil {
		return err
	}

	jwtValidator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer))

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(metrics.New().Middleware)

	r.Get("/health", healthHandler(&res))
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(jwtValidator, log))
		dossierhandler.New(dossierSvc, log).Register(r)
		monitoringhandler.New(monitoringSvc, log).Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, r,
		httpserver.WithWriteTimeout(cfg.Sources.AggregateTimeout+cfg.AI.Timeout+15*time.Second))
	log.Info("starting kycdesk", "env", cfg.Server.Environment)
	return httpserver.Run(ctx, srv, log)
}

// buildSources creates the upstream clients, leaving out disabled ones.
func buildSources(cfg config.SourcesConfig) registry.Sources {
	client := sources.DefaultHTTPClient()
	transparencia := sources.NewTransparencia(cfg.TransparenciaBaseURL, cfg.TransparenciaAPIKey, cfg.TransparenciaRate, client)

	var out registry.Sources
	if cfg.SourceEnabled(dossiermodels.SourceBrasilAPI) {
		out.BrasilAPI = sources.NewBrasilAPI(cfg.BrasilAPIBaseURL, client)
	}
	if cfg.SourceEnabled(dossiermodels.SourceReceitaWS) {
		out.ReceitaWS = sources.NewReceitaWS(cfg.ReceitaWSBaseURL, client)
	}
	if cfg.SourceEnabled(dossiermodels.SourceViaCEP) {
		out.ViaCEP = sources.NewViaCEP(cfg.ViaCEPBaseURL, client)
	}
	if cfg.SourceEnabled(dossiermodels.SourceTransparenciaCEIS) {
		out.CEIS = transparencia.CEIS()
	}
	if cfg.SourceEnabled(dossiermodels.SourceTransparenciaCNEP) {
		out.CNEP = transparencia.CNEP()
	}
	if cfg.SourceEnabled(dossiermodels.SourceTransparenciaCEPIM) {
		out.CEPIM = transparencia.CEPIM()
	}
	return out
}

// healthHandler reports liveness plus the reachability of the configured backends.
func healthHandler(res *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		if res.db != nil {
			checks["postgres"] = status(res.db.PingContext(ctx), &healthy)
		}
		if res.redis != nil {
			checks["redis"] = status(res.redis.Health(ctx), &healthy)
		}
		if res.producer != nil {
			checks["kafka"] = status(res.producer.Ping(ctx), &healthy)
		}

		code := http.StatusOK
		overall := "ok"
		if !healthy {
			code = http.StatusServiceUnavailable
			overall = "degraded"
		}
		httputil.WriteJSON(w, code, map[string]any{"status": overall, "checks": checks})
	}
}

func status(err error, healthy *bool) string {
	if err != nil {
		*healthy = false
		return "down"
	}
	return "up"
}
