// Command server runs the credit application gateway: rule set
// administration, submission decisioning, lifecycle transitions, and the
// search/export API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	apphandler "creditgate/internal/application/handler"
	appmetrics "creditgate/internal/application/metrics"
	appservice "creditgate/internal/application/service"
	appstore "creditgate/internal/application/store"
	"creditgate/internal/audit"
	"creditgate/internal/notification"
	"creditgate/internal/platform/config"
	"creditgate/internal/platform/httpserver"
	"creditgate/internal/platform/logger"
	platformpostgres "creditgate/internal/platform/postgres"
	platformredis "creditgate/internal/platform/redis"
	"creditgate/internal/rules"
	rulescache "creditgate/internal/rules/cache"
	ruleshandler "creditgate/internal/rules/handler"
	rulesmetrics "creditgate/internal/rules/metrics"
	httptransport "creditgate/internal/transport/http"
	"creditgate/internal/transport/http/middleware"
	"creditgate/internal/validation"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. Postgres when configured, in-memory otherwise so the
	// service still runs in development without infrastructure.
	var (
		db           *sql.DB
		ruleStore    rules.Store
		appStore     appservice.ApplicationStore
		auditStore   audit.Store
		healthChecks = map[string]httptransport.HealthChecker{}
	)
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if err := platformpostgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		ruleStore = rules.NewPostgresStore(db)
		appStore = appstore.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
		healthChecks["postgres"] = pingChecker{db}
		log.Info("using postgres storage")
	} else {
		ruleStore = rules.NewInMemoryStore()
		appStore = appstore.NewInMemory()
		auditStore = audit.NewInMemoryStore()
		log.Warn("no postgres dsn configured, using in-memory storage")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		healthChecks["redis"] = redisClient
	}

	// Rule registry with optional Redis read-through cache.
	ruleOpts := []rules.Option{rules.WithMetrics(rulesmetrics.New())}
	if redisClient != nil {
		ruleOpts = append(ruleOpts, rules.WithCache(rulescache.NewRedis(redisClient, config.RuleSetCacheTTL)))
	}
	registry := rules.NewRegistry(ruleStore, log, ruleOpts...)
	if err := rules.Bootstrap(ctx, registry, log); err != nil {
		return err
	}

	// Audit trail: synchronous append, asynchronous relay to Kafka.
	auditor := audit.NewPublisher(auditStore, log)
	var relay *audit.KafkaRelay
	if len(cfg.KafkaBrokers) > 0 {
		relay, err = audit.NewKafkaRelay(cfg.KafkaBrokers, cfg.AuditTopic, auditStore, log)
		if err != nil {
			return err
		}
		defer relay.Close()
	}

	notifier := notification.New(notification.LogSender{Logger: log},
		notification.WithWorkers(cfg.NotifyWorkers),
		notification.WithBuffer(cfg.NotifyBuffer),
		notification.WithLogger(log))
	notifier.Start(ctx)
	defer notifier.Stop()

	applications := appservice.New(appStore, registry,
		appservice.WithGatherer(validation.NewGatherer(log)),
		appservice.WithNotifier(notifier),
		appservice.WithAuditSink(auditor),
		appservice.WithLogger(log),
		appservice.WithMetrics(appmetrics.New()))

	router := httptransport.NewRouter(httptransport.Config{
		Applications: apphandler.New(applications, log),
		Rules:        ruleshandler.New(registry, log),
		Verifier:     middleware.NewVerifier([]byte(cfg.JWTSigningKey)),
		Logger:       log,
		Checks:       healthChecks,
	})
	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if relay != nil {
		group.Go(func() error {
			if err := relay.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

type pingChecker struct {
	db *sql.DB
}

func (c pingChecker) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
