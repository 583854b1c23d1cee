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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	accesshandler "aidtrace/internal/access/handler"
	accessservice "aidtrace/internal/access/service"
	accessstore "aidtrace/internal/access/store"
	"aidtrace/internal/custody"
	"aidtrace/internal/events"
	"aidtrace/internal/events/outbox"
	"aidtrace/internal/events/relay"
	httpapi "aidtrace/internal/http"
	jwttoken "aidtrace/internal/jwt_token"
	ledgerhandler "aidtrace/internal/ledger/handler"
	ledgermetrics "aidtrace/internal/ledger/metrics"
	"aidtrace/internal/ledger/models"
	ledgerservice "aidtrace/internal/ledger/service"
	ledgerstore "aidtrace/internal/ledger/store"
	"aidtrace/internal/platform/config"
	"aidtrace/internal/platform/httpserver"
	"aidtrace/internal/platform/kafka"
	"aidtrace/internal/platform/logger"
	"aidtrace/internal/platform/metrics"
	"aidtrace/internal/platform/postgres"
	"aidtrace/internal/platform/redis"
	"aidtrace/pkg/domain"
	"aidtrace/pkg/platform/circuit"
	"aidtrace/pkg/platform/middleware/ratelimit"
)

// custodian is what the ledger and the transfer endpoint need from a vault.
type custodian interface {
	ledgerservice.Custodian
	ledgerhandler.Receiver
}

// backend bundles the storage chosen at startup.
type backend struct {
	runner ledgerRunner
	ledger ledgerservice.Store
	vault  custodian
	roles  accessservice.Store
	db     *sql.DB
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "aidtrace:", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("aidtrace", pflag.ExitOnError)
	addr := flags.String("addr", "", "listen address, overrides AIDTRACE_ADDR")
	envFile := flags.String("env-file", "", "dotenv file loaded before reading the environment")
	_ = flags.Parse(os.Args[1:])

	if err := loadEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedule, err := loadSchedule(cfg.Ledger.ScheduleFile)
	if err != nil {
		return err
	}

	be, err := openBackend(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	if be.db != nil {
		defer be.db.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	eventMetrics := events.NewMetricsWith(reg)
	sinks := []events.Sink{events.NewLogSink(log, slog.LevelDebug)}
	checks := map[string]httpapi.HealthCheck{}
	if be.db != nil {
		checks["postgres"] = be.db.PingContext
	}

	redisClient, err := redis.Open(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sinks = append(sinks, events.NewRedisSink(redisClient.UniversalClient, redisClient.Channel(), circuit.New("redis-events"), log, eventMetrics))
		checks["redis"] = redisClient.Health
		log.Info("publishing events to redis", "channel", redisClient.Channel())
	}
	publisher := events.NewFanout(sinks, events.WithLogger(log), events.WithMetrics(eventMetrics))

	a, err := newApp(ctx, cfg, be, schedule, publisher, checks, reg, log)
	if err != nil {
		return err
	}
	srv := httpserver.New(cfg.Server, a.router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting aidtrace", "addr", cfg.Server.Addr, "postgres", be.db != nil)
		return srv.Run(gctx)
	})

	if a.limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					a.limiter.Sweep()
				}
			}
		})
	}

	if be.db != nil && len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.New(cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := kafka.EnsureTopic(ctx, producer, cfg.Kafka.Topic, 3, 1); err != nil {
			log.Warn("could not ensure kafka topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		r := relay.New(outbox.New(be.db), producer, cfg.Kafka.Topic,
			relay.WithInterval(cfg.Kafka.PollInterval),
			relay.WithBatchSize(cfg.Kafka.BatchSize),
			relay.WithLogger(log),
			relay.WithMetrics(eventMetrics),
		)
		g.Go(func() error { return r.Run(gctx) })
		log.Info("relaying outbox to kafka", "topic", cfg.Kafka.Topic)
	}

	return g.Wait()
}

// registry is where the process registers and gathers its collectors.
type registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// app is the wired service graph behind the HTTP router.
type app struct {
	access  *accessservice.Service
	ledger  *ledgerservice.Service
	limiter *ratelimit.Window
	router  http.Handler
}

func newApp(ctx context.Context, cfg config.Config, be backend, schedule models.Schedule, publisher *events.Fanout, checks map[string]httpapi.HealthCheck, reg registry, log *slog.Logger) (*app, error) {
	access := accessservice.New(be.roles,
		accessservice.WithLogger(log),
		accessservice.WithPublisher(publisher),
	)
	if err := access.Bootstrap(ctx, domain.Identity(cfg.Auth.RootIdentity)); err != nil {
		return nil, fmt.Errorf("bootstrap root identity: %w", err)
	}

	ledger := ledgerservice.New(newLedgerTx(be.runner, 0), be.ledger, be.vault, access,
		ledgerservice.Config{
			MinScans:   cfg.Ledger.MinScans,
			RefundLock: cfg.Ledger.RefundLock,
			Schedule:   schedule,
		},
		ledgerservice.WithLogger(log),
		ledgerservice.WithMetrics(ledgermetrics.NewWith(reg)),
		ledgerservice.WithPublisher(publisher),
	)

	var limiter *ratelimit.Window
	if cfg.Server.WriteRateLimit > 0 {
		limiter = ratelimit.NewWindow(cfg.Server.WriteRateLimit, time.Minute)
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:       log,
		Metrics:      metrics.NewWithRegisterer(reg),
		Gatherer:     reg,
		Validator:    jwtService.Validator(),
		Checks:       checks,
		WriteLimiter: limiter,
		Routes: []httpapi.Registrar{
			ledgerhandler.New(ledger, be.vault, log),
			accesshandler.New(access, log),
		},
	})
	return &app{access: access, ledger: ledger, limiter: limiter, router: router}, nil
}

func openBackend(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (backend, error) {
	if cfg.URL == "" {
		log.Warn("AIDTRACE_DATABASE_URL not set, ledger state is kept in memory")
		mem := ledgerstore.NewMemory()
		return backend{
			runner: mem,
			ledger: mem,
			vault:  custody.NewVault(),
			roles:  accessstore.NewInMemoryStore(),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return backend{}, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return backend{}, err
	}
	pg := ledgerstore.NewPostgres(db)
	return backend{
		runner: pg,
		ledger: pg,
		vault:  custody.NewPostgresVault(db),
		roles:  accessstore.NewPostgres(db),
		db:     db,
	}, nil
}

func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// loadSchedule reads the configured default milestone schedule, or returns
// nil to keep the built-in 40/60 split.
func loadSchedule(path string) (models.Schedule, error) {
	if path == "" {
		return nil, nil
	}
	entries, err := config.LoadSchedule(path)
	if err != nil {
		return nil, err
	}
	rules := make([]models.MilestoneRule, len(entries))
	for i, e := range entries {
		stage, err := models.ParseStage(e.Stage)
		if err != nil {
			return nil, fmt.Errorf("milestone schedule %s entry %d: %w", path, i, err)
		}
		rules[i] = models.MilestoneRule{Stage: stage, Percent: e.Percent}
	}
	schedule, err := models.NewSchedule(rules)
	if err != nil {
		return nil, fmt.Errorf("milestone schedule %s: %w", path, err)
	}
	return schedule, nil
}
