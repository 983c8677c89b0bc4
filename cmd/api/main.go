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

	"chat-pipeline/internal/agents"
	"chat-pipeline/internal/audit"
	"chat-pipeline/internal/auth"
	"chat-pipeline/internal/campaigns"
	"chat-pipeline/internal/config"
	"chat-pipeline/internal/conversations"
	"chat-pipeline/internal/dedup"
	"chat-pipeline/internal/events"
	"chat-pipeline/internal/gateway"
	"chat-pipeline/internal/httpapi"
	"chat-pipeline/internal/inbound"
	"chat-pipeline/internal/keywords"
	"chat-pipeline/internal/leads"
	"chat-pipeline/internal/pipeline"
	"chat-pipeline/internal/reporting"
	"chat-pipeline/internal/routing"
	"chat-pipeline/internal/scheduler"
	"chat-pipeline/internal/textgen"
	"chat-pipeline/pkg/logger"
	"chat-pipeline/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 20 * time.Second

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	checks := map[string]func(context.Context) error{
		"postgres": func(ctx context.Context) error { return utils.HealthCheck(ctx, db, 2*time.Second) },
	}

	inboundGuard, outboundGuard := dedup.Guard(dedup.NewMemoryGuard()), dedup.Guard(dedup.NewMemoryGuard())
	if cfg.Dedup.Backend == "redis" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		inboundGuard = dedup.NewRedisGuard(rdb, "dedup:in:", log)
		outboundGuard = dedup.NewRedisGuard(rdb, "dedup:out:", log)
		checks["redis"] = func(ctx context.Context) error { return utils.PingRedis(ctx, rdb, 2*time.Second) }
	}

	publisher := events.Publisher(events.Noop{})
	if cfg.AMQP.URL != "" {
		publisher, err = events.Dial(rootCtx, events.ConnectionOptions{
			URL:      cfg.AMQP.URL,
			Exchange: cfg.AMQP.Exchange,
			Delay:    2 * time.Second,
			Logger:   log,
		})
		if err != nil {
			log.Error("rabbitmq init failed", "err", err)
			os.Exit(1)
		}
	}
	defer publisher.Close()

	app := build(cfg, db, inboundGuard, outboundGuard, publisher, log)
	app.handlers.Auth = authManager
	app.handlers.Checks = checks

	if err := campaigns.SeedDefaults(rootCtx, app.handlers.Templates); err != nil {
		log.Error("seed campaign templates failed", "err", err)
		os.Exit(1)
	}

	sweeper, err := scheduler.New(app.handlers.Campaigns, cfg.Campaigns.SweepCron, log)
	if err != nil {
		log.Error("scheduler init failed", "err", err)
		os.Exit(1)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, app.handlers, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("api stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("api stopped")
}

type application struct {
	handlers httpapi.Handlers
}

// build wires the domain services over the given infrastructure.
func build(cfg config.Config, db *sql.DB, in, out dedup.Guard, pub events.Publisher, log *slog.Logger) application {
	table := keywords.Default()

	var generator textgen.Generator = textgen.Disabled{}
	var classifier routing.Classifier
	if cfg.OpenAI.APIKey != "" {
		ai := textgen.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Timeout, log)
		generator, classifier = ai, ai
	}

	var catalog agents.CatalogSource = agents.NoCatalog{}
	if cfg.Pipeline.CatalogPath != "" {
		catalog = agents.FileCatalog{Path: cfg.Pipeline.CatalogPath}
	}

	adapter := gateway.NewAdapter(gateway.Config{
		Enabled:    cfg.Gateway.Enabled,
		BaseURL:    cfg.Gateway.BaseURL,
		APIKey:     cfg.Gateway.APIKey,
		InstanceID: cfg.Gateway.InstanceID,
		SendPath:   cfg.Gateway.SendPath,
	}, gateway.NewHTTPTransport(cfg.Gateway.Timeout), rate.NewLimiter(rate.Limit(cfg.Gateway.RatePerSec), cfg.Gateway.Burst), log)

	records := campaigns.NewPostgresRepo(db)
	templates := campaigns.NewPostgresTemplates(db)
	settings := campaigns.NewPostgresSettings(db, campaigns.DefaultSettings())
	history := conversations.NewPostgresRepo(db)

	engine := campaigns.NewEngine(campaigns.Deps{
		Records:     records,
		Templates:   templates,
		Settings:    settings,
		Sender:      adapter,
		Outbound:    out,
		OutboundTTL: cfg.Dedup.TTL,
		Publisher:   pub,
		Table:       table,
		Company:     campaigns.Company{Name: cfg.Campaigns.CompanyName, Phone: cfg.Campaigns.CompanyPhone},
		Location:    cfg.Location(),
		Log:         log,
	})

	p := pipeline.New(pipeline.Deps{
		Normalizer:   inbound.New(cfg.Gateway.BotID, log),
		Inbound:      in,
		Outbound:     out,
		DedupTTL:     cfg.Dedup.TTL,
		History:      history,
		HistoryLimit: cfg.Pipeline.HistoryLimit,
		Router:       routing.NewRouter(table, classifier, cfg.Pipeline.HistoryLimit, log),
		Extractor:    leads.NewExtractor(table, log),
		Agents: agents.NewDispatcher(agents.Deps{
			Generator:   generator,
			Catalog:     catalog,
			CompanyName: cfg.Campaigns.CompanyName,
			Log:         log,
		}),
		Campaigns:        engine,
		Sender:           adapter,
		ManualSessionTTL: cfg.Pipeline.ManualSessionTTL,
		Log:              log,
	})

	return application{handlers: httpapi.Handlers{
		Pipeline:  p,
		Campaigns: engine,
		Templates: templates,
		Settings:  settings,
		Records:   records,
		Reports:   reporting.NewService(reporting.CampaignSource{Records: records}),
		Audit:     audit.NewService(audit.NewPostgresRepo(db)),
		Gateway:   adapter,
		Log:       log,
	}}
}
