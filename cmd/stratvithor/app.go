package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/luislascano01/Stratvithor/core/engine"
	"github.com/luislascano01/Stratvithor/core/executor"
	"github.com/luislascano01/Stratvithor/core/promptgraph"
	"github.com/luislascano01/Stratvithor/core/report"
	"github.com/luislascano01/Stratvithor/internal/config"
	"github.com/luislascano01/Stratvithor/internal/telemetry"
	"github.com/luislascano01/Stratvithor/providers/ai"
	"github.com/luislascano01/Stratvithor/providers/ai/anthropic"
	"github.com/luislascano01/Stratvithor/providers/ai/openai"
	"github.com/luislascano01/Stratvithor/providers/observability"
	"github.com/luislascano01/Stratvithor/providers/observability/otelobs"
	"github.com/luislascano01/Stratvithor/providers/observability/slogobs"
	"github.com/luislascano01/Stratvithor/providers/search"
	"github.com/luislascano01/Stratvithor/providers/search/polygon"
	"github.com/luislascano01/Stratvithor/providers/search/tavily"
	"github.com/luislascano01/Stratvithor/providers/search/webfetch"
	"github.com/luislascano01/Stratvithor/providers/search/websearch"
	"github.com/luislascano01/Stratvithor/providers/store"
	"github.com/luislascano01/Stratvithor/providers/store/badgerstore"
	"github.com/luislascano01/Stratvithor/providers/store/memstore"
	"github.com/luislascano01/Stratvithor/providers/store/pgstore"
)

// app is the wired process: every component built from one configuration.
type app struct {
	config    config.Config
	logger    *slog.Logger
	telemetry *telemetry.Telemetry
	observer  observability.Provider
	catalog   *promptgraph.Catalog
	store     store.Store
	service   *report.Service

	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{config: cfg, logger: logger}
	defer func() {
		if err != nil {
			err = errors.Join(err, a.close(context.Background()))
		}
	}()

	a.telemetry, err = telemetry.Setup(telemetry.Config{
		ServiceName:  "stratvithor",
		Prometheus:   cfg.Telemetry.Prometheus,
		StdoutTraces: cfg.Telemetry.StdoutTraces,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.telemetry.Shutdown)

	if cfg.Telemetry.Prometheus || cfg.Telemetry.StdoutTraces {
		a.observer = otelobs.New(
			otelobs.WithMeterProvider(a.telemetry.MeterProvider),
			otelobs.WithTracerProvider(a.telemetry.TracerProvider),
			otelobs.WithLogger(logger),
		)
	} else {
		a.observer = slogobs.New(slogobs.WithLogger(logger))
	}

	a.catalog, err = promptgraph.NewCatalog(cfg.Definitions.Directory, promptgraph.WithCatalogLogger(logger))
	if err != nil {
		logger.Warn("graph definitions not fully loaded",
			slog.String("directory", cfg.Definitions.Directory),
			slog.Int("valid", len(a.catalog.List())),
			slog.String("error", err.Error()),
		)
	}

	a.store, err = a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	mode := report.LimiterGlobal
	if cfg.Engine.LimiterMode == string(report.LimiterPerTask) {
		mode = report.LimiterPerTask
	}

	a.service = report.New(a.catalog,
		report.WithExecutor(a.liveExecutor()),
		report.WithMockExecutor(executor.NewMock(cfg.Engine.MockLatency)),
		report.WithStore(a.store),
		report.WithConcurrency(mode, cfg.Engine.MaxConcurrency),
		report.WithNodeTimeout(cfg.Engine.NodeTimeout),
		report.WithTaskTTL(cfg.Engine.TaskTTL),
		report.WithObserver(a.observer),
		report.WithLogger(logger),
	)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	switch a.config.Store.Driver {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, a.config.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("error connecting to postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			pool.Close()
			return nil
		})

		pg := pgstore.New(pool, pgstore.WithTableName(a.config.Store.Table))
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return pg, nil

	case config.StoreBadger:
		db, err := badgerstore.Open(badgerstore.Config{
			Path:       a.config.Store.BadgerPath,
			SyncWrites: true,
			Logger:     a.logger,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		return db, nil

	default:
		return memstore.New(), nil
	}
}

// liveExecutor builds the fetch and mold stages over the external services.
// Tasks without web search never reach the searcher.
func (a *app) liveExecutor() engine.NodeExecutor {
	cfg := a.config

	var searcher search.Searcher
	switch cfg.Search.Provider {
	case config.SearchWebSearch:
		searcher = websearch.New(cfg.Search.Endpoints,
			websearch.WithLogger(a.logger),
			websearch.WithCredentials(cfg.CredentialsFile),
		)
	default:
		searcher = tavily.New(tavily.WithAPIKey(cfg.Credentials.Tavily))
	}
	if cfg.Search.EnrichPages > 0 {
		searcher = webfetch.New(searcher, webfetch.WithMaxPages(cfg.Search.EnrichPages), webfetch.WithLogger(a.logger))
	}

	fetcher := executor.Chain(
		executor.NewSearchFetcher(searcher, cfg.Search.MaxResults),
		executor.WithLogging(a.logger),
		executor.WithFinancialContext(polygon.New(polygon.WithAPIKey(cfg.Credentials.Polygon)), a.logger,
			executor.WithFinancialTTL(cfg.Search.FinancialTTL),
		),
		executor.WithRetry(executor.RetryConfig{MaxRetries: cfg.Search.MaxRetries}),
		executor.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.Search.RateLimit), cfg.Search.RateBurst)),
		executor.WithTimeout(cfg.Search.FetchTimeout),
	)

	molder := executor.NewLLMMolder(a.llmProvider(), executor.WithModel(cfg.LLM.Model))

	return executor.New(fetcher, molder, executor.WithMoldTimeout(cfg.Engine.MoldTimeout))
}

// llmProvider returns the configured generation backend. Keys and base URLs
// left empty keep the provider's environment defaults.
func (a *app) llmProvider() ai.Provider {
	cfg := a.config

	var provider ai.Provider
	key := cfg.Credentials.OpenAI
	switch cfg.LLM.Provider {
	case config.LLMAnthropic:
		provider = anthropic.New()
		key = cfg.Credentials.Anthropic
	default:
		provider = openai.NewOpenAIProvider()
	}

	if key != "" {
		provider = provider.WithAPIKey(key)
	}
	if cfg.LLM.BaseURL != "" {
		provider = provider.WithBaseURL(cfg.LLM.BaseURL)
	}
	return provider
}

// shutdown closes the app and logs what failed to close.
func (a *app) shutdown() {
	if err := a.close(context.Background()); err != nil {
		a.logger.Error("shutdown failed", slog.String("error", err.Error()))
	}
}

// close cancels running tasks and releases every resource, last opened first.
func (a *app) close(ctx context.Context) error {
	if a.service != nil {
		a.service.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
