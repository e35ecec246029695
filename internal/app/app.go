// Package app wires configuration, store, services and HTTP API into a runnable libraryd.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/library-lending-go/internal/config"
	"github.com/AntonStoeckl/library-lending-go/internal/httpapi"
	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/inventory"
	"github.com/AntonStoeckl/library-lending-go/lending/loans"
	"github.com/AntonStoeckl/library-lending-go/lending/sqlengine"
	"github.com/AntonStoeckl/library-lending-go/lending/statistics"
	"github.com/AntonStoeckl/library-lending-go/lending/summarycache"
)

// App holds everything libraryd runs on. Close releases it.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Store      sqlengine.Store
	Ledger     inventory.Ledger
	Loans      loans.Service
	Statistics statistics.Service
	Cache      *summarycache.Cache

	database  config.Database
	redis     *redis.Client
	telemetry telemetry
}

// New opens the database and builds the services described by cfg. Logs go to logOutput.
func New(ctx context.Context, cfg config.Config, logOutput io.Writer) (*App, error) {
	logger, err := config.NewLogger(cfg.Log, logOutput)
	if err != nil {
		return nil, err
	}

	logger = logger.With("service", cfg.Telemetry.ServiceName)

	a := &App{Config: cfg, Logger: logger, telemetry: newTelemetry(cfg.Telemetry, logger)}

	a.database, err = config.OpenDatabase(ctx, cfg.Database, a.storeOptions()...)
	if err != nil {
		_ = a.telemetry.shutdown(ctx)
		return nil, err
	}

	a.Store = a.database.Store
	a.Ledger = inventory.NewLedger(a.ledgerOptions()...)

	a.Loans, err = loans.NewService(a.Store, a.loanOptions()...)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	if a.redis = config.NewRedisClient(cfg.Redis); a.redis != nil {
		cache, err := summarycache.New(a.redis, summarycache.WithTTL(cfg.Redis.SummaryTTL))
		if err != nil {
			a.Close(ctx)
			return nil, err
		}

		a.Cache = &cache
	}

	a.Statistics, err = statistics.NewService(a.Store, a.statisticsOptions()...)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	return a, nil
}

func (a *App) storeOptions() []sqlengine.Option {
	options := []sqlengine.Option{sqlengine.WithLogger(a.Logger)}
	if a.telemetry.enabled {
		options = append(options,
			sqlengine.WithContextualLogger(a.telemetry.logger),
			sqlengine.WithMetrics(a.telemetry.metrics),
			sqlengine.WithTracing(a.telemetry.tracing),
		)
	}

	return options
}

func (a *App) ledgerOptions() []inventory.Option {
	options := []inventory.Option{inventory.WithLogger(a.Logger)}
	if a.telemetry.enabled {
		options = append(options, inventory.WithContextualLogger(a.telemetry.logger), inventory.WithMetrics(a.telemetry.metrics))
	}

	return options
}

func (a *App) loanOptions() []loans.Option {
	options := []loans.Option{
		loans.WithLedger(a.Ledger),
		loans.WithLogger(a.Logger),
		loans.WithUnitOfWorkTimeout(a.Config.Lending.UnitOfWorkTimeout),
		loans.WithRetryOptions(
			loans.WithMaxAttempts(a.Config.Lending.RetryMaxAttempts),
			loans.WithBaseDelay(a.Config.Lending.RetryBaseDelay),
		),
	}

	if a.telemetry.enabled {
		options = append(options,
			loans.WithContextualLogger(a.telemetry.logger),
			loans.WithMetrics(a.telemetry.metrics),
			loans.WithTracing(a.telemetry.tracing),
		)
	}

	return options
}

func (a *App) statisticsOptions() []statistics.Option {
	options := []statistics.Option{statistics.WithLogger(a.Logger)}

	if a.Cache != nil {
		options = append(options, statistics.WithSummaryCache(a.Cache))
	}

	if a.telemetry.enabled {
		options = append(options,
			statistics.WithContextualLogger(a.telemetry.logger),
			statistics.WithMetrics(a.telemetry.metrics),
			statistics.WithTracing(a.telemetry.tracing),
		)
	}

	return options
}

// Handler returns the HTTP API on top of the services.
func (a *App) Handler() http.Handler {
	return httpapi.NewRouter(httpapi.NewHandler(a.Loans, a.Statistics, a.Store, a.Ledger, a.Logger))
}

// Migrate creates the schema.
func (a *App) Migrate(ctx context.Context) error {
	return a.Store.Migrate(ctx)
}

// Verify audits copy conservation for every book.
func (a *App) Verify(ctx context.Context) ([]lending.InvariantViolationError, error) {
	violations, err := a.Ledger.VerifyConservation(ctx, a.Store)
	if err != nil {
		return nil, err
	}

	if len(violations) == 0 {
		a.Logger.InfoContext(ctx, "conservation verified")
	}

	return violations, nil
}

// LibrarySummary returns the library summary. With refresh set a cached summary is
// dropped first, so the result reflects the store as of now.
func (a *App) LibrarySummary(ctx context.Context, refresh bool) (statistics.LibrarySummary, error) {
	if refresh && a.Cache != nil {
		if err := a.Cache.Invalidate(ctx); err != nil {
			return statistics.LibrarySummary{}, err
		}
	}

	return a.Statistics.LibrarySummary(ctx)
}

// Close releases the redis client, the database and the telemetry providers.
func (a *App) Close(ctx context.Context) {
	var errs []error

	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}

	a.database.Close()
	errs = append(errs, a.telemetry.shutdown(ctx))

	if err := errors.Join(errs...); err != nil {
		a.Logger.WarnContext(ctx, "closing app failed", "error", err.Error())
	}
}
