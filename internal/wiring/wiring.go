package wiring

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fuel-commission/internal/audit"
	"fuel-commission/internal/commission/application"
	"fuel-commission/internal/commission/infrastructure/cache"
	commissionrepo "fuel-commission/internal/commission/infrastructure/postgres"
	commissioninterfaces "fuel-commission/internal/commission/interfaces"
	commissionhttp "fuel-commission/internal/commission/interfaces/http"
	"fuel-commission/internal/config"
	masterdatarepo "fuel-commission/internal/masterdata/infrastructure/postgres"
	"fuel-commission/internal/observability/metrics"
)

// Commission holds the assembled commission services.
type Commission struct {
	Lifecycle *application.LifecycleService
	Reader    *application.ScopedReader
	Scheduler *application.Scheduler
	Handler   *commissionhttp.Handler
	Cache     application.StatsCache
}

// OpenDB opens and pings the Postgres pool through the pgx stdlib driver.
func OpenDB(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// BuildCalculator converts the policy bonus table into a calculator.
func BuildCalculator(policy config.Policy) *application.Calculator {
	tiers := make([]application.BonusTier, 0, len(policy.BonusTiers))
	for _, tier := range policy.BonusTiers {
		tiers = append(tiers, application.BonusTier{
			MinVolume:    decimal.NewFromFloat(tier.MinVolume),
			Amount:       decimal.NewFromFloat(tier.Amount),
			RatePerLitre: decimal.NewFromFloat(tier.RatePerLitre),
		})
	}
	return application.NewCalculator(tiers)
}

// ResolverOptions converts the policy rate settings.
func ResolverOptions(policy config.Policy) ([]application.RateResolverOption, error) {
	mode, err := application.ParseRateMode(policy.RateMode)
	if err != nil {
		return nil, err
	}
	opts := []application.RateResolverOption{application.WithRateMode(mode)}
	if policy.SystemRate > 0 {
		opts = append(opts, application.WithSystemRate(decimal.NewFromFloat(policy.SystemRate)))
	}
	return opts, nil
}

// Build assembles the commission engine over db.
func Build(db *sqlx.DB, cfg config.Config, logger zerolog.Logger) (*Commission, error) {
	directory := masterdatarepo.NewStationRepository(db)
	repo, err := commissionrepo.NewRepository(db)
	if err != nil {
		return nil, err
	}
	sales, err := commissionrepo.NewSalesLedger(db, "")
	if err != nil {
		return nil, err
	}
	tank, err := commissionrepo.NewTankStockLedger(db, "")
	if err != nil {
		return nil, err
	}
	caps, err := commissionrepo.NewPriceCapReader(db, "")
	if err != nil {
		return nil, err
	}

	resolverOpts, err := ResolverOptions(cfg.Policy)
	if err != nil {
		return nil, err
	}
	resolver, err := application.NewRateResolver(directory, resolverOpts...)
	if err != nil {
		return nil, err
	}
	strategy, err := application.ParseSourceStrategy(cfg.Policy.SourceStrategy)
	if err != nil {
		return nil, err
	}
	observer := metrics.Observer{}
	aggregator, err := application.NewAggregator(
		[]application.VolumeSource{tank, sales},
		application.WithSourceStrategy(strategy),
		application.WithFetchTimeout(cfg.FetchTimeout),
		application.WithAggregationObserver(observer),
	)
	if err != nil {
		return nil, err
	}
	calculator := BuildCalculator(cfg.Policy)

	statsCache, err := cache.NewStatsCache(cache.Options{
		Enabled:  cfg.Cache.Enabled,
		RedisURL: cfg.Cache.RedisURL,
		TTL:      cfg.Cache.TTL,
	})
	if err != nil {
		return nil, err
	}

	tracker, err := application.NewProgressiveTracker(resolver, aggregator, calculator, application.WithProgressiveCaps(caps))
	if err != nil {
		return nil, err
	}
	lifecycle, err := application.NewLifecycleService(repo, directory, resolver, aggregator, calculator,
		application.WithApprovalRequired(cfg.ApprovalRequired),
		application.WithMaxParallel(cfg.CalcMaxParallel),
		application.WithPriceCaps(caps),
		application.WithPublisher(commissioninterfaces.NewLoggingPublisher(logger)),
		application.WithLifecycleObserver(observer),
		application.WithStatsInvalidation(statsCache),
		application.WithLogger(logger.With().Str("component", "commission_lifecycle").Logger()),
	)
	if err != nil {
		return nil, err
	}
	reader, err := application.NewScopedReader(repo, directory, tracker,
		application.WithStatsCache(statsCache),
		application.WithReaderLogger(logger.With().Str("component", "commission_reader").Logger()),
	)
	if err != nil {
		return nil, err
	}
	handler, err := commissionhttp.NewHandler(lifecycle, reader,
		commissionhttp.WithAuditLogger(audit.NewRepository(db.DB)),
		commissionhttp.WithLogger(logger.With().Str("component", "commission_http").Logger()),
	)
	if err != nil {
		return nil, err
	}

	var scheduler *application.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = application.NewScheduler(lifecycle, cfg.Scheduler.DailyAt, logger.With().Str("component", "commission_scheduler").Logger())
	}

	return &Commission{
		Lifecycle: lifecycle,
		Reader:    reader,
		Scheduler: scheduler,
		Handler:   handler,
		Cache:     statsCache,
	}, nil
}
