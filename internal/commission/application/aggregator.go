package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	commission "fuel-commission/internal/commission/domain"
)

const defaultFetchTimeout = 10 * time.Second

// DailyVolume is one day of volume for a station.
type DailyVolume struct {
	Date   time.Time
	Volume decimal.Decimal
	Sales  decimal.Decimal
}

// SourceResult is what a volume source returned for a station period.
// Authoritative is set when every day has been physically reconciled.
type SourceResult struct {
	Source        commission.DataSource
	Days          []DailyVolume
	Authoritative bool
}

// HasData reports whether at least one day was returned.
func (r SourceResult) HasData() bool { return len(r.Days) > 0 }

// VolumeSource loads per-day volume for a station within [from, to).
type VolumeSource interface {
	Name() commission.DataSource
	DailyVolumes(ctx context.Context, stationID string, from, to time.Time) (SourceResult, error)
}

// SourceStrategy picks the result to aggregate from everything fetched.
type SourceStrategy interface {
	Select(results []SourceResult) (SourceResult, bool)
}

// TankStockFirst prefers reconciled tank data, then sales, then unreconciled tank data.
type TankStockFirst struct{}

// Select implements SourceStrategy.
func (TankStockFirst) Select(results []SourceResult) (SourceResult, bool) {
	var tank, sales *SourceResult
	for i := range results {
		res := &results[i]
		if !res.HasData() {
			continue
		}
		switch res.Source {
		case commission.DataSourceTankStock:
			if tank == nil {
				tank = res
			}
		case commission.DataSourceSales:
			if sales == nil {
				sales = res
			}
		}
	}
	switch {
	case tank != nil && tank.Authoritative:
		return *tank, true
	case sales != nil:
		return *sales, true
	case tank != nil:
		return *tank, true
	default:
		return SourceResult{}, false
	}
}

// SalesOnly ignores tank-stock data entirely.
type SalesOnly struct{}

// Select implements SourceStrategy.
func (SalesOnly) Select(results []SourceResult) (SourceResult, bool) {
	for _, res := range results {
		if res.Source == commission.DataSourceSales && res.HasData() {
			return res, true
		}
	}
	return SourceResult{}, false
}

// ParseSourceStrategy maps a config value onto a strategy.
func ParseSourceStrategy(value string) (SourceStrategy, error) {
	switch value {
	case "", "tank_stock_first":
		return TankStockFirst{}, nil
	case "sales_only":
		return SalesOnly{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown source strategy %q", commission.ErrValidation, value)
	}
}

// Aggregate is a station's volume and sales for a whole period or day.
type Aggregate struct {
	StationID   string
	Period      commission.Period
	TotalVolume decimal.Decimal
	TotalSales  decimal.Decimal
	DataSource  commission.DataSource
	Days        []DailyVolume
}

// AggregationObserver receives source selection outcomes.
type AggregationObserver interface {
	ObserveSourceSelected(source commission.DataSource)
	ObserveSourceFailed(source commission.DataSource)
}

// Aggregator fetches volume from every source and folds the selected one.
type Aggregator struct {
	sources  []VolumeSource
	strategy SourceStrategy
	timeout  time.Duration
	observer AggregationObserver
}

// AggregatorOption configures the aggregator.
type AggregatorOption func(*Aggregator)

// WithSourceStrategy swaps the source selection policy.
func WithSourceStrategy(strategy SourceStrategy) AggregatorOption {
	return func(a *Aggregator) {
		if strategy != nil {
			a.strategy = strategy
		}
	}
}

// WithFetchTimeout bounds each source fetch.
func WithFetchTimeout(timeout time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if timeout > 0 {
			a.timeout = timeout
		}
	}
}

// WithAggregationObserver attaches metrics.
func WithAggregationObserver(observer AggregationObserver) AggregatorOption {
	return func(a *Aggregator) {
		a.observer = observer
	}
}

// NewAggregator constructs an aggregator over the given sources.
func NewAggregator(sources []VolumeSource, opts ...AggregatorOption) (*Aggregator, error) {
	if len(sources) == 0 {
		return nil, errors.New("aggregator: no volume sources")
	}
	for _, src := range sources {
		if src == nil {
			return nil, errors.New("aggregator: nil volume source")
		}
	}
	a := &Aggregator{sources: sources, strategy: TankStockFirst{}, timeout: defaultFetchTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Aggregate totals a station's period.
func (a *Aggregator) Aggregate(ctx context.Context, stationID string, period commission.Period) (Aggregate, error) {
	if stationID == "" {
		return Aggregate{}, fmt.Errorf("%w: station_id required", commission.ErrValidation)
	}
	if period.IsZero() {
		return Aggregate{}, fmt.Errorf("%w: period required", commission.ErrValidation)
	}
	return a.aggregate(ctx, stationID, period, period.Start(), period.End())
}

// AggregateRange totals a station's volume within [from, to) of a period.
func (a *Aggregator) AggregateRange(ctx context.Context, stationID string, period commission.Period, from, to time.Time) (Aggregate, error) {
	if stationID == "" {
		return Aggregate{}, fmt.Errorf("%w: station_id required", commission.ErrValidation)
	}
	if !to.After(from) {
		return Aggregate{}, fmt.Errorf("%w: empty range", commission.ErrValidation)
	}
	return a.aggregate(ctx, stationID, period, from, to)
}

func (a *Aggregator) aggregate(ctx context.Context, stationID string, period commission.Period, from, to time.Time) (Aggregate, error) {
	results := make([]SourceResult, 0, len(a.sources))
	var fetchErrs []error
	for _, src := range a.sources {
		if err := ctx.Err(); err != nil {
			return Aggregate{}, err
		}
		res, err := a.fetch(ctx, src, stationID, from, to)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Aggregate{}, ctxErr
			}
			fetchErrs = append(fetchErrs, fmt.Errorf("%s: %w", src.Name(), err))
			if a.observer != nil {
				a.observer.ObserveSourceFailed(src.Name())
			}
			continue
		}
		if res.Source == "" {
			res.Source = src.Name()
		}
		results = append(results, res)
	}

	selected, ok := a.strategy.Select(results)
	if !ok {
		err := fmt.Errorf("%w: station %s period %s", commission.ErrUpstreamDataUnavailable, stationID, period)
		if len(fetchErrs) > 0 {
			err = errors.Join(append([]error{err}, fetchErrs...)...)
		}
		return Aggregate{}, err
	}
	if a.observer != nil {
		a.observer.ObserveSourceSelected(selected.Source)
	}

	days := make([]DailyVolume, 0, len(selected.Days))
	volume := decimal.Zero
	sales := decimal.Zero
	for _, day := range selected.Days {
		if day.Date.Before(from) || !day.Date.Before(to) {
			continue
		}
		day.Date = truncateDay(day.Date)
		days = append(days, day)
		volume = volume.Add(day.Volume)
		sales = sales.Add(day.Sales)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	return Aggregate{
		StationID:   stationID,
		Period:      period,
		TotalVolume: commission.RoundVolume(volume),
		TotalSales:  commission.RoundCurrency(sales),
		DataSource:  selected.Source,
		Days:        days,
	}, nil
}

func (a *Aggregator) fetch(ctx context.Context, src VolumeSource, stationID string, from, to time.Time) (SourceResult, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return src.DailyVolumes(fetchCtx, stationID, from, to)
}

// TankSoldVolume derives sold volume from a reconciliation row, floored at zero.
func TankSoldVolume(opening, delivered, closing decimal.Decimal) decimal.Decimal {
	sold := opening.Add(delivered).Sub(closing)
	if sold.IsNegative() {
		return decimal.Zero
	}
	return sold
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
