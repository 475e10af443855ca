package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	commission "fuel-commission/internal/commission/domain"
)

const dayLayout = "2006-01-02"

// PriceCapReader supplies the price-cap spread for a station period.
// A nil margin means no cap data and yields no adjustment.
type PriceCapReader interface {
	CapMargin(ctx context.Context, stationID string, period commission.Period) (*CapMargin, error)
}

// ProgressiveTracker replays the calculator per elapsed day. It never writes.
type ProgressiveTracker struct {
	resolver   *RateResolver
	aggregator *Aggregator
	calculator *Calculator
	caps       PriceCapReader
	clock      Clock
}

// ProgressiveOption configures the tracker.
type ProgressiveOption func(*ProgressiveTracker)

// WithProgressiveCaps attaches a price-cap reader.
func WithProgressiveCaps(caps PriceCapReader) ProgressiveOption {
	return func(t *ProgressiveTracker) { t.caps = caps }
}

// WithProgressiveClock overrides the clock.
func WithProgressiveClock(clock Clock) ProgressiveOption {
	return func(t *ProgressiveTracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewProgressiveTracker constructs the tracker. Bonus tiers are excluded
// since they apply to whole-period volume.
func NewProgressiveTracker(resolver *RateResolver, aggregator *Aggregator, calculator *Calculator, opts ...ProgressiveOption) (*ProgressiveTracker, error) {
	if resolver == nil {
		return nil, errors.New("progressive tracker: nil rate resolver")
	}
	if aggregator == nil {
		return nil, errors.New("progressive tracker: nil aggregator")
	}
	if calculator == nil {
		return nil, errors.New("progressive tracker: nil calculator")
	}
	t := &ProgressiveTracker{
		resolver:   resolver,
		aggregator: aggregator,
		calculator: calculator.WithoutBonus(),
		clock:      SystemClock{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Project builds the day-by-day accrual of one station's period.
func (t *ProgressiveTracker) Project(ctx context.Context, stationID string, period commission.Period) (commission.Projection, error) {
	if period.IsZero() {
		return commission.Projection{}, fmt.Errorf("%w: period required", commission.ErrValidation)
	}
	now := t.clock.Now().UTC()
	elapsed := period.ElapsedDays(now)
	proj := commission.Projection{
		StationID:                stationID,
		Period:                   period,
		TotalDays:                period.Days(),
		ElapsedDays:              elapsed,
		CumulativeCommission:     decimal.Zero,
		EstimatedFinalCommission: decimal.Zero,
		IsEstimate:               true,
		Points:                   []commission.DailyAccrualPoint{},
	}

	res, err := t.resolver.Resolve(ctx, NewRateCache(), stationID)
	if err != nil {
		return commission.Projection{}, err
	}
	proj.RateApplied = res.Rate
	if elapsed == 0 {
		return proj, nil
	}

	agg, err := t.aggregator.AggregateRange(ctx, stationID, period, period.Start(), period.Day(elapsed))
	switch {
	case errors.Is(err, commission.ErrUpstreamDataUnavailable):
		agg = Aggregate{}
	case err != nil:
		return commission.Projection{}, err
	}
	proj.DataSource = agg.DataSource

	var margin *CapMargin
	if t.caps != nil {
		margin, err = t.caps.CapMargin(ctx, stationID, period)
		if err != nil {
			return commission.Projection{}, err
		}
	}

	byDay := make(map[string]DailyVolume, len(agg.Days))
	for _, day := range agg.Days {
		key := day.Date.Format(dayLayout)
		if existing, ok := byDay[key]; ok {
			day.Volume = day.Volume.Add(existing.Volume)
			day.Sales = day.Sales.Add(existing.Sales)
		}
		byDay[key] = day
	}

	today := truncateDay(now).Format(dayLayout)
	cumulative := decimal.Zero
	cumulativeVolume := decimal.Zero
	previous := decimal.Zero
	for i := 0; i < elapsed; i++ {
		date := period.Day(i)
		day, ok := byDay[date.Format(dayLayout)]
		point := commission.DailyAccrualPoint{
			Date:             date,
			StationID:        stationID,
			Volume:           decimal.Zero,
			CommissionEarned: decimal.Zero,
			Trend:            commission.TrendNeutral,
			IsToday:          date.Format(dayLayout) == today,
			HasData:          ok,
		}
		if ok {
			b := t.calculator.Calculate(CalculationInput{Volume: day.Volume, Sales: day.Sales, Rate: res.Rate, CapMargin: margin})
			point.Volume = b.Volume
			point.CommissionEarned = b.Total
		}
		if i > 0 {
			point.Trend = commission.ClassifyTrend(point.CommissionEarned, previous)
		}
		cumulative = cumulative.Add(point.CommissionEarned)
		cumulativeVolume = cumulativeVolume.Add(point.Volume)
		point.CumulativeCommission = cumulative
		point.CumulativeVolume = cumulativeVolume
		previous = point.CommissionEarned
		proj.Points = append(proj.Points, point)
	}

	proj.CumulativeCommission = commission.RoundCurrency(cumulative)
	proj.EstimatedFinalCommission = estimateFinal(cumulative, elapsed, proj.TotalDays)
	return proj, nil
}

func estimateFinal(cumulative decimal.Decimal, elapsed, total int) decimal.Decimal {
	if elapsed <= 0 {
		return decimal.Zero
	}
	remaining := total - elapsed
	if remaining <= 0 {
		return commission.RoundCurrency(cumulative)
	}
	average := cumulative.Div(decimal.NewFromInt(int64(elapsed)))
	return commission.RoundCurrency(cumulative.Add(average.Mul(decimal.NewFromInt(int64(remaining)))))
}
