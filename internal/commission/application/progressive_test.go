package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fuel-commission/internal/commission/application"
	commission "fuel-commission/internal/commission/domain"
)

func TestProgressive_OpenPeriodTrendAndEstimate(t *testing.T) {
	period := commission.MustParsePeriod("2024-03")
	f := newFixture(t, time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC))
	for i := 0; i < 9; i++ {
		if i == 4 {
			continue
		}
		f.sales.add("station-1", period.Day(i), "100", "1250")
	}
	f.sales.add("station-1", period.Day(9), "300", "3750")

	proj, err := f.tracker.Project(context.Background(), "station-1", period)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if proj.ElapsedDays != 10 || proj.TotalDays != 31 || len(proj.Points) != 10 {
		t.Fatalf("unexpected shape: elapsed=%d total=%d points=%d", proj.ElapsedDays, proj.TotalDays, len(proj.Points))
	}
	if !proj.IsEstimate {
		t.Fatalf("projection must be flagged as estimate")
	}

	points := proj.Points
	if points[0].Trend != commission.TrendNeutral {
		t.Fatalf("first day trend should be neutral, got %s", points[0].Trend)
	}
	if points[4].HasData || !points[4].CommissionEarned.IsZero() || points[4].Trend != commission.TrendDown {
		t.Fatalf("unexpected gap day: %+v", points[4])
	}
	if points[5].Trend != commission.TrendUp {
		t.Fatalf("zero to positive should trend up, got %s", points[5].Trend)
	}
	if points[6].Trend != commission.TrendNeutral {
		t.Fatalf("flat day should be neutral, got %s", points[6].Trend)
	}
	if !points[9].IsToday || points[8].IsToday {
		t.Fatalf("is_today flag misplaced")
	}
	if !points[9].CommissionEarned.Equal(dec("15")) || points[9].Trend != commission.TrendUp {
		t.Fatalf("unexpected today point: %+v", points[9])
	}
	if !proj.CumulativeCommission.Equal(dec("55")) {
		t.Fatalf("expected cumulative 55, got %s", proj.CumulativeCommission)
	}
	if !points[9].CumulativeVolume.Equal(dec("1100")) {
		t.Fatalf("expected cumulative volume 1100, got %s", points[9].CumulativeVolume)
	}
	if !proj.EstimatedFinalCommission.Equal(dec("170.5")) {
		t.Fatalf("expected estimate 170.50, got %s", proj.EstimatedFinalCommission)
	}
}

func TestProgressive_ClosedPeriodSumsToBase(t *testing.T) {
	period := commission.MustParsePeriod("2024-03")
	f := newFixture(t, time.Date(2024, time.April, 5, 0, 0, 0, 0, time.UTC))
	volumes := []string{"1000", "1234.5", "987.654", "0", "2500.25"}
	total := decimal.Zero
	for i := 0; i < period.Days(); i++ {
		v := volumes[i%len(volumes)]
		f.sales.add("station-3", period.Day(i), v, "0")
		total = total.Add(dec(v))
	}

	proj, err := f.tracker.Project(context.Background(), "station-3", period)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(proj.Points) != period.Days() {
		t.Fatalf("expected %d points, got %d", period.Days(), len(proj.Points))
	}

	base := application.NewCalculator(nil).Calculate(application.CalculationInput{Volume: total, Rate: dec("0.06")}).Base
	sum := decimal.Zero
	for _, p := range proj.Points {
		sum = sum.Add(p.CommissionEarned)
	}
	tolerance := dec("0.005").Mul(decimal.NewFromInt(int64(period.Days())))
	if sum.Sub(base).Abs().GreaterThan(tolerance) {
		t.Fatalf("daily sum %s drifts from base %s beyond %s", sum, base, tolerance)
	}
	if !proj.EstimatedFinalCommission.Equal(proj.CumulativeCommission) {
		t.Fatalf("closed period estimate should equal cumulative: %s vs %s", proj.EstimatedFinalCommission, proj.CumulativeCommission)
	}
}

func TestProgressive_FuturePeriodHasNoPoints(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC))
	proj, err := f.tracker.Project(context.Background(), "station-1", commission.MustParsePeriod("2024-04"))
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(proj.Points) != 0 || !proj.EstimatedFinalCommission.IsZero() {
		t.Fatalf("expected empty projection, got %+v", proj)
	}
}

func TestProgressive_NoDataYieldsZeroPoints(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.March, 3, 8, 0, 0, 0, time.UTC))
	proj, err := f.tracker.Project(context.Background(), "station-2", commission.MustParsePeriod("2024-03"))
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(proj.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(proj.Points))
	}
	for _, p := range proj.Points {
		if p.HasData || !p.CommissionEarned.IsZero() {
			t.Fatalf("expected empty day, got %+v", p)
		}
	}
}

func TestProgressive_RateResolvedOnce(t *testing.T) {
	f := newFixture(t, time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC))
	f.seedDays(f.sales, "station-3", commission.MustParsePeriod("2024-03"), 20, "100")
	dir := &countingDirectory{Directory: f.directory}
	resolver, _ := application.NewRateResolver(dir)
	tracker, err := application.NewProgressiveTracker(resolver, f.agg, f.calc, application.WithProgressiveClock(f.clock))
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}
	if _, err := tracker.Project(context.Background(), "station-3", commission.MustParsePeriod("2024-03")); err != nil {
		t.Fatalf("project: %v", err)
	}
	if dir.stationCalls.Load() != 1 || dir.orgCalls.Load() != 1 {
		t.Fatalf("expected rate resolved once, got station=%d org=%d", dir.stationCalls.Load(), dir.orgCalls.Load())
	}
}
