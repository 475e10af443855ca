package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fuel-commission/internal/commission/application"
	commission "fuel-commission/internal/commission/domain"
)

func TestAggregator_TankStockFirstPrecedence(t *testing.T) {
	period := commission.MustParsePeriod("2024-03")
	sales := newFakeSource(commission.DataSourceSales)
	tank := newFakeSource(commission.DataSourceTankStock)
	sales.add("s1", period.Day(0), "1000", "12500")
	tank.add("s1", period.Day(0), "990", "0")

	agg, err := application.NewAggregator([]application.VolumeSource{sales, tank})
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}

	got, err := agg.Aggregate(context.Background(), "s1", period)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if got.DataSource != commission.DataSourceSales || !got.TotalVolume.Equal(dec("1000")) {
		t.Fatalf("expected sales preferred over unreconciled tank data, got %+v", got)
	}

	tank.authoritative = true
	got, err = agg.Aggregate(context.Background(), "s1", period)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if got.DataSource != commission.DataSourceTankStock || !got.TotalVolume.Equal(dec("990")) {
		t.Fatalf("expected reconciled tank data preferred, got %+v", got)
	}
}

func TestAggregator_FallsBackToUnreconciledTank(t *testing.T) {
	period := commission.MustParsePeriod("2024-03")
	sales := newFakeSource(commission.DataSourceSales)
	tank := newFakeSource(commission.DataSourceTankStock)
	tank.add("s1", period.Day(2), "480.1234", "0")

	agg, _ := application.NewAggregator([]application.VolumeSource{sales, tank})
	got, err := agg.Aggregate(context.Background(), "s1", period)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if got.DataSource != commission.DataSourceTankStock || !got.TotalVolume.Equal(dec("480.123")) {
		t.Fatalf("unexpected aggregate %+v", got)
	}
}

func TestAggregator_NoDataIsUpstreamUnavailable(t *testing.T) {
	period := commission.MustParsePeriod("2024-03")
	sales := newFakeSource(commission.DataSourceSales)
	sales.add("s1", period.Previous().Day(3), "1000", "0")

	agg, _ := application.NewAggregator([]application.VolumeSource{sales})
	_, err := agg.Aggregate(context.Background(), "s1", period)
	if !errors.Is(err, commission.ErrUpstreamDataUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}

func TestAggregator_ZeroVolumeDaysAreData(t *testing.T) {
	period := commission.MustParsePeriod("2024-03")
	sales := newFakeSource(commission.DataSourceSales)
	sales.add("s1", period.Day(0), "0", "0")

	agg, _ := application.NewAggregator([]application.VolumeSource{sales})
	got, err := agg.Aggregate(context.Background(), "s1", period)
	if err != nil {
		t.Fatalf("expected legitimate zero, got %v", err)
	}
	if !got.TotalVolume.IsZero() || len(got.Days) != 1 {
		t.Fatalf("unexpected aggregate %+v", got)
	}
}

func TestAggregator_SlowSourceTimesOutIndependently(t *testing.T) {
	period := commission.MustParsePeriod("2024-03")
	slow := newFakeSource(commission.DataSourceTankStock)
	slow.block = make(chan struct{})
	slow.add("s1", period.Day(0), "700", "0")
	sales := newFakeSource(commission.DataSourceSales)
	sales.add("s1", period.Day(0), "650", "8125")

	agg, _ := application.NewAggregator(
		[]application.VolumeSource{slow, sales},
		application.WithFetchTimeout(20*time.Millisecond),
	)
	got, err := agg.Aggregate(context.Background(), "s1", period)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if got.DataSource != commission.DataSourceSales || !got.TotalSales.Equal(dec("8125")) {
		t.Fatalf("expected sales after tank timeout, got %+v", got)
	}
}

func TestAggregator_CancelledContext(t *testing.T) {
	period := commission.MustParsePeriod("2024-03")
	sales := newFakeSource(commission.DataSourceSales)
	sales.block = make(chan struct{})

	agg, _ := application.NewAggregator([]application.VolumeSource{sales})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := agg.Aggregate(ctx, "s1", period); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestAggregator_FailedSourceJoinedIntoError(t *testing.T) {
	period := commission.MustParsePeriod("2024-03")
	broken := newFakeSource(commission.DataSourceSales)
	broken.err = errors.New("ledger offline")

	agg, _ := application.NewAggregator([]application.VolumeSource{broken})
	_, err := agg.Aggregate(context.Background(), "s1", period)
	if !errors.Is(err, commission.ErrUpstreamDataUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
	if !errors.Is(err, broken.err) {
		t.Fatalf("expected source error to be joined, got %v", err)
	}
}

func TestAggregator_SalesOnlyStrategy(t *testing.T) {
	period := commission.MustParsePeriod("2024-03")
	tank := newFakeSource(commission.DataSourceTankStock)
	tank.authoritative = true
	tank.add("s1", period.Day(0), "900", "0")

	strategy, err := application.ParseSourceStrategy("sales_only")
	if err != nil {
		t.Fatalf("parse strategy: %v", err)
	}
	agg, _ := application.NewAggregator([]application.VolumeSource{tank}, application.WithSourceStrategy(strategy))
	if _, err := agg.Aggregate(context.Background(), "s1", period); !errors.Is(err, commission.ErrUpstreamDataUnavailable) {
		t.Fatalf("expected sales-only strategy to ignore tank data, got %v", err)
	}
}

func TestTankSoldVolume(t *testing.T) {
	if got := application.TankSoldVolume(dec("5000"), dec("2000"), dec("4200")); !got.Equal(dec("2800")) {
		t.Fatalf("expected 2800, got %s", got)
	}
	if got := application.TankSoldVolume(dec("100"), dec("0"), dec("150")); !got.IsZero() {
		t.Fatalf("expected floor at zero, got %s", got)
	}
}
