package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fuel-commission/internal/commission/application"
	commission "fuel-commission/internal/commission/domain"
)

func TestScheduler_FirstOfMonthClosesAndOpens(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.April, 1, 2, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.seedDays(f.sales, "station-1", march, 31, "100")

	application.NewScheduler(f.lifecycle, "02:00", zerolog.Nop()).RunOnce(ctx, now)

	closed, _ := f.repo.FindCurrent(ctx, commission.Key{StationID: "station-1", Period: march})
	if closed == nil || closed.Status != commission.StatusCalculated || !closed.TotalVolume.Equal(dec("3100")) {
		t.Fatalf("expected previous period calculated, got %+v", closed)
	}
	april := commission.MustParsePeriod("2024-04")
	for _, id := range []string{"station-1", "station-2", "station-3"} {
		rec, _ := f.repo.FindCurrent(ctx, commission.Key{StationID: id, Period: april})
		if rec == nil || rec.Status != commission.StatusPending {
			t.Fatalf("%s: expected pending placeholder, got %+v", id, rec)
		}
	}
}

func TestScheduler_MidMonthRecalculatesOpenPeriod(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 15, 2, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	f.seedDays(f.sales, "station-2", march, 14, "100")

	application.NewScheduler(f.lifecycle, "02:00", zerolog.Nop()).RunOnce(ctx, now)

	rec, _ := f.repo.FindCurrent(ctx, commission.Key{StationID: "station-2", Period: march})
	if rec == nil || !rec.TotalVolume.Equal(dec("1400")) {
		t.Fatalf("expected open period recalculated, got %+v", rec)
	}
	if other, _ := f.repo.FindCurrent(ctx, commission.Key{StationID: "station-1", Period: march}); other != nil {
		t.Fatalf("station without data must not get a record, got %+v", other)
	}
}
