package wiring

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fuel-commission/internal/commission/application"
	"fuel-commission/internal/config"
)

func TestBuildCalculator_UsesPolicyTiers(t *testing.T) {
	calc := BuildCalculator(config.Policy{BonusTiers: []config.BonusTierConfig{
		{MinVolume: 100000, Amount: 250},
		{MinVolume: 50000, Amount: 100},
	}})
	b := calc.Calculate(application.CalculationInput{
		Volume: decimal.NewFromInt(60000),
		Rate:   decimal.RequireFromString("0.05"),
	})
	if !b.Bonus.Equal(decimal.NewFromInt(100)) || !b.Total.Equal(decimal.NewFromInt(3100)) {
		t.Fatalf("unexpected breakdown: bonus=%s total=%s", b.Bonus, b.Total)
	}
}

func TestResolverOptions_RejectsUnknownMode(t *testing.T) {
	if _, err := ResolverOptions(config.Policy{RateMode: "tiered"}); err == nil {
		t.Fatalf("expected unknown rate mode error")
	}
}

func TestBuild_AssemblesServices(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	cfg := config.Config{
		ApprovalRequired: true,
		CalcMaxParallel:  2,
		FetchTimeout:     time.Second,
		Scheduler:        config.SchedulerConfig{Enabled: true, DailyAt: "01:00"},
		Policy:           config.Policy{SystemRate: 0.05, RateMode: "percentage", SourceStrategy: "sales_only"},
	}
	app, err := Build(sqlx.NewDb(db, "pgx"), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if app.Lifecycle == nil || app.Reader == nil || app.Handler == nil || app.Scheduler == nil || app.Cache == nil {
		t.Fatalf("missing component: %+v", app)
	}
	if !app.Lifecycle.ApprovalRequired() {
		t.Fatalf("expected approval flag to be carried")
	}
}
