package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	commission "fuel-commission/internal/commission/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "pgx"), mock
}

func TestSalesLedger_GroupsPerDay(t *testing.T) {
	db, mock := newMockDB(t)
	ledger, err := NewSalesLedger(db, "")
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery(regexp.QuoteMeta("FROM sales_transactions")).
		WithArgs("station-1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"day", "volume", "amount"}).
			AddRow(from, "1200.500", "18007.50").
			AddRow(from.AddDate(0, 0, 1), "800", "12000"))

	res, err := ledger.DailyVolumes(context.Background(), "station-1", from, to)
	if err != nil {
		t.Fatalf("daily volumes: %v", err)
	}
	if res.Source != commission.DataSourceSales || res.Authoritative {
		t.Fatalf("unexpected source flags: %+v", res)
	}
	if len(res.Days) != 2 || !res.Days[0].Volume.Equal(decimal.RequireFromString("1200.5")) {
		t.Fatalf("unexpected days: %+v", res.Days)
	}
}

func TestTankStockLedger_SumsTanksAndTracksReconciliation(t *testing.T) {
	db, mock := newMockDB(t)
	ledger, err := NewTankStockLedger(db, "")
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	day := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	cols := []string{"tank_id", "stock_date", "opening_volume", "delivered_volume", "closing_volume", "unit_price", "reconciled"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM tank_stock_reconciliations")).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("tank-a", day, "5000", "1000", "4000", "15.00", true).
			AddRow("tank-b", day, "3000", "0", "2500", nil, true).
			AddRow("tank-a", day.AddDate(0, 0, 1), "4000", "0", "4100", nil, false))

	res, err := ledger.DailyVolumes(context.Background(), "station-1", day, day.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("daily volumes: %v", err)
	}
	if res.Authoritative {
		t.Fatalf("expected unreconciled entry to clear authoritative flag")
	}
	if len(res.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(res.Days))
	}
	if !res.Days[0].Volume.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("expected 2500 litres on day one, got %s", res.Days[0].Volume)
	}
	if !res.Days[0].Sales.Equal(decimal.NewFromInt(30000)) {
		t.Fatalf("expected priced sales only for tank-a, got %s", res.Days[0].Sales)
	}
	if !res.Days[1].Volume.IsZero() {
		t.Fatalf("negative sold volume must floor at zero, got %s", res.Days[1].Volume)
	}
}

func TestTankStockLedger_EmptyIsNotAuthoritative(t *testing.T) {
	db, mock := newMockDB(t)
	ledger, _ := NewTankStockLedger(db, "")
	mock.ExpectQuery(regexp.QuoteMeta("FROM tank_stock_reconciliations")).
		WillReturnRows(sqlmock.NewRows([]string{"tank_id", "stock_date", "opening_volume", "delivered_volume", "closing_volume", "unit_price", "reconciled"}))

	res, err := ledger.DailyVolumes(context.Background(), "station-1", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("daily volumes: %v", err)
	}
	if res.HasData() || res.Authoritative {
		t.Fatalf("expected empty non-authoritative result: %+v", res)
	}
}

func TestPriceCapReader_MissingRowIsNil(t *testing.T) {
	db, mock := newMockDB(t)
	reader, _ := NewPriceCapReader(db, "")
	mock.ExpectQuery(regexp.QuoteMeta("FROM station_price_caps")).
		WithArgs("station-1", "2024-03").
		WillReturnRows(sqlmock.NewRows([]string{"price_cap", "selling_price", "expected_margin"}))

	margin, err := reader.CapMargin(context.Background(), "station-1", commission.MustParsePeriod("2024-03"))
	if err != nil || margin != nil {
		t.Fatalf("expected nil margin, got %+v %v", margin, err)
	}
}
