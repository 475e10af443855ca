package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"fuel-commission/internal/commission/application"
	commission "fuel-commission/internal/commission/domain"
)

const defaultSalesTable = "sales_transactions"

// SalesLedger reads completed sales transactions grouped per day.
type SalesLedger struct {
	db    *sqlx.DB
	table string
}

// NewSalesLedger constructs a sales volume source.
func NewSalesLedger(db *sqlx.DB, table string) (*SalesLedger, error) {
	if db == nil {
		return nil, errors.New("sales ledger: nil db")
	}
	if table == "" {
		table = defaultSalesTable
	}
	return &SalesLedger{db: db, table: table}, nil
}

// Name implements application.VolumeSource.
func (l *SalesLedger) Name() commission.DataSource { return commission.DataSourceSales }

type salesDayRow struct {
	Day    time.Time       `db:"day"`
	Volume decimal.Decimal `db:"volume"`
	Amount decimal.Decimal `db:"amount"`
}

// DailyVolumes implements application.VolumeSource.
func (l *SalesLedger) DailyVolumes(ctx context.Context, stationID string, from, to time.Time) (application.SourceResult, error) {
	query := fmt.Sprintf(`
SELECT date_trunc('day', transaction_time AT TIME ZONE 'UTC') AS day,
	COALESCE(SUM(volume_litres), 0) AS volume,
	COALESCE(SUM(amount), 0) AS amount
FROM %s
WHERE station_id = $1
	AND transaction_time >= $2
	AND transaction_time < $3
	AND status = 'completed'
GROUP BY 1
ORDER BY 1`, l.table)
	var rows []salesDayRow
	if err := l.db.SelectContext(ctx, &rows, query, stationID, from, to); err != nil {
		return application.SourceResult{}, err
	}
	days := make([]application.DailyVolume, 0, len(rows))
	for _, row := range rows {
		days = append(days, application.DailyVolume{
			Date:   row.Day.UTC(),
			Volume: row.Volume,
			Sales:  row.Amount,
		})
	}
	// Sales receipts are never a physical reconciliation.
	return application.SourceResult{Source: commission.DataSourceSales, Days: days}, nil
}
