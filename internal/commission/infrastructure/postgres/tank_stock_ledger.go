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

const defaultTankStockTable = "tank_stock_reconciliations"

// TankStockLedger derives sold volume from per-tank daily stock entries.
type TankStockLedger struct {
	db    *sqlx.DB
	table string
}

// NewTankStockLedger constructs a tank-stock volume source.
func NewTankStockLedger(db *sqlx.DB, table string) (*TankStockLedger, error) {
	if db == nil {
		return nil, errors.New("tank stock ledger: nil db")
	}
	if table == "" {
		table = defaultTankStockTable
	}
	return &TankStockLedger{db: db, table: table}, nil
}

// Name implements application.VolumeSource.
func (l *TankStockLedger) Name() commission.DataSource { return commission.DataSourceTankStock }

type tankStockRow struct {
	TankID     string              `db:"tank_id"`
	StockDate  time.Time           `db:"stock_date"`
	Opening    decimal.Decimal     `db:"opening_volume"`
	Delivered  decimal.Decimal     `db:"delivered_volume"`
	Closing    decimal.Decimal     `db:"closing_volume"`
	UnitPrice  decimal.NullDecimal `db:"unit_price"`
	Reconciled bool                `db:"reconciled"`
}

// DailyVolumes implements application.VolumeSource. The result is
// authoritative only when every tank entry in range is reconciled.
func (l *TankStockLedger) DailyVolumes(ctx context.Context, stationID string, from, to time.Time) (application.SourceResult, error) {
	query := fmt.Sprintf(`
SELECT tank_id, stock_date, opening_volume, delivered_volume, closing_volume, unit_price, reconciled
FROM %s
WHERE station_id = $1
	AND stock_date >= $2
	AND stock_date < $3
ORDER BY stock_date, tank_id`, l.table)
	var rows []tankStockRow
	if err := l.db.SelectContext(ctx, &rows, query, stationID, from, to); err != nil {
		return application.SourceResult{}, err
	}

	result := application.SourceResult{Source: commission.DataSourceTankStock, Authoritative: len(rows) > 0}
	index := make(map[time.Time]int)
	for _, row := range rows {
		if !row.Reconciled {
			result.Authoritative = false
		}
		day := row.StockDate.UTC().Truncate(24 * time.Hour)
		sold := application.TankSoldVolume(row.Opening, row.Delivered, row.Closing)
		sales := decimal.Zero
		if row.UnitPrice.Valid {
			sales = sold.Mul(row.UnitPrice.Decimal)
		}
		i, ok := index[day]
		if !ok {
			index[day] = len(result.Days)
			result.Days = append(result.Days, application.DailyVolume{Date: day, Volume: sold, Sales: sales})
			continue
		}
		result.Days[i].Volume = result.Days[i].Volume.Add(sold)
		result.Days[i].Sales = result.Days[i].Sales.Add(sales)
	}
	return result, nil
}
