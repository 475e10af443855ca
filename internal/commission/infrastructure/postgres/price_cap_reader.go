package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"fuel-commission/internal/commission/application"
	commission "fuel-commission/internal/commission/domain"
)

const defaultPriceCapTable = "station_price_caps"

// PriceCapReader loads the regulated price-cap spread per station and period.
type PriceCapReader struct {
	db    *sqlx.DB
	table string
}

// NewPriceCapReader constructs a price-cap reader.
func NewPriceCapReader(db *sqlx.DB, table string) (*PriceCapReader, error) {
	if db == nil {
		return nil, errors.New("price cap reader: nil db")
	}
	if table == "" {
		table = defaultPriceCapTable
	}
	return &PriceCapReader{db: db, table: table}, nil
}

type priceCapRow struct {
	PriceCap       decimal.Decimal `db:"price_cap"`
	SellingPrice   decimal.Decimal `db:"selling_price"`
	ExpectedMargin decimal.Decimal `db:"expected_margin"`
}

// CapMargin implements application.PriceCapReader. Missing rows yield nil.
func (r *PriceCapReader) CapMargin(ctx context.Context, stationID string, period commission.Period) (*application.CapMargin, error) {
	query := fmt.Sprintf(`
SELECT price_cap, selling_price, expected_margin
FROM %s
WHERE station_id = $1 AND period = $2
LIMIT 1`, r.table)
	var row priceCapRow
	if err := r.db.GetContext(ctx, &row, query, stationID, period.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &application.CapMargin{
		PriceCap:       row.PriceCap,
		SellingPrice:   row.SellingPrice,
		ExpectedMargin: row.ExpectedMargin,
	}, nil
}
