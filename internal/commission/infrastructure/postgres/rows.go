package postgres

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	commission "fuel-commission/internal/commission/domain"
)

const recordColumns = `
	r.id, r.station_id, r.dealer_id, r.omc_id, r.period,
	r.total_volume, r.total_sales, r.commission_rate_applied, r.rate_source,
	r.base_commission_amount, r.windfall_amount, r.shortfall_amount, r.bonus_amount, r.total_commission,
	r.status, r.data_source, r.calculated_at,
	r.approved_by, r.approved_at, r.paid_by, r.paid_at, r.cancelled_by, r.cancelled_at,
	r.notes, r.is_current, r.superseded_by, r.correction_of, r.created_at, r.updated_at,
	p.id AS payment_id, p.payment_method, p.reference_number, p.payment_date,
	p.notes AS payment_notes, p.recorded_by, p.created_at AS payment_created_at`

type recordRow struct {
	ID              string          `db:"id"`
	StationID       string          `db:"station_id"`
	DealerID        string          `db:"dealer_id"`
	OMCID           string          `db:"omc_id"`
	Period          string          `db:"period"`
	TotalVolume     decimal.Decimal `db:"total_volume"`
	TotalSales      decimal.Decimal `db:"total_sales"`
	RateApplied     decimal.Decimal `db:"commission_rate_applied"`
	RateSource      string          `db:"rate_source"`
	BaseAmount      decimal.Decimal `db:"base_commission_amount"`
	WindfallAmount  decimal.Decimal `db:"windfall_amount"`
	ShortfallAmount decimal.Decimal `db:"shortfall_amount"`
	BonusAmount     decimal.Decimal `db:"bonus_amount"`
	TotalCommission decimal.Decimal `db:"total_commission"`
	Status          string          `db:"status"`
	DataSource      string          `db:"data_source"`
	CalculatedAt    sql.NullTime    `db:"calculated_at"`
	ApprovedBy      string          `db:"approved_by"`
	ApprovedAt      sql.NullTime    `db:"approved_at"`
	PaidBy          string          `db:"paid_by"`
	PaidAt          sql.NullTime    `db:"paid_at"`
	CancelledBy     string          `db:"cancelled_by"`
	CancelledAt     sql.NullTime    `db:"cancelled_at"`
	Notes           string          `db:"notes"`
	IsCurrent       bool            `db:"is_current"`
	SupersededBy    sql.NullString  `db:"superseded_by"`
	CorrectionOf    sql.NullString  `db:"correction_of"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`

	PaymentID        sql.NullString `db:"payment_id"`
	PaymentMethod    sql.NullString `db:"payment_method"`
	ReferenceNumber  sql.NullString `db:"reference_number"`
	PaymentDate      sql.NullTime   `db:"payment_date"`
	PaymentNotes     sql.NullString `db:"payment_notes"`
	RecordedBy       sql.NullString `db:"recorded_by"`
	PaymentCreatedAt sql.NullTime   `db:"payment_created_at"`
}

func (row recordRow) toDomain() (*commission.Record, error) {
	period, err := commission.ParsePeriod(row.Period)
	if err != nil {
		return nil, err
	}
	rec := &commission.Record{
		ID:              row.ID,
		StationID:       row.StationID,
		DealerID:        row.DealerID,
		OMCID:           row.OMCID,
		Period:          period,
		TotalVolume:     row.TotalVolume,
		TotalSales:      row.TotalSales,
		RateApplied:     row.RateApplied,
		RateSource:      commission.RateSource(row.RateSource),
		BaseAmount:      row.BaseAmount,
		WindfallAmount:  row.WindfallAmount,
		ShortfallAmount: row.ShortfallAmount,
		BonusAmount:     row.BonusAmount,
		TotalCommission: row.TotalCommission,
		Status:          commission.Status(row.Status),
		DataSource:      commission.DataSource(row.DataSource),
		CalculatedAt:    nullTime(row.CalculatedAt),
		ApprovedBy:      row.ApprovedBy,
		ApprovedAt:      nullTimePtr(row.ApprovedAt),
		PaidBy:          row.PaidBy,
		PaidAt:          nullTimePtr(row.PaidAt),
		CancelledBy:     row.CancelledBy,
		CancelledAt:     nullTimePtr(row.CancelledAt),
		Notes:           row.Notes,
		IsCurrent:       row.IsCurrent,
		SupersededBy:    row.SupersededBy.String,
		CorrectionOf:    row.CorrectionOf.String,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	if row.PaymentID.Valid {
		rec.Payment = &commission.PaymentRecord{
			ID:              row.PaymentID.String,
			CommissionID:    row.ID,
			Method:          row.PaymentMethod.String,
			ReferenceNumber: row.ReferenceNumber.String,
			PaymentDate:     nullTime(row.PaymentDate),
			Notes:           row.PaymentNotes.String,
			RecordedBy:      row.RecordedBy.String,
			CreatedAt:       nullTime(row.PaymentCreatedAt),
		}
	}
	return rec, nil
}

type totalRow struct {
	Period          string          `db:"period"`
	Status          string          `db:"status"`
	Count           int             `db:"count"`
	TotalCommission decimal.Decimal `db:"total_commission"`
	TotalVolume     decimal.Decimal `db:"total_volume"`
}

func nullTime(v sql.NullTime) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return v.Time.UTC()
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func stringArg(s string) any {
	if s == "" {
		return nil
	}
	return s
}
