package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	commission "fuel-commission/internal/commission/domain"
)

// CommissionCalculated is emitted after a record is stored as calculated.
type CommissionCalculated struct {
	RecordID        string
	StationID       string
	Period          commission.Period
	TotalCommission decimal.Decimal
	DataSource      commission.DataSource
	Correction      bool
	OccurredAt      time.Time
}

// CommissionPublisher emits commission events.
type CommissionPublisher interface {
	PublishCommissionCalculated(ctx context.Context, event CommissionCalculated) error
}
