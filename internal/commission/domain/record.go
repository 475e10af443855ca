package commission

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Key identifies the current record slot for a station and period.
type Key struct {
	StationID string
	Period    Period
}

// String returns "station|YYYY-MM".
func (k Key) String() string { return k.StationID + "|" + k.Period.String() }

// Record is a commission entitlement for one station and period.
type Record struct {
	ID              string          `json:"id"`
	StationID       string          `json:"station_id"`
	DealerID        string          `json:"dealer_id"`
	OMCID           string          `json:"omc_id"`
	Period          Period          `json:"period"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
	TotalSales      decimal.Decimal `json:"total_sales"`
	RateApplied     decimal.Decimal `json:"commission_rate_applied"`
	RateSource      RateSource      `json:"rate_source,omitempty"`
	BaseAmount      decimal.Decimal `json:"base_commission_amount"`
	WindfallAmount  decimal.Decimal `json:"windfall_amount"`
	ShortfallAmount decimal.Decimal `json:"shortfall_amount"`
	BonusAmount     decimal.Decimal `json:"bonus_amount"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	Status          Status          `json:"status"`
	DataSource      DataSource      `json:"data_source,omitempty"`
	CalculatedAt    time.Time       `json:"calculated_at"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	PaidBy          string          `json:"paid_by,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CancelledBy     string          `json:"cancelled_by,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	IsCurrent       bool            `json:"is_current"`
	SupersededBy    string          `json:"superseded_by,omitempty"`
	CorrectionOf    string          `json:"correction_of,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Payment         *PaymentRecord  `json:"payment,omitempty"`
}

// Key returns the station/period key.
func (r *Record) Key() Key { return Key{StationID: r.StationID, Period: r.Period} }

// ApplyBreakdown copies calculator output onto the record.
func (r *Record) ApplyBreakdown(b Breakdown) {
	r.TotalVolume = b.Volume
	r.TotalSales = b.Sales
	r.RateApplied = b.Rate
	r.BaseAmount = b.Base
	r.WindfallAmount = b.Windfall
	r.ShortfallAmount = b.Shortfall
	r.BonusAmount = b.Bonus
	r.TotalCommission = b.Total
}

// CanRecalculate reports whether a calculation pass may replace this record.
// Paid records are only replaced by an explicit correction.
func (r *Record) CanRecalculate(correction bool) error {
	switch r.Status {
	case StatusPending, StatusCalculated, StatusCancelled:
		return nil
	case StatusPaid:
		if correction {
			return nil
		}
		return fmt.Errorf("%w: record %s is paid; submit a correction", ErrInvalidStateTransition, r.ID)
	case StatusApproved:
		return fmt.Errorf("%w: record %s is approved; cancel it before recalculating", ErrInvalidStateTransition, r.ID)
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStateTransition, r.Status)
	}
}

// Approve moves a calculated record to approved.
func (r *Record) Approve(actor string, at time.Time) error {
	if err := r.transition(StatusApproved, true); err != nil {
		return err
	}
	r.ApprovedBy = actor
	r.ApprovedAt = timePtr(at)
	r.UpdatedAt = at
	return nil
}

// MarkPaid moves the record to paid and builds the payment record.
func (r *Record) MarkPaid(actor string, details PaymentDetails, paymentID string, at time.Time, approvalRequired bool) (PaymentRecord, error) {
	if err := details.Validate(); err != nil {
		return PaymentRecord{}, err
	}
	if err := r.transition(StatusPaid, approvalRequired); err != nil {
		return PaymentRecord{}, err
	}
	r.PaidBy = actor
	r.PaidAt = timePtr(at)
	r.UpdatedAt = at
	payment := PaymentRecord{
		ID:              paymentID,
		CommissionID:    r.ID,
		Method:          details.Method,
		ReferenceNumber: details.ReferenceNumber,
		PaymentDate:     details.PaymentDate.UTC(),
		Notes:           details.Notes,
		RecordedBy:      actor,
		CreatedAt:       at,
	}
	r.Payment = &payment
	return payment, nil
}

// Cancel moves a non-terminal record to cancelled.
func (r *Record) Cancel(actor, reason string, at time.Time) error {
	if err := r.transition(StatusCancelled, true); err != nil {
		return err
	}
	r.CancelledBy = actor
	r.CancelledAt = timePtr(at)
	if reason != "" {
		r.Notes = reason
	}
	r.UpdatedAt = at
	return nil
}

func (r *Record) transition(to Status, approvalRequired bool) error {
	if !r.IsCurrent {
		return fmt.Errorf("%w: record %s has been superseded", ErrInvalidStateTransition, r.ID)
	}
	if !CanTransition(r.Status, to, approvalRequired) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, r.Status, to)
	}
	r.Status = to
	return nil
}

// Clone returns a detached copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	copy := *r
	copy.ApprovedAt = cloneTime(r.ApprovedAt)
	copy.PaidAt = cloneTime(r.PaidAt)
	copy.CancelledAt = cloneTime(r.CancelledAt)
	if r.Payment != nil {
		payment := *r.Payment
		copy.Payment = &payment
	}
	return &copy
}

func timePtr(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
