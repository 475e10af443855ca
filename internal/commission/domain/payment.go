package commission

import (
	"fmt"
	"strings"
	"time"
)

// PaymentDetails is the caller-supplied payment data for markPaid.
type PaymentDetails struct {
	Method          string    `json:"payment_method"`
	ReferenceNumber string    `json:"reference_number"`
	PaymentDate     time.Time `json:"payment_date"`
	Notes           string    `json:"notes,omitempty"`
}

// Validate checks required payment fields.
func (d PaymentDetails) Validate() error {
	if strings.TrimSpace(d.ReferenceNumber) == "" {
		return fmt.Errorf("%w: reference_number required", ErrValidation)
	}
	if d.PaymentDate.IsZero() {
		return fmt.Errorf("%w: payment_date required", ErrValidation)
	}
	return nil
}

// PaymentRecord is the persisted payment attached to a paid commission.
type PaymentRecord struct {
	ID              string    `json:"id"`
	CommissionID    string    `json:"commission_id"`
	Method          string    `json:"payment_method"`
	ReferenceNumber string    `json:"reference_number"`
	PaymentDate     time.Time `json:"payment_date"`
	Notes           string    `json:"notes,omitempty"`
	RecordedBy      string    `json:"recorded_by"`
	CreatedAt       time.Time `json:"created_at"`
}
