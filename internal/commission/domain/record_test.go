package commission

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCanTransition_LegalGraph(t *testing.T) {
	all := []Status{StatusPending, StatusCalculated, StatusApproved, StatusPaid, StatusCancelled}
	legal := map[[2]Status]bool{
		{StatusPending, StatusCalculated}:   true,
		{StatusCalculated, StatusApproved}:  true,
		{StatusApproved, StatusPaid}:        true,
		{StatusPending, StatusCancelled}:    true,
		{StatusCalculated, StatusCancelled}: true,
		{StatusApproved, StatusCancelled}:   true,
	}
	for _, from := range all {
		for _, to := range all {
			got := CanTransition(from, to, true)
			if got != legal[[2]Status{from, to}] {
				t.Fatalf("transition %s -> %s: got %v", from, to, got)
			}
		}
	}
}

func TestCanTransition_ApprovalOptional(t *testing.T) {
	if !CanTransition(StatusCalculated, StatusPaid, false) {
		t.Fatalf("expected calculated -> paid when approval optional")
	}
	if CanTransition(StatusCalculated, StatusPaid, true) {
		t.Fatalf("expected calculated -> paid rejected when approval required")
	}
	if CanTransition(StatusPending, StatusPaid, false) {
		t.Fatalf("pending -> paid must stay illegal")
	}
}

func TestRecord_ApproveThenPay(t *testing.T) {
	now := time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC)
	rec := newCalculatedRecord()

	if err := rec.Approve("omc-user", now); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if rec.Status != StatusApproved || rec.ApprovedBy != "omc-user" || rec.ApprovedAt == nil {
		t.Fatalf("approve did not set fields: %+v", rec)
	}

	payment, err := rec.MarkPaid("omc-user", PaymentDetails{
		Method:          "bank_transfer",
		ReferenceNumber: "COMM-0001",
		PaymentDate:     time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
	}, "pay-1", now, true)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if rec.Status != StatusPaid || rec.PaidAt == nil || rec.PaidBy != "omc-user" {
		t.Fatalf("mark paid did not set fields: %+v", rec)
	}
	if payment.CommissionID != rec.ID || payment.ReferenceNumber != "COMM-0001" {
		t.Fatalf("payment mismatch: %+v", payment)
	}

	if err := rec.Cancel("omc-user", "late", now); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition on cancel after paid, got %v", err)
	}
	if err := rec.CanRecalculate(false); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected paid record to reject recalculation, got %v", err)
	}
	if err := rec.CanRecalculate(true); err != nil {
		t.Fatalf("expected correction to be allowed, got %v", err)
	}
}

func TestRecord_MarkPaidRequiresReferenceAndDate(t *testing.T) {
	now := time.Now().UTC()
	rec := newCalculatedRecord()
	_, err := rec.MarkPaid("admin", PaymentDetails{PaymentDate: now}, "pay-1", now, false)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for missing reference, got %v", err)
	}
	_, err = rec.MarkPaid("admin", PaymentDetails{ReferenceNumber: "COMM-0001"}, "pay-1", now, false)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for missing date, got %v", err)
	}
	if rec.Status != StatusCalculated {
		t.Fatalf("status changed on failed validation: %s", rec.Status)
	}
}

func TestRecord_SupersededRejectsActions(t *testing.T) {
	rec := newCalculatedRecord()
	rec.IsCurrent = false
	if err := rec.Approve("admin", time.Now()); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected superseded record to reject approve, got %v", err)
	}
}

func TestRecord_ApprovedCannotBeRecalculated(t *testing.T) {
	rec := newCalculatedRecord()
	rec.Status = StatusApproved
	if err := rec.CanRecalculate(true); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected approved record to reject recalculation, got %v", err)
	}
}

func TestTotalOf_FloorsAtZero(t *testing.T) {
	got := TotalOf(decimal.NewFromInt(100), decimal.Zero, decimal.NewFromInt(250), decimal.NewFromInt(10))
	if !got.IsZero() {
		t.Fatalf("expected zero total, got %s", got)
	}
	got = TotalOf(decimal.RequireFromString("500.004"), decimal.RequireFromString("1.001"), decimal.Zero, decimal.Zero)
	if !got.Equal(decimal.RequireFromString("501.01")) {
		t.Fatalf("expected 501.01, got %s", got)
	}
}

func newCalculatedRecord() *Record {
	return &Record{
		ID:              "rec-1",
		StationID:       "station-1",
		DealerID:        "dealer-1",
		OMCID:           "omc-1",
		Period:          MustParsePeriod("2024-03"),
		Status:          StatusCalculated,
		IsCurrent:       true,
		TotalCommission: decimal.NewFromInt(500),
	}
}
