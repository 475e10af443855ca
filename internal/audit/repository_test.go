package audit

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRepository_LogFillsDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	metadata := []byte(`{"reference_number":"COMM-0001"}`)
	mock.ExpectExec("INSERT INTO commission_audit_logs").
		WithArgs(sqlmock.AnyArg(), "omc-user", "omc", "omc-1", "dealer-1", "commission.pay", "rec-1", "station-1", "2024-03",
			"paid", "500.00", metadata, DigestJSON(metadata), "10.0.0.1", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRepository(db)
	err = repo.Log(context.Background(), Entry{
		Actor:     "omc-user",
		Role:      "omc",
		OMCID:     "omc-1",
		DealerID:  "dealer-1",
		Action:    ActionPay,
		RecordID:  "rec-1",
		StationID: "station-1",
		Period:    "2024-03",
		Status:    "paid",
		Amount:    "500.00",
		Metadata:  metadata,
		IP:        "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRepository_LogRejectsInvalidEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewRepository(db)

	cases := []struct {
		name  string
		entry Entry
		want  string
	}{
		{name: "unknown action", entry: Entry{Actor: "admin", Action: "commission.delete", RecordID: "rec-1"}, want: "unknown action"},
		{name: "missing actor", entry: Entry{Action: ActionCalculate}, want: "actor is required"},
		{name: "approve without record", entry: Entry{Actor: "admin", Action: ActionApprove}, want: "requires a record id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := repo.Log(context.Background(), tc.entry)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q, got %v", tc.want, err)
			}
		})
	}
	// nothing reached the database
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAction_Batch(t *testing.T) {
	for _, a := range []Action{ActionCalculate, ActionOpenPeriod, ActionExport} {
		if !a.Batch() {
			t.Fatalf("%s should be a batch action", a)
		}
	}
	for _, a := range []Action{ActionApprove, ActionPay, ActionCancel} {
		if a.Batch() {
			t.Fatalf("%s should target one record", a)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected forwarded ip, got %s", got)
	}
	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:4567"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Fatalf("expected remote host, got %s", got)
	}
}
