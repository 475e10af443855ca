package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Action is an audited commission operation.
type Action string

const (
	ActionCalculate  Action = "commission.calculate"
	ActionOpenPeriod Action = "commission.open_period"
	ActionApprove    Action = "commission.approve"
	ActionPay        Action = "commission.pay"
	ActionCancel     Action = "commission.cancel"
	ActionExport     Action = "commission.export"
)

// Batch reports whether the action covers a period or a filter rather than
// one commission record.
func (a Action) Batch() bool {
	switch a {
	case ActionCalculate, ActionOpenPeriod, ActionExport:
		return true
	}
	return false
}

func (a Action) valid() bool {
	switch a {
	case ActionCalculate, ActionOpenPeriod, ActionApprove, ActionPay, ActionCancel, ActionExport:
		return true
	}
	return false
}

// Entry records who did what to which commission. RecordID, Status and
// Amount are set for single-record actions; batch actions carry their
// counts in Metadata.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	OMCID         string
	DealerID      string
	Action        Action
	RecordID      string
	StationID     string
	Period        string
	Status        string
	Amount        string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Validate rejects entries that could not be traced back to a record or
// an actor.
func (e Entry) Validate() error {
	switch {
	case !e.Action.valid():
		return errors.New("audit: unknown action " + string(e.Action))
	case e.Actor == "":
		return errors.New("audit: actor is required")
	case !e.Action.Batch() && e.RecordID == "":
		return errors.New("audit: " + string(e.Action) + " requires a record id")
	}
	return nil
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON is the hex SHA-256 of a metadata payload, empty for none.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
