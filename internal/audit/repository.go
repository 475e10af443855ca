package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultTable = "commission_audit_logs"

// Repository appends audit entries to commission_audit_logs.
type Repository struct {
	db    *sql.DB
	table string
}

func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db, table: defaultTable}
}

// Log validates the entry, fills ID, CreatedAt and PayloadDigest when
// missing, and inserts it.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
	metadata := entry.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, actor, role, omc_id, dealer_id, action, record_id, station_id, period,
	status, amount, metadata, payload_digest, ip, user_agent, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11, '')::numeric,$12,$13,$14,$15,$16
)`, r.table)
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Actor, entry.Role, entry.OMCID, entry.DealerID, string(entry.Action),
		entry.RecordID, entry.StationID, entry.Period, entry.Status, entry.Amount,
		[]byte(metadata), entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit %s: %w", entry.Action, err)
	}
	return nil
}
