package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	commission "fuel-commission/internal/commission/domain"
)

const (
	defaultRecordsTable  = "commission_records"
	defaultPaymentsTable = "commission_payments"

	uniqueViolation = "23505"
)

// Repository is a Postgres implementation of commission.Repository.
type Repository struct {
	db       *sqlx.DB
	records  string
	payments string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithRecordsTable overrides the records table name.
func WithRecordsTable(table string) RepositoryOption {
	return func(r *Repository) {
		if table != "" {
			r.records = table
		}
	}
}

// WithPaymentsTable overrides the payments table name.
func WithPaymentsTable(table string) RepositoryOption {
	return func(r *Repository) {
		if table != "" {
			r.payments = table
		}
	}
}

// NewRepository constructs a repository.
func NewRepository(db *sqlx.DB, opts ...RepositoryOption) (*Repository, error) {
	if db == nil {
		return nil, errors.New("commission repo: nil db")
	}
	repo := &Repository{db: db, records: defaultRecordsTable, payments: defaultPaymentsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

func (r *Repository) selectFrom() string {
	return fmt.Sprintf("SELECT %s\nFROM %s r\nLEFT JOIN %s p ON p.commission_id = r.id", recordColumns, r.records, r.payments)
}

// Get loads a record by id.
func (r *Repository) Get(ctx context.Context, id string) (*commission.Record, error) {
	return r.getOne(ctx, r.selectFrom()+"\nWHERE r.id = $1\nLIMIT 1", id)
}

// FindCurrent loads the current record for a key.
func (r *Repository) FindCurrent(ctx context.Context, key commission.Key) (*commission.Record, error) {
	return r.getOne(ctx, r.selectFrom()+"\nWHERE r.station_id = $1 AND r.period = $2 AND r.is_current\nLIMIT 1", key.StationID, key.Period.String())
}

func (r *Repository) getOne(ctx context.Context, query string, args ...any) (*commission.Record, error) {
	var row recordRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain()
}

// SaveCalculated supersedes previous and inserts record in one transaction.
// previous must still be current and in the status it was read with.
func (r *Repository) SaveCalculated(ctx context.Context, record *commission.Record, previous *commission.Record) error {
	if record == nil {
		return commission.ErrNilRecord
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if previous != nil {
		query := fmt.Sprintf(`
UPDATE %s
SET is_current = FALSE, superseded_by = $2, updated_at = $3
WHERE id = $1 AND status = $4 AND is_current`, r.records)
		res, err := tx.ExecContext(ctx, query, previous.ID, record.ID, record.CreatedAt, string(previous.Status))
		if err != nil {
			return err
		}
		if err := expectOneRow(res, fmt.Errorf("%w: record %s changed since it was read", commission.ErrConcurrencyConflict, previous.ID)); err != nil {
			return err
		}
	}
	if err := r.insert(ctx, tx, record); err != nil {
		return err
	}
	return tx.Commit()
}

// CreatePending inserts a pending placeholder.
func (r *Repository) CreatePending(ctx context.Context, record *commission.Record) error {
	if record == nil {
		return commission.ErrNilRecord
	}
	return r.insert(ctx, r.db, record)
}

func (r *Repository) insert(ctx context.Context, exec sqlx.ExecerContext, rec *commission.Record) error {
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, station_id, dealer_id, omc_id, period,
	total_volume, total_sales, commission_rate_applied, rate_source,
	base_commission_amount, windfall_amount, shortfall_amount, bonus_amount, total_commission,
	status, data_source, calculated_at, notes, is_current, correction_of, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
)`, r.records)
	var calculatedAt any
	if !rec.CalculatedAt.IsZero() {
		calculatedAt = rec.CalculatedAt
	}
	_, err := exec.ExecContext(ctx, query,
		rec.ID, rec.StationID, rec.DealerID, rec.OMCID, rec.Period.String(),
		rec.TotalVolume, rec.TotalSales, rec.RateApplied, string(rec.RateSource),
		rec.BaseAmount, rec.WindfallAmount, rec.ShortfallAmount, rec.BonusAmount, rec.TotalCommission,
		string(rec.Status), string(rec.DataSource), calculatedAt, rec.Notes, rec.IsCurrent, stringArg(rec.CorrectionOf),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s already has a current record", commission.ErrConcurrencyConflict, rec.Key())
	}
	return err
}

// UpdateStatus applies a compare-and-set status change.
func (r *Repository) UpdateStatus(ctx context.Context, record *commission.Record, from commission.Status) error {
	if record == nil {
		return commission.ErrNilRecord
	}
	return r.updateStatus(ctx, r.db, record, from)
}

func (r *Repository) updateStatus(ctx context.Context, exec sqlx.ExecerContext, rec *commission.Record, from commission.Status) error {
	query := fmt.Sprintf(`
UPDATE %s
SET status = $2,
	approved_by = $3, approved_at = $4,
	paid_by = $5, paid_at = $6,
	cancelled_by = $7, cancelled_at = $8,
	notes = $9, updated_at = $10
WHERE id = $1 AND status = $11 AND is_current`, r.records)
	res, err := exec.ExecContext(ctx, query,
		rec.ID, string(rec.Status),
		rec.ApprovedBy, timeArg(rec.ApprovedAt),
		rec.PaidBy, timeArg(rec.PaidAt),
		rec.CancelledBy, timeArg(rec.CancelledAt),
		rec.Notes, rec.UpdatedAt, string(from),
	)
	if err != nil {
		return err
	}
	return expectOneRow(res, fmt.Errorf("%w: commission %s changed concurrently", commission.ErrInvalidStateTransition, rec.ID))
}

// RecordPayment marks the record paid and inserts its payment atomically.
func (r *Repository) RecordPayment(ctx context.Context, record *commission.Record, payment commission.PaymentRecord, from commission.Status) error {
	if record == nil {
		return commission.ErrNilRecord
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.updateStatus(ctx, tx, record, from); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, commission_id, payment_method, reference_number, payment_date, notes, recorded_by, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, r.payments)
	if _, err := tx.ExecContext(ctx, query,
		payment.ID, payment.CommissionID, payment.Method, payment.ReferenceNumber,
		payment.PaymentDate, payment.Notes, payment.RecordedBy, payment.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: commission %s already has a payment", commission.ErrInvalidStateTransition, record.ID)
		}
		return err
	}
	return tx.Commit()
}

// List returns current records matching scope and filter.
func (r *Repository) List(ctx context.Context, scope commission.Scope, filter commission.Filter, page commission.Page) ([]commission.Record, int, error) {
	page = page.Normalize()
	where, args, ok := buildWhere(scope, filter)
	if !ok {
		return nil, 0, nil
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s r WHERE %s", r.records, where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := fmt.Sprintf("%s\nWHERE %s\nORDER BY r.period DESC, r.station_id ASC\nLIMIT $%d OFFSET $%d",
		r.selectFrom(), where, len(args)+1, len(args)+2)
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, append(args, page.Size, page.Offset())...); err != nil {
		return nil, 0, err
	}
	items := make([]commission.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *rec)
	}
	return items, total, nil
}

// Totals aggregates current records by period and status.
func (r *Repository) Totals(ctx context.Context, scope commission.Scope, filter commission.Filter) ([]commission.StatusTotal, error) {
	where, args, ok := buildWhere(scope, filter)
	if !ok {
		return nil, nil
	}
	query := fmt.Sprintf(`
SELECT r.period, r.status, COUNT(*) AS count,
	COALESCE(SUM(r.total_commission), 0) AS total_commission,
	COALESCE(SUM(r.total_volume), 0) AS total_volume
FROM %s r
WHERE %s
GROUP BY r.period, r.status
ORDER BY r.period, r.status`, r.records, where)
	var rows []totalRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]commission.StatusTotal, 0, len(rows))
	for _, row := range rows {
		period, err := commission.ParsePeriod(row.Period)
		if err != nil {
			return nil, err
		}
		out = append(out, commission.StatusTotal{
			Period:          period,
			Status:          commission.Status(row.Status),
			Count:           row.Count,
			TotalCommission: row.TotalCommission,
			TotalVolume:     row.TotalVolume,
		})
	}
	return out, nil
}

// buildWhere ANDs the scope and filter into a predicate over current records.
// It returns false when the scope grants nothing.
func buildWhere(scope commission.Scope, filter commission.Filter) (string, []any, bool) {
	if scope.IsEmpty() {
		return "", nil, false
	}
	conds := []string{"r.is_current"}
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	switch {
	case scope.Unrestricted:
	case scope.OMCID != "":
		add("r.omc_id", scope.OMCID)
	case scope.DealerID != "":
		add("r.dealer_id", scope.DealerID)
	case scope.StationID != "":
		add("r.station_id", scope.StationID)
	}

	if !filter.Period.IsZero() {
		add("r.period", filter.Period.String())
	}
	if filter.Status != "" {
		add("r.status", string(filter.Status))
	}
	if filter.StationID != "" {
		add("r.station_id", filter.StationID)
	}
	if filter.OMCID != "" {
		add("r.omc_id", filter.OMCID)
	}
	if filter.DealerID != "" {
		add("r.dealer_id", filter.DealerID)
	}
	return strings.Join(conds, " AND "), args, true
}

func expectOneRow(res sql.Result, conflict error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return conflict
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
