package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	masterdata "fuel-commission/internal/masterdata/domain"
)

const (
	defaultStationsTable      = "stations"
	defaultOrganizationsTable = "organizations"
)

// StationRepository is a Postgres implementation of masterdata.Directory.
type StationRepository struct {
	db        DBTX
	table     string
	orgsTable string
}

// NewStationRepository constructs a repository.
func NewStationRepository(db DBTX, opts ...StationOption) *StationRepository {
	repo := &StationRepository{db: db, table: defaultStationsTable, orgsTable: defaultOrganizationsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// StationOption configures the repository.
type StationOption func(*StationRepository)

// WithStationTable overrides the default table name.
func WithStationTable(table string) StationOption {
	return func(repo *StationRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithOrganizationTable overrides the default organizations table name.
func WithOrganizationTable(table string) StationOption {
	return func(repo *StationRepository) {
		if table != "" {
			repo.orgsTable = table
		}
	}
}

const stationColumns = `id, name, code, location, dealer_id, omc_id, commission_rate, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(row rowScanner) (*masterdata.Station, error) {
	var (
		station masterdata.Station
		rate    sql.NullFloat64
	)
	if err := row.Scan(
		&station.ID,
		&station.Name,
		&station.Code,
		&station.Location,
		&station.DealerID,
		&station.OMCID,
		&rate,
		&station.CreatedAt,
		&station.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if rate.Valid {
		station.CommissionRate = masterdata.Float(rate.Float64)
	}
	station.CreatedAt = station.CreatedAt.UTC()
	station.UpdatedAt = station.UpdatedAt.UTC()
	return &station, nil
}

// Get loads a station by id.
func (r *StationRepository) Get(ctx context.Context, id string) (*masterdata.Station, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}
	if id == "" {
		return nil, errors.New("station repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, stationColumns, r.table)

	station, err := scanStation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return station, nil
}

// List returns stations matching filter ordered by id.
func (r *StationRepository) List(ctx context.Context, filter masterdata.StationFilter) ([]masterdata.Station, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}

	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("omc_id", filter.OMCID)
	add("dealer_id", filter.DealerID)
	add("id", filter.StationID)

	query := fmt.Sprintf("SELECT %s\nFROM %s", stationColumns, r.table)
	if len(conds) > 0 {
		query += "\nWHERE " + strings.Join(conds, " AND ")
	}
	query += "\nORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []masterdata.Station
	for rows.Next() {
		station, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, *station)
	}
	return stations, rows.Err()
}

// Save upserts a station.
func (r *StationRepository) Save(ctx context.Context, station *masterdata.Station) error {
	if r == nil || r.db == nil {
		return errors.New("station repo: nil db")
	}
	if station == nil {
		return errors.New("station repo: nil station")
	}
	if err := station.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	name,
	code,
	location,
	dealer_id,
	omc_id,
	commission_rate
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	code = EXCLUDED.code,
	location = EXCLUDED.location,
	dealer_id = EXCLUDED.dealer_id,
	omc_id = EXCLUDED.omc_id,
	commission_rate = EXCLUDED.commission_rate,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		station.ID,
		station.Name,
		station.Code,
		station.Location,
		station.DealerID,
		station.OMCID,
		nullableRate(station.CommissionRate),
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if station.CreatedAt.IsZero() {
		station.CreatedAt = now
	}
	station.UpdatedAt = now
	return nil
}

// GetOrganization loads an OMC by id.
func (r *StationRepository) GetOrganization(ctx context.Context, id string) (*masterdata.Organization, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, name, default_commission_rate, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.orgsTable)

	var (
		org  masterdata.Organization
		rate sql.NullFloat64
	)
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&org.ID, &org.Name, &rate, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if rate.Valid {
		org.DefaultRate = masterdata.Float(rate.Float64)
	}
	org.CreatedAt = org.CreatedAt.UTC()
	org.UpdatedAt = org.UpdatedAt.UTC()
	return &org, nil
}

// SaveOrganization upserts an OMC.
func (r *StationRepository) SaveOrganization(ctx context.Context, org *masterdata.Organization) error {
	if r == nil || r.db == nil {
		return errors.New("station repo: nil db")
	}
	if org == nil {
		return errors.New("station repo: nil organization")
	}
	if err := org.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, name, default_commission_rate)
VALUES ($1, $2, $3)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	default_commission_rate = EXCLUDED.default_commission_rate,
	updated_at = NOW()`, r.orgsTable)
	if _, err := r.db.ExecContext(ctx, query, org.ID, org.Name, nullableRate(org.DefaultRate)); err != nil {
		return err
	}
	now := time.Now().UTC()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	org.UpdatedAt = now
	return nil
}

func nullableRate(rate *float64) any {
	if rate == nil {
		return nil
	}
	return *rate
}
