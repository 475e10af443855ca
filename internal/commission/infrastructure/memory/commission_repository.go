package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	commission "fuel-commission/internal/commission/domain"
)

// Repository is an in-memory commission repository for demo/testing.
type Repository struct {
	mu      sync.RWMutex
	records map[string]*commission.Record
	current map[string]string
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{
		records: make(map[string]*commission.Record),
		current: make(map[string]string),
	}
}

// Get loads a record by id.
func (r *Repository) Get(ctx context.Context, id string) (*commission.Record, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[id].Clone(), nil
}

// FindCurrent loads the current record for a key.
func (r *Repository) FindCurrent(ctx context.Context, key commission.Key) (*commission.Record, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.current[key.String()]
	if !ok {
		return nil, nil
	}
	return r.records[id].Clone(), nil
}

// SaveCalculated stores record as current and supersedes previous.
func (r *Repository) SaveCalculated(ctx context.Context, record *commission.Record, previous *commission.Record) error {
	_ = ctx
	if record == nil {
		return commission.ErrNilRecord
	}
	key := record.Key().String()
	r.mu.Lock()
	defer r.mu.Unlock()

	currentID, exists := r.current[key]
	switch {
	case previous == nil && exists:
		return fmt.Errorf("%w: %s already has a current record", commission.ErrConcurrencyConflict, key)
	case previous != nil && (!exists || currentID != previous.ID):
		return fmt.Errorf("%w: record %s is no longer current", commission.ErrConcurrencyConflict, previous.ID)
	case previous != nil && r.records[previous.ID].Status != previous.Status:
		return fmt.Errorf("%w: record %s changed since it was read", commission.ErrConcurrencyConflict, previous.ID)
	}
	if previous != nil {
		stored := r.records[previous.ID]
		stored.IsCurrent = false
		stored.SupersededBy = record.ID
		stored.UpdatedAt = record.CreatedAt
	}
	r.records[record.ID] = record.Clone()
	r.current[key] = record.ID
	return nil
}

// CreatePending inserts a pending placeholder.
func (r *Repository) CreatePending(ctx context.Context, record *commission.Record) error {
	_ = ctx
	if record == nil {
		return commission.ErrNilRecord
	}
	key := record.Key().String()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.current[key]; exists {
		return fmt.Errorf("%w: %s already has a current record", commission.ErrConcurrencyConflict, key)
	}
	r.records[record.ID] = record.Clone()
	r.current[key] = record.ID
	return nil
}

// UpdateStatus applies a status change if the stored status still equals from.
func (r *Repository) UpdateStatus(ctx context.Context, record *commission.Record, from commission.Status) error {
	_ = ctx
	if record == nil {
		return commission.ErrNilRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkStatus(record.ID, from); err != nil {
		return err
	}
	r.records[record.ID] = record.Clone()
	return nil
}

// RecordPayment stores the paid record with its payment.
func (r *Repository) RecordPayment(ctx context.Context, record *commission.Record, payment commission.PaymentRecord, from commission.Status) error {
	_ = ctx
	if record == nil {
		return commission.ErrNilRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkStatus(record.ID, from); err != nil {
		return err
	}
	stored := record.Clone()
	stored.Payment = &payment
	r.records[record.ID] = stored
	return nil
}

func (r *Repository) checkStatus(id string, from commission.Status) error {
	stored, ok := r.records[id]
	if !ok {
		return fmt.Errorf("%w: commission %s", commission.ErrNotFound, id)
	}
	if !stored.IsCurrent || stored.Status != from {
		return fmt.Errorf("%w: commission %s changed concurrently", commission.ErrInvalidStateTransition, id)
	}
	return nil
}

// List returns current records matching scope and filter.
func (r *Repository) List(ctx context.Context, scope commission.Scope, filter commission.Filter, page commission.Page) ([]commission.Record, int, error) {
	_ = ctx
	page = page.Normalize()
	matched := r.match(scope, filter)
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Period.String() != b.Period.String() {
			return a.Period.String() > b.Period.String()
		}
		return a.StationID < b.StationID
	})
	total := len(matched)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Totals aggregates current records by period and status.
func (r *Repository) Totals(ctx context.Context, scope commission.Scope, filter commission.Filter) ([]commission.StatusTotal, error) {
	_ = ctx
	index := make(map[string]*commission.StatusTotal)
	var order []string
	for _, rec := range r.match(scope, filter) {
		key := rec.Period.String() + "|" + string(rec.Status)
		row, ok := index[key]
		if !ok {
			row = &commission.StatusTotal{Period: rec.Period, Status: rec.Status, TotalCommission: decimal.Zero, TotalVolume: decimal.Zero}
			index[key] = row
			order = append(order, key)
		}
		row.Count++
		row.TotalCommission = row.TotalCommission.Add(rec.TotalCommission)
		row.TotalVolume = row.TotalVolume.Add(rec.TotalVolume)
	}
	sort.Strings(order)
	rows := make([]commission.StatusTotal, 0, len(order))
	for _, key := range order {
		rows = append(rows, *index[key])
	}
	return rows, nil
}

// All returns every stored version, current or not.
func (r *Repository) All() []commission.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]commission.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec.Clone())
	}
	return out
}

func (r *Repository) match(scope commission.Scope, filter commission.Filter) []commission.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []commission.Record
	for _, id := range r.current {
		rec := r.records[id]
		if rec == nil || !scope.Allows(rec) {
			continue
		}
		if !filter.Period.IsZero() && rec.Period.String() != filter.Period.String() {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.StationID != "" && rec.StationID != filter.StationID {
			continue
		}
		if filter.OMCID != "" && rec.OMCID != filter.OMCID {
			continue
		}
		if filter.DealerID != "" && rec.DealerID != filter.DealerID {
			continue
		}
		out = append(out, *rec.Clone())
	}
	return out
}
