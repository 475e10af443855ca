package commission

import "context"

// Repository persists commission records. List and Totals always apply the
// supplied scope; single-record loads are scope-checked by the caller.
type Repository interface {
	Get(ctx context.Context, id string) (*Record, error)
	FindCurrent(ctx context.Context, key Key) (*Record, error)
	// SaveCalculated inserts record as the current version for its key and
	// marks previous (if any) superseded. Returns ErrConcurrencyConflict when
	// previous is no longer current or another current record appeared.
	SaveCalculated(ctx context.Context, record *Record, previous *Record) error
	// CreatePending inserts a pending placeholder; ErrConcurrencyConflict when
	// a current record already exists.
	CreatePending(ctx context.Context, record *Record) error
	// UpdateStatus persists a status change made from status `from`.
	UpdateStatus(ctx context.Context, record *Record, from Status) error
	// RecordPayment persists the paid state and its payment atomically.
	RecordPayment(ctx context.Context, record *Record, payment PaymentRecord, from Status) error
	List(ctx context.Context, scope Scope, filter Filter, page Page) ([]Record, int, error)
	Totals(ctx context.Context, scope Scope, filter Filter) ([]StatusTotal, error)
}
