package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fuel-commission/internal/auth"
	commission "fuel-commission/internal/commission/domain"
	masterdata "fuel-commission/internal/masterdata/domain"
)

// ScopeFor maps an actor onto the records it may see.
func ScopeFor(actor auth.Actor) commission.Scope {
	switch actor.Role {
	case auth.RoleAdmin:
		return commission.UnrestrictedScope()
	case auth.RoleOMC:
		return commission.Scope{OMCID: actor.OMCID}
	case auth.RoleDealer:
		return commission.Scope{DealerID: actor.DealerID}
	case auth.RoleStationManager, auth.RoleAttendant:
		return commission.Scope{StationID: actor.StationID}
	default:
		return commission.Scope{}
	}
}

// StationFilterFor narrows a station listing to the scope.
func StationFilterFor(scope commission.Scope) masterdata.StationFilter {
	return masterdata.StationFilter{OMCID: scope.OMCID, DealerID: scope.DealerID, StationID: scope.StationID}
}

// StatsCache stores computed stats keyed by scope and filter. Invalidate
// bumps Generation so that a computation started before a write never
// lands under a key that is still read afterwards.
type StatsCache interface {
	GetStats(ctx context.Context, key string) (*commission.Stats, error)
	SetStats(ctx context.Context, key string, stats commission.Stats) error
	Generation(ctx context.Context) (int64, error)
	Invalidate(ctx context.Context) error
}

// ScopedReader is the single read path for commission data.
type ScopedReader struct {
	repo      commission.Repository
	directory masterdata.Directory
	tracker   *ProgressiveTracker
	cache     StatsCache
	clock     Clock
	parallel  int
	logger    zerolog.Logger
}

// ScopedReaderOption configures the reader.
type ScopedReaderOption func(*ScopedReader)

// WithStatsCache attaches a stats cache.
func WithStatsCache(cache StatsCache) ScopedReaderOption {
	return func(r *ScopedReader) { r.cache = cache }
}

// WithReaderClock overrides the clock.
func WithReaderClock(clock Clock) ScopedReaderOption {
	return func(r *ScopedReader) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithReaderParallelism bounds concurrent projections.
func WithReaderParallelism(n int) ScopedReaderOption {
	return func(r *ScopedReader) {
		if n > 0 {
			r.parallel = n
		}
	}
}

// WithReaderLogger sets the logger.
func WithReaderLogger(logger zerolog.Logger) ScopedReaderOption {
	return func(r *ScopedReader) { r.logger = logger }
}

// NewScopedReader constructs the reader.
func NewScopedReader(repo commission.Repository, directory masterdata.Directory, tracker *ProgressiveTracker, opts ...ScopedReaderOption) (*ScopedReader, error) {
	if repo == nil {
		return nil, errors.New("scoped reader: nil repository")
	}
	if directory == nil {
		return nil, errors.New("scoped reader: nil directory")
	}
	if tracker == nil {
		return nil, errors.New("scoped reader: nil tracker")
	}
	r := &ScopedReader{
		repo:      repo,
		directory: directory,
		tracker:   tracker,
		clock:     SystemClock{},
		parallel:  4,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// List returns a page of current records visible to the actor.
func (r *ScopedReader) List(ctx context.Context, actor auth.Actor, filter commission.Filter, page commission.Page) (commission.PageResult, error) {
	page = page.Normalize()
	scope, err := viewScope(actor)
	if err != nil {
		return commission.PageResult{}, err
	}
	narrowed, ok := scope.Narrow(filter)
	if !ok {
		return commission.NewPageResult(nil, 0, page), nil
	}
	items, total, err := r.repo.List(ctx, scope, narrowed, page)
	if err != nil {
		return commission.PageResult{}, err
	}
	return commission.NewPageResult(items, total, page), nil
}

// Get loads one record. Out-of-scope records are reported as not found.
func (r *ScopedReader) Get(ctx context.Context, actor auth.Actor, id string) (*commission.Record, error) {
	scope, err := viewScope(actor)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: id required", commission.ErrValidation)
	}
	rec, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil || !scope.Allows(rec) {
		return nil, fmt.Errorf("%w: commission %s", commission.ErrNotFound, id)
	}
	return rec, nil
}

// Stats returns current/previous period totals for the actor's scope.
// filter.Period selects the current period (defaults to this month); the other
// filter fields narrow the rows the totals are built from.
func (r *ScopedReader) Stats(ctx context.Context, actor auth.Actor, filter commission.Filter) (commission.Stats, error) {
	scope, err := viewScope(actor)
	if err != nil {
		return commission.Stats{}, err
	}
	period := filter.Period
	if period.IsZero() {
		period = commission.PeriodOf(r.clock.Now())
	}
	narrowed, ok := scope.Narrow(filter)
	if !ok {
		return commission.BuildStats(period, nil), nil
	}
	narrowed.Period = period

	cache := r.cache
	var key string
	if cache != nil {
		generation, err := cache.Generation(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Msg("stats cache generation read failed")
			cache = nil
		} else {
			key = fmt.Sprintf("%s|%s|g%d", scope.CacheKey(), narrowed.CacheKey(), generation)
		}
	}
	if cache != nil {
		cached, err := cache.GetStats(ctx, key)
		if err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("stats cache read failed")
		} else if cached != nil {
			return *cached, nil
		}
	}

	totalsFilter := narrowed
	totalsFilter.Period = commission.Period{}
	rows, err := r.repo.Totals(ctx, scope, totalsFilter)
	if err != nil {
		return commission.Stats{}, err
	}
	stats := commission.BuildStats(period, rows)
	if cache != nil {
		if err := cache.SetStats(ctx, key, stats); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("stats cache write failed")
		}
	}
	return stats, nil
}

// Progressive projects accrual for one station, or every station in scope
// when stationID is empty.
func (r *ScopedReader) Progressive(ctx context.Context, actor auth.Actor, period commission.Period, stationID string) ([]commission.Projection, error) {
	scope, err := viewScope(actor)
	if err != nil {
		return nil, err
	}
	if period.IsZero() {
		return nil, fmt.Errorf("%w: period required", commission.ErrValidation)
	}

	var stations []masterdata.Station
	if stationID != "" {
		st, err := r.directory.Get(ctx, stationID)
		if err != nil {
			return nil, err
		}
		if st == nil || !scope.AllowsOwner(st.ID, st.DealerID, st.OMCID) {
			return nil, fmt.Errorf("%w: station %s", commission.ErrNotFound, stationID)
		}
		stations = []masterdata.Station{*st}
	} else {
		stations, err = r.directory.List(ctx, StationFilterFor(scope))
		if err != nil {
			return nil, err
		}
	}

	if stationID != "" {
		proj, err := r.tracker.Project(ctx, stations[0].ID, period)
		if err != nil {
			return nil, fmt.Errorf("station %s: %w", stationID, err)
		}
		return []commission.Projection{proj}, nil
	}

	// One station failing drops that station only; the listing stays usable.
	projections := make([]commission.Projection, len(stations))
	failed := make([]bool, len(stations))
	var group errgroup.Group
	group.SetLimit(r.parallel)
	for i, st := range stations {
		i, st := i, st
		group.Go(func() error {
			proj, err := r.tracker.Project(ctx, st.ID, period)
			if err != nil {
				failed[i] = true
				r.logger.Warn().Err(err).Str("station_id", st.ID).Str("period", period.String()).Msg("progressive projection skipped")
				return nil
			}
			projections[i] = proj
			return nil
		})
	}
	_ = group.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]commission.Projection, 0, len(stations))
	for i, proj := range projections {
		if !failed[i] {
			out = append(out, proj)
		}
	}
	return out, nil
}

func viewScope(actor auth.Actor) (commission.Scope, error) {
	if !actor.Can(auth.CapView) {
		return commission.Scope{}, fmt.Errorf("%w: view", commission.ErrPermissionDenied)
	}
	scope := ScopeFor(actor)
	if scope.IsEmpty() {
		return commission.Scope{}, fmt.Errorf("%w: actor has no scope", commission.ErrPermissionDenied)
	}
	return scope, nil
}
