package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fuel-commission/internal/auth"
	commission "fuel-commission/internal/commission/domain"
	masterdata "fuel-commission/internal/masterdata/domain"
)

const defaultMaxParallel = 4

// CalculateRequest asks for a batch calculation. Empty StationIDs means every
// station in the actor's scope.
type CalculateRequest struct {
	Period     commission.Period `json:"period"`
	StationIDs []string          `json:"station_ids,omitempty"`
	Correction bool              `json:"correction,omitempty"`
	Notes      string            `json:"notes,omitempty"`
}

// StationResult is the per-station outcome of a batch.
type StationResult struct {
	StationID string             `json:"station_id"`
	Record    *commission.Record `json:"record,omitempty"`
	Skipped   bool               `json:"skipped,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorCode string             `json:"error_code,omitempty"`
	Err       error              `json:"-"`
}

// BatchReport collects per-station outcomes. A failed station never aborts the batch.
type BatchReport struct {
	Period    commission.Period `json:"period"`
	Results   []StationResult   `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

func (r *BatchReport) tally() {
	r.Succeeded, r.Failed = 0, 0
	for _, res := range r.Results {
		if res.Err != nil {
			r.Failed++
		} else {
			r.Succeeded++
		}
	}
}

// LifecycleObserver receives calculation and transition outcomes.
type LifecycleObserver interface {
	ObserveCalculation(result string, duration time.Duration)
	ObserveTransition(to commission.Status, result string)
}

// UUIDGenerator mints random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// LifecycleService owns calculation and the approval/payment lifecycle.
type LifecycleService struct {
	repo             commission.Repository
	directory        masterdata.Directory
	resolver         *RateResolver
	aggregator       *Aggregator
	calculator       *Calculator
	caps             PriceCapReader
	guard            *KeyedGuard
	publisher        CommissionPublisher
	observer         LifecycleObserver
	stats            StatsCache
	clock            Clock
	ids              IDGenerator
	approvalRequired bool
	maxParallel      int
	logger           zerolog.Logger
}

// LifecycleOption configures the service.
type LifecycleOption func(*LifecycleService)

// WithApprovalRequired toggles whether payment needs a prior approval.
func WithApprovalRequired(required bool) LifecycleOption {
	return func(s *LifecycleService) { s.approvalRequired = required }
}

// WithMaxParallel bounds concurrent station calculations.
func WithMaxParallel(n int) LifecycleOption {
	return func(s *LifecycleService) {
		if n > 0 {
			s.maxParallel = n
		}
	}
}

// WithPriceCaps attaches a price-cap reader.
func WithPriceCaps(caps PriceCapReader) LifecycleOption {
	return func(s *LifecycleService) { s.caps = caps }
}

// WithPublisher attaches an event publisher.
func WithPublisher(publisher CommissionPublisher) LifecycleOption {
	return func(s *LifecycleService) { s.publisher = publisher }
}

// WithLifecycleObserver attaches metrics.
func WithLifecycleObserver(observer LifecycleObserver) LifecycleOption {
	return func(s *LifecycleService) { s.observer = observer }
}

// WithStatsInvalidation clears cached stats after every write.
func WithStatsInvalidation(cache StatsCache) LifecycleOption {
	return func(s *LifecycleService) { s.stats = cache }
}

// WithGuard shares a keyed guard between services.
func WithGuard(guard *KeyedGuard) LifecycleOption {
	return func(s *LifecycleService) {
		if guard != nil {
			s.guard = guard
		}
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) LifecycleOption {
	return func(s *LifecycleService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(ids IDGenerator) LifecycleOption {
	return func(s *LifecycleService) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) LifecycleOption {
	return func(s *LifecycleService) { s.logger = logger }
}

// NewLifecycleService constructs the service.
func NewLifecycleService(
	repo commission.Repository,
	directory masterdata.Directory,
	resolver *RateResolver,
	aggregator *Aggregator,
	calculator *Calculator,
	opts ...LifecycleOption,
) (*LifecycleService, error) {
	if repo == nil {
		return nil, errors.New("commission lifecycle: nil repository")
	}
	if directory == nil {
		return nil, errors.New("commission lifecycle: nil directory")
	}
	if resolver == nil {
		return nil, errors.New("commission lifecycle: nil rate resolver")
	}
	if aggregator == nil {
		return nil, errors.New("commission lifecycle: nil aggregator")
	}
	if calculator == nil {
		return nil, errors.New("commission lifecycle: nil calculator")
	}
	s := &LifecycleService{
		repo:             repo,
		directory:        directory,
		resolver:         resolver,
		aggregator:       aggregator,
		calculator:       calculator,
		guard:            NewKeyedGuard(),
		clock:            SystemClock{},
		ids:              UUIDGenerator{},
		approvalRequired: true,
		maxParallel:      defaultMaxParallel,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ApprovalRequired reports the configured payment policy.
func (s *LifecycleService) ApprovalRequired() bool { return s.approvalRequired }

// Calculate runs a batch calculation for the requested stations.
func (s *LifecycleService) Calculate(ctx context.Context, actor auth.Actor, req CalculateRequest) (BatchReport, error) {
	if !actor.Can(auth.CapCalculate) {
		return BatchReport{}, fmt.Errorf("%w: calculate", commission.ErrPermissionDenied)
	}
	if req.Period.IsZero() {
		return BatchReport{}, fmt.Errorf("%w: period required", commission.ErrValidation)
	}
	scope := ScopeFor(actor)
	stationIDs, err := s.stationIDs(ctx, scope, req.StationIDs)
	if err != nil {
		return BatchReport{}, err
	}

	report := BatchReport{Period: req.Period, Results: make([]StationResult, len(stationIDs))}
	cache := NewRateCache()
	var group errgroup.Group
	group.SetLimit(s.maxParallel)
	for i, stationID := range stationIDs {
		i, stationID := i, stationID
		group.Go(func() error {
			started := s.clock.Now()
			rec, err := s.calculateOne(ctx, actor, scope, cache, req, stationID)
			s.observeCalculation(err, s.clock.Now().Sub(started))
			report.Results[i] = newStationResult(stationID, rec, err)
			if err != nil {
				s.logger.Warn().Err(err).Str("station_id", stationID).Str("period", req.Period.String()).Msg("commission calculation failed")
			}
			return nil
		})
	}
	_ = group.Wait()
	report.tally()
	if report.Succeeded > 0 {
		s.invalidateStats(ctx)
	}
	s.logger.Info().
		Str("period", req.Period.String()).
		Str("actor", actor.Subject).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("commission batch calculated")
	return report, nil
}

func (s *LifecycleService) calculateOne(ctx context.Context, actor auth.Actor, scope commission.Scope, cache *RateCache, req CalculateRequest, stationID string) (*commission.Record, error) {
	key := commission.Key{StationID: stationID, Period: req.Period}
	release, ok := s.guard.TryAcquire(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", commission.ErrConcurrencyConflict, key)
	}
	defer release()

	station, err := s.resolver.Station(ctx, cache, stationID)
	if err != nil {
		return nil, err
	}
	if !scope.AllowsOwner(station.ID, station.DealerID, station.OMCID) {
		return nil, fmt.Errorf("%w: station %s outside scope", commission.ErrPermissionDenied, stationID)
	}

	existing, err := s.repo.FindCurrent(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := existing.CanRecalculate(req.Correction); err != nil {
			return nil, err
		}
	}

	agg, err := s.aggregator.Aggregate(ctx, stationID, req.Period)
	if err != nil {
		return nil, err
	}
	rate, err := s.resolver.Resolve(ctx, cache, stationID)
	if err != nil {
		return nil, err
	}
	var margin *CapMargin
	if s.caps != nil {
		margin, err = s.caps.CapMargin(ctx, stationID, req.Period)
		if err != nil {
			return nil, err
		}
	}
	breakdown := s.calculator.Calculate(CalculationInput{
		Volume:    agg.TotalVolume,
		Sales:     agg.TotalSales,
		Rate:      rate.Rate,
		CapMargin: margin,
	})

	now := s.clock.Now().UTC()
	rec := &commission.Record{
		ID:           s.ids.NewID(),
		StationID:    station.ID,
		DealerID:     station.DealerID,
		OMCID:        station.OMCID,
		Period:       req.Period,
		RateSource:   rate.Source,
		Status:       commission.StatusCalculated,
		DataSource:   agg.DataSource,
		CalculatedAt: now,
		Notes:        req.Notes,
		IsCurrent:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	rec.ApplyBreakdown(breakdown)
	if existing != nil && existing.Status == commission.StatusPaid {
		rec.CorrectionOf = existing.ID
	}

	if err := s.repo.SaveCalculated(ctx, rec, existing); err != nil {
		return nil, err
	}
	s.publish(ctx, rec)
	return rec, nil
}

// OpenPeriod creates pending placeholders for stations without a current record.
func (s *LifecycleService) OpenPeriod(ctx context.Context, actor auth.Actor, period commission.Period, stationIDs []string) (BatchReport, error) {
	if !actor.Can(auth.CapCalculate) {
		return BatchReport{}, fmt.Errorf("%w: open period", commission.ErrPermissionDenied)
	}
	if period.IsZero() {
		return BatchReport{}, fmt.Errorf("%w: period required", commission.ErrValidation)
	}
	scope := ScopeFor(actor)
	ids, err := s.stationIDs(ctx, scope, stationIDs)
	if err != nil {
		return BatchReport{}, err
	}

	report := BatchReport{Period: period, Results: make([]StationResult, 0, len(ids))}
	cache := NewRateCache()
	for _, stationID := range ids {
		rec, skipped, err := s.openOne(ctx, scope, cache, period, stationID)
		res := newStationResult(stationID, rec, err)
		res.Skipped = skipped
		report.Results = append(report.Results, res)
	}
	report.tally()
	if report.Succeeded > 0 {
		s.invalidateStats(ctx)
	}
	return report, nil
}

func (s *LifecycleService) openOne(ctx context.Context, scope commission.Scope, cache *RateCache, period commission.Period, stationID string) (*commission.Record, bool, error) {
	station, err := s.resolver.Station(ctx, cache, stationID)
	if err != nil {
		return nil, false, err
	}
	if !scope.AllowsOwner(station.ID, station.DealerID, station.OMCID) {
		return nil, false, fmt.Errorf("%w: station %s outside scope", commission.ErrPermissionDenied, stationID)
	}
	key := commission.Key{StationID: stationID, Period: period}
	existing, err := s.repo.FindCurrent(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}
	now := s.clock.Now().UTC()
	rec := &commission.Record{
		ID:        s.ids.NewID(),
		StationID: station.ID,
		DealerID:  station.DealerID,
		OMCID:     station.OMCID,
		Period:    period,
		Status:    commission.StatusPending,
		IsCurrent: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreatePending(ctx, rec); err != nil {
		if errors.Is(err, commission.ErrConcurrencyConflict) {
			return nil, true, nil
		}
		return nil, false, err
	}
	return rec, false, nil
}

// Approve moves a calculated record to approved.
func (s *LifecycleService) Approve(ctx context.Context, actor auth.Actor, id string) (*commission.Record, error) {
	rec, err := s.loadForSettle(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from := rec.Status
	if err := rec.Approve(actor.Subject, s.clock.Now()); err != nil {
		s.observeTransition(commission.StatusApproved, err)
		return nil, err
	}
	err = s.repo.UpdateStatus(ctx, rec, from)
	s.observeTransition(commission.StatusApproved, err)
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	return rec, nil
}

// MarkPaid records a payment and moves the record to paid.
func (s *LifecycleService) MarkPaid(ctx context.Context, actor auth.Actor, id string, details commission.PaymentDetails) (*commission.Record, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}
	rec, err := s.loadForSettle(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from := rec.Status
	payment, err := rec.MarkPaid(actor.Subject, details, s.ids.NewID(), s.clock.Now(), s.approvalRequired)
	if err != nil {
		s.observeTransition(commission.StatusPaid, err)
		return nil, err
	}
	err = s.repo.RecordPayment(ctx, rec, payment, from)
	s.observeTransition(commission.StatusPaid, err)
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	return rec, nil
}

// Cancel moves a non-terminal record to cancelled.
func (s *LifecycleService) Cancel(ctx context.Context, actor auth.Actor, id, reason string) (*commission.Record, error) {
	rec, err := s.loadForSettle(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from := rec.Status
	if err := rec.Cancel(actor.Subject, reason, s.clock.Now()); err != nil {
		s.observeTransition(commission.StatusCancelled, err)
		return nil, err
	}
	err = s.repo.UpdateStatus(ctx, rec, from)
	s.observeTransition(commission.StatusCancelled, err)
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	return rec, nil
}

func (s *LifecycleService) loadForSettle(ctx context.Context, actor auth.Actor, id string) (*commission.Record, error) {
	if !actor.Can(auth.CapSettle) {
		return nil, fmt.Errorf("%w: settle", commission.ErrPermissionDenied)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: id required", commission.ErrValidation)
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: commission %s", commission.ErrNotFound, id)
	}
	if !ScopeFor(actor).Allows(rec) {
		return nil, fmt.Errorf("%w: commission %s outside scope", commission.ErrPermissionDenied, id)
	}
	return rec, nil
}

// stationIDs resolves the batch: explicit ids are deduplicated and checked
// per station later; an empty list expands to the scope's stations.
func (s *LifecycleService) stationIDs(ctx context.Context, scope commission.Scope, requested []string) ([]string, error) {
	if len(requested) > 0 {
		seen := make(map[string]struct{}, len(requested))
		ids := make([]string, 0, len(requested))
		for _, id := range requested {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("%w: station_ids empty", commission.ErrValidation)
		}
		return ids, nil
	}
	if scope.IsEmpty() {
		return nil, fmt.Errorf("%w: actor has no scope", commission.ErrPermissionDenied)
	}
	stations, err := s.directory.List(ctx, StationFilterFor(scope))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(stations))
	for _, st := range stations {
		ids = append(ids, st.ID)
	}
	return ids, nil
}

func (s *LifecycleService) publish(ctx context.Context, rec *commission.Record) {
	if s.publisher == nil {
		return
	}
	event := CommissionCalculated{
		RecordID:        rec.ID,
		StationID:       rec.StationID,
		Period:          rec.Period,
		TotalCommission: rec.TotalCommission,
		DataSource:      rec.DataSource,
		Correction:      rec.CorrectionOf != "",
		OccurredAt:      rec.CalculatedAt,
	}
	if err := s.publisher.PublishCommissionCalculated(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("record_id", rec.ID).Msg("publish commission calculated failed")
	}
}

func (s *LifecycleService) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("stats cache invalidation failed")
	}
}

func (s *LifecycleService) observeCalculation(err error, duration time.Duration) {
	if s.observer != nil {
		s.observer.ObserveCalculation(resultLabel(err), duration)
	}
}

func (s *LifecycleService) observeTransition(to commission.Status, err error) {
	if s.observer != nil {
		s.observer.ObserveTransition(to, resultLabel(err))
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return commission.ErrorCode(err)
}

func newStationResult(stationID string, rec *commission.Record, err error) StationResult {
	res := StationResult{StationID: stationID, Record: rec, Err: err}
	if err != nil {
		res.Error = err.Error()
		res.ErrorCode = commission.ErrorCode(err)
	}
	return res
}
