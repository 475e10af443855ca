package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	commission "fuel-commission/internal/commission/domain"
	masterdata "fuel-commission/internal/masterdata/domain"
)

// DefaultSystemRate applies when neither station nor OMC carries a rate.
var DefaultSystemRate = decimal.RequireFromString("0.05")

// RateMode selects how a resolved rate is applied to volume.
type RateMode string

const (
	// RateModePercentage treats the rate as a fraction in (0, 1].
	RateModePercentage RateMode = "percentage"
	// RateModeAbsolute treats the rate as currency per litre.
	RateModeAbsolute RateMode = "absolute"
)

// ParseRateMode validates a rate mode, defaulting to percentage.
func ParseRateMode(value string) (RateMode, error) {
	switch RateMode(value) {
	case "", RateModePercentage:
		return RateModePercentage, nil
	case RateModeAbsolute:
		return RateModeAbsolute, nil
	default:
		return "", fmt.Errorf("%w: unknown rate mode %q", commission.ErrValidation, value)
	}
}

// RateResolution is the effective rate for one station.
type RateResolution struct {
	Rate    decimal.Decimal
	Source  commission.RateSource
	Station masterdata.Station
}

// RateCache memoizes directory lookups for one calculation invocation.
// It is created per call and never shared between invocations.
type RateCache struct {
	mu          sync.Mutex
	stations    map[string]*masterdata.Station
	orgs        map[string]*masterdata.Organization
	resolutions map[string]RateResolution
}

// NewRateCache returns an empty cache.
func NewRateCache() *RateCache {
	return &RateCache{
		stations:    make(map[string]*masterdata.Station),
		orgs:        make(map[string]*masterdata.Organization),
		resolutions: make(map[string]RateResolution),
	}
}

func (c *RateCache) resolution(stationID string) (RateResolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.resolutions[stationID]
	return res, ok
}

func (c *RateCache) storeResolution(stationID string, res RateResolution) {
	c.mu.Lock()
	c.resolutions[stationID] = res
	c.mu.Unlock()
}

func (c *RateCache) station(id string) (*masterdata.Station, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.stations[id]
	return st, ok
}

func (c *RateCache) storeStation(st *masterdata.Station) {
	c.mu.Lock()
	c.stations[st.ID] = st
	c.mu.Unlock()
}

func (c *RateCache) organization(id string) (*masterdata.Organization, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	org, ok := c.orgs[id]
	return org, ok
}

func (c *RateCache) storeOrganization(id string, org *masterdata.Organization) {
	c.mu.Lock()
	c.orgs[id] = org
	c.mu.Unlock()
}

// RateResolver applies station override > OMC default > system default.
type RateResolver struct {
	directory  masterdata.Directory
	systemRate decimal.Decimal
	mode       RateMode
}

// RateResolverOption configures the resolver.
type RateResolverOption func(*RateResolver)

// WithSystemRate overrides the system default rate.
func WithSystemRate(rate decimal.Decimal) RateResolverOption {
	return func(r *RateResolver) {
		if rate.IsPositive() {
			r.systemRate = rate
		}
	}
}

// WithRateMode sets percentage or absolute rate handling.
func WithRateMode(mode RateMode) RateResolverOption {
	return func(r *RateResolver) {
		if mode != "" {
			r.mode = mode
		}
	}
}

// NewRateResolver constructs a resolver.
func NewRateResolver(directory masterdata.Directory, opts ...RateResolverOption) (*RateResolver, error) {
	if directory == nil {
		return nil, errors.New("rate resolver: nil directory")
	}
	r := &RateResolver{directory: directory, systemRate: DefaultSystemRate, mode: RateModePercentage}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Mode returns the configured rate mode.
func (r *RateResolver) Mode() RateMode { return r.mode }

// Station loads a station through the cache.
func (r *RateResolver) Station(ctx context.Context, cache *RateCache, stationID string) (*masterdata.Station, error) {
	if stationID == "" {
		return nil, fmt.Errorf("%w: station_id required", commission.ErrValidation)
	}
	if cache != nil {
		if st, ok := cache.station(stationID); ok {
			return st, nil
		}
	}
	st, err := r.directory.Get(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("%w: station %s", commission.ErrNotFound, stationID)
	}
	if cache != nil {
		cache.storeStation(st)
	}
	return st, nil
}

// Resolve returns the effective rate for a station.
func (r *RateResolver) Resolve(ctx context.Context, cache *RateCache, stationID string) (RateResolution, error) {
	if cache != nil {
		if res, ok := cache.resolution(stationID); ok {
			return res, nil
		}
	}
	st, err := r.Station(ctx, cache, stationID)
	if err != nil {
		return RateResolution{}, err
	}

	res := RateResolution{Rate: r.systemRate, Source: commission.RateSourceSystem, Station: *st}
	switch {
	case st.CommissionRate != nil && *st.CommissionRate > 0:
		res.Rate = decimal.NewFromFloat(*st.CommissionRate)
		res.Source = commission.RateSourceOverride
	default:
		org, err := r.organization(ctx, cache, st.OMCID)
		if err != nil {
			return RateResolution{}, err
		}
		if org != nil && org.DefaultRate != nil && *org.DefaultRate > 0 {
			res.Rate = decimal.NewFromFloat(*org.DefaultRate)
			res.Source = commission.RateSourceOrganization
		}
	}

	if err := r.validate(res.Rate); err != nil {
		return RateResolution{}, fmt.Errorf("station %s: %w", stationID, err)
	}
	if cache != nil {
		cache.storeResolution(stationID, res)
	}
	return res, nil
}

func (r *RateResolver) organization(ctx context.Context, cache *RateCache, omcID string) (*masterdata.Organization, error) {
	if omcID == "" {
		return nil, nil
	}
	if cache != nil {
		if org, ok := cache.organization(omcID); ok {
			return org, nil
		}
	}
	org, err := r.directory.GetOrganization(ctx, omcID)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.storeOrganization(omcID, org)
	}
	return org, nil
}

func (r *RateResolver) validate(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return fmt.Errorf("%w: commission rate must be positive", commission.ErrValidation)
	}
	if r.mode == RateModePercentage && rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: commission rate %s outside (0, 1]", commission.ErrValidation, rate)
	}
	return nil
}
