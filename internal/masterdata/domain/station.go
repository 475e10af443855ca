package masterdata

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStationNotFound is returned when a station id is unknown.
	ErrStationNotFound = errors.New("station: not found")
	// ErrOrganizationNotFound is returned when an OMC id is unknown.
	ErrOrganizationNotFound = errors.New("organization: not found")
)

// Station represents a fuel station in masterdata.
type Station struct {
	ID             string
	Name           string
	Code           string
	Location       string
	DealerID       string
	OMCID          string
	CommissionRate *float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks station invariants.
func (s Station) Validate() error {
	if s.ID == "" {
		return errors.New("station: empty id")
	}
	if s.Name == "" {
		return errors.New("station: empty name")
	}
	if s.OMCID == "" {
		return errors.New("station: empty omc id")
	}
	if s.CommissionRate != nil && *s.CommissionRate < 0 {
		return errors.New("station: negative commission rate")
	}
	return nil
}

// Organization is an oil marketing company.
type Organization struct {
	ID          string
	Name        string
	DefaultRate *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks organization invariants.
func (o Organization) Validate() error {
	if o.ID == "" {
		return errors.New("organization: empty id")
	}
	if o.Name == "" {
		return errors.New("organization: empty name")
	}
	return nil
}

// StationFilter narrows station listings. Empty fields match everything.
type StationFilter struct {
	OMCID     string
	DealerID  string
	StationID string
}

// StationRepository manages station persistence.
type StationRepository interface {
	Get(ctx context.Context, id string) (*Station, error)
	List(ctx context.Context, filter StationFilter) ([]Station, error)
	Save(ctx context.Context, station *Station) error
}

// OrganizationRepository manages organization persistence.
type OrganizationRepository interface {
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	SaveOrganization(ctx context.Context, org *Organization) error
}

// Directory is the read side used by the commission engine.
type Directory interface {
	Get(ctx context.Context, id string) (*Station, error)
	List(ctx context.Context, filter StationFilter) ([]Station, error)
	GetOrganization(ctx context.Context, id string) (*Organization, error)
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
