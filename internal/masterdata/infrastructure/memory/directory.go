package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	masterdata "fuel-commission/internal/masterdata/domain"
)

// Directory is an in-memory station and organization store.
type Directory struct {
	mu       sync.RWMutex
	stations map[string]masterdata.Station
	orgs     map[string]masterdata.Organization
}

// NewDirectory constructs an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		stations: make(map[string]masterdata.Station),
		orgs:     make(map[string]masterdata.Organization),
	}
}

// Get loads a station; nil when unknown.
func (d *Directory) Get(ctx context.Context, id string) (*masterdata.Station, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	st, ok := d.stations[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// List returns stations matching the filter ordered by id.
func (d *Directory) List(ctx context.Context, filter masterdata.StationFilter) ([]masterdata.Station, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]masterdata.Station, 0, len(d.stations))
	for _, st := range d.stations {
		if filter.OMCID != "" && st.OMCID != filter.OMCID {
			continue
		}
		if filter.DealerID != "" && st.DealerID != filter.DealerID {
			continue
		}
		if filter.StationID != "" && st.ID != filter.StationID {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save upserts a station.
func (d *Directory) Save(ctx context.Context, station *masterdata.Station) error {
	_ = ctx
	if station == nil {
		return errors.New("directory: nil station")
	}
	if err := station.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	d.stations[station.ID] = *station
	d.mu.Unlock()
	return nil
}

// GetOrganization loads an organization; nil when unknown.
func (d *Directory) GetOrganization(ctx context.Context, id string) (*masterdata.Organization, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	org, ok := d.orgs[id]
	if !ok {
		return nil, nil
	}
	return &org, nil
}

// SaveOrganization upserts an organization.
func (d *Directory) SaveOrganization(ctx context.Context, org *masterdata.Organization) error {
	_ = ctx
	if org == nil {
		return errors.New("directory: nil organization")
	}
	if err := org.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	d.orgs[org.ID] = *org
	d.mu.Unlock()
	return nil
}
