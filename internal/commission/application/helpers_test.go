package application_test

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fuel-commission/internal/auth"
	"fuel-commission/internal/commission/application"
	commission "fuel-commission/internal/commission/domain"
	"fuel-commission/internal/commission/infrastructure/memory"
	masterdata "fuel-commission/internal/masterdata/domain"
	mdmemory "fuel-commission/internal/masterdata/infrastructure/memory"
)

var (
	adminActor = auth.Actor{Subject: "admin-1", Role: auth.RoleAdmin}
	omcActor   = auth.Actor{Subject: "omc-user", Role: auth.RoleOMC, OMCID: "omc-1"}
	dealerOne  = auth.Actor{Subject: "dealer-user", Role: auth.RoleDealer, DealerID: "dealer-1"}
	attendant  = auth.Actor{Subject: "attendant-1", Role: auth.RoleAttendant, StationID: "station-1"}
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return "id-" + strconv.Itoa(s.n)
}

type fakeSource struct {
	name          commission.DataSource
	authoritative bool
	days          map[string][]application.DailyVolume
	err           error
	delay         time.Duration
	calls         atomic.Int32
	block         chan struct{}
}

func newFakeSource(name commission.DataSource) *fakeSource {
	return &fakeSource{name: name, days: make(map[string][]application.DailyVolume)}
}

func (f *fakeSource) Name() commission.DataSource { return f.name }

func (f *fakeSource) add(stationID string, date time.Time, volume, sales string) {
	f.days[stationID] = append(f.days[stationID], application.DailyVolume{
		Date:   date,
		Volume: decimal.RequireFromString(volume),
		Sales:  decimal.RequireFromString(sales),
	})
}

func (f *fakeSource) DailyVolumes(ctx context.Context, stationID string, from, to time.Time) (application.SourceResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return application.SourceResult{}, ctx.Err()
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return application.SourceResult{}, ctx.Err()
		}
	}
	if f.err != nil {
		return application.SourceResult{}, f.err
	}
	res := application.SourceResult{Source: f.name, Authoritative: f.authoritative}
	for _, day := range f.days[stationID] {
		if day.Date.Before(from) || !day.Date.Before(to) {
			continue
		}
		res.Days = append(res.Days, day)
	}
	return res, nil
}

type countingDirectory struct {
	masterdata.Directory
	stationCalls atomic.Int32
	orgCalls     atomic.Int32
}

func (d *countingDirectory) Get(ctx context.Context, id string) (*masterdata.Station, error) {
	d.stationCalls.Add(1)
	return d.Directory.Get(ctx, id)
}

func (d *countingDirectory) GetOrganization(ctx context.Context, id string) (*masterdata.Organization, error) {
	d.orgCalls.Add(1)
	return d.Directory.GetOrganization(ctx, id)
}

type fixedCaps struct {
	margin *application.CapMargin
}

func (c fixedCaps) CapMargin(ctx context.Context, stationID string, period commission.Period) (*application.CapMargin, error) {
	return c.margin, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []application.CommissionCalculated
}

func (p *recordingPublisher) PublishCommissionCalculated(ctx context.Context, event application.CommissionCalculated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	directory *mdmemory.Directory
	repo      *memory.Repository
	sales     *fakeSource
	tank      *fakeSource
	resolver  *application.RateResolver
	agg       *application.Aggregator
	calc      *application.Calculator
	tracker   *application.ProgressiveTracker
	lifecycle *application.LifecycleService
	reader    *application.ScopedReader
	publisher *recordingPublisher
	clock     fixedClock
}

// newFixture seeds three stations: station-1 and station-2 under omc-1
// (no default rate), station-3 under omc-2 (default 0.06).
func newFixture(t *testing.T, now time.Time, opts ...application.LifecycleOption) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		directory: mdmemory.NewDirectory(),
		repo:      memory.NewRepository(),
		sales:     newFakeSource(commission.DataSourceSales),
		tank:      newFakeSource(commission.DataSourceTankStock),
		publisher: &recordingPublisher{},
		clock:     fixedClock{now: now},
	}
	mustSaveOrg(t, f.directory, masterdata.Organization{ID: "omc-1", Name: "Star Oil"})
	mustSaveOrg(t, f.directory, masterdata.Organization{ID: "omc-2", Name: "Frontier", DefaultRate: masterdata.Float(0.06)})
	for _, st := range []masterdata.Station{
		{ID: "station-1", Name: "Airport Road", Code: "S1", DealerID: "dealer-1", OMCID: "omc-1"},
		{ID: "station-2", Name: "Harbour", Code: "S2", DealerID: "dealer-2", OMCID: "omc-1"},
		{ID: "station-3", Name: "Ring Road", Code: "S3", DealerID: "dealer-3", OMCID: "omc-2"},
	} {
		st := st
		if err := f.directory.Save(ctx, &st); err != nil {
			t.Fatalf("save station: %v", err)
		}
	}

	var err error
	f.resolver, err = application.NewRateResolver(f.directory)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	f.agg, err = application.NewAggregator([]application.VolumeSource{f.sales, f.tank}, application.WithFetchTimeout(time.Second))
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}
	f.calc = application.NewCalculator(nil)
	f.tracker, err = application.NewProgressiveTracker(f.resolver, f.agg, f.calc, application.WithProgressiveClock(f.clock))
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}
	base := []application.LifecycleOption{
		application.WithClock(f.clock),
		application.WithIDGenerator(&seqIDs{}),
		application.WithPublisher(f.publisher),
	}
	f.lifecycle, err = application.NewLifecycleService(f.repo, f.directory, f.resolver, f.agg, f.calc, append(base, opts...)...)
	if err != nil {
		t.Fatalf("lifecycle: %v", err)
	}
	f.reader, err = application.NewScopedReader(f.repo, f.directory, f.tracker, application.WithReaderClock(f.clock))
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	return f
}

// seedDays spreads volume evenly over the first n days of period for station.
func (f *fixture) seedDays(src *fakeSource, stationID string, period commission.Period, n int, volumePerDay string) {
	for i := 0; i < n; i++ {
		src.add(stationID, period.Day(i), volumePerDay, "0")
	}
}

func mustSaveOrg(t *testing.T, dir *mdmemory.Directory, org masterdata.Organization) {
	t.Helper()
	if err := dir.SaveOrganization(context.Background(), &org); err != nil {
		t.Fatalf("save org: %v", err)
	}
}

func dec(value string) decimal.Decimal { return decimal.RequireFromString(value) }
