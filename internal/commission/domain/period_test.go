package commission

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2024-02")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Days() != 29 {
		t.Fatalf("expected 29 days in 2024-02, got %d", p.Days())
	}
	if p.Previous().String() != "2024-01" {
		t.Fatalf("previous mismatch: %s", p.Previous())
	}
	if _, err := ParsePeriod("2024/02"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPeriod_ElapsedDays(t *testing.T) {
	p := MustParsePeriod("2024-03")
	cases := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2024, time.February, 28, 12, 0, 0, 0, time.UTC), 0},
		{time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, time.March, 15, 23, 59, 0, 0, time.UTC), 15},
		{time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC), 31},
	}
	for _, tc := range cases {
		if got := p.ElapsedDays(tc.now); got != tc.want {
			t.Fatalf("elapsed days at %s: got %d want %d", tc.now, got, tc.want)
		}
	}
}

func TestPeriod_JSON(t *testing.T) {
	var payload struct {
		Period Period `json:"period"`
	}
	if err := json.Unmarshal([]byte(`{"period":"2024-03"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"period":"2024-03"}` {
		t.Fatalf("unexpected json: %s", data)
	}
}

func TestClassifyTrend_DeadZone(t *testing.T) {
	cases := []struct {
		today, yesterday string
		want             Trend
	}{
		{"110", "100", TrendNeutral},
		{"110.01", "100", TrendUp},
		{"90", "100", TrendNeutral},
		{"89.99", "100", TrendDown},
		{"5", "0", TrendUp},
		{"0", "0", TrendNeutral},
	}
	for _, tc := range cases {
		got := ClassifyTrend(decimal.RequireFromString(tc.today), decimal.RequireFromString(tc.yesterday))
		if got != tc.want {
			t.Fatalf("trend(%s vs %s): got %s want %s", tc.today, tc.yesterday, got, tc.want)
		}
	}
}

func TestBuildStats(t *testing.T) {
	current := MustParsePeriod("2024-03")
	rows := []StatusTotal{
		{Period: current, Status: StatusPaid, Count: 2, TotalCommission: decimal.NewFromInt(300), TotalVolume: decimal.NewFromInt(6000)},
		{Period: current, Status: StatusCalculated, Count: 1, TotalCommission: decimal.NewFromInt(100), TotalVolume: decimal.NewFromInt(2000)},
		{Period: current.Previous(), Status: StatusApproved, Count: 1, TotalCommission: decimal.NewFromInt(50), TotalVolume: decimal.NewFromInt(1000)},
		{Period: current, Status: StatusCancelled, Count: 1, TotalCommission: decimal.NewFromInt(999), TotalVolume: decimal.NewFromInt(1)},
	}
	stats := BuildStats(current, rows)
	if stats.CurrentPeriod.Count != 3 || !stats.CurrentPeriod.TotalCommission.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("current totals mismatch: %+v", stats.CurrentPeriod)
	}
	if stats.PreviousPeriod.Count != 1 || !stats.PreviousPeriod.TotalCommission.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("previous totals mismatch: %+v", stats.PreviousPeriod)
	}
	if !stats.PaidAmount.Equal(decimal.NewFromInt(300)) || !stats.PendingAmount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("paid/pending mismatch: paid=%s pending=%s", stats.PaidAmount, stats.PendingAmount)
	}
	if stats.StatusCounts[StatusCancelled] != 1 {
		t.Fatalf("cancelled count missing")
	}
}
