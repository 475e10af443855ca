package commission

import (
	"encoding/json"
	"fmt"
	"time"
)

const periodLayout = "2006-01"

// Period is a calendar month over which commission is settled.
type Period struct {
	start time.Time
}

// ParsePeriod parses a YYYY-MM period identifier.
func ParsePeriod(value string) (Period, error) {
	if value == "" {
		return Period{}, fmt.Errorf("%w: period required", ErrValidation)
	}
	t, err := time.Parse(periodLayout, value)
	if err != nil {
		return Period{}, fmt.Errorf("%w: period must be YYYY-MM", ErrValidation)
	}
	return PeriodOf(t), nil
}

// MustParsePeriod parses a period and panics on error.
func MustParsePeriod(value string) Period {
	p, err := ParsePeriod(value)
	if err != nil {
		panic(err)
	}
	return p
}

// PeriodOf returns the period containing t (evaluated in UTC).
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{start: time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)}
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool { return p.start.IsZero() }

// String returns the YYYY-MM identifier.
func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return p.start.Format(periodLayout)
}

// Start returns the first instant of the period.
func (p Period) Start() time.Time { return p.start }

// End returns the first instant after the period.
func (p Period) End() time.Time { return p.start.AddDate(0, 1, 0) }

// Days returns the number of calendar days in the period.
func (p Period) Days() int {
	if p.IsZero() {
		return 0
	}
	return int(p.End().Sub(p.start).Hours() / 24)
}

// Previous returns the preceding period.
func (p Period) Previous() Period { return Period{start: p.start.AddDate(0, -1, 0)} }

// Contains reports whether t falls within the period.
func (p Period) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.start) && t.Before(p.End())
}

// Day returns the start of the n-th day (0-based) of the period.
func (p Period) Day(n int) time.Time { return p.start.AddDate(0, 0, n) }

// ElapsedDays returns how many days of the period have started by now,
// counting today. Closed periods return Days().
func (p Period) ElapsedDays(now time.Time) int {
	now = now.UTC()
	if p.IsZero() || now.Before(p.start) {
		return 0
	}
	if !now.Before(p.End()) {
		return p.Days()
	}
	return now.Day()
}

// IsClosed reports whether the period has ended by now.
func (p Period) IsClosed(now time.Time) bool {
	return !now.UTC().Before(p.End())
}

// MarshalJSON encodes the period as "YYYY-MM".
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a "YYYY-MM" string.
func (p *Period) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*p = Period{}
		return nil
	}
	parsed, err := ParsePeriod(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
