package commission

import (
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// Filter selects current commission records.
type Filter struct {
	Period    Period
	Status    Status
	StationID string
	OMCID     string
	DealerID  string
}

// CacheKey returns a stable identifier for cache partitioning.
func (f Filter) CacheKey() string {
	return f.Period.String() + "|" + string(f.Status) + "|" + f.StationID + "|" + f.OMCID + "|" + f.DealerID
}

// Page requests one page of results (1-based).
type Page struct {
	Number int
	Size   int
}

// Normalize applies defaults and bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

// Offset returns the row offset of the page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// ParsePage parses page/page_size query values, falling back to defaults.
func ParsePage(number, size string) Page {
	n, _ := strconv.Atoi(number)
	s, _ := strconv.Atoi(size)
	return Page{Number: n, Size: s}.Normalize()
}

// PageResult is a paginated record list.
type PageResult struct {
	Items      []Record `json:"items"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
}

// NewPageResult builds a page result.
func NewPageResult(items []Record, total int, page Page) PageResult {
	if items == nil {
		items = []Record{}
	}
	pages := 0
	if page.Size > 0 {
		pages = (total + page.Size - 1) / page.Size
	}
	return PageResult{Items: items, Total: total, Page: page.Number, PageSize: page.Size, TotalPages: pages}
}

// StatusTotal is one (period, status) aggregate row.
type StatusTotal struct {
	Period          Period
	Status          Status
	Count           int
	TotalCommission decimal.Decimal
	TotalVolume     decimal.Decimal
}

// PeriodTotals summarizes one period.
type PeriodTotals struct {
	Period          Period          `json:"period"`
	Count           int             `json:"count"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
}

// Stats is the aggregate view returned by getCommissionStats.
type Stats struct {
	CurrentPeriod  PeriodTotals    `json:"current_period"`
	PreviousPeriod PeriodTotals    `json:"previous_period"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	StatusCounts   map[Status]int  `json:"status_counts"`
}

// BuildStats folds aggregate rows into Stats relative to the current period.
// Cancelled records count towards status counts only.
func BuildStats(current Period, rows []StatusTotal) Stats {
	stats := Stats{
		CurrentPeriod:  PeriodTotals{Period: current, TotalCommission: decimal.Zero, TotalVolume: decimal.Zero},
		PreviousPeriod: PeriodTotals{Period: current.Previous(), TotalCommission: decimal.Zero, TotalVolume: decimal.Zero},
		PaidAmount:     decimal.Zero,
		PendingAmount:  decimal.Zero,
		StatusCounts:   make(map[Status]int),
	}
	previous := current.Previous()
	for _, row := range rows {
		stats.StatusCounts[row.Status] += row.Count
		if row.Status == StatusCancelled {
			continue
		}
		switch row.Status {
		case StatusPaid:
			stats.PaidAmount = stats.PaidAmount.Add(row.TotalCommission)
		default:
			stats.PendingAmount = stats.PendingAmount.Add(row.TotalCommission)
		}
		var target *PeriodTotals
		switch row.Period.String() {
		case current.String():
			target = &stats.CurrentPeriod
		case previous.String():
			target = &stats.PreviousPeriod
		}
		if target == nil {
			continue
		}
		target.Count += row.Count
		target.TotalCommission = target.TotalCommission.Add(row.TotalCommission)
		target.TotalVolume = target.TotalVolume.Add(row.TotalVolume)
	}
	return stats
}
