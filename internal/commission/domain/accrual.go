package commission

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trend classifies a day's earnings against the previous day.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// trendDeadZone is the relative change treated as noise.
var trendDeadZone = decimal.RequireFromString("0.10")

// ClassifyTrend compares today's earnings to yesterday's with a ±10% dead zone.
func ClassifyTrend(today, yesterday decimal.Decimal) Trend {
	if yesterday.IsZero() {
		if today.IsPositive() {
			return TrendUp
		}
		return TrendNeutral
	}
	change := today.Sub(yesterday).Div(yesterday.Abs())
	switch {
	case change.GreaterThan(trendDeadZone):
		return TrendUp
	case change.LessThan(trendDeadZone.Neg()):
		return TrendDown
	default:
		return TrendNeutral
	}
}

// DailyAccrualPoint is one day of progressive accrual. Derived, never persisted.
type DailyAccrualPoint struct {
	Date                 time.Time       `json:"date"`
	StationID            string          `json:"station_id"`
	Volume               decimal.Decimal `json:"volume"`
	CommissionEarned     decimal.Decimal `json:"commission_earned"`
	CumulativeCommission decimal.Decimal `json:"cumulative_commission"`
	CumulativeVolume     decimal.Decimal `json:"cumulative_volume"`
	Trend                Trend           `json:"trend"`
	IsToday              bool            `json:"is_today"`
	HasData              bool            `json:"has_data"`
}

// Projection is the progressive view of one station's period.
type Projection struct {
	StationID                string              `json:"station_id"`
	Period                   Period              `json:"period"`
	RateApplied              decimal.Decimal     `json:"commission_rate_applied"`
	DataSource               DataSource          `json:"data_source,omitempty"`
	Points                   []DailyAccrualPoint `json:"points"`
	ElapsedDays              int                 `json:"elapsed_days"`
	TotalDays                int                 `json:"total_days"`
	CumulativeCommission     decimal.Decimal     `json:"cumulative_commission"`
	EstimatedFinalCommission decimal.Decimal     `json:"estimated_final_commission"`
	IsEstimate               bool                `json:"is_estimate"`
}
