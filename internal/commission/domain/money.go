package commission

import "github.com/shopspring/decimal"

const (
	currencyPlaces = 2
	volumePlaces   = 3
)

// RoundCurrency rounds half-up to 2 decimals.
func RoundCurrency(d decimal.Decimal) decimal.Decimal { return d.Round(currencyPlaces) }

// RoundVolume rounds half-up to 3 decimals.
func RoundVolume(d decimal.Decimal) decimal.Decimal { return d.Round(volumePlaces) }

// Breakdown is the result of one commission calculation.
type Breakdown struct {
	Volume    decimal.Decimal `json:"total_volume"`
	Sales     decimal.Decimal `json:"total_sales"`
	Rate      decimal.Decimal `json:"commission_rate_applied"`
	Base      decimal.Decimal `json:"base_commission_amount"`
	Windfall  decimal.Decimal `json:"windfall_amount"`
	Shortfall decimal.Decimal `json:"shortfall_amount"`
	Bonus     decimal.Decimal `json:"bonus_amount"`
	Total     decimal.Decimal `json:"total_commission"`
}

// TotalOf applies max(0, base + windfall - shortfall + bonus), rounded to currency.
func TotalOf(base, windfall, shortfall, bonus decimal.Decimal) decimal.Decimal {
	total := base.Add(windfall).Sub(shortfall).Add(bonus)
	if total.IsNegative() {
		return decimal.Zero
	}
	return RoundCurrency(total)
}
