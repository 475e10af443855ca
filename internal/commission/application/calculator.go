package application

import (
	"sort"

	"github.com/shopspring/decimal"

	commission "fuel-commission/internal/commission/domain"
)

// CapMargin is the price-cap spread used for windfall and shortfall.
type CapMargin struct {
	PriceCap       decimal.Decimal
	SellingPrice   decimal.Decimal
	ExpectedMargin decimal.Decimal
}

// BonusTier grants a bonus once volume reaches MinVolume.
type BonusTier struct {
	MinVolume    decimal.Decimal
	Amount       decimal.Decimal
	RatePerLitre decimal.Decimal
}

// CalculationInput is everything one calculation needs.
type CalculationInput struct {
	Volume    decimal.Decimal
	Sales     decimal.Decimal
	Rate      decimal.Decimal
	CapMargin *CapMargin
}

// Calculator is a pure commission formula. It holds only immutable policy.
type Calculator struct {
	tiers []BonusTier
}

// NewCalculator constructs a calculator with the given bonus table.
func NewCalculator(tiers []BonusTier) *Calculator {
	sorted := make([]BonusTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinVolume.LessThan(sorted[j].MinVolume)
	})
	return &Calculator{tiers: sorted}
}

// WithoutBonus returns a calculator sharing the formula but no bonus table.
func (c *Calculator) WithoutBonus() *Calculator {
	return &Calculator{}
}

// Calculate produces the breakdown for one station and period (or day).
func (c *Calculator) Calculate(in CalculationInput) commission.Breakdown {
	volume := commission.RoundVolume(in.Volume)
	if volume.IsNegative() {
		volume = decimal.Zero
	}
	base := commission.RoundCurrency(volume.Mul(in.Rate))
	windfall, shortfall := decimal.Zero, decimal.Zero
	if in.CapMargin != nil {
		windfall, shortfall = capAdjustment(*in.CapMargin, volume)
	}
	bonus := c.bonus(volume)
	return commission.Breakdown{
		Volume:    volume,
		Sales:     commission.RoundCurrency(in.Sales),
		Rate:      in.Rate,
		Base:      base,
		Windfall:  windfall,
		Shortfall: shortfall,
		Bonus:     bonus,
		Total:     commission.TotalOf(base, windfall, shortfall, bonus),
	}
}

func capAdjustment(m CapMargin, volume decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	actual := m.SellingPrice.Sub(m.PriceCap)
	delta := actual.Sub(m.ExpectedMargin)
	switch {
	case delta.IsPositive():
		return commission.RoundCurrency(delta.Mul(volume)), decimal.Zero
	case delta.IsNegative():
		return decimal.Zero, commission.RoundCurrency(delta.Neg().Mul(volume))
	default:
		return decimal.Zero, decimal.Zero
	}
}

func (c *Calculator) bonus(volume decimal.Decimal) decimal.Decimal {
	if c == nil || len(c.tiers) == 0 {
		return decimal.Zero
	}
	var tier *BonusTier
	for i := range c.tiers {
		if c.tiers[i].MinVolume.LessThanOrEqual(volume) {
			tier = &c.tiers[i]
		}
	}
	if tier == nil {
		return decimal.Zero
	}
	return commission.RoundCurrency(tier.Amount.Add(tier.RatePerLitre.Mul(volume)))
}
