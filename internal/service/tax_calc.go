package service

import (
	"fmt"
	"sort"

	"sattva/internal/model"

	"github.com/shopspring/decimal"
)

// TaxResult is the outcome of evaluating one configuration against a base
// amount. Breakdown order follows rule declaration order.
type TaxResult struct {
	TotalTax  decimal.Decimal `json:"total_tax"`
	Breakdown []model.TaxLine `json:"tax_breakdown"`
}

var oneHundred = decimal.NewFromInt(100)

// CalculateTaxes computes the tax breakdown for a configuration. Pure
// function of (config, baseAmount): inactive rules are skipped, each line
// amount is rounded to 2 decimals half-up before accumulating.
//
// A rule carrying an unimplemented calculation method (tiered, or anything
// unknown) is a configuration error, not zero tax — under-collecting
// silently is worse than failing the quote.
func CalculateTaxes(config *model.TaxConfiguration, baseAmount decimal.Decimal) (TaxResult, error) {
	if baseAmount.IsNegative() {
		return TaxResult{}, model.ErrInvalidAmount
	}

	total := decimal.Zero
	breakdown := make([]model.TaxLine, 0, len(config.Rules))

	for _, rule := range config.Rules {
		if !rule.IsActive {
			continue
		}

		var amount decimal.Decimal
		switch rule.CalculationMethod {
		case model.CalcMethodPercentage:
			amount = baseAmount.Mul(rule.Rate).Div(oneHundred)
		case model.CalcMethodFixedAmount:
			amount = rule.Rate
		default:
			return TaxResult{}, fmt.Errorf("rule %q in config %q: %w (%s)",
				rule.TaxType, config.ConfigCode, model.ErrUnsupportedCalculationMethod, rule.CalculationMethod)
		}

		amount = amount.Round(2)
		total = total.Add(amount)

		breakdown = append(breakdown, model.TaxLine{
			TaxType:           rule.TaxType,
			Rate:              rule.Rate,
			CalculationMethod: rule.CalculationMethod,
			ApplicableAmount:  baseAmount,
			CalculatedAmount:  amount,
			Description:       rule.Description,
		})
	}

	return TaxResult{TotalTax: total.Round(2), Breakdown: breakdown}, nil
}

// SortByPrecedence orders simultaneously valid configurations: default
// configs first, then most recently effective, then highest version. The
// first element is the one applied to a booking.
func SortByPrecedence(configs []model.TaxConfiguration) {
	sort.SliceStable(configs, func(i, j int) bool {
		if configs[i].IsDefault != configs[j].IsDefault {
			return configs[i].IsDefault
		}
		if !configs[i].EffectiveFrom.Equal(configs[j].EffectiveFrom) {
			return configs[i].EffectiveFrom.After(configs[j].EffectiveFrom)
		}
		return configs[i].Version > configs[j].Version
	})
}
