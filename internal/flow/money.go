package flow

import (
	"github.com/shopspring/decimal"
)

var (
	billion = decimal.NewFromInt(1_000_000_000)
	million = decimal.NewFromInt(1_000_000)
	hundred = decimal.NewFromInt(100)
)

// PercentChange = (latest - previous) / previous × 100
func PercentChange(previous, latest decimal.Decimal) decimal.Decimal {
	return latest.Sub(previous).Div(previous).Mul(hundred)
}

// TradedValue = price × volume (money flow for sectors, turnover for stocks)
func TradedValue(price decimal.Decimal, volume int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(volume))
}

// FormatMoney renders a dollar amount as $X.XXB, $X.XXM or $X.XX
func FormatMoney(v decimal.Decimal) string {
	abs := v.Abs()
	switch {
	case abs.GreaterThanOrEqual(billion):
		return "$" + v.Div(billion).StringFixed(2) + "B"
	case abs.GreaterThanOrEqual(million):
		return "$" + v.Div(million).StringFixed(2) + "M"
	default:
		return "$" + v.StringFixed(2)
	}
}

// FormatPercent renders a signed percentage with two decimals ("+1.25%")
func FormatPercent(v decimal.Decimal) string {
	s := v.StringFixed(2)
	if v.Round(2).IsPositive() {
		s = "+" + s
	}
	return s + "%"
}
