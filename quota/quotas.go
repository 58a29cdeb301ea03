package quota

import "github.com/shopspring/decimal"

// =============================================================================
// QUOTA CALCULATOR
// =============================================================================

// Rounding is half away from zero everywhere (decimal.Round): 2.5 -> 3,
// 0.125 -> 0.13 at two places. Quotas, scores and commission all use it.

// QuotasFor returns the agent's absolute quotas on t for the given split.
// A zero quota means the agent has no stake in that dimension.
func QuotasFor(t Target, s Split) Quotas {
	return Quotas{
		Product:  roundUnits(decimal.NewFromInt(t.ProductTarget).Mul(s.Product).Div(hundred)),
		Cash:     t.CashTarget.Mul(s.Cash).Div(hundred).Round(2),
		Customer: roundUnits(decimal.NewFromInt(t.CustomerTarget).Mul(s.Customer).Div(hundred)),
	}
}

// TotalQuotas are the target's own totals, used for manager-level records.
func TotalQuotas(t Target) Quotas {
	return Quotas{
		Product:  t.ProductTarget,
		Cash:     t.CashTarget.Round(2),
		Customer: t.CustomerTarget,
	}
}

func roundUnits(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
