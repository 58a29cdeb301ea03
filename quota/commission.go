package quota

import "github.com/shopspring/decimal"

// =============================================================================
// COMMISSION POLICY - Value object, passed in explicitly
// =============================================================================

// CommissionPolicy is a global percentage plus per-agent overrides.
// A nil Global means no global record exists.
type CommissionPolicy struct {
	Global    *decimal.Decimal
	Overrides map[ID]decimal.Decimal
}

// RateFor resolves the effective percentage for an agent:
// override, else global, else 0.
func (p CommissionPolicy) RateFor(agent ID) decimal.Decimal {
	if pct, ok := p.Overrides[agent]; ok {
		return pct
	}
	if p.Global != nil {
		return *p.Global
	}
	return decimal.Zero
}

// GlobalRate returns the global percentage, or 0 when unset.
func (p CommissionPolicy) GlobalRate() decimal.Decimal {
	if p.Global == nil {
		return decimal.Zero
	}
	return *p.Global
}

// =============================================================================
// COMMISSION ENGINE
// =============================================================================

// Commission is paid only on cash collected above quota.
//
//	surplus = max(0, cash - quota)
//	amount  = round(surplus * pct / 100, 2)
//
// The amount is computed from the unrounded surplus; Surplus is rounded
// only for output.
func Commission(cash, quota, pct decimal.Decimal) Payout {
	surplus := cash.Sub(quota)
	if surplus.IsNegative() {
		surplus = decimal.Zero
	}
	return Payout{
		Surplus: surplus.Round(2),
		Amount:  surplus.Mul(pct).Div(hundred).Round(2),
	}
}
