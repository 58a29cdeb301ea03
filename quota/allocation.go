/*
allocation.go - Per-agent split lookup, legacy normalization, write validation

PURPOSE:
  A target's allocation list says what share of each dimension one agent
  carries. Two shapes exist in stored data:

    agent_allocations[]   {agent_id, product_pct, cash_pct, customer_pct}
    agents_distribution[] {agent_id, product_target, cash_target, customer_target}

  The second (legacy) shape stores absolute quotas. AllocationFor hides the
  difference: callers always get a Split of percentages.

LOOKUP ORDER:
  1. Percentage entry for the agent -> returned as-is
  2. Absolute entry for the agent   -> pct = absolute / total * 100
                                       (0 when the total is 0)
  3. Neither                        -> all-zero Split

WRITE-SIDE RULE:
  For each dimension the percentages must sum to 100 (±0.5) or to exactly 0
  ("not allocated yet"). Reads never enforce this; ValidateAllocation is only
  called on the distribute path.

SEE ALSO:
  - quotas.go: Turns a Split into absolute quotas
*/
package quota

import (
	"github.com/shopspring/decimal"
)

// AllocationTolerance is how far a dimension total may drift from 100.
var AllocationTolerance = decimal.NewFromFloat(0.5)

// AllocationFor returns the agent's percentage split on t.
func AllocationFor(t Target, agent ID) Split {
	for _, a := range t.Allocations {
		if p, ok := a.(PercentageAllocation); ok && p.AgentID == agent {
			return p.Split
		}
	}
	for _, a := range t.Allocations {
		if abs, ok := a.(AbsoluteAllocation); ok && abs.AgentID == agent {
			return NormalizeAbsolute(t, abs)
		}
	}
	return Split{}
}

// NormalizeAbsolute converts a legacy absolute allocation into percentages
// of the target's totals.
func NormalizeAbsolute(t Target, a AbsoluteAllocation) Split {
	return Split{
		Product:  shareOf(decimal.NewFromInt(a.ProductTarget), decimal.NewFromInt(t.ProductTarget)),
		Cash:     shareOf(a.CashTarget, t.CashTarget),
		Customer: shareOf(decimal.NewFromInt(a.CustomerTarget), decimal.NewFromInt(t.CustomerTarget)),
	}
}

func shareOf(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred)
}

// ClampPct bounds a percentage to [0, 100].
func ClampPct(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// ValidateAllocation enforces the write-side invariant on a full
// allocation list.
func ValidateAllocation(allocs []PercentageAllocation) error {
	var product, cash, customer decimal.Decimal
	for _, a := range allocs {
		for _, dim := range []struct {
			name string
			pct  decimal.Decimal
		}{
			{"product", a.Split.Product},
			{"cash", a.Split.Cash},
			{"customer", a.Split.Customer},
		} {
			if dim.pct.IsNegative() || dim.pct.GreaterThan(hundred) {
				return &AllocationSumError{Dimension: dim.name, Total: dim.pct, AgentID: a.AgentID, Reason: "range"}
			}
		}
		product = product.Add(a.Split.Product)
		cash = cash.Add(a.Split.Cash)
		customer = customer.Add(a.Split.Customer)
	}

	if !validTotal(product) {
		return &AllocationSumError{Dimension: "product", Total: product, Reason: "sum"}
	}
	if !validTotal(cash) {
		return &AllocationSumError{Dimension: "cash", Total: cash, Reason: "sum"}
	}
	if !validTotal(customer) {
		return &AllocationSumError{Dimension: "customer", Total: customer, Reason: "sum"}
	}
	return nil
}

func validTotal(total decimal.Decimal) bool {
	return total.IsZero() || total.Sub(hundred).Abs().LessThanOrEqual(AllocationTolerance)
}

// EqualDistribution splits a target's totals evenly across agents as legacy
// absolute quotas, flooring each share. This is how newly set targets are
// pre-distributed before a manager assigns percentages.
func EqualDistribution(t Target, agents []User) []AbsoluteAllocation {
	if len(agents) == 0 {
		return nil
	}
	n := int64(len(agents))
	cashShare := t.CashTarget.Div(decimal.NewFromInt(n)).Floor()

	out := make([]AbsoluteAllocation, len(agents))
	for i, a := range agents {
		out[i] = AbsoluteAllocation{
			AgentID:        a.ID,
			AgentName:      a.Name,
			ProductTarget:  t.ProductTarget / n,
			CashTarget:     cashShare,
			CustomerTarget: t.CustomerTarget / n,
			Status:         "in_progress",
		}
	}
	return out
}
