/*
achievement.go - Measuring progress from raw records

PURPOSE:
  Achievement is never stored. It is recomputed on every request by
  reducing two record streams over the target's window:

    payments  -> cash        (sum of amount, withdrawals/reversals excluded)
    purchases -> products    (sum of quantity, missing quantity counts 1)
              -> customers   (distinct customers with a qualifying line)

ATTRIBUTION:
  A purchase line counts for a set of agents when the owning customer's
  root agent is in the set and, if the line carries its own agent, that
  agent is in the set too. The reader gets the agent set so the same code
  serves one agent and a manager's whole roster.

  The reader re-checks windows and types on what the sources return, so a
  source that over-fetches (for example a date prefix match) stays correct.

SEE ALSO:
  - store.go: PaymentSource, PurchaseSource
  - aggregator.go: Calls Achieved once per (target, agent)
*/
package quota

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// AchievementReader reduces payment and purchase records to Achievement.
type AchievementReader struct {
	Payments  PaymentSource
	Purchases PurchaseSource
}

// Achieved measures the combined achievement of agents over w. No records
// is zero achievement, not an error.
func (r AchievementReader) Achieved(ctx context.Context, agents []ID, w Period) (Achievement, error) {
	var a Achievement
	if len(agents) == 0 {
		return a, nil
	}

	payments, err := r.Payments.Payments(ctx, agents, w)
	if err != nil {
		return Achievement{}, fmt.Errorf("load payments: %w", err)
	}
	a.Cash = CashCollected(payments, agents, w)

	lines, err := r.Purchases.PurchaseLines(ctx, agents, w)
	if err != nil {
		return Achievement{}, fmt.Errorf("load purchases: %w", err)
	}
	a.Products, a.Customers = ProductsAndCustomers(lines, agents, w)
	return a, nil
}

// CashCollected sums qualifying payment amounts.
func CashCollected(payments []Payment, agents []ID, w Period) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if !p.Type.CountsAsCash() || !ContainsID(agents, p.AgentID) || !w.ContainsRaw(p.Date) {
			continue
		}
		total = total.Add(p.Amount)
	}
	return total
}

// ProductsAndCustomers sums units and counts distinct customers over the
// qualifying purchase lines.
func ProductsAndCustomers(records []PurchaseRecord, agents []ID, w Period) (products, customers int64) {
	seen := make(map[ID]struct{})
	for _, r := range records {
		if !attributed(r, agents) || !w.ContainsRaw(r.Line.PurchaseDate) {
			continue
		}
		products += r.Line.Units()
		if _, ok := seen[r.CustomerID]; !ok {
			seen[r.CustomerID] = struct{}{}
		}
	}
	return products, int64(len(seen))
}

func attributed(r PurchaseRecord, agents []ID) bool {
	if !ContainsID(agents, r.CustomerAgentID) {
		return false
	}
	return r.Line.AgentID == nil || ContainsID(agents, *r.Line.AgentID)
}
