package quota

import "github.com/shopspring/decimal"

// =============================================================================
// SCORE ENGINE
// =============================================================================

// Score turns quotas and achievement into completion percentages.
//
// Each dimension is achieved/quota*100 rounded to 2 places, or 0 when the
// quota is 0. Overall is the mean of the dimensions with a nonzero quota;
// a zero-quota dimension means "no stake" and is left out of the mean
// instead of counting as 0%. With no stake at all, overall is 0.
func Score(q Quotas, a Achievement) Scores {
	var s Scores
	var sum decimal.Decimal
	var counted int64

	if q.Product != 0 {
		s.Product = percentOf(decimal.NewFromInt(a.Products), decimal.NewFromInt(q.Product))
		sum = sum.Add(s.Product)
		counted++
	}
	if !q.Cash.IsZero() {
		s.Payment = percentOf(a.Cash, q.Cash)
		sum = sum.Add(s.Payment)
		counted++
	}
	if q.Customer != 0 {
		s.Customer = percentOf(decimal.NewFromInt(a.Customers), decimal.NewFromInt(q.Customer))
		sum = sum.Add(s.Customer)
		counted++
	}

	if counted > 0 {
		s.Overall = sum.Div(decimal.NewFromInt(counted)).Round(2)
	}
	return s
}

func percentOf(achieved, quota decimal.Decimal) decimal.Decimal {
	if quota.IsZero() {
		return decimal.Zero
	}
	return achieved.Mul(hundred).Div(quota).Round(2)
}
