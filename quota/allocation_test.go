package quota_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/target-engine/quota"
)

var (
	agentA = quota.MustParseID("64f1a2b3c4d5e6f7a8b9c0a1")
	agentB = quota.MustParseID("64f1a2b3c4d5e6f7a8b9c0b2")
	agentC = quota.MustParseID("64f1a2b3c4d5e6f7a8b9c0c3")
)

// =============================================================================
// LOOKUP TESTS
// =============================================================================

func TestAllocationFor_PercentageEntry(t *testing.T) {
	target := quota.Target{
		ProductTarget: 100, CashTarget: dec("10000"), CustomerTarget: 50,
		Allocations: []quota.Allocation{
			quota.PercentageAllocation{AgentID: agentA, Split: pct("40", "50", "0")},
			quota.PercentageAllocation{AgentID: agentB, Split: pct("60", "50", "100")},
		},
	}

	s := quota.AllocationFor(target, agentA)
	assertDecimal(t, "40", s.Product)
	assertDecimal(t, "50", s.Cash)
	assertDecimal(t, "0", s.Customer)
}

func TestAllocationFor_LegacyAbsolute_Normalized(t *testing.T) {
	// GIVEN: A legacy target with agents_distribution [{B, cash 2500}]
	//        and a cash total of 10000
	// THEN: B's inferred cash share is 25%

	target := quota.Target{
		CashTarget: dec("10000"),
		Allocations: []quota.Allocation{
			quota.AbsoluteAllocation{AgentID: agentB, CashTarget: dec("2500")},
		},
	}

	s := quota.AllocationFor(target, agentB)
	assertDecimal(t, "25", s.Cash)
	assertDecimal(t, "0", s.Product, "zero product total gives 0, not a division fault")
	assertDecimal(t, "0", s.Customer)
}

func TestAllocationFor_PercentageWinsOverLegacy(t *testing.T) {
	target := quota.Target{
		ProductTarget: 10, CashTarget: dec("1000"), CustomerTarget: 10,
		Allocations: []quota.Allocation{
			quota.AbsoluteAllocation{AgentID: agentA, ProductTarget: 10, CashTarget: dec("1000"), CustomerTarget: 10},
			quota.PercentageAllocation{AgentID: agentA, Split: pct("20", "30", "40")},
		},
	}

	s := quota.AllocationFor(target, agentA)
	assertDecimal(t, "20", s.Product)
	assertDecimal(t, "30", s.Cash)
	assertDecimal(t, "40", s.Customer)
}

func TestAllocationFor_NoEntry_IsZero(t *testing.T) {
	target := quota.Target{
		ProductTarget: 100,
		Allocations: []quota.Allocation{
			quota.PercentageAllocation{AgentID: agentA, Split: pct("100", "100", "100")},
		},
	}

	assert.True(t, quota.AllocationFor(target, agentC).IsZero())
	assert.False(t, target.HasAgent(agentC))
}

func TestNormalizeAbsolute_RoundTripsThroughQuotas(t *testing.T) {
	// GIVEN: Legacy absolute quotas that do not divide evenly
	// WHEN: Normalizing to percentages and recomputing quotas
	// THEN: The original absolute values come back

	target := quota.Target{ProductTarget: 7, CashTarget: dec("1000"), CustomerTarget: 3}
	cases := []quota.AbsoluteAllocation{
		{AgentID: agentA, ProductTarget: 3, CashTarget: dec("333.33"), CustomerTarget: 1},
		{AgentID: agentA, ProductTarget: 7, CashTarget: dec("1000"), CustomerTarget: 3},
		{AgentID: agentA, ProductTarget: 0, CashTarget: dec("0.01"), CustomerTarget: 2},
		{AgentID: agentA, ProductTarget: 5, CashTarget: dec("666.67"), CustomerTarget: 0},
	}

	for _, abs := range cases {
		split := quota.NormalizeAbsolute(target, abs)
		q := quota.QuotasFor(target, split)

		assert.Equal(t, abs.ProductTarget, q.Product)
		assertDecimal(t, abs.CashTarget.String(), q.Cash)
		assert.Equal(t, abs.CustomerTarget, q.Customer)
	}
}

// =============================================================================
// WRITE-SIDE VALIDATION TESTS
// =============================================================================

func allocs(splits ...quota.Split) []quota.PercentageAllocation {
	ids := []quota.ID{agentA, agentB, agentC}
	out := make([]quota.PercentageAllocation, len(splits))
	for i, s := range splits {
		out[i] = quota.PercentageAllocation{AgentID: ids[i], Split: s}
	}
	return out
}

func TestValidateAllocation_Accepts(t *testing.T) {
	tests := []struct {
		name   string
		allocs []quota.PercentageAllocation
	}{
		{"exact 100", allocs(pct("40", "50", "30"), pct("60", "50", "70"))},
		{"within tolerance below", allocs(pct("33.3", "33.3", "33.3"), pct("33.3", "33.3", "33.3"), pct("33", "33", "33"))},
		{"within tolerance above", allocs(pct("50.25", "50", "50"), pct("50.25", "50", "50"))},
		{"unallocated dimension", allocs(pct("40", "0", "100"), pct("60", "0", "0"))},
		{"nothing allocated", allocs(pct("0", "0", "0"))},
		{"empty list", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, quota.ValidateAllocation(tt.allocs))
		})
	}
}

func TestValidateAllocation_RejectsBadSum(t *testing.T) {
	// GIVEN: Cash shares summing to 99.4
	// THEN: AllocationSumError on "cash"

	err := quota.ValidateAllocation(allocs(pct("50", "49.4", "50"), pct("50", "50", "50")))
	require.Error(t, err)
	assert.ErrorIs(t, err, quota.ErrInvalidAllocation)
	assert.True(t, quota.IsClientError(err))

	var sumErr *quota.AllocationSumError
	require.ErrorAs(t, err, &sumErr)
	assert.Equal(t, "cash", sumErr.Dimension)
	assert.Equal(t, "sum", sumErr.Reason)
	assertDecimal(t, "99.4", sumErr.Total)
}

func TestValidateAllocation_RejectsOutOfRangeEntry(t *testing.T) {
	for _, bad := range []string{"-1", "100.01", "150"} {
		err := quota.ValidateAllocation(allocs(pct("50", "50", "50"), pct("50", "50", bad)))

		var sumErr *quota.AllocationSumError
		require.ErrorAs(t, err, &sumErr, "customer pct %s", bad)
		assert.Equal(t, "range", sumErr.Reason)
		assert.Equal(t, "customer", sumErr.Dimension)
		assert.Equal(t, agentB, sumErr.AgentID)
	}
}

func TestClampPct(t *testing.T) {
	assertDecimal(t, "0", quota.ClampPct(dec("-5")))
	assertDecimal(t, "100", quota.ClampPct(dec("120")))
	assertDecimal(t, "42.5", quota.ClampPct(dec("42.5")))
}

// =============================================================================
// EQUAL DISTRIBUTION TESTS
// =============================================================================

func TestEqualDistribution_FloorsShares(t *testing.T) {
	// GIVEN: 100 units, 1000 cash, 10 customers across 3 agents
	// THEN: 33 units, 333 cash, 3 customers each (floor)

	target := quota.Target{ProductTarget: 100, CashTarget: dec("1000"), CustomerTarget: 10}
	agents := []quota.User{{ID: agentA, Name: "Ama"}, {ID: agentB, Name: "Kofi"}, {ID: agentC, Name: "Yaw"}}

	dist := quota.EqualDistribution(target, agents)
	require.Len(t, dist, 3)
	for i, d := range dist {
		assert.Equal(t, agents[i].ID, d.AgentID)
		assert.Equal(t, agents[i].Name, d.AgentName)
		assert.Equal(t, int64(33), d.ProductTarget)
		assertDecimal(t, "333", d.CashTarget)
		assert.Equal(t, int64(3), d.CustomerTarget)
		assert.Equal(t, "in_progress", d.Status)
	}

	assert.Empty(t, quota.EqualDistribution(target, nil))
}

func TestTarget_WithPercentages_KeepsLegacy(t *testing.T) {
	target := quota.Target{
		Allocations: []quota.Allocation{
			quota.PercentageAllocation{AgentID: agentA, Split: pct("100", "100", "100")},
			quota.AbsoluteAllocation{AgentID: agentB, CashTarget: decimal.NewFromInt(10)},
		},
	}

	updated := target.WithPercentages(allocs(pct("0", "0", "0"), pct("100", "100", "100")))

	assert.Len(t, updated.Percentages(), 2)
	assert.Len(t, updated.Legacy(), 1)
	assert.Len(t, target.Percentages(), 1, "original is not mutated")
}
