package factory_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/target-engine/factory"
	"github.com/warp/target-engine/quota"
)

const (
	targetHex  = "650a1b2c3d4e5f6a7b8c9d01"
	managerHex = "650a1b2c3d4e5f6a7b8c9d02"
	agentAHex  = "650a1b2c3d4e5f6a7b8c9d03"
	agentBHex  = "650a1b2c3d4e5f6a7b8c9d04"
)

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// =============================================================================
// PARSE TESTS
// =============================================================================

func TestParseTarget_CurrentFormat(t *testing.T) {
	doc := `{
		"_id": {"$oid": "` + targetHex + `"},
		"manager_id": "` + managerHex + `",
		"manager_name": "Mensah",
		"branch": "Kumasi",
		"title": "October sales",
		"duration_type": "Monthly",
		"product_target": 100,
		"cash_target": 10000.50,
		"customer_target": "50",
		"agent_allocations": [
			{"agent_id": "` + agentAHex + `", "agent_name": "Ama", "product_pct": 40, "cash_pct": "50", "customer_pct": null}
		],
		"created_at": {"$date": "2025-10-01T08:00:00Z"}
	}`

	target, err := factory.NewTargetFactory().ParseTarget([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, quota.MustParseID(targetHex), target.ID)
	assert.Equal(t, quota.MustParseID(managerHex), target.ManagerID)
	assert.Equal(t, quota.DurationMonthly, target.Duration)
	assert.Equal(t, int64(100), target.ProductTarget)
	assertDecimal(t, "10000.50", target.CashTarget)
	assert.Equal(t, int64(50), target.CustomerTarget)
	assert.Equal(t, time.Date(2025, time.October, 1, 8, 0, 0, 0, time.UTC), target.CreatedAt)

	require.Len(t, target.Percentages(), 1)
	p := target.Percentages()[0]
	assert.Equal(t, quota.MustParseID(agentAHex), p.AgentID)
	assert.Equal(t, "Ama", p.AgentName)
	assertDecimal(t, "40", p.Split.Product)
	assertDecimal(t, "50", p.Split.Cash)
	assertDecimal(t, "0", p.Split.Customer)
}

func TestParseTarget_LegacyDistribution(t *testing.T) {
	// GIVEN: A set-target document with absolute per-agent quotas
	// THEN: The entries decode as AbsoluteAllocation and normalize to 25%

	doc := `{
		"_id": "` + targetHex + `",
		"manager_id": {"$oid": "` + managerHex + `"},
		"title": "Cash drive",
		"duration_type": "weekly",
		"start_date": "2025-10-01",
		"end_date": "2025-10-31",
		"product_target": 0,
		"cash_target": 10000,
		"customer_target": 0,
		"agents_distribution": [
			{"agent_id": "` + agentBHex + `", "agent_name": "Kofi", "cash_target": 2500, "status": "in_progress"}
		],
		"created_at": {"$date": {"$numberLong": "1759305600000"}}
	}`

	target, err := factory.NewTargetFactory().ParseTarget([]byte(doc))
	require.NoError(t, err)

	require.Len(t, target.Legacy(), 1)
	abs := target.Legacy()[0]
	assert.Equal(t, quota.MustParseID(agentBHex), abs.AgentID)
	assertDecimal(t, "2500", abs.CashTarget)
	assert.Equal(t, "in_progress", abs.Status)

	assert.Equal(t, "2025-10-01", target.StartDate)
	assert.Equal(t, "2025-10-31", target.EndDate)
	assert.Equal(t, time.Date(2025, time.October, 1, 8, 0, 0, 0, time.UTC), target.CreatedAt)

	assertDecimal(t, "25", quota.AllocationFor(target, abs.AgentID).Cash)
}

func TestParseTarget_OlderAllocationsKey(t *testing.T) {
	doc := `{
		"_id": "` + targetHex + `",
		"manager_id": "` + managerHex + `",
		"allocations": [{"agent_id": "` + agentAHex + `", "product_pct": 100, "cash_pct": 100, "customer_pct": 100}]
	}`

	target, err := factory.NewTargetFactory().ParseTarget([]byte(doc))
	require.NoError(t, err)
	assert.True(t, target.HasAgent(quota.MustParseID(agentAHex)))
	assert.Equal(t, quota.FullSplit(), quota.AllocationFor(target, quota.MustParseID(agentAHex)))
}

func TestParseTarget_ExtendedNumbersAndDates(t *testing.T) {
	doc := `{
		"_id": {"$oid": "` + targetHex + `"},
		"manager_id": "` + managerHex + `",
		"product_target": {"$numberInt": "12"},
		"cash_target": {"$numberDecimal": "99.95"},
		"customer_target": {"$numberLong": "7"},
		"start_date": {"$date": "2025-07-01T00:00:00Z"},
		"end_date": {"$date": "2025-09-30T00:00:00Z"}
	}`

	target, err := factory.NewTargetFactory().ParseTarget([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, int64(12), target.ProductTarget)
	assertDecimal(t, "99.95", target.CashTarget)
	assert.Equal(t, int64(7), target.CustomerTarget)

	w := quota.ResolveWindow(target, time.Date(2025, time.October, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, quota.NewDate(2025, time.July, 1), w.Start)
	assert.Equal(t, quota.NewDate(2025, time.September, 30), w.End)
}

func TestParseTarget_LenientNumbers(t *testing.T) {
	doc := `{"_id": "` + targetHex + `", "product_target": "lots", "cash_target": "", "customer_target": null}`

	target, err := factory.NewTargetFactory().ParseTarget([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, int64(0), target.ProductTarget)
	assert.True(t, target.CashTarget.IsZero())
	assert.Equal(t, int64(0), target.CustomerTarget)
}

func TestParseTarget_InvalidID_Fails(t *testing.T) {
	_, err := factory.NewTargetFactory().ParseTarget([]byte(`{"_id": "not-an-id"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, quota.ErrInvalidID)

	_, err = factory.NewTargetFactory().ParseTarget([]byte(`{not json`))
	assert.Error(t, err)
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestMarshalTarget_RoundTrip(t *testing.T) {
	updated := time.Date(2025, time.October, 3, 9, 30, 0, 0, time.UTC)
	original := quota.Target{
		ID:             quota.MustParseID(targetHex),
		ManagerID:      quota.MustParseID(managerHex),
		ManagerName:    "Mensah",
		Branch:         "Kumasi",
		Title:          "October sales",
		Duration:       quota.DurationMonthly,
		ProductTarget:  100,
		CashTarget:     decimal.RequireFromString("10000.25"),
		CustomerTarget: 50,
		CreatedAt:      time.Date(2025, time.October, 1, 8, 0, 0, 0, time.UTC),
		AllocUpdatedAt: &updated,
		Allocations: []quota.Allocation{
			quota.PercentageAllocation{
				AgentID: quota.MustParseID(agentAHex), AgentName: "Ama",
				Split: quota.Split{Product: decimal.NewFromInt(40), Cash: decimal.RequireFromString("50.5"), Customer: decimal.Zero},
			},
			quota.AbsoluteAllocation{
				AgentID: quota.MustParseID(agentBHex), AgentName: "Kofi",
				ProductTarget: 25, CashTarget: decimal.NewFromInt(2500), CustomerTarget: 12, Status: "in_progress",
			},
		},
	}

	f := factory.NewTargetFactory()
	data, err := f.MarshalTarget(original)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, map[string]any{"$oid": targetHex}, raw["_id"])
	assert.Equal(t, managerHex, raw["manager_id"], "manager ids are stored as strings")
	assert.Equal(t, map[string]any{"$date": "2025-10-01T08:00:00Z"}, raw["created_at"])

	parsed, err := f.ParseTarget(data)
	require.NoError(t, err)
	assert.Equal(t, original.ID, parsed.ID)
	assert.Equal(t, original.ManagerID, parsed.ManagerID)
	assert.Equal(t, original.Title, parsed.Title)
	assert.Equal(t, original.CreatedAt, parsed.CreatedAt)
	require.NotNil(t, parsed.AllocUpdatedAt)
	assert.Equal(t, updated, *parsed.AllocUpdatedAt)
	assertDecimal(t, "10000.25", parsed.CashTarget)

	require.Len(t, parsed.Percentages(), 1)
	assertDecimal(t, "50.5", parsed.Percentages()[0].Split.Cash)
	require.Len(t, parsed.Legacy(), 1)
	assert.Equal(t, int64(12), parsed.Legacy()[0].CustomerTarget)
}
