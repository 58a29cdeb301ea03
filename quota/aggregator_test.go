package quota_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/target-engine/quota"
	"github.com/warp/target-engine/quota/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var managerM = quota.MustParseID("64f1a2b3c4d5e6f7a8b9c0ff")

type branchFixture struct {
	store   *store.Memory
	agg     *quota.Aggregator
	current quota.Target // monthly, percentage allocations for A and B
	legacy  quota.Target // explicit October window, legacy distribution for B
}

// newBranch builds a manager with three agents (Ama, Kofi, Yaw). Yaw is on
// the roster but never allocated.
func newBranch(t *testing.T) branchFixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.SaveUser(ctx, quota.User{ID: managerM, Name: "Mensah", Role: quota.RoleManager, Branch: "Kumasi"}))
	require.NoError(t, s.SaveUser(ctx, quota.User{ID: agentA, Name: "Ama", Role: quota.RoleAgent, ManagerID: managerM, Branch: "Kumasi"}))
	require.NoError(t, s.SaveUser(ctx, quota.User{ID: agentB, Name: "Kofi", Role: quota.RoleAgent, ManagerID: managerM, Branch: "Kumasi"}))
	require.NoError(t, s.SaveUser(ctx, quota.User{ID: agentC, Name: "Yaw", Role: quota.RoleAgent, ManagerID: managerM, Branch: "Kumasi"}))

	current := quota.Target{
		ID:             quota.NewID(),
		ManagerID:      managerM,
		Title:          "October sales",
		Duration:       quota.DurationMonthly,
		ProductTarget:  100,
		CashTarget:     dec("10000"),
		CustomerTarget: 50,
		CreatedAt:      time.Date(2025, time.October, 1, 8, 0, 0, 0, time.UTC),
		Allocations: []quota.Allocation{
			quota.PercentageAllocation{AgentID: agentA, AgentName: "Ama", Split: pct("40", "50", "0")},
			quota.PercentageAllocation{AgentID: agentB, AgentName: "Kofi", Split: pct("60", "50", "100")},
		},
	}
	legacy := quota.Target{
		ID:         quota.NewID(),
		ManagerID:  managerM,
		Title:      "Cash drive",
		Duration:   quota.DurationDaily,
		StartDate:  "2025-10-01",
		EndDate:    "2025-10-31",
		CashTarget: dec("10000"),
		CreatedAt:  time.Date(2025, time.October, 5, 8, 0, 0, 0, time.UTC),
		Allocations: []quota.Allocation{
			quota.AbsoluteAllocation{AgentID: agentB, AgentName: "Kofi", CashTarget: dec("2500")},
		},
	}
	require.NoError(t, s.SaveTarget(ctx, current))
	require.NoError(t, s.SaveTarget(ctx, legacy))

	require.NoError(t, s.RecordPayment(ctx, quota.Payment{AgentID: agentA, Amount: dec("6200"), Type: quota.PaymentProduct, Date: "2025-10-10"}))
	require.NoError(t, s.RecordPayment(ctx, quota.Payment{AgentID: agentB, Amount: dec("3000"), Type: quota.PaymentSusu, Date: "2025-10-11"}))
	require.NoError(t, s.SetGlobalCommission(ctx, dec("10")))

	agg := quota.NewAggregator(s, nil)
	agg.Now = fixedClock(october15())

	return branchFixture{store: s, agg: agg, current: current, legacy: legacy}
}

// =============================================================================
// FOR AGENT TESTS
// =============================================================================

func TestForAgent_ScenarioRecord(t *testing.T) {
	// GIVEN: Ama holds {40%, 50%, 0%} of {100, 10000, 50} and collected 6200
	//        with a 10% global commission
	// THEN: Quotas {40, 5000, 0}, surplus 1200, commission 120

	f := newBranch(t)

	report, err := f.agg.ForAgent(context.Background(), agentA)
	require.NoError(t, err)
	require.Len(t, report.Targets, 1, "Ama is only allocated on the monthly target")

	p := report.Targets[0]
	assert.Equal(t, f.current.ID, p.TargetID)
	assert.Equal(t, "Ama", p.AgentName)
	assert.Equal(t, day(2025, time.October, 1), p.Window.Start)
	assert.Equal(t, day(2025, time.October, 31), p.Window.End)

	assert.Equal(t, int64(40), p.Quotas.Product)
	assertDecimal(t, "5000", p.Quotas.Cash)
	assert.Equal(t, int64(0), p.Quotas.Customer)

	assertDecimal(t, "6200", p.Achieved.Cash)
	assertDecimal(t, "124", p.Scores.Payment)
	assertDecimal(t, "0", p.Scores.Product)
	assertDecimal(t, "62", p.Scores.Overall, "customer dimension has no quota and is excluded")

	assertDecimal(t, "10", p.CommissionPct)
	assertDecimal(t, "1200.00", p.Payout.Surplus)
	assertDecimal(t, "120.00", p.Payout.Amount)

	assertDecimal(t, "10", report.Summary.CommissionPct)
	assertDecimal(t, "1200", report.Summary.TotalSurplusCash)
	assertDecimal(t, "120", report.Summary.TotalCommission)
}

func TestForAgent_NewestTargetFirst_AndSummaryFolds(t *testing.T) {
	// GIVEN: Kofi is on both targets; the legacy one was created later
	// THEN: Legacy first, cash share inferred as 25%

	f := newBranch(t)

	report, err := f.agg.ForAgent(context.Background(), agentB)
	require.NoError(t, err)
	require.Len(t, report.Targets, 2)

	legacy, current := report.Targets[0], report.Targets[1]
	assert.Equal(t, f.legacy.ID, legacy.TargetID)
	assert.Equal(t, f.current.ID, current.TargetID)

	assertDecimal(t, "25", legacy.Allocation.Cash)
	assertDecimal(t, "2500", legacy.Quotas.Cash)
	assertDecimal(t, "500", legacy.Payout.Surplus)
	assertDecimal(t, "50", legacy.Payout.Amount)

	assertDecimal(t, "5000", current.Quotas.Cash)
	assertDecimal(t, "0", current.Payout.Surplus)

	assertDecimal(t, "500", report.Summary.TotalSurplusCash)
	assertDecimal(t, "50", report.Summary.TotalCommission)
}

func TestForAgent_OverrideBeatsGlobal(t *testing.T) {
	f := newBranch(t)
	require.NoError(t, f.store.SetAgentCommission(context.Background(), agentA, dec("5")))

	report, err := f.agg.ForAgent(context.Background(), agentA)
	require.NoError(t, err)

	assertDecimal(t, "5", report.Summary.CommissionPct)
	assertDecimal(t, "60", report.Targets[0].Payout.Amount)
}

func TestForAgent_NoPolicy_ZeroCommission(t *testing.T) {
	f := newBranchWithoutCommission(t)

	report, err := f.agg.ForAgent(context.Background(), agentA)
	require.NoError(t, err)
	assertDecimal(t, "1200", report.Targets[0].Payout.Surplus)
	assertDecimal(t, "0", report.Targets[0].Payout.Amount)
}

// newBranchWithoutCommission copies the roster and the monthly target into a
// store that has no commission policy at all.
func newBranchWithoutCommission(t *testing.T) branchFixture {
	t.Helper()
	f := newBranch(t)
	fresh := store.NewMemory()
	ctx := context.Background()

	users, err := f.store.Users(ctx, quota.UserFilter{})
	require.NoError(t, err)
	for _, u := range users {
		require.NoError(t, fresh.SaveUser(ctx, u))
	}
	require.NoError(t, fresh.SaveTarget(ctx, f.current))
	require.NoError(t, fresh.RecordPayment(ctx, quota.Payment{AgentID: agentA, Amount: dec("6200"), Type: quota.PaymentProduct, Date: "2025-10-10"}))

	f.store = fresh
	f.agg.Source = fresh
	return f
}

func TestForAgent_UnknownAgent_NotFound(t *testing.T) {
	f := newBranch(t)

	_, err := f.agg.ForAgent(context.Background(), quota.NewID())
	assert.ErrorIs(t, err, quota.ErrAgentNotFound)
	assert.True(t, quota.IsNotFound(err))
	assert.False(t, quota.IsClientError(err))
}

func TestForAgent_AgentWithoutTargets_EmptyReport(t *testing.T) {
	f := newBranch(t)

	report, err := f.agg.ForAgent(context.Background(), agentC)
	require.NoError(t, err)
	assert.Empty(t, report.Targets)
	assertDecimal(t, "0", report.Summary.TotalCommission)
	assert.Equal(t, "Yaw", report.Agent.Name)
}

func TestForAgent_ZeroID_InvalidID(t *testing.T) {
	f := newBranch(t)

	_, err := f.agg.ForAgent(context.Background(), quota.NilID)
	assert.ErrorIs(t, err, quota.ErrInvalidID)
}

// =============================================================================
// FOR MANAGER TESTS
// =============================================================================

func TestForManager_Matrix(t *testing.T) {
	// GIVEN: Two targets, three roster agents, Yaw never allocated
	// THEN: One row per target (newest first), every agent present in each

	f := newBranch(t)

	rows, err := f.agg.ForManager(context.Background(), managerM)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, f.legacy.ID, rows[0].Manager.TargetID)
	assert.Equal(t, f.current.ID, rows[1].Manager.TargetID)

	for _, row := range rows {
		require.Len(t, row.Agents, 3)
		assert.Equal(t, "Ama", row.Agents[0].AgentName)
		assert.Equal(t, "Kofi", row.Agents[1].AgentName)
		assert.Equal(t, "Yaw", row.Agents[2].AgentName)
	}

	current := rows[1]
	assert.Equal(t, "Mensah", current.Manager.AgentName)
	assert.True(t, current.Manager.AgentID.IsZero())
	assert.Equal(t, int64(100), current.Manager.Quotas.Product)
	assertDecimal(t, "10000", current.Manager.Quotas.Cash)
	assertDecimal(t, "9200", current.Manager.Achieved.Cash, "whole roster")
	assertDecimal(t, "92", current.Manager.Scores.Payment)
	assertDecimal(t, "0", current.Manager.Payout.Amount)

	assertDecimal(t, "120", current.Agents[0].Payout.Amount)
}

func TestForManager_UnallocatedAgent_ListedWithZeros(t *testing.T) {
	f := newBranch(t)

	rows, err := f.agg.ForManager(context.Background(), managerM)
	require.NoError(t, err)

	for _, row := range rows {
		yaw := row.Agents[2]
		assert.Equal(t, agentC, yaw.AgentID)
		assert.Equal(t, int64(0), yaw.Quotas.Product)
		assert.True(t, yaw.Quotas.Cash.IsZero())
		assert.Equal(t, int64(0), yaw.Quotas.Customer)
		assertDecimal(t, "0", yaw.Scores.Overall)
	}

	// Ama is not on the legacy target either.
	ama := rows[0].Agents[0]
	assert.True(t, ama.Allocation.IsZero())
	assertDecimal(t, "0", ama.Scores.Overall)
}

func TestForManager_UnknownManager_NotFound(t *testing.T) {
	f := newBranch(t)

	_, err := f.agg.ForManager(context.Background(), quota.NewID())
	assert.ErrorIs(t, err, quota.ErrManagerNotFound)
}

func TestForManager_NoTargets_Empty(t *testing.T) {
	f := newBranch(t)
	other := quota.NewID()
	require.NoError(t, f.store.SaveUser(context.Background(), quota.User{ID: other, Name: "Owusu", Role: quota.RoleManager}))

	rows, err := f.agg.ForManager(context.Background(), other)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// failingPayments fails every payment query.
type failingPayments struct {
	*store.Memory
}

var errPaymentsDown = errors.New("payments unavailable")

func (failingPayments) Payments(context.Context, []quota.ID, quota.Period) ([]quota.Payment, error) {
	return nil, errPaymentsDown
}

func TestForManager_SourceFailure_Propagates(t *testing.T) {
	f := newBranch(t)
	f.agg.Source = failingPayments{Memory: f.store}

	_, err := f.agg.ForManager(context.Background(), managerM)
	require.Error(t, err)
	assert.ErrorIs(t, err, errPaymentsDown)
	assert.False(t, quota.IsNotFound(err))
}

type recordingObserver struct {
	ops []string
}

func (r *recordingObserver) ObserveComputation(op string, _ time.Duration) {
	r.ops = append(r.ops, op)
}

func TestAggregator_ReportsTimings(t *testing.T) {
	f := newBranch(t)
	obs := &recordingObserver{}
	f.agg.Observer = obs

	_, err := f.agg.ForAgent(context.Background(), agentA)
	require.NoError(t, err)
	_, err = f.agg.ForManager(context.Background(), managerM)
	require.NoError(t, err)

	assert.Equal(t, []string{"for_agent", "for_manager"}, obs.ops)
}
