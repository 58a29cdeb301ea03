/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	branch data: a roster, targets in both allocation formats, payments,
	customers with purchase lines, and a commission policy. Dates are
	relative to the engine clock so the current window always has data.

AVAILABLE SCENARIOS:

	branch-month:      One manager, three agents, monthly percentage target
	legacy-split:      Weekly target set with an equal absolute split
	executive-view:    Two branches, overrides and an unallocated agent

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Create managers and agents
 3. Create targets
 4. Record payments, customers and purchases
 5. Set the commission policy

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "branch-month"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler wiring
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/target-engine/quota"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "branch-month",
		Name:        "Branch Month",
		Description: "Monthly percentage target for one manager and three agents with a global commission",
	},
	{
		ID:          "legacy-split",
		Name:        "Legacy Split",
		Description: "Weekly target pre-distributed as equal absolute quotas",
	},
	{
		ID:          "executive-view",
		Name:        "Executive View",
		Description: "Two branches with commission overrides and an unallocated agent",
	},
}

// Fixed ids keep scenario URLs stable across reloads.
var (
	scenarioManagerKumasi = quota.MustParseID("66f000000000000000000001")
	scenarioManagerAccra  = quota.MustParseID("66f000000000000000000002")
	scenarioAgentAma      = quota.MustParseID("66f000000000000000000011")
	scenarioAgentKofi     = quota.MustParseID("66f000000000000000000012")
	scenarioAgentYaw      = quota.MustParseID("66f000000000000000000013")
	scenarioAgentEfua     = quota.MustParseID("66f000000000000000000021")
	scenarioAgentKwesi    = quota.MustParseID("66f000000000000000000022")
	scenarioTargetMonth   = quota.MustParseID("66f000000000000000000101")
	scenarioTargetWeek    = quota.MustParseID("66f000000000000000000102")
	scenarioTargetAccra   = quota.MustParseID("66f000000000000000000103")
)

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the id of the last loaded scenario.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current})
}

// LoadScenario resets the store and seeds a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", validationDetails(err))
		return
	}

	var loader func(context.Context, *Handler) error
	switch req.ScenarioID {
	case "branch-month":
		loader = loadBranchMonthScenario
	case "legacy-split":
		loader = loadLegacySplitScenario
	case "executive-view":
		loader = loadExecutiveViewScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", req.ScenarioID)
		return
	}

	if err := h.Store.Reset(ctx); err != nil {
		h.fail(w, r, "Failed to reset store", err)
		return
	}
	if err := loader(ctx, h); err != nil {
		h.fail(w, r, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()
	h.Logger.Info("scenario loaded", zap.String("scenario_id", req.ScenarioID))

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.fail(w, r, "Failed to reset store", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SEED HELPERS
// =============================================================================

type seeder struct {
	ctx   context.Context
	store quota.Store
	today quota.Date
	err   error
}

func (h *Handler) seeder(ctx context.Context) *seeder {
	return &seeder{ctx: ctx, store: h.Store, today: h.Engine.Today()}
}

func (s *seeder) user(id quota.ID, name string, role quota.Role, manager quota.ID, branch string) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveUser(s.ctx, quota.User{ID: id, Name: name, Role: role, ManagerID: manager, Branch: branch})
}

func (s *seeder) target(t quota.Target) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveTarget(s.ctx, t)
}

// pay records a payment daysAgo days before today.
func (s *seeder) pay(agent quota.ID, amount string, ptype quota.PaymentType, daysAgo int) {
	if s.err != nil {
		return
	}
	s.err = s.store.RecordPayment(s.ctx, quota.Payment{
		AgentID: agent,
		Amount:  decimal.RequireFromString(amount),
		Type:    ptype,
		Method:  "MOMO",
		Date:    s.today.AddDays(-daysAgo).String(),
	})
}

// customer creates a customer rooted at agent with one purchase line per
// quantity, each sold by the same agent.
func (s *seeder) customer(name string, agent quota.ID, daysAgo int, quantities ...int64) {
	if s.err != nil {
		return
	}
	id := quota.NewID()
	if s.err = s.store.SaveCustomer(s.ctx, quota.Customer{ID: id, Name: name, AgentID: agent}); s.err != nil {
		return
	}
	for i, q := range quantities {
		seller := agent
		s.err = s.store.AddPurchase(s.ctx, id, quota.PurchaseLine{
			AgentID:      &seller,
			ProductName:  fmt.Sprintf("Item %d", i+1),
			Quantity:     &q,
			PurchaseDate: s.today.AddDays(-daysAgo).String(),
		})
		if s.err != nil {
			return
		}
	}
}

func (s *seeder) commission(global string, overrides map[quota.ID]string) {
	if s.err != nil {
		return
	}
	if global != "" {
		if s.err = s.store.SetGlobalCommission(s.ctx, decimal.RequireFromString(global)); s.err != nil {
			return
		}
	}
	for agent, pct := range overrides {
		if s.err = s.store.SetAgentCommission(s.ctx, agent, decimal.RequireFromString(pct)); s.err != nil {
			return
		}
	}
}

// daysIntoMonth keeps seeded records inside the current month.
func (s *seeder) daysIntoMonth(n int) int {
	if elapsed := s.today.Day() - 1; n > elapsed {
		return elapsed
	}
	return n
}

func pctSplit(product, cash, customer int64) quota.Split {
	return quota.Split{
		Product:  decimal.NewFromInt(product),
		Cash:     decimal.NewFromInt(cash),
		Customer: decimal.NewFromInt(customer),
	}
}

func seedBranchRoster(s *seeder) {
	s.user(scenarioManagerKumasi, "Mensah", quota.RoleManager, quota.NilID, "Kumasi")
	s.user(scenarioAgentAma, "Ama", quota.RoleAgent, scenarioManagerKumasi, "Kumasi")
	s.user(scenarioAgentKofi, "Kofi", quota.RoleAgent, scenarioManagerKumasi, "Kumasi")
	s.user(scenarioAgentYaw, "Yaw", quota.RoleAgent, scenarioManagerKumasi, "Kumasi")
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadBranchMonthScenario(ctx context.Context, h *Handler) error {
	s := h.seeder(ctx)
	seedBranchRoster(s)

	s.target(quota.Target{
		ID:             scenarioTargetMonth,
		ManagerID:      scenarioManagerKumasi,
		ManagerName:    "Mensah",
		Branch:         "Kumasi",
		Title:          "Monthly sales",
		Duration:       quota.DurationMonthly,
		ProductTarget:  100,
		CashTarget:     decimal.NewFromInt(10000),
		CustomerTarget: 50,
		CreatedAt:      h.now().UTC(),
		Allocations: []quota.Allocation{
			quota.PercentageAllocation{AgentID: scenarioAgentAma, AgentName: "Ama", Split: pctSplit(40, 50, 40)},
			quota.PercentageAllocation{AgentID: scenarioAgentKofi, AgentName: "Kofi", Split: pctSplit(60, 50, 60)},
		},
	})

	s.pay(scenarioAgentAma, "4200", quota.PaymentProduct, s.daysIntoMonth(3))
	s.pay(scenarioAgentAma, "2000", quota.PaymentSusu, 0)
	s.pay(scenarioAgentAma, "300", quota.PaymentWithdrawal, 0)
	s.pay(scenarioAgentKofi, "3000", quota.PaymentProduct, s.daysIntoMonth(1))
	s.pay(scenarioAgentYaw, "850", quota.PaymentProduct, 0)

	s.customer("Akosua", scenarioAgentAma, s.daysIntoMonth(2), 2, 3)
	s.customer("Esi", scenarioAgentAma, 0, 5)
	s.customer("Kwame", scenarioAgentKofi, s.daysIntoMonth(4), 4)

	s.commission("10", nil)
	return s.err
}

func loadLegacySplitScenario(ctx context.Context, h *Handler) error {
	s := h.seeder(ctx)
	seedBranchRoster(s)

	week := quota.DurationWeekly.PeriodFor(s.today)
	t := quota.Target{
		ID:             scenarioTargetWeek,
		ManagerID:      scenarioManagerKumasi,
		ManagerName:    "Mensah",
		Branch:         "Kumasi",
		Title:          "Weekly cash drive",
		Duration:       quota.DurationWeekly,
		StartDate:      week.Start.String(),
		EndDate:        week.End.String(),
		ProductTarget:  30,
		CashTarget:     decimal.NewFromInt(10000),
		CustomerTarget: 10,
		CreatedAt:      h.now().UTC(),
	}
	agents := []quota.User{
		{ID: scenarioAgentAma, Name: "Ama"},
		{ID: scenarioAgentKofi, Name: "Kofi"},
		{ID: scenarioAgentYaw, Name: "Yaw"},
	}
	for _, a := range quota.EqualDistribution(t, agents) {
		t.Allocations = append(t.Allocations, a)
	}
	s.target(t)

	s.pay(scenarioAgentAma, "4000", quota.PaymentProduct, 0)
	s.pay(scenarioAgentKofi, "1500", quota.PaymentSusu, 0)
	s.customer("Abena", scenarioAgentYaw, 0, 6)

	s.commission("5", nil)
	return s.err
}

func loadExecutiveViewScenario(ctx context.Context, h *Handler) error {
	if err := loadBranchMonthScenario(ctx, h); err != nil {
		return err
	}
	s := h.seeder(ctx)

	s.user(scenarioManagerAccra, "Owusu", quota.RoleManager, quota.NilID, "Accra")
	s.user(scenarioAgentEfua, "Efua", quota.RoleAgent, scenarioManagerAccra, "Accra")
	s.user(scenarioAgentKwesi, "Kwesi", quota.RoleAgent, scenarioManagerAccra, "Accra")

	s.target(quota.Target{
		ID:             scenarioTargetAccra,
		ManagerID:      scenarioManagerAccra,
		ManagerName:    "Owusu",
		Branch:         "Accra",
		Title:          "Annual collections",
		Duration:       quota.DurationYearly,
		ProductTarget:  0,
		CashTarget:     decimal.NewFromInt(120000),
		CustomerTarget: 200,
		CreatedAt:      h.now().UTC(),
		Allocations: []quota.Allocation{
			quota.PercentageAllocation{AgentID: scenarioAgentEfua, AgentName: "Efua", Split: pctSplit(0, 100, 100)},
		},
	})

	s.pay(scenarioAgentEfua, "64000", quota.PaymentProduct, 0)
	s.pay(scenarioAgentKwesi, "900", quota.PaymentSusu, 0)
	s.customer("Adwoa", scenarioAgentEfua, 0, 1)

	s.commission("", map[quota.ID]string{scenarioAgentEfua: "7.5", scenarioAgentKofi: "12"})
	return s.err
}
