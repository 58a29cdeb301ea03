// Package store provides an in-memory quota.Store.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/target-engine/quota"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	users     map[quota.ID]quota.User
	targets   map[quota.ID]quota.Target
	customers map[quota.ID]quota.Customer
	purchases map[quota.ID][]quota.PurchaseLine
	payments  []quota.Payment
	global    *decimal.Decimal
	overrides map[quota.ID]decimal.Decimal
}

var _ quota.Store = (*Memory)(nil)

func NewMemory() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

func (m *Memory) resetLocked() {
	m.users = make(map[quota.ID]quota.User)
	m.targets = make(map[quota.ID]quota.Target)
	m.customers = make(map[quota.ID]quota.Customer)
	m.purchases = make(map[quota.ID][]quota.PurchaseLine)
	m.payments = nil
	m.global = nil
	m.overrides = make(map[quota.ID]decimal.Decimal)
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

// =============================================================================
// ROSTER
// =============================================================================

func (m *Memory) SaveUser(_ context.Context, u quota.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *Memory) User(_ context.Context, id quota.ID) (quota.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return quota.User{}, quota.ErrAgentNotFound
	}
	return u, nil
}

func (m *Memory) AgentsOf(ctx context.Context, manager quota.ID) ([]quota.User, error) {
	return m.Users(ctx, quota.UserFilter{Role: quota.RoleAgent, ManagerID: manager})
}

func (m *Memory) Users(_ context.Context, f quota.UserFilter) ([]quota.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nameLike := strings.ToLower(f.ManagerNameLike)
	var out []quota.User
	for _, u := range m.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if !f.ManagerID.IsZero() && u.ManagerID != f.ManagerID {
			continue
		}
		if f.Branch != "" && !strings.EqualFold(u.Branch, f.Branch) {
			continue
		}
		if nameLike != "" {
			mgr, ok := m.users[u.ManagerID]
			if !ok || !strings.Contains(strings.ToLower(mgr.Name), nameLike) {
				continue
			}
		}
		out = append(out, u)
	}
	sortUsers(out)
	return out, nil
}

func sortUsers(users []quota.User) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID.Hex() < users[j].ID.Hex()
	})
}

// =============================================================================
// TARGETS
// =============================================================================

func (m *Memory) SaveTarget(_ context.Context, t quota.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[t.ID] = t
	return nil
}

func (m *Memory) Target(_ context.Context, id quota.ID) (quota.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return quota.Target{}, quota.ErrTargetNotFound
	}
	return t, nil
}

func (m *Memory) TargetsForAgent(_ context.Context, agent quota.ID) ([]quota.Target, error) {
	return m.selectTargets(func(t quota.Target) bool { return t.HasAgent(agent) }), nil
}

func (m *Memory) TargetsForManager(_ context.Context, manager quota.ID) ([]quota.Target, error) {
	return m.selectTargets(func(t quota.Target) bool { return t.ManagerID == manager }), nil
}

func (m *Memory) selectTargets(keep func(quota.Target) bool) []quota.Target {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []quota.Target
	for _, t := range m.targets {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out
}

func (m *Memory) SetAllocations(_ context.Context, target quota.ID, allocs []quota.PercentageAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[target]
	if !ok {
		return quota.ErrTargetNotFound
	}
	m.targets[target] = t.WithPercentages(allocs)
	return nil
}

// =============================================================================
// RECORDS
// =============================================================================

func (m *Memory) SaveCustomer(_ context.Context, c quota.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	return nil
}

func (m *Memory) AddPurchase(_ context.Context, customer quota.ID, line quota.PurchaseLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[customer]; !ok {
		return quota.ErrCustomerNotFound
	}
	m.purchases[customer] = append(m.purchases[customer], line)
	return nil
}

func (m *Memory) RecordPayment(_ context.Context, p quota.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, p)
	return nil
}

func (m *Memory) Payments(_ context.Context, agents []quota.ID, w quota.Period) ([]quota.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []quota.Payment
	for _, p := range m.payments {
		if quota.ContainsID(agents, p.AgentID) && w.ContainsRaw(p.Date) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) PurchaseLines(_ context.Context, agents []quota.ID, w quota.Period) ([]quota.PurchaseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []quota.PurchaseRecord
	for id, c := range m.customers {
		if !quota.ContainsID(agents, c.AgentID) {
			continue
		}
		for _, line := range m.purchases[id] {
			if !w.ContainsRaw(line.PurchaseDate) {
				continue
			}
			out = append(out, quota.PurchaseRecord{
				CustomerID:      id,
				CustomerAgentID: c.AgentID,
				Line:            line,
			})
		}
	}
	return out, nil
}

// =============================================================================
// COMMISSION POLICY
// =============================================================================

func (m *Memory) CommissionPolicy(_ context.Context) (quota.CommissionPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p := quota.CommissionPolicy{Overrides: make(map[quota.ID]decimal.Decimal, len(m.overrides))}
	if m.global != nil {
		g := *m.global
		p.Global = &g
	}
	for k, v := range m.overrides {
		p.Overrides[k] = v
	}
	return p, nil
}

func (m *Memory) SetGlobalCommission(_ context.Context, pct decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global = &pct
	return nil
}

func (m *Memory) SetAgentCommission(_ context.Context, agent quota.ID, pct decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[agent] = pct
	return nil
}
