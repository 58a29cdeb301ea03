/*
store.go - Read interfaces the engine consumes, plus the admin write surface

PURPOSE:
  The engine never talks to a database directly. It reads targets, the
  agent roster, payments, purchases and the commission policy through the
  small interfaces below. Each backing store translates quota.ID into
  whatever representation its records actually use.

KEY INTERFACES:
  TargetSource:     Targets by agent membership or by owner, newest first
  Roster:           Agents, managers, executives
  PaymentSource:    Cash transactions in a window
  PurchaseSource:   Purchase lines in a window, joined with their customer
  CommissionSource: The current commission policy
  Store:            All of the above plus the administrative writes

READ-ONLY CONTRACT:
  Aggregator only ever uses the read interfaces. Writes (set target,
  distribute allocation, commission admin, seeding) go through Store and
  happen outside any computation.

IDENTITY:
  Stored data may hold an id as a native ObjectId or as its hex string.
  Implementations must match both forms when filtering by agent.

IMPLEMENTATIONS:
  - quota/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite
  - store/mongostore/mongostore.go: MongoDB (the original document layout)

SEE ALSO:
  - achievement.go: Reduces PaymentSource/PurchaseSource output
  - aggregator.go: Uses TargetSource, Roster, CommissionSource
*/
package quota

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// READ INTERFACES
// =============================================================================

// TargetSource reads target documents.
type TargetSource interface {
	// TargetsForAgent returns every target with the agent in either allocation
	// list, newest created first.
	TargetsForAgent(ctx context.Context, agent ID) ([]Target, error)

	// TargetsForManager returns every target owned by the manager, newest
	// created first.
	TargetsForManager(ctx context.Context, manager ID) ([]Target, error)

	// Target returns one target or ErrTargetNotFound.
	Target(ctx context.Context, id ID) (Target, error)
}

// Roster reads users.
type Roster interface {
	// User returns one user or ErrAgentNotFound.
	User(ctx context.Context, id ID) (User, error)

	// AgentsOf returns the agents reporting to a manager, ordered by name.
	AgentsOf(ctx context.Context, manager ID) ([]User, error)

	// Users lists users matching the filter, ordered by name.
	Users(ctx context.Context, filter UserFilter) ([]User, error)
}

// PaymentSource reads cash transactions for any of the agents with a
// transaction date inside the window. Implementations may pre-filter
// excluded types; the reader filters again.
type PaymentSource interface {
	Payments(ctx context.Context, agents []ID, w Period) ([]Payment, error)
}

// PurchaseSource reads purchase lines of customers whose root agent is in
// agents, with a purchase date inside the window.
type PurchaseSource interface {
	PurchaseLines(ctx context.Context, agents []ID, w Period) ([]PurchaseRecord, error)
}

// CommissionSource reads the current commission policy. A missing policy is
// an empty CommissionPolicy, not an error.
type CommissionSource interface {
	CommissionPolicy(ctx context.Context) (CommissionPolicy, error)
}

// Source bundles everything the aggregator reads.
type Source interface {
	TargetSource
	Roster
	PaymentSource
	PurchaseSource
	CommissionSource
}

// =============================================================================
// STORE - Read interfaces plus administrative writes
// =============================================================================

// Store is a full backing store. Writes are last-write-wins.
type Store interface {
	Source

	SaveUser(ctx context.Context, u User) error
	SaveTarget(ctx context.Context, t Target) error

	// SetAllocations replaces the percentage allocations of a target.
	// Legacy absolute entries are kept. Returns ErrTargetNotFound.
	SetAllocations(ctx context.Context, target ID, allocs []PercentageAllocation) error

	SetGlobalCommission(ctx context.Context, pct decimal.Decimal) error
	SetAgentCommission(ctx context.Context, agent ID, pct decimal.Decimal) error

	SaveCustomer(ctx context.Context, c Customer) error
	AddPurchase(ctx context.Context, customer ID, line PurchaseLine) error
	RecordPayment(ctx context.Context, p Payment) error

	// Reset removes all data. Used by scenario seeding.
	Reset(ctx context.Context) error
}
