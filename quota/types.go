/*
Package quota provides the target allocation and achievement tracking engine.

PURPOSE:
  A manager (or executive) sets a sales target with three absolute totals:
  product units, cash, and distinct customers. The manager splits each total
  across agents as percentages. This package measures every agent's real
  progress against its share from raw payment and purchase records, scores
  it, and derives the commission payable on cash collected above quota.

KEY CONCEPTS IN THIS FILE (types.go):
  - Target: the quota definition and its allocation list
  - Allocation: PercentageAllocation (current) or AbsoluteAllocation (legacy)
  - Split: an agent's percentage share of the three dimensions
  - Quotas / Achievement / Scores / Payout: the derived values
  - Progress: one output record per (target, agent)

DESIGN PRINCIPLES:
  1. Recompute, never cache: achievement is always derived from records
  2. Precision: money and percentages use decimal.Decimal
  3. Missing data is zero, not an error; only bad identities fail
  4. Read-only: nothing in the computation path writes

USAGE:
  agg := quota.NewAggregator(store, logger)
  report, err := agg.ForAgent(ctx, agentID)
  for _, p := range report.Targets {
      fmt.Println(p.Title, p.Scores.Overall, p.Payout.Amount)
  }

SEE ALSO:
  - window.go: Window resolution from duration type or explicit dates
  - allocation.go: Allocation lookup and legacy normalization
  - achievement.go: Reducing payments and purchases to achievement
  - aggregator.go: The ForAgent / ForManager entry points
*/
package quota

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// USERS - The roster the engine reads (agents, managers, executives)
// =============================================================================

type Role string

const (
	RoleAgent     Role = "agent"
	RoleManager   Role = "manager"
	RoleExecutive Role = "executive"
)

type User struct {
	ID        ID
	Name      string
	Role      Role
	ManagerID ID // set for agents
	Branch    string
	ImageURL  string
}

// UserFilter narrows a roster listing. Empty fields do not filter.
type UserFilter struct {
	Role            Role
	ManagerID       ID
	Branch          string
	ManagerNameLike string
}

// =============================================================================
// TARGET - Quota definition owned by a manager
// =============================================================================

type Target struct {
	ID          ID
	ManagerID   ID
	ManagerName string
	ExecutiveID ID
	Branch      string
	Title       string
	Duration    Duration

	// Raw explicit window; parsed best-effort by ResolveWindow.
	StartDate string
	EndDate   string

	ProductTarget  int64
	CashTarget     decimal.Decimal
	CustomerTarget int64

	Allocations []Allocation

	CreatedAt      time.Time
	AllocUpdatedAt *time.Time
}

// HasAgent reports whether the agent appears in either allocation form.
func (t Target) HasAgent(agent ID) bool {
	for _, a := range t.Allocations {
		if a.Agent() == agent {
			return true
		}
	}
	return false
}

// Percentages returns the current-format allocations.
func (t Target) Percentages() []PercentageAllocation {
	var out []PercentageAllocation
	for _, a := range t.Allocations {
		if p, ok := a.(PercentageAllocation); ok {
			out = append(out, p)
		}
	}
	return out
}

// Legacy returns the absolute-quota allocations.
func (t Target) Legacy() []AbsoluteAllocation {
	var out []AbsoluteAllocation
	for _, a := range t.Allocations {
		if abs, ok := a.(AbsoluteAllocation); ok {
			out = append(out, abs)
		}
	}
	return out
}

// WithPercentages returns a copy of t whose percentage allocations are
// replaced by allocs. Legacy entries are kept.
func (t Target) WithPercentages(allocs []PercentageAllocation) Target {
	legacy := t.Legacy()
	out := make([]Allocation, 0, len(allocs)+len(legacy))
	for _, a := range allocs {
		out = append(out, a)
	}
	for _, a := range legacy {
		out = append(out, a)
	}
	t.Allocations = out
	return t
}

// =============================================================================
// ALLOCATION - Tagged union of the two stored shapes
// =============================================================================

// Allocation is either a PercentageAllocation or an AbsoluteAllocation.
// Only AllocationFor looks inside; everything downstream sees a Split.
type Allocation interface {
	Agent() ID
	Name() string
	isAllocation()
}

// Split is an agent's percentage share of each dimension.
type Split struct {
	Product  decimal.Decimal
	Cash     decimal.Decimal
	Customer decimal.Decimal
}

func (s Split) IsZero() bool {
	return s.Product.IsZero() && s.Cash.IsZero() && s.Customer.IsZero()
}

// FullSplit assigns 100% of every dimension.
func FullSplit() Split {
	return Split{Product: hundred, Cash: hundred, Customer: hundred}
}

type PercentageAllocation struct {
	AgentID   ID
	AgentName string
	Split     Split
}

func (a PercentageAllocation) Agent() ID     { return a.AgentID }
func (a PercentageAllocation) Name() string  { return a.AgentName }
func (PercentageAllocation) isAllocation()   {}

// AbsoluteAllocation is the legacy shape: absolute per-agent quotas.
type AbsoluteAllocation struct {
	AgentID        ID
	AgentName      string
	ProductTarget  int64
	CashTarget     decimal.Decimal
	CustomerTarget int64
	Status         string
}

func (a AbsoluteAllocation) Agent() ID    { return a.AgentID }
func (a AbsoluteAllocation) Name() string { return a.AgentName }
func (AbsoluteAllocation) isAllocation()  {}

// =============================================================================
// SOURCE RECORDS - What the engine reads from the record stores
// =============================================================================

type PaymentType string

const (
	PaymentProduct    PaymentType = "PRODUCT"
	PaymentSusu       PaymentType = "SUSU"
	PaymentWithdrawal PaymentType = "WITHDRAWAL"
	PaymentReversal   PaymentType = "REVERSAL"
)

// ExcludedPaymentTypes never count as collected cash.
var ExcludedPaymentTypes = []PaymentType{PaymentWithdrawal, PaymentReversal}

// CountsAsCash reports whether a payment of this type is cash collected.
func (t PaymentType) CountsAsCash() bool {
	for _, excluded := range ExcludedPaymentTypes {
		if strings.EqualFold(string(t), string(excluded)) {
			return false
		}
	}
	return true
}

type Payment struct {
	ID         string
	AgentID    ID
	ManagerID  ID
	CustomerID ID
	Method     string
	Amount     decimal.Decimal
	Type       PaymentType
	Date       string // YYYY-MM-DD as stored
	CreatedAt  time.Time
}

type Customer struct {
	ID        ID
	Name      string
	AgentID   ID
	ManagerID ID
}

// PurchaseLine is one item on a customer's purchase list.
type PurchaseLine struct {
	AgentID      *ID    // nil on legacy lines without item-level attribution
	ProductName  string
	Quantity     *int64 // nil counts as 1
	PurchaseDate string
}

// Units returns the quantity of the line, defaulting to 1.
func (l PurchaseLine) Units() int64 {
	if l.Quantity == nil {
		return 1
	}
	return *l.Quantity
}

// PurchaseRecord is a purchase line joined with its owning customer.
type PurchaseRecord struct {
	CustomerID      ID
	CustomerAgentID ID
	Line            PurchaseLine
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// Quotas is an agent's absolute share of a target.
type Quotas struct {
	Product  int64
	Cash     decimal.Decimal
	Customer int64
}

// Achievement is measured progress over one window.
type Achievement struct {
	Cash      decimal.Decimal
	Products  int64
	Customers int64
}

// Scores holds percentage-of-quota per dimension and the overall score.
type Scores struct {
	Product  decimal.Decimal
	Payment  decimal.Decimal
	Customer decimal.Decimal
	Overall  decimal.Decimal
}

// Payout is the commission derived from surplus cash.
type Payout struct {
	Surplus decimal.Decimal
	Amount  decimal.Decimal
}

// Progress is one output record per (target, agent). Manager-level records
// leave AgentID zero.
type Progress struct {
	TargetID  ID
	Title     string
	Duration  Duration
	Window    Period
	AgentID   ID
	AgentName string
	ImageURL  string

	Allocation    Split
	Quotas        Quotas
	Achieved      Achievement
	Scores        Scores
	CommissionPct decimal.Decimal
	Payout        Payout
}

// Summary folds an agent's records.
type Summary struct {
	CommissionPct    decimal.Decimal
	TotalSurplusCash decimal.Decimal
	TotalCommission  decimal.Decimal
}

// AgentReport is the result of Aggregator.ForAgent.
type AgentReport struct {
	Agent   User
	Targets []Progress
	Summary Summary
}

// ManagerTargetReport is one row of the manager matrix: the manager-level
// record against the target's totals plus one record per roster agent.
type ManagerTargetReport struct {
	Manager Progress
	Agents  []Progress
}
