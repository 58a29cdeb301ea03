/*
errors.go - Centralized error types for the quota engine

PURPOSE:
  All error types in one place. Missing data (no allocation, no payments,
  zero quota, no commission policy) is never an error; it is zero. What is
  an error: an identity that cannot be parsed, an identity that resolves to
  nothing, and a write that breaks the allocation invariant.

ERROR CATEGORIES:
  1. Identity errors - unparsable ids (client error)
  2. Lookup errors - agent/manager/target/customer not found
  3. Validation errors - allocation sums on the write path

USAGE:
  report, err := agg.ForAgent(ctx, id)
  switch {
  case errors.Is(err, quota.ErrAgentNotFound):   // 404
  case errors.Is(err, quota.ErrInvalidID):       // 400
  }

SEE ALSO:
  - allocation.go: ValidateAllocation returns AllocationSumError
  - aggregator.go: Lookup errors
*/
package quota

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidID is returned when an id string is not a valid identity.
	ErrInvalidID = errors.New("invalid id")

	// ErrAgentNotFound is returned when an agent id resolves to no agent.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrManagerNotFound is returned when a manager id resolves to no manager.
	ErrManagerNotFound = errors.New("manager not found")

	// ErrTargetNotFound is returned when a target id resolves to no target.
	ErrTargetNotFound = errors.New("target not found")

	// ErrCustomerNotFound is returned when a purchase names an unknown customer.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInvalidAllocation is returned when an allocation write breaks the
	// per-dimension sum rule or a percentage is out of range.
	ErrInvalidAllocation = errors.New("invalid allocation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidIDError reports the rejected value.
type InvalidIDError struct {
	Value string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid id %q", e.Value)
}

func (e *InvalidIDError) Unwrap() error {
	return ErrInvalidID
}

// AllocationSumError reports which dimension failed validation and why.
type AllocationSumError struct {
	Dimension string
	Total     decimal.Decimal
	AgentID   ID     // set when a single entry is out of range
	Reason    string // "sum" or "range"
}

func (e *AllocationSumError) Error() string {
	if e.Reason == "range" {
		return fmt.Sprintf("%s allocation for agent %s is %s%%, must be within [0, 100]",
			e.Dimension, e.AgentID, e.Total)
	}
	return fmt.Sprintf("%s allocations total %s%%, must be 100%% (±0.5) or 0%%",
		e.Dimension, e.Total)
}

func (e *AllocationSumError) Unwrap() error {
	return ErrInvalidAllocation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAgentNotFound) ||
		errors.Is(err, ErrManagerNotFound) ||
		errors.Is(err, ErrTargetNotFound) ||
		errors.Is(err, ErrCustomerNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidAllocation)
}
