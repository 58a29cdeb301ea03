/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

NUMBERS:
  Money and percentages are emitted as JSON numbers with the engine's
  two-decimal rounding (json.Number built from the decimal string).
  Request bodies accept numbers or numeric strings.

VALIDATION:
  Request types carry go-playground/validator tags; handlers call
  h.validate.Struct before touching the store.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/warp/target-engine/quota"
)

// =============================================================================
// PROGRESS
// =============================================================================

// SplitDTO is an agent's percentage share of a target.
type SplitDTO struct {
	ProductPct  json.Number `json:"product_pct"`
	CashPct     json.Number `json:"cash_pct"`
	CustomerPct json.Number `json:"customer_pct"`
}

type QuotasDTO struct {
	Product  int64       `json:"product"`
	Cash     json.Number `json:"cash"`
	Customer int64       `json:"customer"`
}

type AchievedDTO struct {
	Products  int64       `json:"products"`
	Cash      json.Number `json:"cash"`
	Customers int64       `json:"customers"`
}

type ScoresDTO struct {
	ProductPct  json.Number `json:"product_pct"`
	PaymentPct  json.Number `json:"payment_pct"`
	CustomerPct json.Number `json:"customer_pct"`
	Overall     json.Number `json:"overall"`
}

// ProgressDTO is one (target, agent) record. Manager-level records omit
// agent_id.
type ProgressDTO struct {
	TargetID      string      `json:"target_id"`
	Title         string      `json:"title"`
	Duration      string      `json:"duration_type"`
	StartDate     string      `json:"start_date"`
	EndDate       string      `json:"end_date"`
	AgentID       string      `json:"agent_id,omitempty"`
	AgentName     string      `json:"agent_name"`
	ImageURL      string      `json:"image_url,omitempty"`
	Allocation    SplitDTO    `json:"allocation"`
	Quotas        QuotasDTO   `json:"quotas"`
	Achieved      AchievedDTO `json:"achieved"`
	Scores        ScoresDTO   `json:"scores"`
	CommissionPct json.Number `json:"commission_pct"`
	SurplusCash   json.Number `json:"surplus_cash"`
	Commission    json.Number `json:"commission"`
}

type SummaryDTO struct {
	CommissionPct    json.Number `json:"commission_pct"`
	TotalSurplusCash json.Number `json:"total_surplus_cash"`
	TotalCommission  json.Number `json:"total_commission"`
}

// AgentTargetsResponse is returned by GET /api/agents/{id}/targets.
type AgentTargetsResponse struct {
	AgentID   string        `json:"agent_id"`
	AgentName string        `json:"agent_name"`
	ImageURL  string        `json:"image_url,omitempty"`
	Targets   []ProgressDTO `json:"targets"`
	Summary   SummaryDTO    `json:"summary"`
}

// ManagerTargetDTO is one row of the manager matrix.
type ManagerTargetDTO struct {
	Manager ProgressDTO   `json:"manager"`
	Agents  []ProgressDTO `json:"agents"`
}

// ManagerTargetsResponse is returned by GET /api/managers/{id}/targets.
type ManagerTargetsResponse struct {
	ManagerID string             `json:"manager_id"`
	Targets   []ManagerTargetDTO `json:"targets"`
}

// =============================================================================
// ROSTER AND COMMISSION
// =============================================================================

// AgentDTO is one entry of the agent directory.
type AgentDTO struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Branch           string      `json:"branch,omitempty"`
	ManagerID        string      `json:"manager_id,omitempty"`
	ImageURL         string      `json:"image_url,omitempty"`
	CommissionPct    json.Number `json:"commission_pct"`
	CommissionSource string      `json:"commission_source"` // agent, global or none
}

type CommissionOverrideDTO struct {
	AgentID string      `json:"agent_id"`
	Pct     json.Number `json:"pct"`
}

type CommissionPolicyDTO struct {
	GlobalPct *json.Number            `json:"global_pct"`
	Overrides []CommissionOverrideDTO `json:"overrides"`
}

type SetCommissionRequest struct {
	Pct *decimal.Decimal `json:"product_commission_pct" validate:"required"`
}

// =============================================================================
// TARGET ADMINISTRATION
// =============================================================================

// SetTargetRequest creates one target per manager, pre-distributed equally
// across each manager's agents.
type SetTargetRequest struct {
	Title          string          `json:"title" validate:"required,max=200"`
	Duration       string          `json:"duration_type" validate:"required,oneof=daily weekly monthly yearly"`
	ManagerIDs     []string        `json:"manager_ids" validate:"required,min=1,dive,len=24,hexadecimal"`
	ExecutiveID    string          `json:"executive_id" validate:"omitempty,len=24,hexadecimal"`
	ProductTarget  int64           `json:"product_target" validate:"min=0"`
	CashTarget     decimal.Decimal `json:"cash_target"`
	CustomerTarget int64           `json:"customer_target" validate:"min=0"`
	StartDate      string          `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate        string          `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// CreatedTargetDTO reports a target created by POST /api/targets.
type CreatedTargetDTO struct {
	TargetID  string `json:"target_id"`
	ManagerID string `json:"manager_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Agents    int    `json:"agents"`
}

type AllocationEntry struct {
	AgentID     string          `json:"agent_id" validate:"required,len=24,hexadecimal"`
	ProductPct  decimal.Decimal `json:"product_pct"`
	CashPct     decimal.Decimal `json:"cash_pct"`
	CustomerPct decimal.Decimal `json:"customer_pct"`
}

// AllocationDTO is a stored percentage allocation.
type AllocationDTO struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	SplitDTO
}

// DistributeRequest replaces a target's percentage allocations.
type DistributeRequest struct {
	Allocations []AllocationEntry `json:"allocations" validate:"required,min=1,dive"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func num(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func toProgressDTO(p quota.Progress) ProgressDTO {
	dto := ProgressDTO{
		TargetID:  p.TargetID.Hex(),
		Title:     p.Title,
		Duration:  string(p.Duration),
		StartDate: p.Window.Start.String(),
		EndDate:   p.Window.End.String(),
		AgentName: p.AgentName,
		ImageURL:  p.ImageURL,
		Allocation: SplitDTO{
			ProductPct:  num(p.Allocation.Product),
			CashPct:     num(p.Allocation.Cash),
			CustomerPct: num(p.Allocation.Customer),
		},
		Quotas: QuotasDTO{Product: p.Quotas.Product, Cash: num(p.Quotas.Cash), Customer: p.Quotas.Customer},
		Achieved: AchievedDTO{
			Products:  p.Achieved.Products,
			Cash:      num(p.Achieved.Cash),
			Customers: p.Achieved.Customers,
		},
		Scores: ScoresDTO{
			ProductPct:  num(p.Scores.Product),
			PaymentPct:  num(p.Scores.Payment),
			CustomerPct: num(p.Scores.Customer),
			Overall:     num(p.Scores.Overall),
		},
		CommissionPct: num(p.CommissionPct),
		SurplusCash:   num(p.Payout.Surplus),
		Commission:    num(p.Payout.Amount),
	}
	if !p.AgentID.IsZero() {
		dto.AgentID = p.AgentID.Hex()
	}
	return dto
}

func toProgressDTOs(records []quota.Progress) []ProgressDTO {
	out := make([]ProgressDTO, len(records))
	for i, p := range records {
		out[i] = toProgressDTO(p)
	}
	return out
}
