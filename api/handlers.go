package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/target-engine/quota"
	"github.com/warp/target-engine/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  quota.Store
	Engine *quota.Aggregator
	Logger *zap.Logger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. The engine reads from the same store
// the admin endpoints write to.
func NewHandler(store quota.Store, engine *quota.Aggregator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:    store,
		Engine:   engine,
		Logger:   logger,
		validate: validator.New(),
	}
}

func (h *Handler) now() time.Time {
	if h.Engine != nil && h.Engine.Now != nil {
		return h.Engine.Now()
	}
	return time.Now()
}

// =============================================================================
// PROGRESS HANDLERS
// =============================================================================

// GetAgentTargets returns one record per target the agent is allocated on.
// GET /api/agents/{id}/targets
func (h *Handler) GetAgentTargets(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	rep, err := h.Engine.ForAgent(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to compute agent targets", err)
		return
	}

	writeJSON(w, http.StatusOK, AgentTargetsResponse{
		AgentID:   rep.Agent.ID.Hex(),
		AgentName: rep.Agent.Name,
		ImageURL:  rep.Agent.ImageURL,
		Targets:   toProgressDTOs(rep.Targets),
		Summary: SummaryDTO{
			CommissionPct:    num(rep.Summary.CommissionPct),
			TotalSurplusCash: num(rep.Summary.TotalSurplusCash),
			TotalCommission:  num(rep.Summary.TotalCommission),
		},
	})
}

// GetManagerTargets returns the manager matrix.
// GET /api/managers/{id}/targets
func (h *Handler) GetManagerTargets(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	rows, err := h.Engine.ForManager(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to compute manager targets", err)
		return
	}

	resp := ManagerTargetsResponse{ManagerID: id.Hex(), Targets: make([]ManagerTargetDTO, len(rows))}
	for i, row := range rows {
		resp.Targets[i] = ManagerTargetDTO{
			Manager: toProgressDTO(row.Manager),
			Agents:  toProgressDTOs(row.Agents),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportManagerTargets renders the manager matrix as a workbook.
// GET /api/managers/{id}/targets.xlsx
func (h *Handler) ExportManagerTargets(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	rows, err := h.Engine.ForManager(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to compute manager targets", err)
		return
	}

	data, err := report.ManagerMatrix(rows)
	if err != nil {
		h.fail(w, r, "Failed to render workbook", err)
		return
	}

	filename := fmt.Sprintf("targets_%s_%s.xlsx", id.Hex(), h.Engine.Today())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// =============================================================================
// AGENT DIRECTORY
// =============================================================================

// ListAgents lists agents with their effective commission percentage.
// GET /api/agents?manager_id=&branch=&manager_name=
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := quota.UserFilter{
		Role:            quota.RoleAgent,
		Branch:          strings.TrimSpace(q.Get("branch")),
		ManagerNameLike: strings.TrimSpace(q.Get("manager_name")),
	}
	if raw := q.Get("manager_id"); raw != "" {
		id, err := quota.ParseID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid manager_id", err)
			return
		}
		filter.ManagerID = id
	}

	agents, err := h.Store.Users(ctx, filter)
	if err != nil {
		h.fail(w, r, "Failed to list agents", err)
		return
	}
	policy, err := h.Store.CommissionPolicy(ctx)
	if err != nil {
		h.fail(w, r, "Failed to load commission policy", err)
		return
	}

	dtos := make([]AgentDTO, len(agents))
	for i, a := range agents {
		dto := AgentDTO{
			ID:               a.ID.Hex(),
			Name:             a.Name,
			Branch:           a.Branch,
			ImageURL:         a.ImageURL,
			CommissionPct:    num(policy.RateFor(a.ID)),
			CommissionSource: commissionSource(policy, a.ID),
		}
		if !a.ManagerID.IsZero() {
			dto.ManagerID = a.ManagerID.Hex()
		}
		dtos[i] = dto
	}
	writeJSON(w, http.StatusOK, dtos)
}

func commissionSource(p quota.CommissionPolicy, agent quota.ID) string {
	if _, ok := p.Overrides[agent]; ok {
		return "agent"
	}
	if p.Global != nil {
		return "global"
	}
	return "none"
}

// =============================================================================
// TARGET ADMINISTRATION
// =============================================================================

// SetTarget creates one target per selected manager and pre-distributes it
// equally across that manager's agents. The window is fixed at creation,
// either from the duration or from start_date and end_date given together.
// POST /api/targets
func (h *Handler) SetTarget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SetTargetRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Duration = strings.ToLower(strings.TrimSpace(req.Duration))
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", validationDetails(err))
		return
	}
	if req.CashTarget.IsNegative() {
		writeError(w, http.StatusBadRequest, "cash_target must not be negative", nil)
		return
	}

	if (req.StartDate == "") != (req.EndDate == "") {
		writeError(w, http.StatusBadRequest, "start_date and end_date must be given together", nil)
		return
	}
	window := quota.Duration(req.Duration).PeriodFor(h.Engine.Today())
	if req.StartDate != "" {
		start, _ := quota.ParseDate(req.StartDate)
		end, _ := quota.ParseDate(req.EndDate)
		if end.Before(start) {
			writeError(w, http.StatusBadRequest, "end_date is before start_date", nil)
			return
		}
		window = quota.Period{Start: start, End: end}
	}

	var executive quota.ID
	if req.ExecutiveID != "" {
		id, err := quota.ParseID(req.ExecutiveID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid executive_id", err)
			return
		}
		executive = id
	}

	// Resolve every manager before writing anything.
	type rosterOf struct {
		manager quota.User
		agents  []quota.User
	}
	rosters := make([]rosterOf, 0, len(req.ManagerIDs))
	for _, raw := range req.ManagerIDs {
		managerID, err := quota.ParseID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid manager id", err)
			return
		}
		manager, err := h.Store.User(ctx, managerID)
		if err != nil {
			if quota.IsNotFound(err) {
				err = fmt.Errorf("manager %s: %w", managerID, quota.ErrManagerNotFound)
			}
			h.fail(w, r, "Failed to load manager", err)
			return
		}
		agents, err := h.Store.AgentsOf(ctx, managerID)
		if err != nil {
			h.fail(w, r, "Failed to load agents", err)
			return
		}
		rosters = append(rosters, rosterOf{manager: manager, agents: agents})
	}

	created := make([]CreatedTargetDTO, 0, len(rosters))
	for _, ro := range rosters {
		t := quota.Target{
			ID:             quota.NewID(),
			ManagerID:      ro.manager.ID,
			ManagerName:    ro.manager.Name,
			ExecutiveID:    executive,
			Branch:         ro.manager.Branch,
			Title:          strings.TrimSpace(req.Title),
			Duration:       quota.Duration(req.Duration),
			StartDate:      window.Start.String(),
			EndDate:        window.End.String(),
			ProductTarget:  req.ProductTarget,
			CashTarget:     req.CashTarget,
			CustomerTarget: req.CustomerTarget,
			CreatedAt:      h.now().UTC(),
		}
		for _, a := range quota.EqualDistribution(t, ro.agents) {
			t.Allocations = append(t.Allocations, a)
		}

		if err := h.Store.SaveTarget(ctx, t); err != nil {
			h.fail(w, r, "Failed to save target", err)
			return
		}
		h.Logger.Info("target set",
			zap.Stringer("target_id", t.ID),
			zap.Stringer("manager_id", ro.manager.ID),
			zap.Int("agents", len(ro.agents)))

		created = append(created, CreatedTargetDTO{
			TargetID:  t.ID.Hex(),
			ManagerID: ro.manager.ID.Hex(),
			StartDate: t.StartDate,
			EndDate:   t.EndDate,
			Agents:    len(ro.agents),
		})
	}

	writeJSON(w, http.StatusCreated, created)
}

// DistributeAllocation replaces a target's percentage allocations. Each
// percentage is clamped to [0, 100] before the sum rule is checked.
// PUT /api/targets/{id}/allocations
func (h *Handler) DistributeAllocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req DistributeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", validationDetails(err))
		return
	}

	allocs := make([]quota.PercentageAllocation, 0, len(req.Allocations))
	seen := make(map[quota.ID]bool, len(req.Allocations))
	for _, e := range req.Allocations {
		agentID, err := quota.ParseID(e.AgentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid agent id", err)
			return
		}
		if seen[agentID] {
			writeError(w, http.StatusBadRequest, "Duplicate agent in allocations", e.AgentID)
			return
		}
		seen[agentID] = true

		agent, err := h.Store.User(ctx, agentID)
		if err != nil {
			h.fail(w, r, "Failed to load agent", err)
			return
		}
		allocs = append(allocs, quota.PercentageAllocation{
			AgentID:   agentID,
			AgentName: agent.Name,
			Split: quota.Split{
				Product:  quota.ClampPct(e.ProductPct),
				Cash:     quota.ClampPct(e.CashPct),
				Customer: quota.ClampPct(e.CustomerPct),
			},
		})
	}

	if err := quota.ValidateAllocation(allocs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid allocation", err.Error())
		return
	}
	if err := h.Store.SetAllocations(ctx, targetID, allocs); err != nil {
		h.fail(w, r, "Failed to save allocations", err)
		return
	}

	t, err := h.Store.Target(ctx, targetID)
	if err != nil {
		h.fail(w, r, "Failed to reload target", err)
		return
	}
	h.Logger.Info("allocations distributed",
		zap.Stringer("target_id", targetID),
		zap.Int("agents", len(allocs)))

	out := make([]AllocationDTO, 0, len(allocs))
	for _, p := range t.Percentages() {
		out = append(out, AllocationDTO{
			AgentID:   p.AgentID.Hex(),
			AgentName: p.AgentName,
			SplitDTO: SplitDTO{
				ProductPct:  num(p.Split.Product),
				CashPct:     num(p.Split.Cash),
				CustomerPct: num(p.Split.Customer),
			},
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// COMMISSION POLICY
// =============================================================================

// GetCommissionPolicy returns the global percentage and all overrides.
// GET /api/commission
func (h *Handler) GetCommissionPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.Store.CommissionPolicy(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to load commission policy", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionPolicyDTO(policy))
}

// SetGlobalCommission sets the global percentage, clamped to [0, 100].
// PUT /api/commission/global
func (h *Handler) SetGlobalCommission(w http.ResponseWriter, r *http.Request) {
	pct, ok := h.decodeCommission(w, r)
	if !ok {
		return
	}
	if err := h.Store.SetGlobalCommission(r.Context(), pct); err != nil {
		h.fail(w, r, "Failed to save commission", err)
		return
	}
	h.GetCommissionPolicy(w, r)
}

// SetAgentCommission sets an agent override, clamped to [0, 100].
// PUT /api/commission/agents/{id}
func (h *Handler) SetAgentCommission(w http.ResponseWriter, r *http.Request) {
	agentID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	pct, ok := h.decodeCommission(w, r)
	if !ok {
		return
	}

	agent, err := h.Store.User(r.Context(), agentID)
	if err != nil {
		h.fail(w, r, "Failed to load agent", err)
		return
	}
	if agent.Role != quota.RoleAgent {
		writeError(w, http.StatusBadRequest, "Commission overrides apply to agents only", nil)
		return
	}

	if err := h.Store.SetAgentCommission(r.Context(), agentID, pct); err != nil {
		h.fail(w, r, "Failed to save commission", err)
		return
	}
	h.GetCommissionPolicy(w, r)
}

func (h *Handler) decodeCommission(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	var req SetCommissionRequest
	if !h.decode(w, r, &req) {
		return decimal.Zero, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", validationDetails(err))
		return decimal.Zero, false
	}
	return quota.ClampPct(*req.Pct), true
}

func toCommissionPolicyDTO(p quota.CommissionPolicy) CommissionPolicyDTO {
	dto := CommissionPolicyDTO{Overrides: make([]CommissionOverrideDTO, 0, len(p.Overrides))}
	if p.Global != nil {
		g := num(*p.Global)
		dto.GlobalPct = &g
	}
	for agent, pct := range p.Overrides {
		dto.Overrides = append(dto.Overrides, CommissionOverrideDTO{AgentID: agent.Hex(), Pct: num(pct)})
	}
	sort.Slice(dto.Overrides, func(i, j int) bool {
		return dto.Overrides[i].AgentID < dto.Overrides[j].AgentID
	})
	return dto
}

// =============================================================================
// HELPERS
// =============================================================================

// pathID parses the {id} URL parameter. Malformed ids are a 400, never a 404.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (quota.ID, bool) {
	id, err := quota.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return quota.NilID, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// fail maps engine and store errors onto HTTP statuses. Only server-side
// failures are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case quota.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case quota.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, r.Context().Err()) && r.Context().Err() != nil:
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		h.Logger.Error(message,
			zap.Error(err),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, len(verrs))
	for i, fe := range verrs {
		out[i] = fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	resp := ErrorResponse{Error: message}
	switch d := details.(type) {
	case nil:
	case error:
		resp.Details = d.Error()
	default:
		resp.Details = d
	}
	writeJSON(w, status, resp)
}
