/*
aggregator.go - The entry points: progress for one agent, matrix for a manager

PURPOSE:
  Aggregator wires every other piece together. For each applicable target:

    ResolveWindow -> AllocationFor -> QuotasFor -> Achieved -> Score
                                                            -> Commission

  ForAgent returns one record per target the agent is allocated on, plus a
  summary. ForManager returns, per owned target, a manager-level record
  against the target totals and one record per roster agent.

ROSTER VS ALLOCATION:
  An agent on the manager's roster who has no allocation on a target still
  gets a row, with zero quotas and zero scores. Not being allocated is a
  normal state.

CONCURRENCY:
  Per-agent computations of a manager matrix are independent reads and run
  in parallel, bounded by Concurrency. Cancelling ctx stops outstanding
  queries; nothing is written either way.

SEE ALSO:
  - store.go: Source
  - achievement.go: AchievementReader
*/
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the per-agent fan-out of ForManager.
const DefaultConcurrency = 8

// Observer receives computation timings. The api package feeds them to
// Prometheus.
type Observer interface {
	ObserveComputation(operation string, d time.Duration)
}

// Aggregator computes progress records from a Source.
type Aggregator struct {
	Source Source

	// Now is the reference clock for window resolution.
	Now func() time.Time

	// Location is the calendar used to decide what "today" is.
	Location *time.Location

	Concurrency int
	Logger      *zap.Logger
	Observer    Observer
}

// NewAggregator returns an Aggregator with the wall clock in UTC.
func NewAggregator(src Source, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		Source:      src,
		Now:         time.Now,
		Location:    time.UTC,
		Concurrency: DefaultConcurrency,
		Logger:      logger,
	}
}

func (a *Aggregator) now() time.Time {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	if a.Location != nil {
		return now().In(a.Location)
	}
	return now()
}

// Today is the calendar day of the reference clock in the configured
// location.
func (a *Aggregator) Today() Date {
	return DateOf(a.now())
}

func (a *Aggregator) reader() AchievementReader {
	return AchievementReader{Payments: a.Source, Purchases: a.Source}
}

func (a *Aggregator) observe(op string, start time.Time) {
	if a.Observer != nil {
		a.Observer.ObserveComputation(op, time.Since(start))
	}
}

// =============================================================================
// FOR AGENT
// =============================================================================

// ForAgent computes one Progress per target the agent is allocated on,
// newest target first, and folds them into a Summary.
func (a *Aggregator) ForAgent(ctx context.Context, agent ID) (AgentReport, error) {
	defer a.observe("for_agent", time.Now())

	if agent.IsZero() {
		return AgentReport{}, &InvalidIDError{}
	}

	user, err := a.Source.User(ctx, agent)
	if err != nil {
		if IsNotFound(err) {
			return AgentReport{}, fmt.Errorf("agent %s: %w", agent, ErrAgentNotFound)
		}
		return AgentReport{}, fmt.Errorf("load agent %s: %w", agent, err)
	}

	policy, err := a.Source.CommissionPolicy(ctx)
	if err != nil {
		return AgentReport{}, fmt.Errorf("load commission policy: %w", err)
	}

	targets, err := a.Source.TargetsForAgent(ctx, agent)
	if err != nil {
		return AgentReport{}, fmt.Errorf("load targets for agent %s: %w", agent, err)
	}

	now := a.now()
	rate := policy.RateFor(agent)
	report := AgentReport{
		Agent:   user,
		Targets: make([]Progress, 0, len(targets)),
		Summary: Summary{CommissionPct: rate},
	}

	surplus, commission := decimal.Zero, decimal.Zero
	for _, t := range targets {
		p, err := a.agentProgress(ctx, t, user, rate, now)
		if err != nil {
			return AgentReport{}, err
		}
		report.Targets = append(report.Targets, p)
		surplus = surplus.Add(p.Payout.Surplus)
		commission = commission.Add(p.Payout.Amount)
	}
	report.Summary.TotalSurplusCash = surplus.Round(2)
	report.Summary.TotalCommission = commission.Round(2)

	a.Logger.Debug("agent progress computed",
		zap.Stringer("agent_id", agent),
		zap.Int("targets", len(report.Targets)),
		zap.String("total_commission", report.Summary.TotalCommission.StringFixed(2)))
	return report, nil
}

// agentProgress runs the full pipeline for one (target, agent).
func (a *Aggregator) agentProgress(ctx context.Context, t Target, agent User, rate decimal.Decimal, now time.Time) (Progress, error) {
	window := ResolveWindow(t, now)
	split := AllocationFor(t, agent.ID)
	quotas := QuotasFor(t, split)

	achieved, err := a.reader().Achieved(ctx, []ID{agent.ID}, window)
	if err != nil {
		a.Logger.Warn("achievement read failed",
			zap.Stringer("target_id", t.ID),
			zap.Stringer("agent_id", agent.ID),
			zap.Error(err))
		return Progress{}, fmt.Errorf("target %s agent %s: %w", t.ID, agent.ID, err)
	}

	return Progress{
		TargetID:      t.ID,
		Title:         t.Title,
		Duration:      t.Duration,
		Window:        window,
		AgentID:       agent.ID,
		AgentName:     agentName(t, agent),
		ImageURL:      agent.ImageURL,
		Allocation:    split,
		Quotas:        quotas,
		Achieved:      achieved,
		Scores:        Score(quotas, achieved),
		CommissionPct: rate,
		Payout:        Commission(achieved.Cash, quotas.Cash, rate),
	}, nil
}

// agentName prefers the roster name, falling back to the name denormalized
// into the allocation.
func agentName(t Target, agent User) string {
	if agent.Name != "" {
		return agent.Name
	}
	for _, al := range t.Allocations {
		if al.Agent() == agent.ID {
			return al.Name()
		}
	}
	return ""
}

// =============================================================================
// FOR MANAGER
// =============================================================================

// ForManager computes the matrix for every target the manager owns, newest
// first. Each row carries the manager-level record and one record per
// roster agent in roster order.
func (a *Aggregator) ForManager(ctx context.Context, manager ID) ([]ManagerTargetReport, error) {
	defer a.observe("for_manager", time.Now())

	if manager.IsZero() {
		return nil, &InvalidIDError{}
	}

	mgr, err := a.Source.User(ctx, manager)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("manager %s: %w", manager, ErrManagerNotFound)
		}
		return nil, fmt.Errorf("load manager %s: %w", manager, err)
	}

	agents, err := a.Source.AgentsOf(ctx, manager)
	if err != nil {
		return nil, fmt.Errorf("load agents of %s: %w", manager, err)
	}

	policy, err := a.Source.CommissionPolicy(ctx)
	if err != nil {
		return nil, fmt.Errorf("load commission policy: %w", err)
	}

	targets, err := a.Source.TargetsForManager(ctx, manager)
	if err != nil {
		return nil, fmt.Errorf("load targets for manager %s: %w", manager, err)
	}

	now := a.now()
	rows := make([]ManagerTargetReport, 0, len(targets))
	for _, t := range targets {
		row, err := a.managerRow(ctx, t, mgr, agents, policy, now)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	a.Logger.Debug("manager matrix computed",
		zap.Stringer("manager_id", manager),
		zap.Int("targets", len(rows)),
		zap.Int("agents", len(agents)))
	return rows, nil
}

func (a *Aggregator) managerRow(ctx context.Context, t Target, mgr User, agents []User, policy CommissionPolicy, now time.Time) (ManagerTargetReport, error) {
	row := ManagerTargetReport{Agents: make([]Progress, len(agents))}

	limit := a.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, agent := range agents {
		g.Go(func() error {
			p, err := a.agentProgress(gctx, t, agent, policy.RateFor(agent.ID), now)
			if err != nil {
				return err
			}
			row.Agents[i] = p
			return nil
		})
	}

	g.Go(func() error {
		p, err := a.managerProgress(gctx, t, mgr, agents, now)
		if err != nil {
			return err
		}
		row.Manager = p
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ManagerTargetReport{}, err
		}
		return ManagerTargetReport{}, fmt.Errorf("manager %s target %s: %w", mgr.ID, t.ID, err)
	}
	return row, nil
}

// managerProgress measures the whole roster against the target's totals.
// Commission is only defined per agent, so the payout stays zero.
func (a *Aggregator) managerProgress(ctx context.Context, t Target, mgr User, agents []User, now time.Time) (Progress, error) {
	window := ResolveWindow(t, now)
	quotas := TotalQuotas(t)

	ids := make([]ID, len(agents))
	for i, ag := range agents {
		ids[i] = ag.ID
	}

	achieved, err := a.reader().Achieved(ctx, ids, window)
	if err != nil {
		return Progress{}, fmt.Errorf("target %s roster: %w", t.ID, err)
	}

	return Progress{
		TargetID:   t.ID,
		Title:      t.Title,
		Duration:   t.Duration,
		Window:     window,
		AgentName:  mgr.Name,
		ImageURL:   mgr.ImageURL,
		Allocation: FullSplit(),
		Quotas:     quotas,
		Achieved:   achieved,
		Scores:     Score(quotas, achieved),
		Payout:     Payout{Surplus: decimal.Zero, Amount: decimal.Zero},
	}, nil
}
