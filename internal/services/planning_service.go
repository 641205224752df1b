package services

import (
	"context"
	"fmt"
	"time"

	"finsight/internal/aggregate"
	"finsight/internal/core"
	"finsight/internal/log"
	"finsight/internal/store"
)

// BudgetService joins the backend's budgets with the cached transactions.
// Spent amounts are never sent to or read from the backend.
type BudgetService struct {
	store   *store.Store
	planner Planner
	logger  *log.Logger
}

func NewBudgetService(s *store.Store, p Planner, logger *log.Logger) *BudgetService {
	if logger == nil {
		logger = log.Discard()
	}
	return &BudgetService{store: s, planner: p, logger: logger.WithComponent(log.ComponentServices)}
}

func (b *BudgetService) List(ctx context.Context) ([]aggregate.BudgetStatus, error) {
	budgets, err := b.planner.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return aggregate.BudgetStatuses(budgets, b.store.Transactions()), nil
}

func (b *BudgetService) Create(ctx context.Context, in core.Budget) (aggregate.BudgetStatus, error) {
	out, err := b.planner.CreateBudget(ctx, in)
	if err != nil {
		return aggregate.BudgetStatus{}, fmt.Errorf("create budget: %w", err)
	}
	b.logger.InfoContext(ctx, "Budget created", "budget_id", out.ID, log.FieldCategory, out.Category)
	return aggregate.BudgetStatusOf(out, b.store.Transactions()), nil
}

func (b *BudgetService) Update(ctx context.Context, in core.Budget) (aggregate.BudgetStatus, error) {
	out, err := b.planner.UpdateBudget(ctx, in)
	if err != nil {
		return aggregate.BudgetStatus{}, fmt.Errorf("update budget: %w", err)
	}
	return aggregate.BudgetStatusOf(out, b.store.Transactions()), nil
}

func (b *BudgetService) Delete(ctx context.Context, id string) error {
	if err := b.planner.DeleteBudget(ctx, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	b.logger.InfoContext(ctx, "Budget deleted", "budget_id", id)
	return nil
}

// GoalService decorates the backend's goals with progress figures.
type GoalService struct {
	planner Planner
	now     func() time.Time
	logger  *log.Logger
}

func NewGoalService(p Planner, logger *log.Logger) *GoalService {
	if logger == nil {
		logger = log.Discard()
	}
	return &GoalService{planner: p, now: time.Now, logger: logger.WithComponent(log.ComponentServices)}
}

// WithClock replaces the clock used for deadlines.
func (g *GoalService) WithClock(now func() time.Time) *GoalService {
	g.now = now
	return g
}

func (g *GoalService) List(ctx context.Context) ([]aggregate.GoalStatus, error) {
	goals, err := g.planner.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return aggregate.GoalStatuses(goals, g.now()), nil
}

func (g *GoalService) Create(ctx context.Context, in core.Goal) (aggregate.GoalStatus, error) {
	out, err := g.planner.CreateGoal(ctx, in)
	if err != nil {
		return aggregate.GoalStatus{}, fmt.Errorf("create goal: %w", err)
	}
	g.logger.InfoContext(ctx, "Goal created", "goal_id", out.ID, "goal", out.GoalName)
	return aggregate.GoalProgress(out, g.now()), nil
}

func (g *GoalService) Update(ctx context.Context, in core.Goal) (aggregate.GoalStatus, error) {
	out, err := g.planner.UpdateGoal(ctx, in)
	if err != nil {
		return aggregate.GoalStatus{}, fmt.Errorf("update goal: %w", err)
	}
	return aggregate.GoalProgress(out, g.now()), nil
}

func (g *GoalService) Delete(ctx context.Context, id string) error {
	if err := g.planner.DeleteGoal(ctx, id); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	g.logger.InfoContext(ctx, "Goal deleted", "goal_id", id)
	return nil
}
