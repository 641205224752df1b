package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"finsight/internal/aggregate"
	"finsight/internal/core"
	"finsight/internal/log"
	"finsight/internal/store"
)

// Planner is the budget and goal side of the backend. *api.Client satisfies it.
type Planner interface {
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	DeleteBudget(ctx context.Context, id string) error
	ListGoals(ctx context.Context) ([]core.Goal, error)
	CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
	UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
	DeleteGoal(ctx context.Context, id string) error
}

// DashboardService assembles the overview page.
type DashboardService struct {
	store   *store.Store
	planner Planner
	now     func() time.Time
	logger  *log.Logger
}

func NewDashboardService(s *store.Store, p Planner, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	return &DashboardService{
		store:   s,
		planner: p,
		now:     time.Now,
		logger:  logger.WithComponent(log.ComponentServices),
	}
}

// WithClock replaces the clock used for goal deadlines.
func (d *DashboardService) WithClock(now func() time.Time) *DashboardService {
	d.now = now
	return d
}

// Overview loads budgets and goals, plus transactions when the cache has not
// been filled yet, and derives every dashboard figure from one snapshot.
func (d *DashboardService) Overview(ctx context.Context) (aggregate.Overview, error) {
	var (
		budgets []core.Budget
		goals   []core.Goal
	)

	g, gctx := errgroup.WithContext(ctx)
	if !d.store.Snapshot().Loaded {
		g.Go(func() error {
			if _, err := d.store.Load(gctx); err != nil {
				return fmt.Errorf("load transactions: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		var err error
		if budgets, err = d.planner.ListBudgets(gctx); err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if goals, err = d.planner.ListGoals(gctx); err != nil {
			return fmt.Errorf("list goals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.LogError(ctx, d.logger, "Failed to build overview", err, log.OpLoad, nil)
		return aggregate.Overview{}, err
	}

	txs := d.store.Transactions()
	d.logger.DebugContext(ctx, "Overview computed",
		log.FieldCount, len(txs),
		"budgets", len(budgets),
		"goals", len(goals))
	return aggregate.Compute(txs, budgets, goals, d.now()), nil
}
