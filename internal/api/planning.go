package api

import (
	"context"
	"net/http"

	"finsight/internal/core"
)

func (c *Client) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	var out []core.Budget
	if err := c.doJSON(ctx, "list budgets", http.MethodGet, "/budgets", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Budget{}
	}
	return out, nil
}

func (c *Client) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	const op = "create budget"
	if err := b.Validate(); err != nil {
		return core.Budget{}, validationError(op, err)
	}
	b.ID = ""

	var out core.Budget
	if err := c.doJSON(ctx, op, http.MethodPost, "/budgets", b, &out); err != nil {
		return core.Budget{}, err
	}
	return out, nil
}

// UpdateBudget replaces the budget with id b.ID.
func (c *Client) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	const op = "update budget"
	id, err := escapeID(op, b.ID)
	if err != nil {
		return core.Budget{}, err
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, validationError(op, err)
	}

	var out core.Budget
	if err := c.doJSON(ctx, op, http.MethodPut, "/budgets/"+id, b, &out); err != nil {
		return core.Budget{}, err
	}
	return out, nil
}

func (c *Client) DeleteBudget(ctx context.Context, id string) error {
	const op = "delete budget"
	id, err := escapeID(op, id)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, op, http.MethodDelete, "/budgets/"+id, nil, nil)
}

func (c *Client) ListGoals(ctx context.Context) ([]core.Goal, error) {
	var out []core.Goal
	if err := c.doJSON(ctx, "list goals", http.MethodGet, "/goals", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Goal{}
	}
	return out, nil
}

func (c *Client) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	const op = "create goal"
	if err := g.Validate(); err != nil {
		return core.Goal{}, validationError(op, err)
	}
	g.ID = ""

	var out core.Goal
	if err := c.doJSON(ctx, op, http.MethodPost, "/goals", g, &out); err != nil {
		return core.Goal{}, err
	}
	return out, nil
}

// UpdateGoal replaces the goal with id g.ID.
func (c *Client) UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	const op = "update goal"
	id, err := escapeID(op, g.ID)
	if err != nil {
		return core.Goal{}, err
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, validationError(op, err)
	}

	var out core.Goal
	if err := c.doJSON(ctx, op, http.MethodPut, "/goals/"+id, g, &out); err != nil {
		return core.Goal{}, err
	}
	return out, nil
}

func (c *Client) DeleteGoal(ctx context.Context, id string) error {
	const op = "delete goal"
	id, err := escapeID(op, id)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, op, http.MethodDelete, "/goals/"+id, nil, nil)
}
