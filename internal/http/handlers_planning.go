package http

import (
	"net/http"

	"finsight/internal/core"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	if _, err := s.loaded(r.Context()); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	budgets, err := s.deps.Budgets.List(r.Context())
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(budgets).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var in core.Budget
	if err := DecodeJSON(w, r, &in); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	in.ID = ""
	in.Category = sanitizeInput(in.Category)

	out, err := s.deps.Budgets.Create(r.Context(), in)
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(out).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	var in core.Budget
	if err := DecodeJSON(w, r, &in); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	in.ID = id
	in.Category = sanitizeInput(in.Category)

	out, err := s.deps.Budgets.Update(r.Context(), in)
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	if err := s.deps.Budgets.Delete(r.Context(), id); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.deps.Goals.List(r.Context())
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(goals).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var in core.Goal
	if err := DecodeJSON(w, r, &in); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	in.ID = ""
	in.GoalName = sanitizeInput(in.GoalName)
	in.Category = sanitizeInput(in.Category)

	out, err := s.deps.Goals.Create(r.Context(), in)
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(out).Write(w)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	var in core.Goal
	if err := DecodeJSON(w, r, &in); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	in.ID = id
	in.GoalName = sanitizeInput(in.GoalName)
	in.Category = sanitizeInput(in.Category)

	out, err := s.deps.Goals.Update(r.Context(), in)
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	if err := s.deps.Goals.Delete(r.Context(), id); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
