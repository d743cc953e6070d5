package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request, ownerID string) {
	var in core.BudgetInput
	if err := DecodeJSON(r, &in); err != nil {
		s.writeError(w, r, ownerID, log.OpCreate, err, true)
		return
	}
	in.Category = sanitizeInput(in.Category)
	b, err := s.svc.Budgets.Create(r.Context(), ownerID, in)
	if err != nil {
		s.writeError(w, r, ownerID, log.OpCreate, err, true)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(b).Write(w)
}

// handleListBudgets filters by year and month only when given.
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, ownerID string) {
	year, month, err := ParseBudgetPeriod(r.URL.Query(), s.now(), false)
	if err != nil {
		s.writeError(w, r, ownerID, log.OpList, err, false)
		return
	}
	budgets, err := s.svc.Budgets.List(r.Context(), ownerID, year, month)
	if err != nil {
		s.writeError(w, r, ownerID, log.OpList, err, false)
		return
	}
	NewJSONResponse().Data(budgets).Write(w)
}

// handleBudgetStatus defaults to the current month.
func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request, ownerID string) {
	year, month, err := ParseBudgetPeriod(r.URL.Query(), s.now(), true)
	if err != nil {
		s.writeError(w, r, ownerID, "budget_status", err, false)
		return
	}
	statuses, err := s.svc.Budgets.Status(r.Context(), ownerID, year, month)
	if err != nil {
		s.writeError(w, r, ownerID, "budget_status", err, false)
		return
	}
	NewJSONResponse().
		Data(statuses).
		Meta(map[string]int{"year": year, "month": month}).
		Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request, ownerID string) {
	b, err := s.svc.Budgets.Get(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, ownerID, log.OpRead, err, false)
		return
	}
	NewJSONResponse().Data(b).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request, ownerID string) {
	var patch core.BudgetPatch
	if err := DecodeJSON(r, &patch); err != nil {
		s.writeError(w, r, ownerID, log.OpUpdate, err, true)
		return
	}
	b, err := s.svc.Budgets.Update(r.Context(), ownerID, r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, ownerID, log.OpUpdate, err, true)
		return
	}
	NewJSONResponse().Data(b).Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request, ownerID string) {
	id := r.PathValue("id")
	if err := s.svc.Budgets.Delete(r.Context(), ownerID, id); err != nil {
		s.writeError(w, r, ownerID, log.OpDelete, err, false)
		return
	}
	NewJSONResponse().Data(map[string]string{"id": id}).Write(w)
}
