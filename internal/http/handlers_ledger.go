package http

import (
	"net/http"

	"budgetwise/internal/auth"
	"budgetwise/internal/core"
	"budgetwise/internal/services"
)

type summaryResponse struct {
	core.Totals
	Goal     core.Money `json:"goal"`
	Progress float64    `json:"progress"`
}

type goalResponse struct {
	services.GoalView
	Applied bool `json:"applied"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.ledger.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ledger == nil {
		ledger = core.Ledger{}
	}
	writeJSON(w, http.StatusOK, ledger)
}

// handleCreateTransaction accepts JSON or form fields type, category,
// amount and description.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r, maxJSONBody)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		writeError(w, r, validationErr(err))
		return
	}
	n := core.NewTransaction{
		Type:        core.TransactionType(p.Get("type")),
		Category:    core.Category(p.Get("category")),
		Amount:      amount,
		Description: p.Get("description"),
	}

	tx, err := s.ledger.Add(r.Context(), auth.UserID(r.Context()), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// handleDeleteTransaction answers 204 whether or not the id existed.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ledger.Delete(r.Context(), auth.UserID(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	totals, err := s.ledger.Summary(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	goal, err := s.goals.Get(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Totals:   totals,
		Goal:     goal.Target,
		Progress: core.Progress(totals.Balance, goal.Target),
	})
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	rows, err := s.ledger.Breakdown(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []core.CategoryAmount{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleDailyTrend(w http.ResponseWriter, r *http.Request) {
	days, err := s.ledger.Daily(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	view, err := s.goals.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goalResponse{GoalView: view, Applied: false})
}

// handleSetGoal reads "target". An invalid target leaves the goal as it
// was and the response reports applied false.
func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r, maxJSONBody)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}

	view, applied, err := s.goals.Set(r.Context(), auth.UserID(r.Context()), p.Get("target"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goalResponse{GoalView: view, Applied: applied})
}
