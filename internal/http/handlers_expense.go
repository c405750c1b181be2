package http

import (
	"errors"
	"net/http"

	"kharcha/internal/core"
	applog "kharcha/internal/log"
)

// Expense handlers run behind the auth gate; the user id in context is
// already verified. A missing id here means the route was wired without
// the gate, which is a programming error worth a 500.

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		s.internalError(ctx, w, applog.OpCreate, errors.New("no user id in context"))
		return
	}

	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if resp := DomainError(err); resp != nil {
			resp.Write(w)
			return
		}
		BadRequestError("invalid request body").Write(w)
		return
	}

	if err := req.validate(); err != nil {
		DomainError(err).Write(w)
		return
	}

	expense, err := s.ledger.CreateExpense(ctx, userID, *req.Amount, *req.CategoryID, req.Description, req.date())
	if err != nil {
		if resp := DomainError(err); resp != nil {
			resp.Write(w)
			return
		}
		s.internalError(ctx, w, applog.OpCreate, err)
		return
	}

	NewResponse().Status(http.StatusCreated).JSON(expense).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		s.internalError(ctx, w, applog.OpList, errors.New("no user id in context"))
		return
	}

	expenses, err := s.ledger.ListExpenses(ctx, userID)
	if err != nil {
		s.internalError(ctx, w, applog.OpList, err)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}

	NewResponse().JSON(expenses).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		s.internalError(ctx, w, applog.OpGet, errors.New("no user id in context"))
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		NotFoundError("expense not found").Write(w)
		return
	}

	expense, err := s.ledger.GetExpense(ctx, userID, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			NotFoundError("expense not found").Write(w)
			return
		}
		s.internalError(ctx, w, applog.OpGet, err)
		return
	}

	NewResponse().JSON(expense).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		s.internalError(ctx, w, applog.OpUpdate, errors.New("no user id in context"))
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		NotFoundError("expense not found").Write(w)
		return
	}

	var req updateExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if resp := DomainError(err); resp != nil {
			resp.Write(w)
			return
		}
		BadRequestError("invalid request body").Write(w)
		return
	}

	upd, err := req.toUpdate()
	if err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	expense, err := s.ledger.UpdateExpense(ctx, userID, id, upd)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			NotFoundError("expense not found").Write(w)
			return
		}
		if resp := DomainError(err); resp != nil {
			resp.Write(w)
			return
		}
		s.internalError(ctx, w, applog.OpUpdate, err)
		return
	}

	NewResponse().JSON(expense).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		s.internalError(ctx, w, applog.OpDelete, errors.New("no user id in context"))
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		NotFoundError("expense not found").Write(w)
		return
	}

	if err := s.ledger.DeleteExpense(ctx, userID, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			NotFoundError("expense not found").Write(w)
			return
		}
		s.internalError(ctx, w, applog.OpDelete, err)
		return
	}

	NewResponse().Status(http.StatusNoContent).Write(w)
}
