package http

import (
	"errors"
	"net/http"

	"kharcha/internal/core"
	applog "kharcha/internal/log"
)

// Categories are a seeded reference set and need no authentication.

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		s.internalError(ctx, w, applog.OpList, err)
		return
	}
	if categories == nil {
		categories = []core.Category{}
	}

	NewResponse().JSON(categories).Write(w)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseIDParam(r)
	if err != nil {
		NotFoundError("category not found").Write(w)
		return
	}

	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			NotFoundError("category not found").Write(w)
			return
		}
		s.internalError(ctx, w, applog.OpGet, err)
		return
	}

	NewResponse().JSON(category).Write(w)
}
