package http

import (
	"errors"
	"net/http"

	"kharcha/internal/auth"
	"kharcha/internal/core"
	applog "kharcha/internal/log"
)

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	if err := req.validate(); err != nil {
		DomainError(err).Write(w)
		return
	}

	hash, err := auth.HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		s.internalError(ctx, w, applog.OpRegister, err)
		return
	}

	user, err := s.store.CreateUser(ctx, req.Username, req.Email, hash)
	if err != nil {
		if resp := DomainError(err); resp != nil {
			resp.Write(w)
			return
		}
		s.internalError(ctx, w, applog.OpRegister, err)
		return
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentAuth).InfoContext(ctx, "User registered",
		applog.FieldUserID, user.ID,
		applog.FieldUsername, user.Username)

	NewResponse().Status(http.StatusCreated).JSON(map[string]string{
		"message": "user registered successfully",
	}).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAuth)

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	if err := req.validate(); err != nil {
		DomainError(err).Write(w)
		return
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Same response as a wrong password: login probing learns nothing
			logger.WarnContext(ctx, "Login for unknown email", applog.FieldEmail, req.Email)
			DomainError(core.ErrBadCredentials).Write(w)
			return
		}
		s.internalError(ctx, w, applog.OpLogin, err)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		logger.WarnContext(ctx, "Login with wrong password", applog.FieldUserID, user.ID)
		DomainError(core.ErrBadCredentials).Write(w)
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.internalError(ctx, w, applog.OpLogin, err)
		return
	}

	logger.InfoContext(ctx, "User logged in", applog.FieldUserID, user.ID)

	NewResponse().JSON(loginResponse{
		Token: token,
		User: userResponse{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
	}).Write(w)
}
