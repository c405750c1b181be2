package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"kharcha/internal/auth"
	applog "kharcha/internal/log"
)

type contextKey string

// userIDKey carries the verified user id resolved by the auth gate.
const userIDKey contextKey = "user_id"

// UserIDFromContext returns the authenticated user id bound by the auth
// gate. The second return is false on unauthenticated requests, which
// can only happen on routes missing the gate.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// requireAuth is the gate in front of every ledger route. It extracts
// the bearer token, verifies it, and binds the resolved user id into
// the request context. Any failure short-circuits with 401; the wrapped
// handler is never invoked. The failure kinds stay distinguishable in
// the log only.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := applog.FromContext(ctx).WithComponent(applog.ComponentAuth)

		header := r.Header.Get("Authorization")
		if header == "" {
			logger.WarnContext(ctx, "Missing authorization header", applog.FieldPath, r.URL.Path)
			UnauthorizedError("authorization required").Write(w)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			logger.WarnContext(ctx, "Malformed authorization header", applog.FieldPath, r.URL.Path)
			UnauthorizedError("authorization required").Write(w)
			return
		}

		userID, err := s.tokens.Verify(token)
		if err != nil {
			reason := "malformed"
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				reason = "expired"
			case errors.Is(err, auth.ErrBadSignature):
				reason = "bad signature"
			}
			logger.WarnContext(ctx, "Token verification failed",
				"reason", reason,
				applog.FieldPath, r.URL.Path)
			UnauthorizedError("invalid or expired token").Write(w)
			return
		}

		ctx = context.WithValue(ctx, userIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

// withCORS handles cross-origin requests for browser clients. The
// allowed origin comes from configuration; preflight requests are
// answered here and never reach the mux.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.cfg.CORSAllowedOrigin
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withSecurityHeaders adds the response headers a JSON API should carry.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
