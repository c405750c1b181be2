package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kharcha/internal/auth"
	"kharcha/internal/config"
	"kharcha/internal/core"
	applog "kharcha/internal/log"
	"kharcha/internal/services"
	"kharcha/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Port:              "0",
		SQLiteDBPath:      filepath.Join(t.TempDir(), "test.db"),
		JWTSecret:         "test-secret",
		TokenTTL:          time.Hour,
		BcryptCost:        bcrypt.MinCost,
		CORSAllowedOrigin: "*",
	}

	store, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ledger := services.NewLedgerService(store, nil)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	logger := applog.New(applog.Config{
		Component: "test",
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})

	return NewServer(cfg, store, ledger, tokens, logger)
}

// do sends a request through the full middleware chain and returns the
// recorded response.
func do(t *testing.T, srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func registerAndLogin(t *testing.T, srv *Server, username, email string) string {
	t.Helper()

	body := fmt.Sprintf(`{"username":%q,"email":%q,"password":"secret123"}`, username, email)
	rr := do(t, srv, http.MethodPost, "/api/v1/auth/register", "", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/api/v1/auth/login", "",
		fmt.Sprintf(`{"email":%q,"password":"secret123"}`, email))
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	decodeBody(t, rr, &resp)
	if resp.Token == "" {
		t.Fatal("login returned no token")
	}
	if resp.User.Username != username {
		t.Fatalf("login user = %q, want %q", resp.User.Username, username)
	}
	return resp.Token
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestRegisterValidationAndConflict(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/v1/auth/register", "", `not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad body status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/api/v1/auth/register", "", `{"username":"alice"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing fields status=%d", rr.Code)
	}

	registerAndLogin(t, srv, "alice", "alice@example.com")

	rr = do(t, srv, http.MethodPost, "/api/v1/auth/register", "",
		`{"username":"alice","email":"other@example.com","password":"secret123"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("duplicate username status=%d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "already exists") {
		t.Fatalf("duplicate body = %s", rr.Body.String())
	}
}

func TestLoginFailuresLookIdentical(t *testing.T) {
	srv := newTestServer(t)
	registerAndLogin(t, srv, "alice", "alice@example.com")

	unknown := do(t, srv, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"nobody@example.com","password":"secret123"}`)
	wrongPass := do(t, srv, http.MethodPost, "/api/v1/auth/login", "",
		`{"email":"alice@example.com","password":"wrong"}`)

	if unknown.Code != http.StatusUnauthorized || wrongPass.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d, want both 401", unknown.Code, wrongPass.Code)
	}
	if unknown.Body.String() != wrongPass.Body.String() {
		t.Fatalf("bodies differ: %q vs %q", unknown.Body.String(), wrongPass.Body.String())
	}
}

func TestExpenseRoutesRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/expenses"},
		{http.MethodPost, "/api/v1/expenses"},
		{http.MethodGet, "/api/v1/expenses/1"},
		{http.MethodPut, "/api/v1/expenses/1"},
		{http.MethodDelete, "/api/v1/expenses/1"},
	}
	for _, tc := range cases {
		rr := do(t, srv, tc.method, tc.path, "", "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token status=%d, want 401", tc.method, tc.path, rr.Code)
		}
	}

	rr := do(t, srv, http.MethodGet, "/api/v1/expenses", "not-a-token", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status=%d, want 401", rr.Code)
	}

	// Token signed with a different secret
	other, err := auth.NewTokenService("other-secret", time.Hour).Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rr = do(t, srv, http.MethodGet, "/api/v1/expenses", other, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("foreign token status=%d, want 401", rr.Code)
	}
}

func TestExpenseLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice", "alice@example.com")

	// Empty list before any writes
	rr := do(t, srv, http.MethodGet, "/api/v1/expenses", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Fatalf("empty list = %s, want []", got)
	}

	// Create
	rr = do(t, srv, http.MethodPost, "/api/v1/expenses", token,
		`{"amount":50.00,"category_id":1,"description":"groceries","date":"2024-03-01 12:00:00"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}

	var created core.Expense
	decodeBody(t, rr, &created)
	if created.ID == 0 || created.Amount.Cents != 5000 || created.CategoryID != 1 {
		t.Fatalf("created = %+v", created)
	}
	if created.CategoryName == "" {
		t.Fatal("created expense missing category name")
	}
	if !strings.Contains(rr.Body.String(), `"amount":50.00`) {
		t.Fatalf("amount should serialize as a bare decimal: %s", rr.Body.String())
	}

	path := fmt.Sprintf("/api/v1/expenses/%d", created.ID)

	// Get
	rr = do(t, srv, http.MethodGet, path, token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	// Partial update: only the description changes
	rr = do(t, srv, http.MethodPut, path, token, `{"description":"weekly groceries"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	var updated core.Expense
	decodeBody(t, rr, &updated)
	if updated.Description == nil || *updated.Description != "weekly groceries" {
		t.Fatalf("updated description = %v", updated.Description)
	}
	if updated.Amount.Cents != 5000 {
		t.Fatalf("amount changed by sparse update: %d", updated.Amount.Cents)
	}

	// Explicit null clears the description
	rr = do(t, srv, http.MethodPut, path, token, `{"description":null}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("clear description status=%d body=%s", rr.Code, rr.Body.String())
	}
	var cleared core.Expense
	decodeBody(t, rr, &cleared)
	if cleared.Description != nil {
		t.Fatalf("description = %q, want cleared", *cleared.Description)
	}

	// Empty update body is rejected
	rr = do(t, srv, http.MethodPut, path, token, `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty update status=%d, want 400", rr.Code)
	}

	// Unknown category is rejected
	rr = do(t, srv, http.MethodPut, path, token, `{"category_id":9999}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad category update status=%d, want 400", rr.Code)
	}

	// Delete
	rr = do(t, srv, http.MethodDelete, path, token, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, path, token, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d, want 404", rr.Code)
	}
	rr = do(t, srv, http.MethodDelete, path, token, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d, want 404", rr.Code)
	}
}

func TestExpenseOwnershipHidden(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := registerAndLogin(t, srv, "alice", "alice@example.com")
	bobToken := registerAndLogin(t, srv, "bob", "bob@example.com")

	rr := do(t, srv, http.MethodPost, "/api/v1/expenses", aliceToken,
		`{"amount":10.00,"category_id":1}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}
	var created core.Expense
	decodeBody(t, rr, &created)

	path := fmt.Sprintf("/api/v1/expenses/%d", created.ID)

	// Bob sees alice's expense as absent, not forbidden
	for _, tc := range []struct{ method, body string }{
		{http.MethodGet, ""},
		{http.MethodPut, `{"description":"mine now"}`},
		{http.MethodDelete, ""},
	} {
		rr := do(t, srv, tc.method, path, bobToken, tc.body)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s as other user status=%d, want 404", tc.method, rr.Code)
		}
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/expenses", bobToken, "")
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Fatalf("other user's list = %s, want []", got)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice", "alice@example.com")

	cases := []struct {
		name string
		body string
	}{
		{"not json", `not json`},
		{"missing amount", `{"category_id":1}`},
		{"zero amount", `{"amount":0,"category_id":1}`},
		{"negative amount", `{"amount":-5,"category_id":1}`},
		{"missing category", `{"amount":10}`},
		{"unknown category", `{"amount":10,"category_id":9999}`},
		{"bad date", `{"amount":10,"category_id":1,"date":"03/01/2024"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/v1/expenses", token, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s, want 400", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestCategories(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/v1/categories", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var categories []core.Category
	decodeBody(t, rr, &categories)
	if len(categories) != 10 {
		t.Fatalf("categories = %d, want the seeded 10", len(categories))
	}

	rr = do(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/categories/%d", categories[0].ID), "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/categories/9999", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing category status=%d, want 404", rr.Code)
	}
	rr = do(t, srv, http.MethodGet, "/api/v1/categories/abc", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("bad id status=%d, want 404", rr.Code)
	}
}

func TestSecurityAndCORSHeaders(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/healthz", "", "")
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	rr = do(t, srv, http.MethodOptions, "/api/v1/expenses", "", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status=%d, want 204", rr.Code)
	}
}
