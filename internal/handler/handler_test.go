package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/expense-tracker/internal/auth"
	"github.com/sakif/expense-tracker/internal/repository/sqlite"
	"github.com/sakif/expense-tracker/internal/service"
)

// newTestRouter wires the full stack against an in-memory database: real
// services, real repositories, low-cost bcrypt. Tests then exercise the
// exact routes clients hit.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars")
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(4)

	accounts := service.NewAccountService(db, passwords, tokens, logger)
	ledger := service.NewLedgerService(db, db, logger)
	portfolio := service.NewPortfolioService(db, db, logger)

	accountH := NewAccountHandler(accounts, logger)
	ledgerH := NewLedgerHandler(ledger, logger)
	portfolioH := NewPortfolioHandler(portfolio, logger)

	r := chi.NewRouter()
	r.Post("/api/register/", accountH.HandleRegister)
	r.Post("/api/login/", accountH.HandleLogin)
	r.Get("/api/health", HandleHealth)
	r.With(auth.RequireAuth(tokens)).Get("/api/me", accountH.HandleMe)
	r.Get("/api/user-info/", accountH.HandleUserInfo)
	r.Post("/api/personal-info/", accountH.HandlePersonalInfo)
	r.Post("/api/personal-info/update/", accountH.HandlePersonalInfoUpdate)
	r.Get("/api/profile/", accountH.HandleProfileGet)
	r.Post("/api/profile/", accountH.HandleProfileUpdate)
	r.Post("/api/profile/change-email/", accountH.HandleChangeEmail)
	r.Put("/api/profile/change-password/", accountH.HandleChangePassword)
	r.Delete("/api/profile/delete-account/", accountH.HandleDeleteAccount)
	r.Post("/api/income/add/", ledgerH.HandleAddIncome)
	r.Post("/api/expense/add/", ledgerH.HandleAddExpense)
	r.Get("/api/dashboard/", ledgerH.HandleDashboard)
	r.Get("/api/transactions/recent/", ledgerH.HandleRecentTransactions)
	r.Post("/api/funds/add/", portfolioH.HandleAddFund)
	r.Get("/api/funds/", portfolioH.HandleListFunds)
	r.Post("/api/funds/update/{fundID}/", portfolioH.HandleUpdateFund)
	r.Delete("/api/funds/delete/", portfolioH.HandleDeleteFund)
	r.Get("/api/portfolio/summary/", portfolioH.HandleSummary)
	r.Get("/api/riders/all/", accountH.HandleRiders)
	r.Get("/api/riders/by-email/", accountH.HandleRiderByEmail)
	r.Post("/api/riders/verify/", accountH.HandleVerifyRider)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// registerRider creates an account and returns its rider_id.
func registerRider(t *testing.T, router http.Handler, email string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/register/", map[string]string{
		"email":            email,
		"password":         "secret123",
		"confirm_password": "secret123",
		"first_name":       "Ann",
		"last_name":        "Lee",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody(t, rec)["rider_id"].(string)
}

func TestRegisterEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/register/", map[string]string{
		"email":            "ann@example.com",
		"password":         "secret123",
		"confirm_password": "secret123",
		"first_name":       "Ann",
		"last_name":        "Lee",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Registration successful", body["message"])
	assert.Equal(t, "annlee", body["username"])
	assert.Len(t, body["rider_id"], 8)
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["user_id"])
}

func TestRegisterEndpoint_BadEmail(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/register/", map[string]string{
		"email":            "not-an-email",
		"password":         "secret123",
		"confirm_password": "secret123",
		"first_name":       "Ann",
		"last_name":        "Lee",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "email")
}

func TestRegisterEndpoint_DuplicateEmailFieldError(t *testing.T) {
	router := newTestRouter(t)
	registerRider(t, router, "dup@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/register/", map[string]string{
		"email":            "dup@example.com",
		"password":         "secret123",
		"confirm_password": "secret123",
		"first_name":       "Bea",
		"last_name":        "Lee",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	// The field key must be machine-readable under details, not just prose.
	details, ok := body["details"].(map[string]any)
	require.True(t, ok, "missing details in body: %s", rec.Body.String())
	assert.Contains(t, details, "email")
	assert.Equal(t, body["error"], details["email"])
}

func TestLoginEndpoint(t *testing.T) {
	router := newTestRouter(t)
	registerRider(t, router, "ann@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/login/", map[string]string{
		"email":    "ann@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Login successful", body["message"])
	assert.NotEmpty(t, body["token"])

	rec = doJSON(t, router, http.MethodPost, "/api/login/", map[string]string{
		"email":    "ann@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decodeBody(t, rec)["error"])
}

func TestMeEndpoint(t *testing.T) {
	router := newTestRouter(t)
	registerRider(t, router, "ann@example.com")

	login := doJSON(t, router, http.MethodPost, "/api/login/", map[string]string{
		"email":    "ann@example.com",
		"password": "secret123",
	})
	token := decodeBody(t, login)["token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ann@example.com", decodeBody(t, rec)["email"])

	// No token → 401.
	rec = doJSON(t, router, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserInfoEndpoint(t *testing.T) {
	router := newTestRouter(t)
	riderID := registerRider(t, router, "ann@example.com")

	rec := doJSON(t, router, http.MethodGet, "/api/user-info/?rider_id="+riderID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, riderID, body["rider_id"])
	assert.Equal(t, "Ann", body["first_name"])

	// Missing and unknown rider_id use the pinned wordings.
	rec = doJSON(t, router, http.MethodGet, "/api/user-info/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "rider_id is required", decodeBody(t, rec)["error"])

	rec = doJSON(t, router, http.MethodGet, "/api/user-info/?rider_id=00000000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Invalid rider_id", decodeBody(t, rec)["error"])
}

func TestChangeEmailEndpoint(t *testing.T) {
	router := newTestRouter(t)
	riderID := registerRider(t, router, "ann@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/profile/change-email/", map[string]string{
		"rider_id":         riderID,
		"new_email":        "new@example.com",
		"current_password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/profile/change-email/", map[string]string{
		"rider_id":         riderID,
		"new_email":        "new@example.com",
		"current_password": "secret123",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new@example.com", decodeBody(t, rec)["email"])

	// Login works with the new email only.
	rec = doJSON(t, router, http.MethodPost, "/api/login/", map[string]string{
		"email": "new@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePasswordEndpoint(t *testing.T) {
	router := newTestRouter(t)
	riderID := registerRider(t, router, "ann@example.com")

	rec := doJSON(t, router, http.MethodPut, "/api/profile/change-password/", map[string]string{
		"rider_id":             riderID,
		"old_password":         "secret123",
		"new_password":         "newpass1",
		"confirm_new_password": "other",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/api/profile/change-password/", map[string]string{
		"rider_id":             riderID,
		"old_password":         "secret123",
		"new_password":         "newpass1",
		"confirm_new_password": "newpass1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteAccountEndpoint(t *testing.T) {
	router := newTestRouter(t)
	riderID := registerRider(t, router, "ann@example.com")

	rec := doJSON(t, router, http.MethodDelete, "/api/profile/delete-account/", map[string]string{
		"rider_id": riderID,
		"password": "secret123",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/user-info/?rider_id="+riderID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPersonalInfoEndpoints(t *testing.T) {
	router := newTestRouter(t)
	riderID := registerRider(t, router, "ann@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/personal-info/", map[string]string{"rider_id": riderID})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ann", decodeBody(t, rec)["first_name"])

	rec = doJSON(t, router, http.MethodPost, "/api/personal-info/update/", map[string]any{
		"rider_id":   riderID,
		"first_name": "Anna",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Anna", body["first_name"])
	assert.Equal(t, "Lee", body["last_name"])
}

func TestProfileEndpoints(t *testing.T) {
	router := newTestRouter(t)
	riderID := registerRider(t, router, "ann@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/profile/", map[string]any{
		"rider_id": riderID,
		"location": "Dhaka",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/profile/?rider_id="+riderID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Dhaka", decodeBody(t, rec)["location"])
}

func TestLedgerEndpoints(t *testing.T) {
	router := newTestRouter(t)
	riderID := registerRider(t, router, "ann@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/income/add/", map[string]any{
		"rider_id": riderID,
		"source":   "Salary",
		"amount":   "1000.50",
		"date":     "2026-01-15",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Amount as a JSON number works too.
	rec = doJSON(t, router, http.MethodPost, "/api/expense/add/", map[string]any{
		"rider_id": riderID,
		"category": "Food",
		"amount":   250.25,
		"date":     "2026-01-16",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/dashboard/?rider_id="+riderID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "1000.5", body["total_income"])
	assert.Equal(t, "250.25", body["total_expense"])
	assert.Equal(t, body["total_saving"], body["balance"])

	rec = doJSON(t, router, http.MethodGet, "/api/transactions/recent/?rider_id="+riderID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	txs := decodeBody(t, rec)["transactions"].([]any)
	require.Len(t, txs, 2)
	first := txs[0].(map[string]any)
	assert.Equal(t, "expense", first["type"])
	assert.Equal(t, "Food", first["category"])
}

func TestFundEndpoints(t *testing.T) {
	router := newTestRouter(t)
	riderID := registerRider(t, router, "ann@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/funds/add/", map[string]any{
		"rider_id":        riderID,
		"name":            "Index Fund",
		"fund_type":       "equity",
		"invested_amount": "1000",
		"current_value":   "1100",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	fundID := decodeBody(t, rec)["fund"].(map[string]any)["id"].(string)

	rec = doJSON(t, router, http.MethodPost, "/api/funds/update/"+fundID+"/", map[string]any{
		"rider_id":      riderID,
		"current_value": "1200",
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/portfolio/summary/?rider_id="+riderID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "1000", body["total_invested"])
	assert.Equal(t, "200", body["total_gain_loss"])
	assert.Equal(t, "20", body["total_gain_loss_percentage"])

	rec = doJSON(t, router, http.MethodDelete, "/api/funds/delete/", map[string]string{
		"rider_id": riderID,
		"fund_id":  fundID,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/funds/?rider_id="+riderID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["funds"])
}

func TestFundEndpoints_WrongOwner(t *testing.T) {
	router := newTestRouter(t)
	owner := registerRider(t, router, "ann@example.com")
	other := registerRider(t, router, "bea@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/funds/add/", map[string]any{
		"rider_id":        owner,
		"name":            "Index Fund",
		"invested_amount": "1000",
		"current_value":   "1100",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	fundID := decodeBody(t, rec)["fund"].(map[string]any)["id"].(string)

	rec = doJSON(t, router, http.MethodDelete, "/api/funds/delete/", map[string]string{
		"rider_id": other,
		"fund_id":  fundID,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Fund not found.", decodeBody(t, rec)["error"])
}

func TestRiderEndpoints(t *testing.T) {
	router := newTestRouter(t)
	riderID := registerRider(t, router, "ann@example.com")
	registerRider(t, router, "bea@example.com")

	rec := doJSON(t, router, http.MethodGet, "/api/riders/all/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["total_riders"])
	assert.EqualValues(t, 2, body["active_riders"])
	assert.Len(t, body["riders"], 2)

	rec = doJSON(t, router, http.MethodGet, "/api/riders/by-email/?email=ann@example.com", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, riderID, decodeBody(t, rec)["rider_id"])

	rec = doJSON(t, router, http.MethodGet, "/api/riders/by-email/?email=ghost@example.com", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No rider found with this email", decodeBody(t, rec)["error"])
}

func TestVerifyEndpoint(t *testing.T) {
	router := newTestRouter(t)
	riderID := registerRider(t, router, "ann@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/riders/verify/", map[string]string{
		"rider_id": riderID,
		"email":    "ann@example.com",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["verified"])
	assert.Equal(t, "annlee", body["username"])

	rec = doJSON(t, router, http.MethodPost, "/api/riders/verify/", map[string]string{
		"rider_id": riderID,
		"email":    "other@example.com",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["verified"])
	assert.Equal(t, "Rider ID and email do not match", body["error"])
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}
