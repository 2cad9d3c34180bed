package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-journitag/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func newApp(svc *Service) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.FiberHandler})
	RegisterRoutes(app.Group("/auth"), svc, JWTMiddleware("test-secret"))
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any, token string) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func TestAuthHandlersSignupLoginVerify(t *testing.T) {
	mock := newMock(t)
	createdAt := time.Now()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "user", "user@example.com", pgxmock.AnyArg(), "").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))
	expectStoreRefresh(mock, pgxmock.AnyArg())

	svc := newTestService(mock)
	app := newApp(svc)

	resp := postJSON(t, app, "/auth/signup", SignupRequest{Email: "user@example.com", Username: "user", Password: "secret1"}, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status: %d", resp.StatusCode)
	}

	mock.ExpectQuery(`FROM users`).
		WithArgs("user@example.com").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("user-1", "user", "user@example.com", hashOf(t, "secret1"), "", "", createdAt))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	resp = postJSON(t, app, "/auth/login", LoginRequest{Email: "user@example.com", Password: "secret1"}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", resp.StatusCode)
	}
	var out struct {
		Tokens TokenResponse `json:"tokens"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out.Tokens.AccessToken == "" {
		t.Fatalf("expected access token")
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/jwt/verify", nil)
	req.Header.Set("Authorization", "Bearer "+out.Tokens.AccessToken)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status: %v", err)
	}

	mock.ExpectQuery(`WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(userCols).AddRow("user-1", "user", "user@example.com", "hash", "", "", createdAt))
	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+out.Tokens.AccessToken)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("me status: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuthSignupValidation(t *testing.T) {
	app := newApp(newTestService(nil))

	resp := postJSON(t, app, "/auth/signup", map[string]string{"username": "ab", "email": "not-an-email", "password": "x"}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}
}

func TestAuthLoginMissingFields(t *testing.T) {
	app := newApp(newTestService(nil))

	resp := postJSON(t, app, "/auth/login", map[string]string{"username": "marco"}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}
}

func TestAuthRefreshInvalidToken(t *testing.T) {
	app := newApp(newTestService(nil))

	resp := postJSON(t, app, "/auth/refresh", map[string]string{"refresh_token": "bad"}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", resp.StatusCode)
	}
}

func TestAuthRefreshSuccess(t *testing.T) {
	mock := newMock(t)
	svc := newTestService(mock)

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	refresh, err := svc.GenerateTokens(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(refresh.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow("user-1", time.Now().Add(5*time.Minute)))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	resp := postJSON(t, newApp(svc), "/auth/refresh", map[string]string{"refresh_token": refresh.RefreshToken}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status: %d", resp.StatusCode)
	}
}

func TestAuthLogout(t *testing.T) {
	mock := newMock(t)
	svc := newTestService(mock)

	expectStoreRefresh(mock, "user-1")
	tokens, err := svc.GenerateTokens(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	mock.ExpectExec(`UPDATE refresh_tokens`).
		WithArgs(tokens.RefreshToken, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	resp := postJSON(t, newApp(svc), "/auth/logout", map[string]string{"refresh_token": tokens.RefreshToken}, tokens.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status: %d", resp.StatusCode)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuthVerifyMissingToken(t *testing.T) {
	app := newApp(newTestService(nil))

	req := httptest.NewRequest(http.MethodGet, "/auth/jwt/verify", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}
}
