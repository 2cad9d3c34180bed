package friend

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend-journitag/internal/apperr"
	"backend-journitag/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(mock pgxmock.PgxPoolIface, userID string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.FiberHandler})
	RegisterRoutes(app.Group("/friends"), NewService(mock, logger.Discard()), func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	})
	return app
}

func TestSendRequestHandler(t *testing.T) {
	mock := newMock(t)
	expectUserExists(mock, "bob", true)
	expectFriends(mock, "alice", "bob", false)
	expectPending(mock, "bob", "alice")
	expectPending(mock, "alice", "bob")
	mock.ExpectExec(`INSERT INTO friend_requests`).
		WithArgs(pgxmock.AnyArg(), "alice", "bob").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	body, _ := json.Marshal(map[string]string{"friend_id": "bob"})
	req := httptest.NewRequest(http.MethodPost, "/friends/requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := newApp(mock, "alice").Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		Status Status `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, StatusPendingOutgoing, out.Status)
}

func TestAddAliasAutoAccepts(t *testing.T) {
	mock := newMock(t)
	expectUserExists(mock, "bob", true)
	expectFriends(mock, "alice", "bob", false)
	expectPending(mock, "bob", "alice", "req-1")
	expectMakeFriends(mock, "req-1", "alice", "bob")

	body, _ := json.Marshal(map[string]string{"friend_id": "bob"})
	req := httptest.NewRequest(http.MethodPost, "/friends/add", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := newApp(mock, "alice").Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSendRequestToSelf(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"friend_id": "alice"})
	req := httptest.NewRequest(http.MethodPost, "/friends/requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := newApp(newMock(t), "alice").Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAcceptForbiddenHandler(t *testing.T) {
	mock := newMock(t)
	expectRequest(mock, "req-1", "bob", "alice")

	req := httptest.NewRequest(http.MethodPost, "/friends/requests/req-1/accept", nil)
	resp, err := newApp(mock, "carol").Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUnfriendAndStatusHandlers(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM friendships`).
		WithArgs("alice", "bob").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	expectFriends(mock, "alice", "bob", false)
	expectPending(mock, "alice", "bob")
	expectPending(mock, "bob", "alice")

	app := newApp(mock, "alice")

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/friends/bob", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/friends/bob/status", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Status Status `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, StatusNone, out.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchHandlerRequiresQuery(t *testing.T) {
	resp, err := newApp(newMock(t), "alice").Test(httptest.NewRequest(http.MethodGet, "/friends/search", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
