package location

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-journitag/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func newApp(svc *Service, userID string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.FiberHandler})
	RegisterRoutes(app.Group("/locations"), svc, func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	})
	return app
}

func sendJSON(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestCreateHandlerCommaSeparatedTags(t *testing.T) {
	f := newFixture(t)
	expectOwner(f.mock, "trip-1", "owner")
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`INSERT INTO locations`).
		WithArgs(pgxmock.AnyArg(), "trip-1", 0.0, 0.0, "Hostel", "", 3, "$", "", 0, "").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	for _, tag := range []string{"sleep", "cheap"} {
		f.mock.ExpectQuery(`INSERT INTO tags`).WithArgs(pgxmock.AnyArg(), tag).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("tag-" + tag))
		f.mock.ExpectExec(`INSERT INTO location_tags`).WithArgs(pgxmock.AnyArg(), "tag-"+tag).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	f.mock.ExpectCommit()

	resp := sendJSON(t, newApp(f.svc, "owner"), http.MethodPost, "/locations/",
		`{"trip_id":"trip-1","name":"Hostel","rating":3,"cost_level":"$","tags":" sleep, ,cheap "}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var out struct {
		Location Location `json:"location"`
		Reused   bool     `json:"reused"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out.Reused || len(out.Location.Tags) != 2 {
		t.Fatalf("unexpected body %+v", out)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateHandlerReuse(t *testing.T) {
	f := newFixture(t)
	expectOwner(f.mock, "trip-1", "owner")
	expectCandidates(f.mock, "trip-1", pgxmock.NewRows(locationCols).
		AddRow("loc-1", "trip-1", -73.9857, 40.7484, "Empire State Building", "", 0, "Free", "", 0, "", time.Now(), []string{}))

	resp := sendJSON(t, newApp(f.svc, "owner"), http.MethodPost, "/locations/",
		`{"trip_id":"trip-1","x":-73.98565,"y":40.74845}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for reuse, got %d", resp.StatusCode)
	}
	var out struct {
		Location Location `json:"location"`
		Reused   bool     `json:"reused"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if !out.Reused || out.Location.ID != "loc-1" {
		t.Fatalf("unexpected body %+v", out)
	}
}

func TestCreateHandlerValidation(t *testing.T) {
	f := newFixture(t)
	app := newApp(f.svc, "owner")

	cases := map[string]string{
		"missing trip":     `{"name":"x"}`,
		"half coordinates": `{"trip_id":"trip-1","x":1.5}`,
		"bad rating":       `{"trip_id":"trip-1","name":"x","rating":9}`,
		"malformed":        `{"trip_id":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := sendJSON(t, app, http.MethodPost, "/locations/", body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestCreateHandlerNoNameNoGPS(t *testing.T) {
	f := newFixture(t)
	expectOwner(f.mock, "trip-1", "owner")

	resp := sendJSON(t, newApp(f.svc, "owner"), http.MethodPost, "/locations/", `{"trip_id":"trip-1","x":0,"y":0}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetHandlerNotFound(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(`WHERE l.id=\$1`).WithArgs("nope").WillReturnRows(pgxmock.NewRows(locationCols))

	resp, err := newApp(f.svc, "").Test(httptest.NewRequest(http.MethodGet, "/locations/nope", nil))
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404")
	}
}

func TestUpdateHandlerForbidden(t *testing.T) {
	f := newFixture(t)
	expectFind(f.mock, "loc-1", "trip-1", 1, 2)
	expectOwner(f.mock, "trip-1", "owner")
	expectShare(f.mock, "trip-1", "stranger")

	resp := sendJSON(t, newApp(f.svc, "stranger"), http.MethodPut, "/locations/loc-1", `{"name":"mine now"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestNearbyHandlerValidation(t *testing.T) {
	f := newFixture(t)
	resp, err := newApp(f.svc, "").Test(httptest.NewRequest(http.MethodGet, "/locations/nearby?trip_id=trip-1&lat=abc&lng=1", nil))
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400")
	}
}

func TestDeleteHandler(t *testing.T) {
	f := newFixture(t)
	expectFind(f.mock, "loc-1", "trip-1", 1, 2)
	expectOwner(f.mock, "trip-1", "owner")
	f.mock.ExpectQuery(`SELECT file_url FROM photos`).WithArgs("loc-1").WillReturnRows(pgxmock.NewRows([]string{"file_url"}))
	f.mock.ExpectExec(`DELETE FROM locations`).WithArgs("loc-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))

	resp, err := newApp(f.svc, "owner").Test(httptest.NewRequest(http.MethodDelete, "/locations/loc-1", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200")
	}
}
