package geocode

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend-journitag/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

type stubGeocoder struct {
	place Place
	err   error
}

func (s stubGeocoder) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	return s.place, s.err
}

func newApp(g ReverseGeocoder) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.FiberHandler})
	RegisterRoutes(app.Group("/geocode"), g, func(c *fiber.Ctx) error { return c.Next() })
	return app
}

func post(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/geocode/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp.StatusCode
}

func TestGeocodeHandler(t *testing.T) {
	app := newApp(stubGeocoder{place: Place{Name: "Empire State Building"}})
	if code := post(t, app, `{"latitude":40.7484,"longitude":-73.9857}`); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
}

func TestGeocodeHandlerNoResult(t *testing.T) {
	app := newApp(stubGeocoder{err: ErrNoResult})
	if code := post(t, app, `{"latitude":0,"longitude":0}`); code != http.StatusNotFound {
		t.Fatalf("status = %d", code)
	}
}

func TestGeocodeHandlerValidation(t *testing.T) {
	app := newApp(stubGeocoder{})
	for _, body := range []string{`{`, `{}`, `{"latitude":95,"longitude":0}`} {
		if code := post(t, app, body); code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d", body, code)
		}
	}
}
