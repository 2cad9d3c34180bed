package geocode

import (
	"errors"

	"backend-journitag/internal/apperr"
	"backend-journitag/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type reverseRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

func RegisterRoutes(r fiber.Router, g ReverseGeocoder, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req reverseRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(req); err != nil {
			return err
		}
		place, err := g.Reverse(c.Context(), *req.Latitude, *req.Longitude)
		if errors.Is(err, ErrNoResult) {
			return apperr.NotFound("no place found for these coordinates")
		}
		if err != nil {
			return err
		}
		return c.JSON(place)
	})
}
