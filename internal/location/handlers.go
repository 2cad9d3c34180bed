package location

import (
	"strconv"

	"backend-journitag/internal/apperr"
	"backend-journitag/internal/auth"
	"backend-journitag/internal/shared/geo"
	"backend-journitag/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type createRequest struct {
	TripID          string   `json:"trip_id" validate:"required"`
	X               *float64 `json:"x"`
	Y               *float64 `json:"y"`
	Name            string   `json:"name"`
	Address         string   `json:"address"`
	Tags            TagList  `json:"tags"`
	Rating          int      `json:"rating" validate:"min=0,max=5"`
	CostLevel       string   `json:"cost_level"`
	Notes           string   `json:"notes"`
	TimeNeeded      int      `json:"time_needed" validate:"min=0"`
	BestTimeToVisit string   `json:"best_time_to_visit"`
}

func (r createRequest) input() (ResolveInput, error) {
	in := ResolveInput{
		TripID:          r.TripID,
		Name:            r.Name,
		Address:         r.Address,
		Tags:            r.Tags,
		Rating:          r.Rating,
		CostLevel:       r.CostLevel,
		Notes:           r.Notes,
		TimeNeeded:      r.TimeNeeded,
		BestTimeToVisit: r.BestTimeToVisit,
	}
	switch {
	case r.X != nil && r.Y != nil:
		in.Coordinates = &geo.Coordinates{Latitude: *r.Y, Longitude: *r.X}
	case r.X != nil || r.Y != nil:
		return ResolveInput{}, apperr.Validation("x and y must be given together")
	}
	return in, nil
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req createRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(req); err != nil {
			return err
		}
		in, err := req.input()
		if err != nil {
			return err
		}
		loc, reused, err := svc.Create(c.Context(), auth.UserID(c), in)
		if err != nil {
			return err
		}
		if reused {
			return c.JSON(fiber.Map{"success": true, "location": loc, "reused": true, "message": "Using existing nearby location"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "location": loc, "reused": false})
	})

	r.Get("/nearby", func(c *fiber.Ctx) error {
		tripID := c.Query("trip_id")
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if tripID == "" || errLat != nil || errLng != nil {
			return apperr.Validation("trip_id, lat and lng are required")
		}
		radius := 1.0
		if q := c.Query("radius_km"); q != "" {
			v, err := strconv.ParseFloat(q, 64)
			if err != nil {
				return apperr.Validation("radius_km must be a number")
			}
			radius = v
		}
		results, err := svc.Nearby(c.Context(), tripID, geo.Coordinates{Latitude: lat, Longitude: lng}, radius)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "locations": results})
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		loc, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "location": loc, "photos": loc.Photos})
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var patch Patch
		if err := c.BodyParser(&patch); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(patch); err != nil {
			return err
		}
		loc, err := svc.Update(c.Context(), c.Params("id"), auth.UserID(c), patch)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "location": loc})
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id"), auth.UserID(c)); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Location deleted"})
	})
}
