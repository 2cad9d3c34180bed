package trip

import (
	"backend-journitag/internal/apperr"
	"backend-journitag/internal/auth"
	"backend-journitag/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type createRequest struct {
	Title     string `json:"title" validate:"required,max=255"`
	City      string `json:"city" validate:"max=100"`
	Country   string `json:"country" validate:"max=100"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (r createRequest) input() (Input, error) {
	start, err := ParseDate("start_date", r.StartDate)
	if err != nil {
		return Input{}, err
	}
	end, err := ParseDate("end_date", r.EndDate)
	if err != nil {
		return Input{}, err
	}
	return Input{Title: r.Title, City: r.City, Country: r.Country, StartDate: start, EndDate: end}, nil
}

type patchRequest struct {
	Title     *string `json:"title" validate:"omitempty,max=255"`
	City      *string `json:"city" validate:"omitempty,max=100"`
	Country   *string `json:"country" validate:"omitempty,max=100"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

func (r patchRequest) changes() (Changes, error) {
	ch := Changes{Title: r.Title, City: r.City, Country: r.Country}
	var err error
	if r.StartDate != nil {
		if ch.StartDate, err = ParseDate("start_date", *r.StartDate); err != nil {
			return Changes{}, err
		}
	}
	if r.EndDate != nil {
		if ch.EndDate, err = ParseDate("end_date", *r.EndDate); err != nil {
			return Changes{}, err
		}
	}
	return ch, nil
}

type shareRequest struct {
	FriendID    string `json:"friend_id"`
	Email       string `json:"email" validate:"omitempty,email"`
	AccessLevel string `json:"access_level" validate:"omitempty,oneof=read edit"`
	ExpiresAt   string `json:"expires_at"`
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
		t, err := svc.Create(c.Context(), auth.UserID(c), in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "trip": t})
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		trips, err := svc.List(c.Context(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "trips": trips})
	})

	r.Get("/shared", authMiddleware, func(c *fiber.Ctx) error {
		trips, err := svc.ListShared(c.Context(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "trips": trips})
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		d, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success":     true,
			"trip":        d.Trip,
			"locations":   d.Locations,
			"photos":      d.Photos,
			"cover_photo": d.CoverPhoto,
		})
	})

	r.Get("/:id/locations", func(c *fiber.Ctx) error {
		locs, err := svc.Locations(c.Context(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "locations": locs})
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var req patchRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(req); err != nil {
			return err
		}
		ch, err := req.changes()
		if err != nil {
			return err
		}
		t, err := svc.Update(c.Context(), c.Params("id"), auth.UserID(c), ch)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "trip": t})
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id"), auth.UserID(c)); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Trip deleted"})
	})

	r.Post("/:id/share", authMiddleware, func(c *fiber.Ctx) error {
		var req shareRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(req); err != nil {
			return err
		}
		expires, err := ParseDate("expires_at", req.ExpiresAt)
		if err != nil {
			return err
		}
		sh, err := svc.Share(c.Context(), c.Params("id"), auth.UserID(c), ShareInput{
			FriendID:  req.FriendID,
			Email:     req.Email,
			Level:     req.AccessLevel,
			ExpiresAt: expires,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "share": sh})
	})

	r.Post("/:id/unshare", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			FriendID string `json:"friend_id"`
		}
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := svc.Unshare(c.Context(), c.Params("id"), auth.UserID(c), body.FriendID); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Trip unshared"})
	})

	r.Get("/:id/shared-with", authMiddleware, func(c *fiber.Ctx) error {
		users, err := svc.SharedWith(c.Context(), c.Params("id"), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "shared_with": users})
	})
}
