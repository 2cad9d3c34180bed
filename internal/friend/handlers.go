package friend

import (
	"backend-journitag/internal/apperr"
	"backend-journitag/internal/auth"

	"github.com/gofiber/fiber/v2"
)

type sendRequest struct {
	FriendID string `json:"friend_id"`
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		friends, err := svc.Friends(c.Context(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "friends": friends})
	})

	r.Get("/search", authMiddleware, func(c *fiber.Ctx) error {
		users, err := svc.Search(c.Context(), auth.UserID(c), c.Query("query"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "users": users})
	})

	r.Get("/requests", authMiddleware, func(c *fiber.Ctx) error {
		reqs, err := svc.Requests(c.Context(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "incoming": reqs.Incoming, "outgoing": reqs.Outgoing})
	})

	send := func(c *fiber.Ctx) error {
		var req sendRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation("invalid request body")
		}
		result, err := svc.SendRequest(c.Context(), auth.UserID(c), req.FriendID)
		if err != nil {
			return err
		}
		if result.Status == StatusFriends {
			return c.JSON(fiber.Map{"success": true, "status": result.Status, "message": "You are now friends"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":    true,
			"status":     result.Status,
			"request_id": result.RequestID,
			"message":    "Friend request sent",
		})
	}
	r.Post("/requests", authMiddleware, send)
	r.Post("/add", authMiddleware, send)

	r.Post("/requests/:id/accept", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Accept(c.Context(), c.Params("id"), auth.UserID(c)); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Friend request accepted"})
	})

	r.Delete("/requests/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Decline(c.Context(), c.Params("id"), auth.UserID(c)); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Friend request removed"})
	})

	r.Get("/:id/status", authMiddleware, func(c *fiber.Ctx) error {
		rel, err := svc.Status(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "status": rel.Status, "request_id": rel.RequestID})
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Unfriend(c.Context(), auth.UserID(c), c.Params("id")); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Friend removed"})
	})
}
