package auth

import (
	"backend-journitag/internal/apperr"
	"backend-journitag/internal/validation"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/signup", func(c *fiber.Ctx) error {
		var req SignupRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation("invalid payload")
		}
		if err := validation.Struct(req); err != nil {
			return err
		}
		user, tokens, err := svc.Signup(c.Context(), req)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "user": user, "tokens": tokens})
	})

	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation("invalid payload")
		}
		user, tokens, err := svc.Login(c.Context(), req)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "user": user, "tokens": tokens})
	})

	r.Post("/refresh", func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return apperr.Validation("refresh_token required")
		}

		userID, err := svc.ValidateRefreshToken(c.Context(), req.RefreshToken)
		if err != nil {
			return err
		}

		resp, err := svc.GenerateTokens(c.Context(), userID)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	})

	r.Post("/logout", authMiddleware, func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return apperr.Validation("refresh_token required")
		}
		if err := svc.Logout(c.Context(), UserID(c), req.RefreshToken); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Logged out"})
	})

	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		user, err := svc.User(c.Context(), UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "user": user})
	})

	r.Get("/jwt/verify", func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return apperr.Unauthorized("missing bearer token")
		}

		userID, err := svc.ValidateAccessToken(token)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"user_id": userID})
	})
}
