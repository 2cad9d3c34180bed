package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// FiberHandler renders domain errors and fiber errors as JSON. It is
// installed as fiber.Config.ErrorHandler.
func FiberHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	code := CodeInternal
	msg := err.Error()

	var fe *fiber.Error
	var de *Error
	switch {
	case errors.As(err, &de):
		status = de.Code.HTTPStatus()
		code = de.Code
		msg = de.Message
		if len(de.Details) > 0 {
			return c.Status(status).JSON(fiber.Map{"success": false, "error": msg, "code": code, "details": de.Details})
		}
	case errors.As(err, &fe):
		status = fe.Code
		code = codeForStatus(fe.Code)
		msg = fe.Message
	}

	return c.Status(status).JSON(fiber.Map{"success": false, "error": msg, "code": code})
}

func codeForStatus(status int) Code {
	switch status {
	case fiber.StatusBadRequest:
		return CodeValidation
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusForbidden:
		return CodeForbidden
	case fiber.StatusConflict:
		return CodeConflict
	case fiber.StatusUnauthorized:
		return CodeUnauthorized
	default:
		return CodeInternal
	}
}
