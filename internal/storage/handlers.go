package storage

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes serves stored photos. It is mounted at /uploads.
func RegisterRoutes(r fiber.Router, store *Local) {
	r.Get("/photos/:name", func(c *fiber.Ctx) error {
		path, err := store.Path(photoDir + "/" + c.Params("name"))
		if err != nil {
			return fiber.ErrNotFound
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return fiber.ErrNotFound
		}
		return c.SendFile(path)
	})
}
