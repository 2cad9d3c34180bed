package photo

import (
	"io"
	"mime/multipart"

	"backend-journitag/internal/apperr"
	"backend-journitag/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/batch-upload", authMiddleware, func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return apperr.Validation("multipart form required")
		}
		locationID := formValue(form, "location_id")
		if locationID == "" {
			return apperr.Validation("location_id is required")
		}
		result, err := svc.Upload(c.Context(), locationID, auth.UserID(c), formFiles(form))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success":         true,
			"photos_uploaded": result.PhotosUploaded,
			"files_submitted": result.FilesSubmitted,
			"photos":          result.Photos,
			"skipped":         result.Skipped,
		})
	})

	r.Post("/extract-exif", authMiddleware, func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return apperr.Validation("multipart form required")
		}
		files := formFiles(form)
		if len(files) == 0 {
			return apperr.Validation("no files provided")
		}
		return c.JSON(fiber.Map{"success": true, "photos": svc.ExtractMetadata(files)})
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		photos, err := svc.ListByUser(c.Context(), auth.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "photos": photos})
	})

	r.Get("/location/:id", func(c *fiber.Ctx) error {
		photos, err := svc.ListByLocation(c.Context(), c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "photos": photos})
	})

	setCover := func(c *fiber.Ctx) error {
		if err := svc.SetCover(c.Context(), c.Params("id"), auth.UserID(c)); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Cover photo updated"})
	}
	r.Patch("/:id/set-cover", authMiddleware, setCover)
	r.Post("/:id/set-cover", authMiddleware, setCover)

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id"), auth.UserID(c)); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Photo deleted"})
	})
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func formFiles(form *multipart.Form) []File {
	headers := form.File["files"]
	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		files = append(files, File{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return files
}
