package handler

import (
	"github.com/gofiber/fiber/v2"

	"kbapi/internal/enrich"
)

type textRequest struct {
	Text string `json:"text"`
}

// AnalyzeFile extracts text from an uploaded file and returns a derived
// summary, tag suggestions, and a preview.
func AnalyzeFile(enricher enrich.Enricher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := principal(c); err != nil {
			return err
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		analysis, err := enricher.AnalyzeFile(c.UserContext(), f, fh.Filename, fh.Size)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(analysis)
	}
}

// GenerateSummary produces a short summary for the posted text.
func GenerateSummary(enricher enrich.Enricher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := principal(c); err != nil {
			return err
		}
		var in textRequest
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "malformed request body")
		}
		summary, err := enricher.GenerateSummary(c.UserContext(), in.Text)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{"summary": summary})
	}
}

// GenerateTags proposes tags for the posted text.
func GenerateTags(enricher enrich.Enricher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := principal(c); err != nil {
			return err
		}
		var in textRequest
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "malformed request body")
		}
		tags, err := enricher.GenerateTags(c.UserContext(), in.Text)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{"tags": tags})
	}
}
