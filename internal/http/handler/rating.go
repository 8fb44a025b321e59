package handler

import (
	"github.com/gofiber/fiber/v2"

	"kbapi/internal/service"
)

type ratingRequest struct {
	Value int `json:"value"`
}

// SubmitRating places or overwrites the caller's rating for a document.
func SubmitRating(ratings service.RatingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		var in ratingRequest
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "malformed request body")
		}
		res, err := ratings.Submit(c.UserContext(), p, c.Params("id"), in.Value)
		if err != nil {
			return respondServiceError(c, err)
		}
		status := fiber.StatusOK
		if res.Created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(res)
	}
}

// MyRating returns the caller's stored rating for a document, if any.
func MyRating(ratings service.RatingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		rating, err := ratings.MyRating(c.UserContext(), p, c.Params("id"))
		if err != nil {
			return respondServiceError(c, err)
		}
		if rating == nil {
			return c.JSON(fiber.Map{"rating": nil})
		}
		return c.JSON(fiber.Map{"rating": rating})
	}
}

// RemoveRating withdraws the caller's rating.
func RemoveRating(ratings service.RatingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		if err := ratings.Remove(c.UserContext(), p, c.Params("id")); err != nil {
			return respondServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
