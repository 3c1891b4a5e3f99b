package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"remi-caller/services"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	var pe *services.PlacementError
	switch {
	case errors.Is(err, services.ErrInvalidScheduleTime),
		errors.Is(err, services.ErrInvalidReminder),
		errors.Is(err, services.ErrInvalidAudioRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrReminderNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrReminderExists):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInferenceFailed), errors.As(err, &pe):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func writeError(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}
