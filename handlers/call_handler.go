package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"remi-caller/middleware"
	"remi-caller/models"
)

// CallPlacer places an immediate call
type CallPlacer interface {
	PlaceNow(ctx context.Context, req models.CallRequest) (string, error)
}

// StatusReceiver consumes provider status callbacks
type StatusReceiver interface {
	HandleStatusCallback(callSid, status string) bool
}

type CallHandler struct {
	placer   CallPlacer
	receiver StatusReceiver
}

// NewCallHandler creates the handler. receiver may be nil when the provider
// does not use status callbacks.
func NewCallHandler(placer CallPlacer, receiver StatusReceiver) *CallHandler {
	return &CallHandler{placer: placer, receiver: receiver}
}

// MakeCall godoc
// @Summary Place a test call now
// @Description Calls the number right away, without creating or changing any reminder
// @Tags calls
// @Accept json
// @Produce json
// @Param call body models.MakeCallRequest true "Call to place"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /make-call [post]
func (h *CallHandler) MakeCall(c *fiber.Ctx) error {
	var req models.MakeCallRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return badRequest(c, "phoneNumber is required")
	}

	callID, err := h.placer.PlaceNow(middleware.RequestContext(c), models.CallRequest{
		To:       strings.TrimSpace(req.PhoneNumber),
		AudioURL: req.GeneratedAudioURL,
		Message:  req.Message,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"callId": callID, "message": "Call started"})
}

// CallStatus godoc
// @Summary Provider call status callback
// @Tags calls
// @Accept x-www-form-urlencoded
// @Param CallSid formData string true "Call SID"
// @Param CallStatus formData string true "Call status"
// @Success 204
// @Router /calls/status [post]
func (h *CallHandler) CallStatus(c *fiber.Ctx) error {
	var cb models.CallStatusCallback
	if err := c.BodyParser(&cb); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if cb.CallSid == "" {
		return badRequest(c, "CallSid is required")
	}
	if h.receiver != nil {
		h.receiver.HandleStatusCallback(cb.CallSid, cb.CallStatus)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
