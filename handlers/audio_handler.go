package handlers

import (
	"github.com/gofiber/fiber/v2"

	"remi-caller/middleware"
	"remi-caller/models"
	"remi-caller/services"
)

type AudioHandler struct {
	service *services.AudioService
}

func NewAudioHandler(service *services.AudioService) *AudioHandler {
	return &AudioHandler{service: service}
}

// GenerateAudio godoc
// @Summary Generate reminder audio
// @Description Synthesizes the text in the voice of the sample and stores the result
// @Tags audio
// @Accept json
// @Produce json
// @Param request body models.GenerateAudioRequest true "Text and voice sample"
// @Success 200 {object} models.GenerateAudioResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /generateAudio [post]
func (h *AudioHandler) GenerateAudio(c *fiber.Ctx) error {
	var req models.GenerateAudioRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	out, err := h.service.Generate(middleware.RequestContext(c), &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
