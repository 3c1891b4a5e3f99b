package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"remi-caller/middleware"
	"remi-caller/models"
	"remi-caller/services"
)

type TokenHandler struct {
	tokens services.TokenStore
}

func NewTokenHandler(tokens services.TokenStore) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// SaveToken godoc
// @Summary Register a push token
// @Tags tokens
// @Accept json
// @Produce json
// @Param token body models.SaveTokenRequest true "User and device token"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /saveToken [post]
func (h *TokenHandler) SaveToken(c *fiber.Ctx) error {
	var req models.SaveTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Token = strings.TrimSpace(req.Token)
	if req.UserID == "" || req.Token == "" {
		return badRequest(c, "userId and token are required")
	}

	if err := h.tokens.SaveToken(middleware.RequestContext(c), req.UserID, req.Token); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Token saved"})
}

// GetToken godoc
// @Summary Get the push token of a user
// @Tags tokens
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} models.UserToken
// @Failure 404 {object} ErrorResponse
// @Router /getToken/{userId} [get]
func (h *TokenHandler) GetToken(c *fiber.Ctx) error {
	token, err := h.tokens.GetToken(middleware.RequestContext(c), utils.CopyString(c.Params("userId")))
	if err != nil {
		return writeError(c, err)
	}
	if token == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "token not found"})
	}
	return c.JSON(token)
}
