package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"remi-caller/middleware"
	"remi-caller/models"
	"remi-caller/services"
)

type ReminderHandler struct {
	service *services.ReminderService
}

func NewReminderHandler(service *services.ReminderService) *ReminderHandler {
	return &ReminderHandler{service: service}
}

// AddReminder godoc
// @Summary Create a reminder
// @Description Stores the reminder and schedules its call when scheduledTime is in the future
// @Tags reminders
// @Accept json
// @Produce json
// @Param reminder body models.CreateReminderRequest true "Reminder to create"
// @Success 201 {object} models.CreateReminderResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /addReminder [post]
func (h *ReminderHandler) AddReminder(c *fiber.Ctx) error {
	var req models.CreateReminderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	reminder, err := h.service.Create(middleware.RequestContext(c), &req)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.CreateReminderResponse{
		TaskID:   reminder.ID,
		Reminder: reminder,
	})
}

// UpdateReminder godoc
// @Summary Update a reminder
// @Description Merges the given fields. A future scheduledTime re-arms the reminder, an empty one clears it.
// @Tags reminders
// @Accept json
// @Produce json
// @Param id path string true "Reminder ID"
// @Param reminder body models.UpdateReminderRequest true "Fields to change"
// @Success 200 {object} models.Reminder
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /updateReminder/{id} [patch]
func (h *ReminderHandler) UpdateReminder(c *fiber.Ctx) error {
	var req models.UpdateReminderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	reminder, err := h.service.Update(middleware.RequestContext(c), utils.CopyString(c.Params("id")), &req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(reminder)
}

// DeleteReminder godoc
// @Summary Delete a reminder
// @Tags reminders
// @Produce json
// @Param id path string true "Reminder ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /deleteReminder/{id} [delete]
func (h *ReminderHandler) DeleteReminder(c *fiber.Ctx) error {
	id := utils.CopyString(c.Params("id"))
	if err := h.service.Delete(middleware.RequestContext(c), id); err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{"id": id, "message": "Reminder deleted"})
}

// GetReminders godoc
// @Summary List all reminders
// @Tags reminders
// @Produce json
// @Success 200 {array} models.Reminder
// @Router /getReminders [get]
func (h *ReminderHandler) GetReminders(c *fiber.Ctx) error {
	reminders, err := h.service.List(middleware.RequestContext(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(reminders)
}

// GetReminder godoc
// @Summary Get a reminder
// @Tags reminders
// @Produce json
// @Param id path string true "Reminder ID"
// @Success 200 {object} models.Reminder
// @Failure 404 {object} ErrorResponse
// @Router /getReminder/{id} [get]
func (h *ReminderHandler) GetReminder(c *fiber.Ctx) error {
	reminder, err := h.service.Get(middleware.RequestContext(c), utils.CopyString(c.Params("id")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(reminder)
}
