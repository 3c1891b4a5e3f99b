package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// Routes groups the handlers mounted on the app
type Routes struct {
	Reminders *ReminderHandler
	Audio     *AudioHandler
	Calls     *CallHandler
	Tokens    *TokenHandler
}

// Register mounts the API. Nil handlers are skipped.
func (r Routes) Register(app *fiber.App) {
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "UP"})
	})

	if h := r.Reminders; h != nil {
		app.Post("/addReminder", h.AddReminder)
		app.Patch("/updateReminder/:id", h.UpdateReminder)
		app.Delete("/deleteReminder/:id", h.DeleteReminder)
		app.Get("/getReminders", h.GetReminders)
		app.Get("/getReminder/:id", h.GetReminder)
	}
	if h := r.Audio; h != nil {
		app.Post("/generateAudio", h.GenerateAudio)
	}
	if h := r.Tokens; h != nil {
		app.Post("/saveToken", h.SaveToken)
		app.Get("/getToken/:userId", h.GetToken)
	}
	if h := r.Calls; h != nil {
		app.Post("/make-call", h.MakeCall)
		app.Post("/calls/status", h.CallStatus)
	}
}
