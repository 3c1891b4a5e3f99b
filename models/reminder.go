package models

import "time"

// ReminderStatus is the dispatch state of a reminder
type ReminderStatus string

const (
	StatusPending   ReminderStatus = "pending"
	StatusCompleted ReminderStatus = "completed"
	StatusFailed    ReminderStatus = "failed"
)

// Reminder is the durable record of a scheduled reminder call
type Reminder struct {
	ID                string         `json:"id"`
	UserID            string         `json:"userId,omitempty"`
	PhoneNumber       string         `json:"phoneNumber"`
	ScheduledTime     *time.Time     `json:"scheduledTime,omitempty"`
	Title             string         `json:"title,omitempty"`
	Description       string         `json:"description,omitempty"`
	GeneratedAudioURL string         `json:"generatedAudioUrl,omitempty"`
	Status            ReminderStatus `json:"status"`
	LastRun           *time.Time     `json:"lastRun,omitempty"`
	Result            string         `json:"result,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
}

// IsDueAfter reports whether the reminder has a scheduled time strictly after now
func (r *Reminder) IsDueAfter(now time.Time) bool {
	return r.ScheduledTime != nil && r.ScheduledTime.After(now)
}

// Payload snapshots the fields the dispatcher needs
func (r *Reminder) Payload() JobPayload {
	return JobPayload{
		PhoneNumber: r.PhoneNumber,
		AudioURL:    r.GeneratedAudioURL,
		Title:       r.Title,
		Description: r.Description,
		UserID:      r.UserID,
	}
}

// ReminderUpdate holds the fields to change on a stored reminder.
// Nil fields are left untouched. ClearScheduledTime removes the scheduled time.
// When IfScheduledTime is set the update only applies to a pending reminder still
// scheduled at that time.
type ReminderUpdate struct {
	IfScheduledTime *time.Time

	PhoneNumber        *string
	ScheduledTime      *time.Time
	ClearScheduledTime bool
	Title              *string
	Description        *string
	GeneratedAudioURL  *string
	Status             *ReminderStatus
	LastRun            *time.Time
	Result             *string
}

// Matches reports whether the IfScheduledTime guard holds for r
func (u ReminderUpdate) Matches(r *Reminder) bool {
	if u.IfScheduledTime == nil {
		return true
	}
	return r.Status == StatusPending && SameInstant(r.ScheduledTime, u.IfScheduledTime)
}

// SameInstant compares two optional timestamps at millisecond precision
func SameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	d := a.Sub(*b)
	return d > -time.Millisecond && d < time.Millisecond
}

// Apply merges the update into r
func (u ReminderUpdate) Apply(r *Reminder) {
	if u.PhoneNumber != nil {
		r.PhoneNumber = *u.PhoneNumber
	}
	if u.ClearScheduledTime {
		r.ScheduledTime = nil
	} else if u.ScheduledTime != nil {
		t := *u.ScheduledTime
		r.ScheduledTime = &t
	}
	if u.Title != nil {
		r.Title = *u.Title
	}
	if u.Description != nil {
		r.Description = *u.Description
	}
	if u.GeneratedAudioURL != nil {
		r.GeneratedAudioURL = *u.GeneratedAudioURL
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.LastRun != nil {
		t := *u.LastRun
		r.LastRun = &t
	}
	if u.Result != nil {
		r.Result = *u.Result
	}
}

// CreateReminderRequest is the body of POST /addReminder.
// ScheduledTime is kept as a string so that unparseable values can be rejected with 400.
type CreateReminderRequest struct {
	ID                string  `json:"id,omitempty"`
	UserID            string  `json:"userId,omitempty"`
	PhoneNumber       string  `json:"phoneNumber"`
	ScheduledTime     *string `json:"scheduledTime,omitempty"`
	Title             string  `json:"title,omitempty"`
	Description       string  `json:"description,omitempty"`
	GeneratedAudioURL string  `json:"generatedAudioUrl,omitempty"`
}

// UpdateReminderRequest is the body of PATCH /updateReminder/:id.
// An empty scheduledTime clears the schedule.
type UpdateReminderRequest struct {
	PhoneNumber       *string `json:"phoneNumber,omitempty"`
	ScheduledTime     *string `json:"scheduledTime,omitempty"`
	Title             *string `json:"title,omitempty"`
	Description       *string `json:"description,omitempty"`
	GeneratedAudioURL *string `json:"generatedAudioUrl,omitempty"`
}

// CreateReminderResponse is returned by POST /addReminder
type CreateReminderResponse struct {
	TaskID   string    `json:"taskId"`
	Reminder *Reminder `json:"reminder"`
}
