package models

import "time"

// JobPayload is the denormalized snapshot of a reminder carried by a scheduled job
type JobPayload struct {
	PhoneNumber string `json:"phoneNumber"`
	AudioURL    string `json:"audioUrl,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	UserID      string `json:"userId,omitempty"`
}

// ScheduledJob is one pending dispatch in the task queue. TaskID equals the reminder ID.
type ScheduledJob struct {
	TaskID  string     `json:"taskId"`
	DueAt   time.Time  `json:"dueAt"`
	Payload JobPayload `json:"payload"`
}
