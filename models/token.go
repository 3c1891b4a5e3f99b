package models

import "time"

// UserToken is a push notification token registered by a device
type UserToken struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SaveTokenRequest is the body of POST /saveToken
type SaveTokenRequest struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}
