package models

import "time"

type User struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"` // Don't expose in JSON
	Phone             string    `json:"phone,omitempty"`
	ShowNotifications bool      `json:"show_notifications"`
	CreatedAt         time.Time `json:"created_at"`
}
