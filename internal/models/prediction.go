package models

import "time"

// Prediction is one stored classification. Rows are never updated.
type Prediction struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ImagePath  string    `json:"-"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}
