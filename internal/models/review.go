package models

import "time"

type Review struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Rating    int       `json:"rating"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// ReviewWithAuthor is a review joined with its author's display name.
type ReviewWithAuthor struct {
	Review
	AuthorName string `json:"author_name"`
}
