package db

import (
	"context"

	"agrodoc/internal/models"
)

func (db *DB) CreateReview(ctx context.Context, r *models.Review) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = now()
	}
	r.Timestamp = r.Timestamp.UTC()

	id, err := db.insert(ctx,
		"INSERT INTO reviews (user_id, rating, body, timestamp) VALUES (?, ?, ?, ?)",
		r.UserID, r.Rating, r.Body, r.Timestamp)
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// ListRecentReviews returns the newest reviews with their author names.
func (db *DB) ListRecentReviews(ctx context.Context, limit int) ([]models.ReviewWithAuthor, error) {
	rows, err := db.query(ctx, `SELECT r.id, r.user_id, r.rating, r.body, r.timestamp, u.name
		FROM reviews r JOIN users u ON r.user_id = u.id
		ORDER BY r.timestamp DESC, r.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []models.ReviewWithAuthor{}
	for rows.Next() {
		var r models.ReviewWithAuthor
		if err := rows.Scan(&r.ID, &r.UserID, &r.Rating, &r.Body, &r.Timestamp, &r.AuthorName); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}
