package db

import (
	"context"
	"time"

	"agrodoc/internal/models"
)

const predictionColumns = "id, user_id, image_path, prediction_label, confidence, timestamp"

func scanPrediction(row interface{ Scan(...any) error }) (*models.Prediction, error) {
	p := &models.Prediction{}
	if err := row.Scan(&p.ID, &p.UserID, &p.ImagePath, &p.Label, &p.Confidence, &p.Timestamp); err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// CreatePrediction inserts p and fills in its ID and, if unset, its Timestamp.
func (db *DB) CreatePrediction(ctx context.Context, p *models.Prediction) error {
	if p.Timestamp.IsZero() {
		p.Timestamp = now()
	}
	p.Timestamp = p.Timestamp.UTC()

	id, err := db.insert(ctx,
		"INSERT INTO predictions (user_id, image_path, prediction_label, confidence, timestamp) VALUES (?, ?, ?, ?, ?)",
		p.UserID, p.ImagePath, p.Label, p.Confidence, p.Timestamp)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (db *DB) GetPrediction(ctx context.Context, id int64) (*models.Prediction, error) {
	return scanPrediction(db.queryRow(ctx, "SELECT "+predictionColumns+" FROM predictions WHERE id = ?", id))
}

func (db *DB) CountPredictions(ctx context.Context, userID int64) (int, error) {
	var count int
	err := db.queryRow(ctx, "SELECT COUNT(*) FROM predictions WHERE user_id = ?", userID).Scan(&count)
	return count, err
}

// ListPredictions returns one page of the user's predictions, newest first.
func (db *DB) ListPredictions(ctx context.Context, userID int64, limit, offset int) ([]models.Prediction, error) {
	return db.listPredictions(ctx,
		"SELECT "+predictionColumns+" FROM predictions WHERE user_id = ? ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?",
		userID, limit, offset)
}

// ListPredictionsBetween returns the user's predictions with from <= timestamp < to, newest first.
func (db *DB) ListPredictionsBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.Prediction, error) {
	return db.listPredictions(ctx,
		"SELECT "+predictionColumns+" FROM predictions WHERE user_id = ? AND timestamp >= ? AND timestamp < ? ORDER BY timestamp DESC, id DESC",
		userID, from.UTC(), to.UTC())
}

func (db *DB) listPredictions(ctx context.Context, query string, args ...any) ([]models.Prediction, error) {
	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := []models.Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, *p)
	}
	return predictions, rows.Err()
}
