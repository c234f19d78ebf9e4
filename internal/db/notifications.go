package db

import (
	"context"
	"database/sql"
	"time"

	"agrodoc/internal/models"
)

// CreateNotification inserts an operator notification.
func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	var expiry sql.NullTime
	if n.ExpiryDate != nil {
		expiry = sql.NullTime{Time: n.ExpiryDate.UTC(), Valid: true}
	}

	id, err := db.insert(ctx,
		"INSERT INTO notifications (title, body, active, expiry_date, created_at) VALUES (?, ?, ?, ?, ?)",
		n.Title, n.Body, n.Active, expiry, n.CreatedAt.UTC())
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

// ListActiveNotifications returns active, unexpired notifications, newest first.
func (db *DB) ListActiveNotifications(ctx context.Context, at time.Time, limit int) ([]models.Notification, error) {
	rows, err := db.query(ctx, `SELECT id, title, body, active, expiry_date, created_at
		FROM notifications
		WHERE active = ? AND (expiry_date IS NULL OR expiry_date > ?)
		ORDER BY created_at DESC, id DESC LIMIT ?`, true, at.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var expiry sql.NullTime
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.Active, &expiry, &n.CreatedAt); err != nil {
			return nil, err
		}
		if expiry.Valid {
			t := expiry.Time
			n.ExpiryDate = &t
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
