package db

import (
	"context"
	"database/sql"
	"fmt"

	"agrodoc/internal/models"
)

const userColumns = "id, name, email, password_hash, phone, show_notifications, created_at"

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	var phone sql.NullString
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &phone, &user.ShowNotifications, &user.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	user.Phone = phone.String
	return user, nil
}

// CreateUser inserts user and fills in its ID and CreatedAt. A taken email
// returns ErrDuplicate.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	created := now()
	var phone sql.NullString
	if user.Phone != "" {
		phone = sql.NullString{String: user.Phone, Valid: true}
	}

	id, err := db.insert(ctx,
		"INSERT INTO users (name, email, password_hash, phone, show_notifications, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.Name, user.Email, user.PasswordHash, phone, true, created)
	if err != nil {
		return err
	}
	user.ID = id
	user.ShowNotifications = true
	user.CreatedAt = created
	return nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(db.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(db.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (db *DB) UpdateUserName(ctx context.Context, id int64, name string) error {
	return db.updateUser(ctx, "UPDATE users SET name = ? WHERE id = ?", name, id)
}

func (db *DB) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return db.updateUser(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
}

func (db *DB) UpdatePhone(ctx context.Context, id int64, phone string) error {
	return db.updateUser(ctx, "UPDATE users SET phone = ? WHERE id = ?", phone, id)
}

func (db *DB) SetShowNotifications(ctx context.Context, id int64, show bool) error {
	return db.updateUser(ctx, "UPDATE users SET show_notifications = ? WHERE id = ?", show, id)
}

func (db *DB) updateUser(ctx context.Context, query string, args ...any) error {
	res, err := db.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteUser removes the user together with their predictions and reviews and
// returns the image paths of the deleted predictions.
func (db *DB) DeleteUser(ctx context.Context, id int64) ([]string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, db.dialect.rebind("SELECT image_path FROM predictions WHERE user_id = ?"), id)
	if err != nil {
		return nil, err
	}
	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return nil, err
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, query := range []string{
		"DELETE FROM predictions WHERE user_id = ?",
		"DELETE FROM reviews WHERE user_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, db.dialect.rebind(query), id); err != nil {
			return nil, fmt.Errorf("deleting user data: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, db.dialect.rebind("DELETE FROM users WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	if err := expectOne(res); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return paths, nil
}
