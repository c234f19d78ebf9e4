package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrodoc/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Init("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *DB, email string) *models.User {
	t.Helper()
	user := &models.User{Name: "Test User", Email: email, PasswordHash: "hash"}
	require.NoError(t, db.CreateUser(context.Background(), user))
	return user
}

func TestInitRejectsUnknownDriver(t *testing.T) {
	_, err := Init("mysql", "whatever")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg, err := dialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite, err := dialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestMigrateIsIdempotentAndSeedsOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))

	notes, err := db.ListActiveNotifications(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Welcome!", notes[0].Title)
	assert.Equal(t, "Thank you for using Agrodoc!", notes[0].Body)
}

func TestUserCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := createUser(t, db, "a@example.com")
	assert.NotZero(t, user.ID)
	assert.True(t, user.ShowNotifications)

	err := db.CreateUser(ctx, &models.User{Name: "Other", Email: "a@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := db.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "", got.Phone)

	require.NoError(t, db.UpdateUserName(ctx, user.ID, "Renamed"))
	require.NoError(t, db.UpdatePasswordHash(ctx, user.ID, "newhash"))
	require.NoError(t, db.UpdatePhone(ctx, user.ID, "+15551234567"))
	require.NoError(t, db.SetShowNotifications(ctx, user.ID, false))

	got, err = db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "newhash", got.PasswordHash)
	assert.Equal(t, "+15551234567", got.Phone)
	assert.False(t, got.ShowNotifications)

	_, err = db.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.UpdateUserName(ctx, 9999, "x"), ErrNotFound)
}

func TestPredictionsPagingAndRange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "p@example.com")
	other := createUser(t, db, "o@example.com")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		p := &models.Prediction{
			UserID:     user.ID,
			ImagePath:  "uploads/x.jpg",
			Label:      "Tomato___Late_blight",
			Confidence: 0.5,
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, db.CreatePrediction(ctx, p))
	}
	require.NoError(t, db.CreatePrediction(ctx, &models.Prediction{
		UserID: other.ID, ImagePath: "uploads/y.jpg", Label: "Apple___healthy", Confidence: 0.9, Timestamp: base,
	}))

	count, err := db.CountPredictions(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	page, err := db.ListPredictions(ctx, user.ID, 8, 0)
	require.NoError(t, err)
	require.Len(t, page, 8)
	assert.True(t, page[0].Timestamp.Equal(base.Add(9*time.Hour)))
	for i := 1; i < len(page); i++ {
		assert.True(t, page[i-1].Timestamp.After(page[i].Timestamp))
	}

	page, err = db.ListPredictions(ctx, user.ID, 8, 8)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	between, err := db.ListPredictionsBetween(ctx, user.ID, base.Add(2*time.Hour), base.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Len(t, between, 3)

	empty, err := db.ListPredictionsBetween(ctx, user.ID, base.AddDate(0, 0, 2), base.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	got, err := db.GetPrediction(ctx, page[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Tomato___Late_blight", got.Label)
}

func TestReviews(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "r@example.com")

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 12; i++ {
		require.NoError(t, db.CreateReview(ctx, &models.Review{
			UserID: user.ID, Rating: (i % 5) + 1, Body: "ok", Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	err := db.CreateReview(ctx, &models.Review{UserID: user.ID, Rating: 6})
	assert.Error(t, err)

	recent, err := db.ListRecentReviews(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	assert.Equal(t, "Test User", recent[0].AuthorName)
	assert.True(t, recent[0].Timestamp.Equal(base.Add(12*time.Minute)))
}

func TestListActiveNotificationsFiltersExpired(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	require.NoError(t, db.CreateNotification(ctx, &models.Notification{Title: "expired", Body: "b", Active: true, ExpiryDate: &past, CreatedAt: now}))
	require.NoError(t, db.CreateNotification(ctx, &models.Notification{Title: "inactive", Body: "b", Active: false, CreatedAt: now}))
	require.NoError(t, db.CreateNotification(ctx, &models.Notification{Title: "current", Body: "b", Active: true, ExpiryDate: &future, CreatedAt: now.Add(time.Minute)}))

	notes, err := db.ListActiveNotifications(ctx, now, 3)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "current", notes[0].Title)
	require.NotNil(t, notes[0].ExpiryDate)
	assert.Equal(t, "Welcome!", notes[1].Title)
}

func TestDeleteUserCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "d@example.com")
	keep := createUser(t, db, "k@example.com")

	require.NoError(t, db.CreatePrediction(ctx, &models.Prediction{UserID: user.ID, ImagePath: "uploads/a.jpg", Label: "Apple___healthy", Confidence: 1}))
	require.NoError(t, db.CreatePrediction(ctx, &models.Prediction{UserID: keep.ID, ImagePath: "uploads/b.jpg", Label: "Apple___healthy", Confidence: 1}))
	require.NoError(t, db.CreateReview(ctx, &models.Review{UserID: user.ID, Rating: 5}))

	paths, err := db.DeleteUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"uploads/a.jpg"}, paths)

	_, err = db.GetUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	count, err := db.CountPredictions(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	reviews, err := db.ListRecentReviews(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	_, err = db.DeleteUser(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
