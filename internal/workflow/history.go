package workflow

import (
	"context"
	"errors"
	"net/http"
	"time"

	"agrodoc/internal/db"
	apperrors "agrodoc/internal/errors"
	"agrodoc/internal/labels"
	"agrodoc/internal/models"
	"agrodoc/internal/session"
)

// DateLayout is the calendar date format accepted by HistoryOn.
const DateLayout = "2006-01-02"

const (
	msgNoHistory      = "No prediction history found. Make your first prediction on the Home page!"
	msgEmptyPage      = "No predictions found for this page"
	msgNoPredictionOn = "No predictions found for "
)

type HistoryItem struct {
	ID         int64     `json:"id"`
	Label      string    `json:"label"`
	Display    string    `json:"display"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// HistoryPage is one page of the user's predictions, newest first. Page is
// zero based.
type HistoryPage struct {
	Items      []HistoryItem `json:"items"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	Total      int           `json:"total"`
	HasPrev    bool          `json:"has_prev"`
	HasNext    bool          `json:"has_next"`
	Message    string        `json:"message,omitempty"`
}

// DayHistory lists the predictions made on one calendar date.
type DayHistory struct {
	Date    string        `json:"date"`
	Items   []HistoryItem `json:"items"`
	Message string        `json:"message,omitempty"`
}

func historyItems(rows []models.Prediction) []HistoryItem {
	items := make([]HistoryItem, 0, len(rows))
	for _, p := range rows {
		items = append(items, HistoryItem{
			ID:         p.ID,
			Label:      p.Label,
			Display:    labels.Display(p.Label),
			Confidence: p.Confidence,
			Timestamp:  p.Timestamp,
		})
	}
	return items
}

// History returns the page at the session's cursor.
func (c *Controller) History(ctx context.Context, s *session.Session) (*HistoryPage, error) {
	return c.moveHistory(ctx, s, 0)
}

func (c *Controller) NextPage(ctx context.Context, s *session.Session) (*HistoryPage, error) {
	return c.moveHistory(ctx, s, 1)
}

func (c *Controller) PrevPage(ctx context.Context, s *session.Session) (*HistoryPage, error) {
	return c.moveHistory(ctx, s, -1)
}

// moveHistory shifts the cursor by delta, clamps it to the available pages
// and reads that page. Only rows owned by the session's user are read.
func (c *Controller) moveHistory(ctx context.Context, s *session.Session, delta int) (*HistoryPage, error) {
	user, err := c.requireUser(s)
	if err != nil {
		return nil, err
	}

	total, err := c.store.CountPredictions(ctx, user.ID)
	if err != nil {
		return nil, apperrors.ErrStore.Wrap(err)
	}
	size := c.opts.PageSize
	totalPages := (total + size - 1) / size

	var page int
	err = s.Update(func(st *session.State) error {
		st.HistoryPage += delta
		if st.HistoryPage > totalPages-1 {
			st.HistoryPage = totalPages - 1
		}
		if st.HistoryPage < 0 {
			st.HistoryPage = 0
		}
		page = st.HistoryPage
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &HistoryPage{
		Items:      []HistoryItem{},
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		HasPrev:    page > 0,
		HasNext:    page < totalPages-1,
	}
	if total == 0 {
		result.Message = msgNoHistory
		return result, nil
	}

	rows, err := c.store.ListPredictions(ctx, user.ID, size, page*size)
	if err != nil {
		return nil, apperrors.ErrStore.Wrap(err)
	}
	result.Items = historyItems(rows)
	if len(result.Items) == 0 {
		result.Message = msgEmptyPage
	}
	return result, nil
}

// HistoryOn lists the user's predictions made on date (YYYY-MM-DD) in the
// controller's time zone. An empty day is not an error.
func (c *Controller) HistoryOn(ctx context.Context, s *session.Session, date string) (*DayHistory, error) {
	user, err := c.requireUser(s)
	if err != nil {
		return nil, err
	}

	day, err := time.ParseInLocation(DateLayout, date, c.opts.Location)
	if err != nil {
		return nil, apperrors.ErrInvalidDate.Wrap(err)
	}
	from := day
	to := day.AddDate(0, 0, 1)

	rows, err := c.store.ListPredictionsBetween(ctx, user.ID, from, to)
	if err != nil {
		return nil, apperrors.ErrStore.Wrap(err)
	}

	result := &DayHistory{Date: day.Format(DateLayout), Items: historyItems(rows)}
	if len(result.Items) == 0 {
		result.Message = msgNoPredictionOn + result.Date
	}
	return result, nil
}

// PredictionImage returns the stored image of one of the user's predictions.
// Predictions of other users are reported as not found.
func (c *Controller) PredictionImage(ctx context.Context, s *session.Session, id int64) ([]byte, string, error) {
	user, err := c.requireUser(s)
	if err != nil {
		return nil, "", err
	}

	p, err := c.store.GetPrediction(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, "", apperrors.ErrNotFound
	}
	if err != nil {
		return nil, "", apperrors.ErrStore.Wrap(err)
	}
	if p.UserID != user.ID {
		return nil, "", apperrors.ErrNotFound
	}

	data, err := c.images.Open(p.ImagePath)
	if err != nil {
		return nil, "", apperrors.ErrNotFound.Wrap(err)
	}
	return data, http.DetectContentType(data), nil
}
