package workflow

import (
	"context"
	"strings"

	apperrors "agrodoc/internal/errors"
	"agrodoc/internal/models"
	"agrodoc/internal/session"
)

// ExampleReview is a fixed testimonial shown above community reviews.
type ExampleReview struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
	Date   string `json:"date"`
}

var exampleReviews = []ExampleReview{
	{Rating: 5, Text: "Excellent service! Accurate detection saved my crops!", Date: "2024-03-01"},
	{Rating: 4, Text: "Very user-friendly interface and fast results", Date: "2024-03-05"},
	{Rating: 5, Text: "Best plant disease detection app I've used", Date: "2024-03-10"},
}

type ReviewsView struct {
	Examples []ExampleReview           `json:"examples"`
	Recent   []models.ReviewWithAuthor `json:"recent"`
}

// SubmitReview stores a review by the logged in user. rating must be 1..5.
func (c *Controller) SubmitReview(ctx context.Context, s *session.Session, rating int, body string) (*models.Review, error) {
	user, err := c.requireUser(s)
	if err != nil {
		return nil, err
	}
	if rating < 1 || rating > 5 {
		return nil, apperrors.ErrInvalidRating
	}

	review := &models.Review{UserID: user.ID, Rating: rating, Body: strings.TrimSpace(body)}
	if err := c.store.CreateReview(ctx, review); err != nil {
		return nil, apperrors.ErrStore.Wrap(err)
	}

	err = s.Update(func(st *session.State) error {
		st.SetNotice(session.NoticeSuccess, "Thank you for your review!")
		return nil
	})
	return review, err
}

// RecentReviews returns the fixed examples and the newest community reviews.
func (c *Controller) RecentReviews(ctx context.Context, s *session.Session) (*ReviewsView, error) {
	if _, err := c.requireUser(s); err != nil {
		return nil, err
	}
	recent, err := c.store.ListRecentReviews(ctx, c.opts.ReviewLimit)
	if err != nil {
		return nil, apperrors.ErrStore.Wrap(err)
	}
	return &ReviewsView{Examples: exampleReviews, Recent: recent}, nil
}
