package workflow

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"agrodoc/internal/db"
	apperrors "agrodoc/internal/errors"
	"agrodoc/internal/models"
	"agrodoc/internal/security"
	"agrodoc/internal/session"
)

// Registration is the sign-up form.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. The visitor stays anonymous and is sent to the
// account page to log in.
func (c *Controller) Register(ctx context.Context, s *session.Session, form Registration) error {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = normalizeEmail(form.Email)
	form.Phone = strings.TrimSpace(form.Phone)
	if form.Name == "" || form.Email == "" || form.Password == "" {
		return apperrors.ErrMissingField
	}
	if _, err := mail.ParseAddress(form.Email); err != nil {
		return apperrors.ErrInvalidRequest.Wrap(err)
	}
	if !security.ValidatePassword(form.Password) {
		return apperrors.ErrWeakPassword
	}

	hash, err := security.HashPassword(form.Password)
	if err != nil {
		return apperrors.ErrStore.Wrap(err)
	}
	user := &models.User{Name: form.Name, Email: form.Email, Phone: form.Phone, PasswordHash: hash}
	if err := c.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			c.metrics.RecordRegistration("duplicate")
			return apperrors.ErrDuplicateEmail
		}
		c.metrics.RecordRegistration("error")
		return apperrors.ErrStore.Wrap(err)
	}
	c.metrics.RecordRegistration("success")
	c.log.Info("user registered", "user_id", user.ID)

	return s.Update(func(st *session.State) error {
		st.Page = session.PageAccount
		st.SetNotice(session.NoticeSuccess, "Account created! Please login")
		return nil
	})
}

// Login verifies the credentials and stores the user in the session.
func (c *Controller) Login(ctx context.Context, s *session.Session, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.ErrMissingField
	}
	if !c.limiter.Allow(email) {
		c.metrics.RecordLogin("throttled")
		return nil, apperrors.ErrTooManyAttempts
	}

	user, err := c.store.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		c.metrics.RecordLogin("error")
		return nil, apperrors.ErrStore.Wrap(err)
	}
	if user == nil || !security.ComparePasswords(user.PasswordHash, password) {
		c.metrics.RecordLogin("failure")
		return nil, apperrors.ErrInvalidCredentials
	}
	c.limiter.Reset(email)
	c.metrics.RecordLogin("success")

	err = s.Update(func(st *session.State) error {
		st.Reset()
		st.User = user
		st.Page = session.PageHome
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("user logged in", "user_id", user.ID)
	out := *user
	return &out, nil
}

// Logout resets the whole session to its initial state.
func (c *Controller) Logout(_ context.Context, s *session.Session) error {
	return s.Update(func(st *session.State) error {
		st.Reset()
		return nil
	})
}
