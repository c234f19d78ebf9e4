package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"agrodoc/internal/db"
	apperrors "agrodoc/internal/errors"
	"agrodoc/internal/notify"
	"agrodoc/internal/security"
	"agrodoc/internal/session"
)

// UpdateName changes the user's display name.
func (c *Controller) UpdateName(ctx context.Context, s *session.Session, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.ErrMissingField
	}
	user, err := c.requireUser(s)
	if err != nil {
		return err
	}
	if err := c.store.UpdateUserName(ctx, user.ID, name); err != nil {
		return apperrors.ErrStore.Wrap(err)
	}
	return s.Update(func(st *session.State) error {
		if st.User != nil && st.User.ID == user.ID {
			st.User.Name = name
		}
		st.SetNotice(session.NoticeSuccess, "Profile updated successfully!")
		return nil
	})
}

// PasswordChange is the password reset form.
type PasswordChange struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
	Confirm string `json:"confirm_password"`
}

// ChangePassword replaces the password after checking the current one.
func (c *Controller) ChangePassword(ctx context.Context, s *session.Session, form PasswordChange) error {
	user, err := c.requireUser(s)
	if err != nil {
		return err
	}
	if !security.ComparePasswords(user.PasswordHash, form.Current) {
		return apperrors.ErrWrongPassword
	}
	if form.New != form.Confirm {
		return apperrors.ErrPasswordMismatch
	}
	if !security.ValidatePassword(form.New) {
		return apperrors.ErrWeakPassword
	}

	hash, err := security.HashPassword(form.New)
	if err != nil {
		return apperrors.ErrStore.Wrap(err)
	}
	if err := c.store.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return apperrors.ErrStore.Wrap(err)
	}
	return s.Update(func(st *session.State) error {
		if st.User != nil && st.User.ID == user.ID {
			st.User.PasswordHash = hash
		}
		st.SetNotice(session.NoticeSuccess, "Password updated successfully!")
		return nil
	})
}

// RequestPhoneCode sends a verification code to phone and remembers it in
// the session until it expires.
func (c *Controller) RequestPhoneCode(ctx context.Context, s *session.Session, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return apperrors.ErrMissingField
	}
	user, err := c.requireUser(s)
	if err != nil {
		return err
	}
	if phone == user.Phone {
		return apperrors.ErrSamePhone
	}

	code, err := security.GenerateOTP(c.opts.OTPLength)
	if err != nil {
		return apperrors.ErrStore.Wrap(err)
	}
	if err := c.sms.SendSMS(ctx, phone, notify.VerificationMessage(code)); err != nil {
		c.log.Error("sending verification code failed", "user_id", user.ID, "error", err)
		return apperrors.ErrSMSFailed.Wrap(err)
	}

	return s.Update(func(st *session.State) error {
		st.PendingPhone = phone
		st.OTP = code
		st.OTPExpiry = c.now().Add(c.opts.OTPTTL)
		st.SetNotice(session.NoticeSuccess, "Verification code sent to "+phone)
		return nil
	})
}

// VerifyPhoneCode checks code against the pending verification and, on a
// match, saves the new phone number.
func (c *Controller) VerifyPhoneCode(ctx context.Context, s *session.Session, code string) error {
	var (
		userID int64
		phone  string
	)
	err := s.Update(func(st *session.State) error {
		user, err := currentUser(st)
		if err != nil {
			return err
		}
		if st.OTP == "" {
			return apperrors.ErrNoPendingCode
		}
		if c.now().After(st.OTPExpiry) {
			st.ClearOTP()
			return apperrors.ErrCodeExpired
		}
		if strings.TrimSpace(code) != st.OTP {
			return apperrors.ErrInvalidCode
		}
		userID, phone = user.ID, st.PendingPhone
		return nil
	})
	if err != nil {
		return err
	}

	if err := c.store.UpdatePhone(ctx, userID, phone); err != nil {
		return apperrors.ErrStore.Wrap(err)
	}
	return s.Update(func(st *session.State) error {
		if st.User != nil && st.User.ID == userID {
			st.User.Phone = phone
		}
		st.ClearOTP()
		st.SetNotice(session.NoticeSuccess, "Phone number verified and updated!")
		return nil
	})
}

// SetNotificationPreference stores whether update notifications are shown.
func (c *Controller) SetNotificationPreference(ctx context.Context, s *session.Session, show bool) error {
	user, err := c.requireUser(s)
	if err != nil {
		return err
	}
	if err := c.store.SetShowNotifications(ctx, user.ID, show); err != nil {
		return apperrors.ErrStore.Wrap(err)
	}
	return s.Update(func(st *session.State) error {
		if st.User != nil && st.User.ID == user.ID {
			st.User.ShowNotifications = show
		}
		if show {
			st.NotificationsShown = false
		}
		st.SetNotice(session.NoticeSuccess, "Preferences updated!")
		return nil
	})
}

// DeleteAccount removes the user, their predictions, reviews and stored
// images, then resets the session. confirm must be true.
func (c *Controller) DeleteAccount(ctx context.Context, s *session.Session, confirm bool) error {
	if !confirm {
		return apperrors.ErrMissingField
	}
	user, err := c.requireUser(s)
	if err != nil {
		return err
	}

	paths, err := c.store.DeleteUser(ctx, user.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return apperrors.ErrStore.Wrap(err)
	}
	for _, path := range paths {
		if err := c.images.Remove(path); err != nil {
			c.log.Warn("failed to remove image of deleted account", "path", path, "error", err)
		}
	}
	c.log.Info("account deleted", "user_id", user.ID, "images", len(paths))

	return s.Update(func(st *session.State) error {
		st.Reset()
		st.SetNotice(session.NoticeSuccess, "Account deleted successfully.")
		return nil
	})
}

// otpRemaining is how long the pending code stays valid, zero if none.
func otpRemaining(st session.State, now time.Time) time.Duration {
	if st.OTP == "" || now.After(st.OTPExpiry) {
		return 0
	}
	return st.OTPExpiry.Sub(now)
}
