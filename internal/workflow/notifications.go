package workflow

import (
	"context"

	"github.com/patrickmn/go-cache"

	apperrors "agrodoc/internal/errors"
	"agrodoc/internal/models"
	"agrodoc/internal/session"
)

const activeNotificationsKey = "active"

// Notifications returns the update notifications to show this session. They
// are shown only to logged in users who opted in and have not dismissed them.
func (c *Controller) Notifications(ctx context.Context, s *session.Session) ([]models.Notification, error) {
	st := s.Snapshot()
	if st.User == nil || !st.User.ShowNotifications || st.NotificationsShown {
		return []models.Notification{}, nil
	}
	return c.activeNotifications(ctx)
}

// activeNotifications reads through a short-lived cache shared by all sessions.
func (c *Controller) activeNotifications(ctx context.Context) ([]models.Notification, error) {
	if v, ok := c.notifications.Get(activeNotificationsKey); ok {
		return v.([]models.Notification), nil
	}
	list, err := c.store.ListActiveNotifications(ctx, c.now(), c.opts.NotificationLimit)
	if err != nil {
		return nil, apperrors.ErrStore.Wrap(err)
	}
	c.notifications.Set(activeNotificationsKey, list, cache.DefaultExpiration)
	return list, nil
}

// DismissNotifications turns notifications off for the user ("Don't show
// these again").
func (c *Controller) DismissNotifications(ctx context.Context, s *session.Session) error {
	user, err := c.requireUser(s)
	if err != nil {
		return err
	}
	if err := c.store.SetShowNotifications(ctx, user.ID, false); err != nil {
		return apperrors.ErrStore.Wrap(err)
	}
	return s.Update(func(st *session.State) error {
		if st.User != nil && st.User.ID == user.ID {
			st.User.ShowNotifications = false
		}
		st.NotificationsShown = true
		return nil
	})
}
