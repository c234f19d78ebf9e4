package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "agrodoc/internal/errors"
	"agrodoc/internal/security"
	"agrodoc/internal/session"
)

func TestNavigateAccessControl(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	anon := session.New("anon")

	for _, name := range []string{"predictions", "chatbot", "reviews"} {
		page, err := env.ctrl.Navigate(ctx, anon, name)
		require.NoError(t, err)
		assert.Equal(t, session.PageAccount, page, name)
	}
	page, err := env.ctrl.Navigate(ctx, anon, "About")
	require.NoError(t, err)
	assert.Equal(t, session.PageAbout, page)

	_, err = env.ctrl.Navigate(ctx, anon, "admin")
	assert.ErrorIs(t, err, apperrors.ErrUnknownPage)

	s := env.loggedIn(t, "a@example.com")
	page, err = env.ctrl.Navigate(ctx, s, "chatbot")
	require.NoError(t, err)
	assert.Equal(t, session.PageChatbot, page)

	st := session.NewState()
	st.Page = session.PageReviews
	assert.Equal(t, session.PageAccount, VisiblePage(st))
	assert.Equal(t, session.PublicPages, MenuPages(st))
}

func TestRegisterAndLogin(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	s := session.New("s")

	err := env.ctrl.Register(ctx, s, Registration{Name: "Asha", Email: " Asha@Example.com ", Password: "secret99"})
	require.NoError(t, err)
	st := s.Snapshot()
	assert.False(t, st.Authenticated())
	assert.Equal(t, session.PageAccount, st.Page)
	assert.Equal(t, "Account created! Please login", st.Notice.Message)

	err = env.ctrl.Register(ctx, s, Registration{Name: "Other", Email: "asha@example.com", Password: "secret99"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)

	assert.ErrorIs(t, env.ctrl.Register(ctx, s, Registration{Email: "x@example.com", Password: "secret99"}), apperrors.ErrMissingField)
	assert.ErrorIs(t, env.ctrl.Register(ctx, s, Registration{Name: "x", Email: "x@example.com", Password: "123"}), apperrors.ErrWeakPassword)

	_, err = env.ctrl.Login(ctx, s, "asha@example.com", "wrong-pass")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = env.ctrl.Login(ctx, s, "nobody@example.com", "secret99")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	user, err := env.ctrl.Login(ctx, s, "ASHA@example.com", "secret99")
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)
	st = s.Snapshot()
	assert.True(t, st.Authenticated())
	assert.Equal(t, session.PageHome, st.Page)
}

func TestLoginIsThrottled(t *testing.T) {
	env := newEnv(t)
	env.ctrl.limiter = security.NewLoginLimiter(1, 2)
	ctx := context.Background()
	s := session.New("s")

	for i := 0; i < 2; i++ {
		_, err := env.ctrl.Login(ctx, s, "a@example.com", "nope")
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	}
	_, err := env.ctrl.Login(ctx, s, "a@example.com", "nope")
	assert.ErrorIs(t, err, apperrors.ErrTooManyAttempts)
}

func TestLogoutResetsWholeSession(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	s := env.loggedIn(t, "a@example.com")

	require.NoError(t, env.ctrl.Upload(ctx, s, "leaf.png", pngImage(t)))
	_, err := env.ctrl.Analyze(ctx, s)
	require.NoError(t, err)
	_, err = env.ctrl.SelectPlant(ctx, s, "Apple")
	require.NoError(t, err)
	_, err = env.ctrl.Navigate(ctx, s, "reviews")
	require.NoError(t, err)

	before := s.Snapshot().Generation
	require.NoError(t, env.ctrl.Logout(ctx, s))
	want := session.NewState()
	want.Generation = before + 1
	assert.Equal(t, want, s.Snapshot())

	page, err := env.ctrl.Navigate(ctx, s, "predictions")
	require.NoError(t, err)
	assert.Equal(t, session.PageAccount, page)
}

func TestUpdateNameAndPassword(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	s := env.loggedIn(t, "a@example.com")

	require.NoError(t, env.ctrl.UpdateName(ctx, s, "  New Name "))
	assert.Equal(t, "New Name", s.Snapshot().User.Name)
	stored, err := env.db.GetUserByID(ctx, env.userID(s))
	require.NoError(t, err)
	assert.Equal(t, "New Name", stored.Name)

	err = env.ctrl.ChangePassword(ctx, s, PasswordChange{Current: "bad", New: "newpass1", Confirm: "newpass1"})
	assert.ErrorIs(t, err, apperrors.ErrWrongPassword)
	err = env.ctrl.ChangePassword(ctx, s, PasswordChange{Current: "password1", New: "newpass1", Confirm: "newpass2"})
	assert.ErrorIs(t, err, apperrors.ErrPasswordMismatch)

	require.NoError(t, env.ctrl.ChangePassword(ctx, s, PasswordChange{Current: "password1", New: "newpass1", Confirm: "newpass1"}))
	require.NoError(t, env.ctrl.Logout(ctx, s))
	_, err = env.ctrl.Login(ctx, s, "a@example.com", "password1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = env.ctrl.Login(ctx, s, "a@example.com", "newpass1")
	assert.NoError(t, err)
}

func TestPhoneVerification(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	s := env.loggedIn(t, "a@example.com")

	assert.ErrorIs(t, env.ctrl.VerifyPhoneCode(ctx, s, "123456"), apperrors.ErrNoPendingCode)

	require.NoError(t, env.ctrl.RequestPhoneCode(ctx, s, "+919876543210"))
	sent := env.sms.last()
	require.True(t, strings.HasPrefix(sent, "+919876543210|Your AgroDoc verification code: "))
	code := strings.TrimPrefix(sent, "+919876543210|Your AgroDoc verification code: ")
	require.Len(t, code, 6)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, env.ctrl.VerifyPhoneCode(ctx, s, wrong), apperrors.ErrInvalidCode)

	view := env.ctrl.View(ctx, s)
	require.NotNil(t, view.Phone)
	assert.Equal(t, "+919876543210", view.Phone.Phone)

	require.NoError(t, env.ctrl.VerifyPhoneCode(ctx, s, code))
	assert.Equal(t, "+919876543210", s.Snapshot().User.Phone)
	stored, err := env.db.GetUserByID(ctx, env.userID(s))
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", stored.Phone)

	assert.ErrorIs(t, env.ctrl.RequestPhoneCode(ctx, s, "+919876543210"), apperrors.ErrSamePhone)
}

func TestPhoneCodeExpires(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	s := env.loggedIn(t, "a@example.com")

	now := time.Now()
	env.ctrl.now = func() time.Time { return now }
	require.NoError(t, env.ctrl.RequestPhoneCode(ctx, s, "+15550001111"))
	code := s.Snapshot().OTP

	env.ctrl.now = func() time.Time { return now.Add(5*time.Minute + time.Second) }
	assert.ErrorIs(t, env.ctrl.VerifyPhoneCode(ctx, s, code), apperrors.ErrCodeExpired)
	assert.Empty(t, s.Snapshot().OTP)
}

func TestPhoneCodeDeliveryFailure(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	s := env.loggedIn(t, "a@example.com")

	env.sms.err = errBoom
	assert.ErrorIs(t, env.ctrl.RequestPhoneCode(ctx, s, "+15550001111"), apperrors.ErrSMSFailed)
	assert.Empty(t, s.Snapshot().OTP)
}

func TestDeleteAccountCascades(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	s := env.loggedIn(t, "a@example.com")
	id := env.userID(s)

	require.NoError(t, env.ctrl.Upload(ctx, s, "leaf.png", pngImage(t)))
	_, err := env.ctrl.Analyze(ctx, s)
	require.NoError(t, err)
	_, err = env.ctrl.SubmitReview(ctx, s, 4, "good")
	require.NoError(t, err)

	assert.ErrorIs(t, env.ctrl.DeleteAccount(ctx, s, false), apperrors.ErrMissingField)
	require.NoError(t, env.ctrl.DeleteAccount(ctx, s, true))

	assert.False(t, s.Snapshot().Authenticated())
	count, err := env.db.CountPredictions(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, count)
	reviews, err := env.db.ListRecentReviews(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	_, err = env.ctrl.Login(ctx, s, "a@example.com", "password1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestReviews(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	s := env.loggedIn(t, "a@example.com")

	_, err := env.ctrl.SubmitReview(ctx, s, 0, "x")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRating)
	_, err = env.ctrl.SubmitReview(ctx, s, 6, "x")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRating)

	review, err := env.ctrl.SubmitReview(ctx, s, 5, " Great app ")
	require.NoError(t, err)
	assert.Equal(t, "Great app", review.Body)

	view, err := env.ctrl.RecentReviews(ctx, s)
	require.NoError(t, err)
	assert.Len(t, view.Examples, 3)
	require.Len(t, view.Recent, 1)
	assert.Equal(t, "User a@example.com", view.Recent[0].AuthorName)
	assert.Equal(t, 5, view.Recent[0].Rating)
}

func TestNotificationsAndDismiss(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	s := env.loggedIn(t, "a@example.com")

	notes, err := env.ctrl.Notifications(ctx, s)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Welcome!", notes[0].Title)

	anonNotes, err := env.ctrl.Notifications(ctx, session.New("anon"))
	require.NoError(t, err)
	assert.Empty(t, anonNotes)

	require.NoError(t, env.ctrl.DismissNotifications(ctx, s))
	notes, err = env.ctrl.Notifications(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, notes)

	// the opt-out is persisted across logins
	require.NoError(t, env.ctrl.Logout(ctx, s))
	_, err = env.ctrl.Login(ctx, s, "a@example.com", "password1")
	require.NoError(t, err)
	notes, err = env.ctrl.Notifications(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, notes)

	require.NoError(t, env.ctrl.SetNotificationPreference(ctx, s, true))
	notes, err = env.ctrl.Notifications(ctx, s)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestViewProjection(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	s := env.loggedIn(t, "a@example.com")

	require.NoError(t, env.ctrl.Upload(ctx, s, "leaf.png", pngImage(t)))
	view := env.ctrl.View(ctx, s)
	assert.Equal(t, session.PageHome, view.Page)
	assert.Equal(t, session.Pages, view.Menu)
	assert.Equal(t, "leaf.png", view.Upload.PendingFile)
	assert.Equal(t, session.UploadUploaded, view.Upload.State)
	assert.False(t, view.Upload.Processing)
	assert.Nil(t, view.Latest)

	_, err := env.ctrl.Analyze(ctx, s)
	require.NoError(t, err)
	view = env.ctrl.View(ctx, s)
	require.NotNil(t, view.Latest)
	assert.Equal(t, "Apple - healthy", view.Latest.Display)
	require.NotNil(t, view.Notice)
	assert.Equal(t, session.NoticeSuccess, view.Notice.Level)

	view = env.ctrl.View(ctx, s)
	assert.Nil(t, view.Notice, "notices are shown once")
}
