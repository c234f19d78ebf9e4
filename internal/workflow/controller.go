// Package workflow is the page and workflow controller. Each exported method
// handles one user action: it reads the session's state, calls the classifier
// and the store as needed, and writes the next state back.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"agrodoc/internal/classifier"
	"agrodoc/internal/diseaseinfo"
	apperrors "agrodoc/internal/errors"
	"agrodoc/internal/labels"
	"agrodoc/internal/logger"
	"agrodoc/internal/metrics"
	"agrodoc/internal/models"
	"agrodoc/internal/notify"
	"agrodoc/internal/security"
	"agrodoc/internal/session"
)

// Store is the persistence the controller depends on.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUserName(ctx context.Context, id int64, name string) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	UpdatePhone(ctx context.Context, id int64, phone string) error
	SetShowNotifications(ctx context.Context, id int64, show bool) error
	DeleteUser(ctx context.Context, id int64) ([]string, error)

	CreatePrediction(ctx context.Context, p *models.Prediction) error
	GetPrediction(ctx context.Context, id int64) (*models.Prediction, error)
	CountPredictions(ctx context.Context, userID int64) (int, error)
	ListPredictions(ctx context.Context, userID int64, limit, offset int) ([]models.Prediction, error)
	ListPredictionsBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.Prediction, error)

	CreateReview(ctx context.Context, r *models.Review) error
	ListRecentReviews(ctx context.Context, limit int) ([]models.ReviewWithAuthor, error)

	ListActiveNotifications(ctx context.Context, at time.Time, limit int) ([]models.Notification, error)
}

// Classifier maps an encoded image to its most likely label.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (classifier.Result, error)
	Labels() labels.Table
}

// ImageStore persists uploaded images.
type ImageStore interface {
	Save(original string, data []byte, now time.Time) (string, error)
	Open(path string) ([]byte, error)
	Remove(path string) error
}

// Options are the tunables taken from configuration.
type Options struct {
	PageSize          int
	MaxUploadBytes    int64
	Extensions        []string
	OTPTTL            time.Duration
	OTPLength         int
	NotificationLimit int
	NotificationTTL   time.Duration
	ReviewLimit       int
	// Location is used to interpret calendar dates in history filters.
	Location *time.Location
}

// DefaultOptions mirrors the defaults in config.Default.
func DefaultOptions() Options {
	return Options{
		PageSize:          8,
		MaxUploadBytes:    10 * 1024 * 1024,
		Extensions:        []string{".jpg", ".jpeg", ".png"},
		OTPTTL:            5 * time.Minute,
		OTPLength:         6,
		NotificationLimit: 3,
		NotificationTTL:   time.Minute,
		ReviewLimit:       10,
		Location:          time.Local,
	}
}

// Deps are the collaborators of a Controller. Store, Classifier, Images and
// Catalog are required.
type Deps struct {
	Store      Store
	Classifier Classifier
	Images     ImageStore
	Catalog    *diseaseinfo.Catalog
	SMS        notify.Sender
	Limiter    *security.LoginLimiter
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

type Controller struct {
	store      Store
	classifier Classifier
	images     ImageStore
	catalog    *diseaseinfo.Catalog
	sms        notify.Sender
	limiter    *security.LoginLimiter
	metrics    *metrics.Metrics
	log        *slog.Logger
	opts       Options

	labels        labels.Table
	notifications *cache.Cache
	now           func() time.Time
}

func New(deps Deps, opts Options) (*Controller, error) {
	if deps.Store == nil || deps.Classifier == nil || deps.Images == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("workflow: store, classifier, images and catalog are required")
	}
	defaults := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = defaults.PageSize
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = defaults.Extensions
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = defaults.OTPTTL
	}
	if opts.OTPLength <= 0 {
		opts.OTPLength = defaults.OTPLength
	}
	if opts.NotificationLimit <= 0 {
		opts.NotificationLimit = defaults.NotificationLimit
	}
	if opts.NotificationTTL <= 0 {
		opts.NotificationTTL = defaults.NotificationTTL
	}
	if opts.ReviewLimit <= 0 {
		opts.ReviewLimit = defaults.ReviewLimit
	}
	if opts.Location == nil {
		opts.Location = defaults.Location
	}

	log := deps.Logger
	if log == nil {
		log = logger.Module("workflow")
	}
	sms := deps.SMS
	if sms == nil {
		sms = notify.LogSender{Log: log}
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = security.NewLoginLimiter(0, 0)
	}

	return &Controller{
		store:         deps.Store,
		classifier:    deps.Classifier,
		images:        deps.Images,
		catalog:       deps.Catalog,
		sms:           sms,
		limiter:       limiter,
		metrics:       deps.Metrics,
		log:           log,
		opts:          opts,
		labels:        deps.Classifier.Labels(),
		notifications: cache.New(opts.NotificationTTL, 2*opts.NotificationTTL),
		now:           time.Now,
	}, nil
}

// Labels returns the label table used for the dialogue menus.
func (c *Controller) Labels() labels.Table { return c.labels }

// MaxUploadBytes is the largest accepted image.
func (c *Controller) MaxUploadBytes() int64 { return c.opts.MaxUploadBytes }

// currentUser returns a copy of the logged in user or ErrLoginRequired.
func currentUser(st *session.State) (models.User, error) {
	if st.User == nil {
		return models.User{}, apperrors.ErrLoginRequired
	}
	return *st.User, nil
}

func (c *Controller) requireUser(s *session.Session) (models.User, error) {
	var user models.User
	err := s.Update(func(st *session.State) error {
		var err error
		user, err = currentUser(st)
		return err
	})
	return user, err
}
