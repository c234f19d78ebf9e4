package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"agrodoc/internal/classifier"
	apperrors "agrodoc/internal/errors"
	"agrodoc/internal/labels"
	"agrodoc/internal/models"
	"agrodoc/internal/session"
)

// Analysis is the outcome of a committed classification.
type Analysis struct {
	PredictionID int64     `json:"prediction_id"`
	Label        string    `json:"label"`
	Display      string    `json:"display"`
	Confidence   float64   `json:"confidence"`
	Timestamp    time.Time `json:"timestamp"`
}

func analysisFrom(lp *session.LastPrediction) *Analysis {
	if lp == nil {
		return nil
	}
	return &Analysis{
		PredictionID: lp.PredictionID,
		Label:        lp.Label,
		Display:      labels.Display(lp.Label),
		Confidence:   lp.Confidence,
		Timestamp:    lp.At,
	}
}

// Upload stores an image in the session for a later Analyze. Nothing is
// written to disk or the database yet.
func (c *Controller) Upload(_ context.Context, s *session.Session, name string, data []byte) error {
	if !s.Snapshot().Authenticated() {
		return apperrors.ErrLoginRequired
	}
	if err := c.validateUpload(name, data); err != nil {
		return err
	}

	return s.Update(func(st *session.State) error {
		if _, err := currentUser(st); err != nil {
			return err
		}
		if st.Processing() {
			return apperrors.ErrAnalysisInFlight
		}
		st.Pending = &session.Upload{Name: name, Data: data, Received: c.now()}
		st.Upload = session.UploadUploaded
		st.Notice = nil
		return nil
	})
}

func (c *Controller) validateUpload(name string, data []byte) error {
	if len(data) == 0 {
		return apperrors.ErrMissingUpload
	}
	if int64(len(data)) > c.opts.MaxUploadBytes {
		return apperrors.ErrImageTooLarge
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(c.opts.Extensions, ext) {
		return apperrors.ErrUnsupportedImage
	}
	switch http.DetectContentType(data) {
	case "image/jpeg", "image/png", "image/webp":
		return nil
	default:
		return apperrors.ErrInvalidImage
	}
}

// Analyze classifies the pending upload, stores the image and the prediction
// row, and caches the result in the session. At most one analysis runs per
// session; a second call while one is in flight fails with
// ErrAnalysisInFlight. Whatever happens, the session leaves the processing
// state before Analyze returns.
func (c *Controller) Analyze(ctx context.Context, s *session.Session) (*Analysis, error) {
	var (
		user    models.User
		pending session.Upload
		gen     uint64
	)
	err := s.Update(func(st *session.State) error {
		var err error
		if user, err = currentUser(st); err != nil {
			return err
		}
		if st.Processing() {
			return apperrors.ErrAnalysisInFlight
		}
		if st.Pending == nil {
			return apperrors.ErrMissingUpload
		}
		pending = *st.Pending
		gen = st.Generation
		st.Upload = session.UploadProcessing
		st.LastPrediction = nil
		st.Notice = nil
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrAnalysisInFlight) {
			c.metrics.RecordClassification("rejected", 0)
		}
		return nil, err
	}

	start := c.now()
	var committed *session.LastPrediction
	defer func() {
		c.finishAnalysis(s, gen, committed, err)
	}()

	// An analysis runs to completion even if the caller goes away.
	committed, err = c.classifyAndStore(context.WithoutCancel(ctx), user.ID, pending)
	c.metrics.RecordClassification(analysisStatus(err), c.now().Sub(start))
	if err != nil {
		c.log.Warn("analysis failed", "user_id", user.ID, "file", pending.Name, "error", err)
		return nil, err
	}

	c.log.Info("analysis stored",
		"user_id", user.ID,
		"prediction_id", committed.PredictionID,
		"label", committed.Label,
		"confidence", committed.Confidence)
	return analysisFrom(committed), nil
}

// finishAnalysis runs on every exit from Analyze, panics included. If the
// session was reset meanwhile (logout, login as someone else) only the
// processing state is released; the outcome belongs to the previous user.
func (c *Controller) finishAnalysis(s *session.Session, gen uint64, committed *session.LastPrediction, err error) {
	_ = s.Update(func(st *session.State) error {
		if st.Generation != gen {
			if st.Processing() {
				st.Upload = session.UploadIdle
			}
			return nil
		}
		st.Pending = nil
		if committed != nil {
			st.LastPrediction = committed
			st.Upload = session.UploadDone
			st.SetNotice(session.NoticeSuccess, "Analysis complete! Click the button below to view predictions.")
			return nil
		}
		st.Upload = session.UploadIdle
		if err == nil {
			err = apperrors.ErrClassifier
		}
		st.SetNotice(session.NoticeError, apperrors.UserMessage(err))
		return nil
	})
}

// classifyAndStore is the body of an analysis. The prediction row is the
// commit point: if it cannot be written, the saved image is removed again.
func (c *Controller) classifyAndStore(ctx context.Context, userID int64, upload session.Upload) (*session.LastPrediction, error) {
	result, err := c.classifier.Classify(ctx, upload.Data)
	if err != nil {
		if errors.Is(err, classifier.ErrDecode) {
			return nil, apperrors.ErrInvalidImage.Wrap(err)
		}
		return nil, apperrors.ErrClassifier.Wrap(err)
	}

	now := c.now()
	path, err := c.images.Save(upload.Name, upload.Data, now)
	if err != nil {
		return nil, apperrors.ErrStore.Wrap(fmt.Errorf("saving image: %w", err))
	}

	p := &models.Prediction{
		UserID:     userID,
		ImagePath:  path,
		Label:      result.Label,
		Confidence: result.Confidence,
		Timestamp:  now,
	}
	if err := c.store.CreatePrediction(ctx, p); err != nil {
		if rmErr := c.images.Remove(path); rmErr != nil {
			c.log.Error("failed to remove orphaned image", "path", path, "error", rmErr)
		}
		return nil, apperrors.ErrStore.Wrap(fmt.Errorf("saving prediction: %w", err))
	}

	return &session.LastPrediction{
		PredictionID: p.ID,
		Label:        p.Label,
		Confidence:   p.Confidence,
		ImagePath:    p.ImagePath,
		At:           p.Timestamp,
	}, nil
}

func analysisStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrInvalidImage):
		return "invalid_image"
	case errors.Is(err, apperrors.ErrStore):
		return "store_error"
	default:
		return "classifier_error"
	}
}

// LatestAnalysis returns the cached result of the last analysis, if any.
func (c *Controller) LatestAnalysis(s *session.Session) *Analysis {
	st := s.Snapshot()
	return analysisFrom(st.LastPrediction)
}

// ViewResults switches to the predictions page after an analysis. The cached
// result stays available there.
func (c *Controller) ViewResults(_ context.Context, s *session.Session) error {
	return s.Update(func(st *session.State) error {
		if _, err := currentUser(st); err != nil {
			return err
		}
		st.Page = session.PagePredictions
		if st.Upload == session.UploadDone {
			st.Upload = session.UploadIdle
		}
		st.Notice = nil
		return nil
	})
}

// BackHome returns to the home page and drops any pending upload.
func (c *Controller) BackHome(_ context.Context, s *session.Session) error {
	return s.Update(func(st *session.State) error {
		st.Page = session.PageHome
		if st.Processing() {
			return nil
		}
		st.Pending = nil
		if st.Upload == session.UploadUploaded {
			st.Upload = session.UploadIdle
		}
		return nil
	})
}
