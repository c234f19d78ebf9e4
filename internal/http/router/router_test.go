package router

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrodoc/internal/classifier"
	"agrodoc/internal/db"
	"agrodoc/internal/diseaseinfo"
	apperrors "agrodoc/internal/errors"
	"agrodoc/internal/imagestore"
	"agrodoc/internal/labels"
	"agrodoc/internal/logger"
	"agrodoc/internal/metrics"
	"agrodoc/internal/security"
	"agrodoc/internal/session"
	"agrodoc/internal/workflow"
)

type stubClassifier struct {
	result classifier.Result
}

func (s stubClassifier) Classify(context.Context, []byte) (classifier.Result, error) {
	return s.result, nil
}

func (stubClassifier) Labels() labels.Table { return labels.Default() }

type testServer struct {
	*httptest.Server
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	database, err := db.Init("sqlite3", filepath.Join(t.TempDir(), "agrodoc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	images, err := imagestore.New(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	catalog, err := diseaseinfo.Default()
	require.NoError(t, err)
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	ctrl, err := workflow.New(workflow.Deps{
		Store:      database,
		Classifier: stubClassifier{result: classifier.Result{Label: "Tomato___Late_blight", Index: 31, Confidence: 0.93}},
		Images:     images,
		Catalog:    catalog,
		Metrics:    m,
		Logger:     logger.Discard(),
	}, workflow.DefaultOptions())
	require.NoError(t, err)

	r := Setup(Deps{
		Controller:  ctrl,
		Sessions:    session.NewStore(time.Hour),
		Cookies:     security.NewSessionStore("test-secret-test-secret-test-sec", time.Hour, false),
		Metrics:     m,
		MetricsPath: "/metrics",
		Logger:      logger.Discard(),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testServer{Server: srv, client: &http.Client{Jar: jar}}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) login(t *testing.T, email string) {
	t.Helper()
	resp := s.do(t, "POST", "/api/register", workflow.Registration{Name: "Grower", Email: email, Password: "secret12"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = s.do(t, "POST", "/api/login", map[string]string{"email": email, "password": "secret12"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < 8; i++ {
		img.Set(i, i, color.RGBA{G: 180, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (s *testServer) upload(t *testing.T, name string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest("POST", s.URL+"/api/upload", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSessionCookieIsIssued(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, "GET", "/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[workflow.PageView](t, resp)
	assert.Equal(t, session.PageHome, view.Page)
	assert.Nil(t, view.User)
	assert.Equal(t, []session.Page{session.PageHome, session.PageAbout, session.PageAccount}, view.Menu)

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == security.SessionCookieName {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found)
}

func TestProtectedRouteRedirectsToAccount(t *testing.T) {
	srv := newTestServer(t)
	srv.client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp := srv.do(t, "GET", "/api/history", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/api/pages/account", resp.Header.Get("Location"))

	resp = srv.do(t, "GET", "/api/pages/chatbot", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[workflow.PageView](t, resp)
	assert.Equal(t, session.PageAccount, view.Page)
	require.NotNil(t, view.Notice)
	assert.Equal(t, session.NoticeWarning, view.Notice.Level)
}

func TestUnknownPage(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.do(t, "GET", "/api/pages/settings", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.ErrUnknownPage.Code, decode[apperrors.ErrorResponse](t, resp).Code)
}

func TestLoginErrors(t *testing.T) {
	srv := newTestServer(t)
	srv.login(t, "grower@example.com")
	srv.do(t, "POST", "/api/logout", nil)

	resp := srv.do(t, "POST", "/api/login", map[string]string{"email": "grower@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apperrors.ErrInvalidCredentials.Code, decode[apperrors.ErrorResponse](t, resp).Code)

	resp = srv.do(t, "POST", "/api/register", workflow.Registration{Name: "Other", Email: "GROWER@example.com", Password: "secret12"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	req, err := http.NewRequest("POST", srv.URL+"/api/login", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	bad, err := srv.client.Do(req)
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestUploadAnalyzeAndHistory(t *testing.T) {
	srv := newTestServer(t)
	srv.login(t, "grower@example.com")

	resp := srv.upload(t, "leaf.png", pngBytes(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[workflow.PageView](t, resp)
	assert.Equal(t, session.UploadUploaded, view.Upload.State)
	assert.Equal(t, "leaf.png", view.Upload.PendingFile)

	resp = srv.do(t, "POST", "/api/analyze", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	analysis := decode[workflow.Analysis](t, resp)
	assert.Equal(t, "Tomato___Late_blight", analysis.Label)
	assert.Equal(t, "Tomato - Late blight", analysis.Display)
	assert.InDelta(t, 0.93, analysis.Confidence, 1e-9)

	resp = srv.do(t, "POST", "/api/analyze", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.ErrMissingUpload.Code, decode[apperrors.ErrorResponse](t, resp).Code)

	resp = srv.do(t, "POST", "/api/analysis/view", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, session.PagePredictions, decode[workflow.PageView](t, resp).Page)

	resp = srv.do(t, "GET", "/api/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[workflow.HistoryPage](t, resp)
	require.Len(t, history.Items, 1)
	assert.Equal(t, analysis.PredictionID, history.Items[0].ID)

	resp = srv.do(t, "GET", "/api/history?date=not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, "GET", "/api/predictions/"+strconv.FormatInt(analysis.PredictionID, 10)+"/image", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t), data)
}

func TestUploadRejectsUnsupportedFile(t *testing.T) {
	srv := newTestServer(t)
	srv.login(t, "grower@example.com")

	resp := srv.upload(t, "notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.ErrUnsupportedImage.Code, decode[apperrors.ErrorResponse](t, resp).Code)
}

func TestChatbotRoutes(t *testing.T) {
	srv := newTestServer(t)
	srv.login(t, "grower@example.com")

	resp := srv.do(t, "GET", "/api/chatbot", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[workflow.DialogueView](t, resp)
	assert.Equal(t, session.StepPlantSelection, view.Step)
	assert.Len(t, view.Options, 14)

	resp = srv.do(t, "POST", "/api/chatbot/plant", map[string]string{"choice": "Tomato"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[workflow.DialogueView](t, resp)
	assert.Equal(t, session.StepDiseaseSelection, view.Step)

	resp = srv.do(t, "POST", "/api/chatbot/condition", map[string]string{"choice": "Late blight"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[workflow.DialogueView](t, resp)
	assert.Equal(t, session.StepDiseaseInfo, view.Step)
	require.NotNil(t, view.Info)
	assert.Equal(t, "Tomato___Late_blight", view.Info.Label)
	assert.Equal(t, diseaseinfo.TierExact, view.Info.Tier)

	resp = srv.do(t, "POST", "/api/chatbot/plant", map[string]string{"choice": "Tomato"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReviewsAndAccount(t *testing.T) {
	srv := newTestServer(t)
	srv.login(t, "grower@example.com")

	resp := srv.do(t, "POST", "/api/reviews", map[string]any{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, "POST", "/api/reviews", map[string]any{"rating": 5, "body": "Saved my tomatoes"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = srv.do(t, "GET", "/api/reviews", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reviews := decode[workflow.ReviewsView](t, resp)
	require.Len(t, reviews.Recent, 1)
	assert.Equal(t, "Grower", reviews.Recent[0].AuthorName)

	resp = srv.do(t, "POST", "/api/account/name", map[string]string{"name": "Head Grower"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Head Grower", decode[workflow.PageView](t, resp).User.Name)

	resp = srv.do(t, "DELETE", "/api/account", map[string]bool{"confirm": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, decode[workflow.PageView](t, resp).User)

	resp = srv.do(t, "POST", "/api/login", map[string]string{"email": "grower@example.com", "password": "secret12"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNotificationsRoutes(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, "GET", "/api/notifications", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]json.RawMessage](t, resp))

	srv.login(t, "grower@example.com")
	resp = srv.do(t, "GET", "/api/notifications", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]json.RawMessage](t, resp), 1)

	resp = srv.do(t, "POST", "/api/notifications/dismiss", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, "GET", "/api/notifications", nil)
	assert.Empty(t, decode[[]json.RawMessage](t, resp))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, "GET", "/api/session", nil)

	resp := srv.do(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `agrodoc_http_requests_total{method="GET",route="/api/session",status_code="200"} 1`)
	assert.Contains(t, string(body), "agrodoc_active_sessions 1")
}
