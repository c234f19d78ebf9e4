// Package session holds the per-visit workflow state and the registry that
// maps cookie ids to it.
package session

import (
	"slices"
	"strings"
	"time"

	"agrodoc/internal/models"
)

// Page identifies the view the workflow wants rendered.
type Page string

const (
	PageHome        Page = "home"
	PagePredictions Page = "predictions"
	PageChatbot     Page = "chatbot"
	PageReviews     Page = "reviews"
	PageAbout       Page = "about"
	PageAccount     Page = "account"
)

// Pages lists every page in menu order.
var Pages = []Page{PageHome, PagePredictions, PageChatbot, PageReviews, PageAbout, PageAccount}

// PublicPages are reachable without logging in.
var PublicPages = []Page{PageHome, PageAbout, PageAccount}

// ParsePage resolves a page name, case-insensitively.
func ParsePage(name string) (Page, bool) {
	for _, p := range Pages {
		if strings.EqualFold(string(p), strings.TrimSpace(name)) {
			return p, true
		}
	}
	return "", false
}

// IsPublic reports whether p may be shown to anonymous visitors.
func (p Page) IsPublic() bool {
	return slices.Contains(PublicPages, p)
}

// UploadState is the position in the upload/classify/display flow.
type UploadState string

const (
	UploadIdle       UploadState = "idle"
	UploadUploaded   UploadState = "uploaded"
	UploadProcessing UploadState = "processing"
	UploadDone       UploadState = "done"
)

// DialogueStep is the position in the guided plant/disease dialogue.
type DialogueStep string

const (
	StepPlantSelection   DialogueStep = "plant_selection"
	StepDiseaseSelection DialogueStep = "disease_selection"
	StepDiseaseInfo      DialogueStep = "disease_info"
)

// Speaker of a transcript turn.
type Speaker string

const (
	SpeakerBot  Speaker = "bot"
	SpeakerUser Speaker = "user"
)

type Turn struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// NoticeLevel matches the severities the UI can render.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a one-shot message for the next render.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Upload is an image received but not yet analyzed.
type Upload struct {
	Name     string
	Data     []byte
	Received time.Time
}

// LastPrediction caches the most recently committed classification.
type LastPrediction struct {
	PredictionID int64
	Label        string
	Confidence   float64
	ImagePath    string
	At           time.Time
}

// State is everything the workflow remembers about one browsing session.
type State struct {
	User *models.User
	Page Page

	Upload         UploadState
	Pending        *Upload
	LastPrediction *LastPrediction
	HistoryPage    int

	Step          DialogueStep
	SelectedPlant string
	SelectedLabel string
	Transcript    []Turn

	Notice *Notice

	PendingPhone string
	OTP          string
	OTPExpiry    time.Time

	NotificationsShown bool

	// Generation changes on every Reset. An analysis started under an
	// older generation must not write its outcome into the session.
	Generation uint64
}

// NewState returns the state of a fresh, anonymous visit.
func NewState() State {
	return State{
		Page:   PageHome,
		Upload: UploadIdle,
		Step:   StepPlantSelection,
	}
}

// Reset restores every field to its initial value and starts a new
// generation. An analysis in flight keeps the session in the processing
// state until it finishes.
func (s *State) Reset() {
	inFlight := s.Processing()
	gen := s.Generation + 1
	*s = NewState()
	s.Generation = gen
	if inFlight {
		s.Upload = UploadProcessing
	}
}

// Authenticated reports whether a user is logged in.
func (s State) Authenticated() bool {
	return s.User != nil
}

// Processing reports whether an analysis is in flight.
func (s State) Processing() bool {
	return s.Upload == UploadProcessing
}

// SetNotice replaces the pending notice.
func (s *State) SetNotice(level NoticeLevel, message string) {
	s.Notice = &Notice{Level: level, Message: message}
}

// ClearOTP forgets any pending phone verification.
func (s *State) ClearOTP() {
	s.PendingPhone = ""
	s.OTP = ""
	s.OTPExpiry = time.Time{}
}

// clone copies s deeply enough that the copy can be read without the lock.
func (s *State) clone() State {
	c := *s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	if s.LastPrediction != nil {
		lp := *s.LastPrediction
		c.LastPrediction = &lp
	}
	if s.Notice != nil {
		n := *s.Notice
		c.Notice = &n
	}
	c.Transcript = slices.Clone(s.Transcript)
	return c
}
