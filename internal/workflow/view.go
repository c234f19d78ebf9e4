package workflow

import (
	"context"
	"slices"

	"agrodoc/internal/models"
	"agrodoc/internal/session"
)

// PageView is everything the presentation layer needs to render the current
// page. It is derived from the session state and holds no logic.
type PageView struct {
	Page          session.Page          `json:"page"`
	Menu          []session.Page        `json:"menu"`
	User          *models.User          `json:"user,omitempty"`
	Notice        *session.Notice       `json:"notice,omitempty"`
	Upload        UploadView            `json:"upload"`
	Latest        *Analysis             `json:"latest_prediction,omitempty"`
	HistoryPage   int                   `json:"history_page"`
	Dialogue      DialogueState         `json:"dialogue"`
	Phone         *PhoneVerification    `json:"phone_verification,omitempty"`
	Notifications []models.Notification `json:"notifications"`
}

type UploadView struct {
	State       session.UploadState `json:"state"`
	Processing  bool                `json:"processing"`
	PendingFile string              `json:"pending_file,omitempty"`
}

type DialogueState struct {
	Step       session.DialogueStep `json:"step"`
	Plant      string               `json:"plant,omitempty"`
	Label      string               `json:"label,omitempty"`
	Transcript []session.Turn       `json:"transcript"`
}

type PhoneVerification struct {
	Phone            string  `json:"phone"`
	ExpiresInSeconds float64 `json:"expires_in_seconds"`
}

// View projects the session for rendering and consumes the pending notice.
func (c *Controller) View(ctx context.Context, s *session.Session) *PageView {
	notice := c.TakeNotice(s)
	st := s.Snapshot()

	view := &PageView{
		Page:        VisiblePage(st),
		Menu:        slices.Clone(MenuPages(st)),
		User:        st.User,
		Notice:      notice,
		Latest:      analysisFrom(st.LastPrediction),
		HistoryPage: st.HistoryPage,
		Upload: UploadView{
			State:      st.Upload,
			Processing: st.Processing(),
		},
		Dialogue: DialogueState{
			Step:       st.Step,
			Plant:      st.SelectedPlant,
			Label:      st.SelectedLabel,
			Transcript: st.Transcript,
		},
	}
	if view.Dialogue.Transcript == nil {
		view.Dialogue.Transcript = []session.Turn{}
	}
	if st.Pending != nil {
		view.Upload.PendingFile = st.Pending.Name
	}
	if remaining := otpRemaining(st, c.now()); remaining > 0 {
		view.Phone = &PhoneVerification{Phone: st.PendingPhone, ExpiresInSeconds: remaining.Seconds()}
	}

	notes, err := c.Notifications(ctx, s)
	if err != nil {
		c.log.Warn("loading notifications failed", "error", err)
		notes = []models.Notification{}
	}
	view.Notifications = notes
	return view
}
