package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"agrodoc/internal/http/middleware"
	"agrodoc/internal/workflow"
)

// PageHandler serves navigation, the session view and notifications.
type PageHandler struct {
	ctrl *workflow.Controller
}

func NewPageHandler(ctrl *workflow.Controller) *PageHandler {
	return &PageHandler{ctrl: ctrl}
}

// Session returns the current page view without changing state.
func (h *PageHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.View(r.Context(), middleware.SessionFrom(r)))
}

// Navigate switches to the page named in the path. Protected pages requested
// anonymously land on the account page with a warning.
func (h *PageHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFrom(r)
	if _, err := h.ctrl.Navigate(r.Context(), s, mux.Vars(r)["page"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.View(r.Context(), s))
}

func (h *PageHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	items, err := h.ctrl.Notifications(r.Context(), middleware.SessionFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *PageHandler) DismissNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.DismissNotifications(r.Context(), middleware.SessionFrom(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Notifications hidden"})
}
