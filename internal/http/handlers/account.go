package handlers

import (
	"net/http"

	"agrodoc/internal/http/middleware"
	"agrodoc/internal/session"
	"agrodoc/internal/workflow"
)

// AccountHandler serves the profile, phone verification and account
// deletion operations of a logged in user.
type AccountHandler struct {
	ctrl *workflow.Controller
}

func NewAccountHandler(ctrl *workflow.Controller) *AccountHandler {
	return &AccountHandler{ctrl: ctrl}
}

func (h *AccountHandler) UpdateName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.run(w, r, func(s *session.Session) error {
		return h.ctrl.UpdateName(r.Context(), s, req.Name)
	})
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req workflow.PasswordChange
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.run(w, r, func(s *session.Session) error {
		return h.ctrl.ChangePassword(r.Context(), s, req)
	})
}

func (h *AccountHandler) RequestPhoneCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.run(w, r, func(s *session.Session) error {
		return h.ctrl.RequestPhoneCode(r.Context(), s, req.Phone)
	})
}

func (h *AccountHandler) VerifyPhoneCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.run(w, r, func(s *session.Session) error {
		return h.ctrl.VerifyPhoneCode(r.Context(), s, req.Code)
	})
}

func (h *AccountHandler) SetNotifications(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Show bool `json:"show"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.run(w, r, func(s *session.Session) error {
		return h.ctrl.SetNotificationPreference(r.Context(), s, req.Show)
	})
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.run(w, r, func(s *session.Session) error {
		return h.ctrl.DeleteAccount(r.Context(), s, req.Confirm)
	})
}

func (h *AccountHandler) run(w http.ResponseWriter, r *http.Request, op func(*session.Session) error) {
	s := middleware.SessionFrom(r)
	if err := op(s); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.View(r.Context(), s))
}
