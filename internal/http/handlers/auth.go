package handlers

import (
	"net/http"

	"agrodoc/internal/http/middleware"
	"agrodoc/internal/workflow"
)

type AuthHandler struct {
	ctrl *workflow.Controller
}

func NewAuthHandler(ctrl *workflow.Controller) *AuthHandler {
	return &AuthHandler{ctrl: ctrl}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req workflow.Registration
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	s := middleware.SessionFrom(r)
	if err := h.ctrl.Register(r.Context(), s, req); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.ctrl.View(r.Context(), s))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	s := middleware.SessionFrom(r)
	if _, err := h.ctrl.Login(r.Context(), s, req.Email, req.Password); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.ctrl.View(r.Context(), s))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFrom(r)
	if err := h.ctrl.Logout(r.Context(), s); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.View(r.Context(), s))
}
