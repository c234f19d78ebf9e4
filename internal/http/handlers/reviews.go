package handlers

import (
	"net/http"

	"agrodoc/internal/http/middleware"
	"agrodoc/internal/workflow"
)

type ReviewHandler struct {
	ctrl *workflow.Controller
}

func NewReviewHandler(ctrl *workflow.Controller) *ReviewHandler {
	return &ReviewHandler{ctrl: ctrl}
}

func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	view, err := h.ctrl.RecentReviews(r.Context(), middleware.SessionFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating int    `json:"rating"`
		Body   string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	review, err := h.ctrl.SubmitReview(r.Context(), middleware.SessionFrom(r), req.Rating, req.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}
