package handlers

import (
	"net/http"

	"agrodoc/internal/http/middleware"
	"agrodoc/internal/workflow"
)

// ChatbotHandler drives the guided plant, disease and info dialogue.
type ChatbotHandler struct {
	ctrl *workflow.Controller
}

func NewChatbotHandler(ctrl *workflow.Controller) *ChatbotHandler {
	return &ChatbotHandler{ctrl: ctrl}
}

type choiceRequest struct {
	Choice string `json:"choice"`
}

func (h *ChatbotHandler) Show(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.ctrl.ShowDialogue(r.Context(), middleware.SessionFrom(r)))
}

func (h *ChatbotHandler) SelectPlant(w http.ResponseWriter, r *http.Request) {
	var req choiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r)(h.ctrl.SelectPlant(r.Context(), middleware.SessionFrom(r), req.Choice))
}

func (h *ChatbotHandler) SelectCondition(w http.ResponseWriter, r *http.Request) {
	var req choiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r)(h.ctrl.SelectCondition(r.Context(), middleware.SessionFrom(r), req.Choice))
}

func (h *ChatbotHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.ctrl.DialogueBack(r.Context(), middleware.SessionFrom(r)))
}

func (h *ChatbotHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.ctrl.NewDialogue(r.Context(), middleware.SessionFrom(r)))
}

func (h *ChatbotHandler) respond(w http.ResponseWriter, r *http.Request) func(*workflow.DialogueView, error) {
	return func(view *workflow.DialogueView, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}
