package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "agrodoc/internal/errors"
	"agrodoc/internal/http/middleware"
	"agrodoc/internal/logger"
	"agrodoc/internal/workflow"
)

// multipartOverhead leaves room for form boundaries around the image.
const multipartOverhead = 1 << 20

type AnalysisHandler struct {
	ctrl *workflow.Controller
}

func NewAnalysisHandler(ctrl *workflow.Controller) *AnalysisHandler {
	return &AnalysisHandler{ctrl: ctrl}
}

func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.ctrl.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			writeError(w, r, apperrors.ErrImageTooLarge)
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, r, apperrors.ErrMissingUpload)
		default:
			writeError(w, r, apperrors.ErrInvalidRequest.Wrap(err))
		}
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeError(w, r, apperrors.ErrInvalidRequest.Wrap(err))
		return
	}

	s := middleware.SessionFrom(r)
	if err := h.ctrl.Upload(r.Context(), s, header.Filename, data); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.View(r.Context(), s))
}

func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.ctrl.Analyze(r.Context(), middleware.SessionFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *AnalysisHandler) Latest(w http.ResponseWriter, r *http.Request) {
	analysis := h.ctrl.LatestAnalysis(middleware.SessionFrom(r))
	if analysis == nil {
		writeError(w, r, apperrors.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *AnalysisHandler) ViewResults(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFrom(r)
	if err := h.ctrl.ViewResults(r.Context(), s); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.View(r.Context(), s))
}

func (h *AnalysisHandler) BackHome(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFrom(r)
	if err := h.ctrl.BackHome(r.Context(), s); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.View(r.Context(), s))
}

func (h *AnalysisHandler) History(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFrom(r)
	if date := r.URL.Query().Get("date"); date != "" {
		day, err := h.ctrl.HistoryOn(r.Context(), s, date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, day)
		return
	}

	page, err := h.ctrl.History(r.Context(), s)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *AnalysisHandler) NextPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.ctrl.NextPage(r.Context(), middleware.SessionFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *AnalysisHandler) PrevPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.ctrl.PrevPage(r.Context(), middleware.SessionFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *AnalysisHandler) Image(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, r, apperrors.ErrNotFound)
		return
	}

	data, contentType, err := h.ctrl.PredictionImage(r.Context(), middleware.SessionFrom(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Module("http").Debug("image write interrupted", "prediction_id", id, "error", err)
	}
}
