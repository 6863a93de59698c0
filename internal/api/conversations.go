package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/MikeSquared-Agency/marquee/internal/chat"
	"github.com/MikeSquared-Agency/marquee/internal/session"
)

var validate = validator.New()

// maxBodyBytes caps turn request bodies.
const maxBodyBytes = 64 << 10

// Conversations is the chat service as seen by the HTTP layer.
type Conversations interface {
	Start() chat.Transcript
	Turn(ctx context.Context, conversationID, text string, targets []string) (*chat.TurnResult, error)
	Reset(conversationID string) (chat.Transcript, error)
	Delete(conversationID string) error
	Transcript(conversationID string) (chat.Transcript, error)
}

type turnRequest struct {
	Text    string   `json:"text" validate:"required,max=2000"`
	Targets []string `json:"targets" validate:"omitempty,max=8,dive,required,max=32"`
}

type conversationHandler struct {
	svc    Conversations
	logger *slog.Logger
}

// create handles POST /api/v1/conversations
func (h *conversationHandler) create(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, h.svc.Start())
}

// transcript handles GET /api/v1/conversations/{id}
func (h *conversationHandler) transcript(w http.ResponseWriter, r *http.Request) {
	tr, err := h.svc.Transcript(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// reset handles POST /api/v1/conversations/{id}/reset
func (h *conversationHandler) reset(w http.ResponseWriter, r *http.Request) {
	tr, err := h.svc.Reset(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// remove handles DELETE /api/v1/conversations/{id}
func (h *conversationHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// turn handles POST /api/v1/conversations/{id}/turns
func (h *conversationHandler) turn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Turn(r.Context(), chi.URLParam(r, "id"), req.Text, req.Targets)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *conversationHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrEmptyText):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("conversation request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
