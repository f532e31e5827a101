package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	hindsight "github.com/hindsight-ai/hindsight"
	"github.com/hindsight-ai/hindsight/internal/service"
)

type OperationHandler struct {
	engine *hindsight.Hindsight
}

func NewOperationHandler(engine *hindsight.Hindsight) *OperationHandler {
	return &OperationHandler{engine: engine}
}

func (h *OperationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid operation id")
		return
	}

	op, err := h.engine.GetOperation(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrOperationNotFound) {
			writeError(w, http.StatusNotFound, "operation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get operation")
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (h *OperationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid operation id")
		return
	}

	if err := h.engine.CancelOperation(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrOperationNotFound):
			writeError(w, http.StatusNotFound, "operation not found")
		case errors.Is(err, service.ErrOperationTerminal):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to cancel operation")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
