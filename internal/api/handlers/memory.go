package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	hindsight "github.com/hindsight-ai/hindsight"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/hindsight-ai/hindsight/internal/service"
)

type MemoryHandler struct {
	engine *hindsight.Hindsight
}

func NewMemoryHandler(engine *hindsight.Hindsight) *MemoryHandler {
	return &MemoryHandler{engine: engine}
}

type retainRequest struct {
	Content    string                `json:"content,omitempty"`
	Transcript []domain.Turn         `json:"transcript,omitempty"`
	Options    domain.RetainOptions  `json:"options,omitempty"`
}

func (h *MemoryHandler) Retain(w http.ResponseWriter, r *http.Request) {
	bankID, ok := bankIDParam(w, r)
	if !ok {
		return
	}

	var req retainRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := domain.RetainInput{Text: req.Content, Transcript: req.Transcript}
	if input.IsEmpty() && len(req.Options.Facts) == 0 {
		writeError(w, http.StatusBadRequest, "content, transcript, or facts are required")
		return
	}

	result, err := h.engine.Retain(r.Context(), bankID, input, req.Options)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBankNotFound):
			writeError(w, http.StatusNotFound, "bank not found")
		case errors.Is(err, service.ErrEmptyContent):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to retain")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type retainBatchRequest struct {
	Items []retainRequest `json:"items"`
}

func (h *MemoryHandler) RetainBatch(w http.ResponseWriter, r *http.Request) {
	bankID, ok := bankIDParam(w, r)
	if !ok {
		return
	}

	var req retainBatchRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items are required")
		return
	}

	items := make([]domain.RetainItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = domain.RetainItem{
			Input:   domain.RetainInput{Text: it.Content, Transcript: it.Transcript},
			Options: it.Options,
		}
	}

	results, err := h.engine.RetainBatch(r.Context(), bankID, items)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to retain batch")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type recallRequest struct {
	Query   string               `json:"query"`
	Options domain.RecallOptions `json:"options,omitempty"`
}

func (h *MemoryHandler) Recall(w http.ResponseWriter, r *http.Request) {
	bankID, ok := bankIDParam(w, r)
	if !ok {
		return
	}

	var req recallRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := h.engine.Recall(r.Context(), bankID, req.Query, req.Options)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBankNotFound):
			writeError(w, http.StatusNotFound, "bank not found")
		case errors.Is(err, service.ErrRecallQueryEmpty):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to recall")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	bankID, ok := bankIDParam(w, r)
	if !ok {
		return
	}

	opts := domain.MemoryListOpts{}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			opts.Limit = n
		}
	}
	if ft := r.URL.Query().Get("fact_type"); ft != "" {
		if !domain.ValidFactType(ft) {
			writeError(w, http.StatusBadRequest, "invalid fact_type")
			return
		}
		t := domain.FactType(ft)
		opts.FactType = &t
	}

	memories, err := h.engine.ListMemories(r.Context(), bankID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list memories")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": memories})
}

func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	bankID, ok := bankIDParam(w, r)
	if !ok {
		return
	}
	memoryID, err := uuid.Parse(chi.URLParam(r, "memoryId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	memory, err := h.engine.GetMemory(r.Context(), memoryID, bankID)
	if err != nil {
		if errors.Is(err, service.ErrMemoryNotFound) {
			writeError(w, http.StatusNotFound, "memory not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get memory")
		return
	}
	writeJSON(w, http.StatusOK, memory)
}

func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	bankID, ok := bankIDParam(w, r)
	if !ok {
		return
	}
	memoryID, err := uuid.Parse(chi.URLParam(r, "memoryId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	if err := h.engine.DeleteMemory(r.Context(), memoryID, bankID); err != nil {
		if errors.Is(err, service.ErrMemoryNotFound) {
			writeError(w, http.StatusNotFound, "memory not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete memory")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
