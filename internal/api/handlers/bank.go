package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	hindsight "github.com/hindsight-ai/hindsight"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/hindsight-ai/hindsight/internal/service"
)

type BankHandler struct {
	engine *hindsight.Hindsight
}

func NewBankHandler(engine *hindsight.Hindsight) *BankHandler {
	return &BankHandler{engine: engine}
}

type createBankRequest struct {
	Name                string  `json:"name"`
	ExtractionMode      string  `json:"extraction_mode,omitempty"`
	DedupThreshold      float64 `json:"dedup_threshold,omitempty"`
	ReflectBudget       string  `json:"reflect_budget,omitempty"`
	EnableConsolidation bool    `json:"enable_consolidation,omitempty"`
	CustomGuidelines    string  `json:"custom_guidelines,omitempty"`
	Mission             string  `json:"mission,omitempty"`
}

func (h *BankHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	bank := &domain.Bank{
		Name:                req.Name,
		ExtractionMode:      domain.ExtractionMode(req.ExtractionMode),
		DedupThreshold:      req.DedupThreshold,
		ReflectBudget:       domain.ReflectBudget(req.ReflectBudget),
		EnableConsolidation: req.EnableConsolidation,
		CustomGuidelines:    req.CustomGuidelines,
		Mission:             req.Mission,
	}

	if err := h.engine.CreateBank(r.Context(), bank); err != nil {
		switch {
		case errors.Is(err, service.ErrBankNameEmpty),
			errors.Is(err, service.ErrInvalidDedup),
			errors.Is(err, service.ErrInvalidMode),
			errors.Is(err, service.ErrInvalidBudget):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create bank")
		}
		return
	}
	writeJSON(w, http.StatusCreated, bank)
}

func (h *BankHandler) List(w http.ResponseWriter, r *http.Request) {
	banks, err := h.engine.ListBanks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list banks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"banks": banks})
}

func (h *BankHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := bankIDParam(w, r)
	if !ok {
		return
	}
	bank, err := h.engine.GetBank(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrBankNotFound) {
			writeError(w, http.StatusNotFound, "bank not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get bank")
		return
	}
	writeJSON(w, http.StatusOK, bank)
}

func (h *BankHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := bankIDParam(w, r)
	if !ok {
		return
	}
	bank, err := h.engine.GetBank(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrBankNotFound) {
			writeError(w, http.StatusNotFound, "bank not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get bank")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(bank); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	bank.ID = id

	if err := h.engine.UpdateBank(r.Context(), bank); err != nil {
		switch {
		case errors.Is(err, service.ErrBankNotFound):
			writeError(w, http.StatusNotFound, "bank not found")
		case errors.Is(err, service.ErrInvalidDedup), errors.Is(err, service.ErrInvalidMode):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update bank")
		}
		return
	}
	writeJSON(w, http.StatusOK, bank)
}

func (h *BankHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := bankIDParam(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeleteBank(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrBankNotFound) {
			writeError(w, http.StatusNotFound, "bank not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete bank")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BankHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := bankIDParam(w, r)
	if !ok {
		return
	}
	stats, err := h.engine.BankStats(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrBankNotFound) {
			writeError(w, http.StatusNotFound, "bank not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get bank stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func bankIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bank id")
		return uuid.Nil, false
	}
	return id, true
}
