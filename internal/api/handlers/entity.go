package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	hindsight "github.com/hindsight-ai/hindsight"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/hindsight-ai/hindsight/internal/service"
)

type EntityHandler struct {
	engine *hindsight.Hindsight
}

func NewEntityHandler(engine *hindsight.Hindsight) *EntityHandler {
	return &EntityHandler{engine: engine}
}

func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	bankID, ok := bankIDParam(w, r)
	if !ok {
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}

	entities, err := h.engine.ListEntities(r.Context(), bankID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list entities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": entities})
}

func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	bankID, ok := bankIDParam(w, r)
	if !ok {
		return
	}
	entityID, err := uuid.Parse(chi.URLParam(r, "entityId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	entity, err := h.engine.GetEntity(r.Context(), entityID, bankID)
	if err != nil {
		if errors.Is(err, service.ErrEntityNotFound) {
			writeError(w, http.StatusNotFound, "entity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get entity")
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

type updateEntityRequest struct {
	Name        string `json:"name,omitempty"`
	EntityType  string `json:"entity_type,omitempty"`
	Description string `json:"description,omitempty"`
}

func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	bankID, ok := bankIDParam(w, r)
	if !ok {
		return
	}
	entityID, err := uuid.Parse(chi.URLParam(r, "entityId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	entity, err := h.engine.GetEntity(r.Context(), entityID, bankID)
	if err != nil {
		if errors.Is(err, service.ErrEntityNotFound) {
			writeError(w, http.StatusNotFound, "entity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get entity")
		return
	}

	var req updateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != "" {
		entity.Name = req.Name
	}
	if req.EntityType != "" {
		if !domain.ValidEntityType(req.EntityType) {
			writeError(w, http.StatusBadRequest, "invalid entity_type")
			return
		}
		entity.EntityType = domain.EntityType(req.EntityType)
	}
	if req.Description != "" {
		entity.Description = req.Description
	}

	if err := h.engine.UpdateEntity(r.Context(), entity); err != nil {
		if errors.Is(err, service.ErrEntityNotFound) {
			writeError(w, http.StatusNotFound, "entity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update entity")
		return
	}
	writeJSON(w, http.StatusOK, entity)
}
