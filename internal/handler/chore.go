package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorechart/internal/model"
	"github.com/dukerupert/chorechart/internal/store"
	"github.com/dukerupert/chorechart/internal/websocket"
	"github.com/shopspring/decimal"
)

const (
	statusChoreAdded   = "Chore added successfully"
	statusChoreUpdated = "Chore updated successfully"
	statusChoreDeleted = "Chore deleted successfully"
)

// ChoreHandler manages the chore catalogue.
type ChoreHandler struct {
	choreStore *store.ChoreStore
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewChoreHandler(cs *store.ChoreStore, hub *websocket.Hub, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{choreStore: cs, hub: hub, logger: logger}
}

func (h *ChoreHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type choreRequest struct {
	Name   string          `json:"name"`
	Reward decimal.Decimal `json:"reward"`
	Active *bool           `json:"active"`
}

func (req *choreRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.Reward.IsNegative() {
		return "reward cannot be negative"
	}
	if req.Reward.Round(2).GreaterThan(store.MaxAmount) {
		return "reward too large"
	}
	return ""
}

func (req *choreRequest) active() bool {
	return req.Active == nil || *req.Active
}

// ListActive handles GET /api/chores, the chores children can start.
func (h *ChoreHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	chores, err := h.choreStore.ListActive()
	if err != nil {
		h.logger.Error("list active chores", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list chores")
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

// List handles GET /api/chores/all.
func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	chores, err := h.choreStore.List()
	if err != nil {
		h.logger.Error("list chores", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list chores")
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	c, err := h.choreStore.Create(req.Name, req.Reward, req.active())
	if err != nil {
		h.logger.Error("create chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create chore")
		return
	}

	h.logger.Info("chore created", "chore_id", c.ID, "name", c.Name, "reward", c.Reward.StringFixed(2))
	h.broadcast(websocket.StatusMessage("chore", "created", c.ID, statusChoreAdded))
	writeOK(w, http.StatusCreated, statusChoreAdded, c)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.choreStore.GetByID(id)
	if err != nil {
		h.logger.Error("get chore", "chore_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}

	var req choreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	active := existing.Active
	if req.Active != nil {
		active = *req.Active
	}

	c, err := h.choreStore.Update(id, req.Name, req.Reward, active)
	if err != nil {
		h.logger.Error("update chore", "chore_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update chore")
		return
	}

	h.broadcast(websocket.StatusMessage("chore", "updated", id, statusChoreUpdated))
	writeOK(w, http.StatusOK, statusChoreUpdated, c)
}

// SetActive handles PUT /api/chores/{id}/active with {"active": bool}.
func (h *ChoreHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.choreStore.SetActive(id, req.Active); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chore not found")
			return
		}
		h.logger.Error("set chore active", "chore_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update chore")
		return
	}

	c, err := h.choreStore.GetByID(id)
	if err != nil {
		h.logger.Error("get chore", "chore_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return
	}

	h.broadcast(websocket.StatusMessage("chore", "updated", id, statusChoreUpdated))
	writeOK(w, http.StatusOK, statusChoreUpdated, c)
}

// Delete removes a chore together with every completion of it.
func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.choreStore.GetByID(id)
	if err != nil {
		h.logger.Error("get chore", "chore_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}

	if err := h.choreStore.Delete(id); err != nil {
		h.logger.Error("delete chore", "chore_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete chore")
		return
	}

	h.logger.Info("chore deleted", "chore_id", id)
	h.broadcast(websocket.StatusMessage("chore", "deleted", id, statusChoreDeleted))
	writeOK(w, http.StatusOK, statusChoreDeleted, nil)
}
