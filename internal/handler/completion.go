package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/chorechart/internal/chore"
	"github.com/dukerupert/chorechart/internal/model"
	"github.com/dukerupert/chorechart/internal/proof"
	"github.com/dukerupert/chorechart/internal/push"
	"github.com/dukerupert/chorechart/internal/store"
	"github.com/dukerupert/chorechart/internal/websocket"
)

const (
	statusStarted      = "Chore started!"
	statusStartFailed  = "Failed to start chore"
	statusCompleted    = "Chore completed! Waiting for approval."
	statusApproved     = "Chore approved!"
	statusRejected     = "Chore rejected"
	statusBalanceReset = "Balance reset successfully"
)

// CompletionHandler drives a completion from start to payout.
type CompletionHandler struct {
	svc         *chore.Service
	completions *store.CompletionStore
	proofs      proof.Storage
	notifier    *push.Notifier
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewCompletionHandler(svc *chore.Service, cs *store.CompletionStore, proofs proof.Storage, notifier *push.Notifier, hub *websocket.Hub, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{svc: svc, completions: cs, proofs: proofs, notifier: notifier, hub: hub, logger: logger}
}

func (h *CompletionHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// lifecycleCode maps a lifecycle error to an HTTP status.
func lifecycleCode(err error) int {
	switch {
	case errors.Is(err, chore.ErrChoreNotFound),
		errors.Is(err, chore.ErrUserNotFound),
		errors.Is(err, chore.ErrCompletionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chore.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, chore.ErrChoreInactive),
		errors.Is(err, chore.ErrNotChild):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *CompletionHandler) writeLifecycleError(w http.ResponseWriter, op string, err error) {
	code := lifecycleCode(err)
	if code == http.StatusInternalServerError {
		h.logger.Error(op, "error", err)
		writeError(w, code, "failed to "+op)
		return
	}
	h.logger.Warn(op, "error", err)
	writeError(w, code, err.Error())
}

// Start handles POST /api/chores/{id}/start with {"child_id": n}.
func (h *CompletionHandler) Start(w http.ResponseWriter, r *http.Request) {
	choreID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		ChildID int64 `json:"child_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.ChildID == 0 {
		writeError(w, http.StatusBadRequest, "child_id is required")
		return
	}

	c, err := h.svc.Start(req.ChildID, choreID)
	if err != nil {
		code := lifecycleCode(err)
		if code == http.StatusInternalServerError {
			h.logger.Error("start chore", "chore_id", choreID, "child_id", req.ChildID, "error", err)
		}
		writeJSON(w, code, result{Status: statusStartFailed, Error: err.Error()})
		return
	}

	h.broadcast(websocket.StatusMessage("completion", "started", c.ID, statusStarted))
	writeOK(w, http.StatusCreated, statusStarted, c)
}

// Complete handles POST /api/completions/{id}/complete with
// {"picture_path": "..."}, normally the path returned by POST /api/proofs.
func (h *CompletionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		PicturePath string `json:"picture_path"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	c, err := h.svc.Complete(id, req.PicturePath)
	if err != nil {
		h.writeLifecycleError(w, "complete chore", err)
		return
	}

	h.broadcast(websocket.StatusMessage("completion", "completed", c.ID, statusCompleted))
	if d, err := h.svc.Detail(c.ID); err == nil {
		h.notifier.NotifyParents(push.Payload{
			Title: "Chore waiting for approval",
			Body:  fmt.Sprintf("%s finished %s", d.ChildName, d.ChoreName),
			Tag:   fmt.Sprintf("completion-%d", c.ID),
		})
	}
	writeOK(w, http.StatusOK, statusCompleted, c)
}

// Pending handles GET /api/completions/pending, the parent's review queue.
func (h *CompletionHandler) Pending(w http.ResponseWriter, r *http.Request) {
	list, err := h.completions.ListPending()
	if err != nil {
		h.logger.Error("list pending completions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list completions")
		return
	}
	if list == nil {
		list = []model.CompletionDetail{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CompletionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	c, err := h.svc.Approve(id)
	if err != nil {
		h.writeLifecycleError(w, "approve chore", err)
		return
	}

	h.broadcast(websocket.StatusMessage("completion", "approved", c.ID, statusApproved))
	h.broadcast(websocket.StatusMessage("balance", "updated", c.ChildID, statusApproved))
	h.notifyChild(c, statusApproved, fmt.Sprintf("You earned $%s", c.AmountEarned.StringFixed(2)))
	writeOK(w, http.StatusOK, statusApproved, c)
}

func (h *CompletionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	c, err := h.svc.Reject(id)
	if err != nil {
		h.writeLifecycleError(w, "reject chore", err)
		return
	}

	h.broadcast(websocket.StatusMessage("completion", "rejected", c.ID, statusRejected))
	h.notifyChild(c, statusRejected, "Ask a parent what to fix and try again")
	writeOK(w, http.StatusOK, statusRejected, c)
}

func (h *CompletionHandler) notifyChild(c *model.Completion, title, body string) {
	if d, err := h.svc.Detail(c.ID); err == nil {
		body = d.ChoreName + ": " + body
	}
	h.notifier.NotifyUser(c.ChildID, push.Payload{
		Title: title,
		Body:  body,
		Tag:   fmt.Sprintf("completion-%d", c.ID),
	})
}

// Payout handles POST /api/children/{id}/payout.
func (h *CompletionHandler) Payout(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	paid, err := h.svc.Payout(id)
	if err != nil {
		h.writeLifecycleError(w, "reset balance", err)
		return
	}

	h.broadcast(websocket.StatusMessage("balance", "reset", id, statusBalanceReset))
	writeOK(w, http.StatusOK, statusBalanceReset, map[string]any{"child_id": id, "paid": paid})
}

// ListByChild handles GET /api/children/{id}/completions.
func (h *CompletionHandler) ListByChild(w http.ResponseWriter, r *http.Request) {
	h.listForChild(w, r, h.completions.ListByChild)
}

// InProgress handles GET /api/children/{id}/in-progress.
func (h *CompletionHandler) InProgress(w http.ResponseWriter, r *http.Request) {
	h.listForChild(w, r, h.completions.ListInProgressByChild)
}

func (h *CompletionHandler) listForChild(w http.ResponseWriter, r *http.Request, list func(int64) ([]model.CompletionDetail, error)) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	details, err := list(id)
	if err != nil {
		h.logger.Error("list completions", "child_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list completions")
		return
	}
	if details == nil {
		details = []model.CompletionDetail{}
	}
	writeJSON(w, http.StatusOK, details)
}

// Proof handles GET /api/completions/{id}/proof, streaming the photo a
// child attached.
func (h *CompletionHandler) Proof(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	c, err := h.completions.GetByID(id)
	if err != nil {
		h.logger.Error("get completion", "completion_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get completion")
		return
	}
	if c == nil || c.PicturePath == nil || *c.PicturePath == "" {
		writeError(w, http.StatusNotFound, "proof not found")
		return
	}

	rc, err := h.proofs.Open(r.Context(), *c.PicturePath)
	if errors.Is(err, proof.ErrNotFound) {
		writeError(w, http.StatusNotFound, "proof not found")
		return
	}
	if err != nil {
		h.logger.Error("open proof", "completion_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open proof")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream proof", "completion_id", id, "error", err)
	}
}
