package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorechart/internal/auth"
	"github.com/dukerupert/chorechart/internal/chore"
	"github.com/dukerupert/chorechart/internal/middleware"
	"github.com/dukerupert/chorechart/internal/model"
	"github.com/dukerupert/chorechart/internal/store"
	"github.com/dukerupert/chorechart/internal/websocket"
	"github.com/shopspring/decimal"
)

// UserHandler serves household members and their balances.
type UserHandler struct {
	users  *store.UserStore
	svc    *chore.Service
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewUserHandler(us *store.UserStore, svc *chore.Service, hub *websocket.Hub, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: us, svc: svc, hub: hub, logger: logger}
}

func (h *UserHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// Children handles GET /api/children.
func (h *UserHandler) Children(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListByType(model.UserTypeChild)
	if err != nil {
		h.logger.Error("list children", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	u, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type balanceResponse struct {
	ChildID     int64           `json:"child_id"`
	Balance     decimal.Decimal `json:"balance"`
	TotalEarned decimal.Decimal `json:"total_earned"`
}

// Balance handles GET /api/users/{id}/balance.
func (h *UserHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	balance, err := h.svc.Balance(id)
	switch {
	case errors.Is(err, chore.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
		return
	case errors.Is(err, chore.ErrNotChild):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.logger.Error("get balance", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get balance")
		return
	}

	earned, err := h.users.TotalEarned(id)
	if err != nil {
		h.logger.Error("total earned", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get balance")
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{ChildID: id, Balance: balance, TotalEarned: earned})
}

// Balances handles GET /api/children/balances, the parent dashboard summary.
func (h *UserHandler) Balances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.users.ListChildBalances()
	if err != nil {
		h.logger.Error("list child balances", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list balances")
		return
	}
	if balances == nil {
		balances = []model.ChildBalance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

// VerifyPIN handles POST /api/parents/verify-pin so a client can unlock the
// parent screens before sending the PIN with each request.
func (h *UserHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		PIN  string `json:"pin"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = middleware.DefaultParentName
	}

	parent, err := h.users.ValidateParentPIN(strings.TrimSpace(req.Name), req.PIN)
	if err != nil {
		h.logger.Error("validate parent pin", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check PIN")
		return
	}
	if parent == nil {
		writeError(w, http.StatusUnauthorized, "incorrect PIN")
		return
	}
	writeOK(w, http.StatusOK, "PIN verified", parent)
}

type createUserRequest struct {
	Name string         `json:"name"`
	Type model.UserType `json:"type"`
	PIN  string         `json:"pin"`
}

// Create handles POST /api/users (parent only).
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Type != model.UserTypeChild && req.Type != model.UserTypeParent {
		writeError(w, http.StatusBadRequest, "type must be CHILD or PARENT")
		return
	}
	if req.Type == model.UserTypeParent && !auth.ValidPIN(req.PIN) {
		writeError(w, http.StatusBadRequest, "parents need a 4 digit PIN")
		return
	}
	if req.Type == model.UserTypeChild {
		req.PIN = ""
	}

	u, err := h.users.Create(req.Name, req.Type, req.PIN)
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.logger.Info("user created", "user_id", u.ID, "type", u.Type, "by", auth.ParentID(r.Context()))
	h.broadcast(websocket.StatusMessage("user", "created", u.ID, "User added successfully"))
	writeOK(w, http.StatusCreated, "User added successfully", u)
}

// SetPIN handles PUT /api/users/{id}/pin (parent only).
func (h *UserHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	u, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if u.IsChild() {
		writeError(w, http.StatusUnprocessableEntity, "only parents have a PIN")
		return
	}

	if err := h.users.SetPIN(id, req.PIN); err != nil {
		if errors.Is(err, auth.ErrInvalidPIN) {
			writeError(w, http.StatusBadRequest, "PIN must be exactly 4 digits")
			return
		}
		h.logger.Error("set pin", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set PIN")
		return
	}
	writeOK(w, http.StatusOK, "PIN updated", nil)
}

// Delete handles DELETE /api/users/{id} (parent only). The user's
// completions and devices go with them.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if id == auth.ParentID(r.Context()) {
		writeError(w, http.StatusConflict, "cannot delete yourself")
		return
	}

	u, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := h.users.Delete(id); err != nil {
		h.logger.Error("delete user", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	h.broadcast(websocket.StatusMessage("user", "deleted", id, "User deleted successfully"))
	writeOK(w, http.StatusOK, "User deleted successfully", nil)
}
