package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/chorechart/internal/auth"
	"github.com/dukerupert/chorechart/internal/model"
)

const (
	ParentNameHeader  = "X-Parent-Name"
	ParentPINHeader   = "X-Parent-PIN"
	DefaultParentName = "Parent"
)

// PINValidator looks up the parent matching a name and PIN.
type PINValidator interface {
	ValidateParentPIN(name, pin string) (*model.User, error)
}

// RequireParent admits requests carrying a valid parent PIN and puts the
// parent in the request context.
func RequireParent(users PINValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := strings.TrimSpace(r.Header.Get(ParentNameHeader))
			if name == "" {
				name = DefaultParentName
			}
			pin := r.Header.Get(ParentPINHeader)
			if pin == "" {
				writeStatus(w, http.StatusUnauthorized, "Error: parent PIN required")
				return
			}

			parent, err := users.ValidateParentPIN(name, pin)
			if err != nil {
				writeStatus(w, http.StatusInternalServerError, "Error: failed to check PIN")
				return
			}
			if parent == nil {
				writeStatus(w, http.StatusUnauthorized, "Error: invalid parent PIN")
				return
			}

			ctx := auth.WithParent(r.Context(), auth.Parent{UserID: parent.ID, Name: parent.Name})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
