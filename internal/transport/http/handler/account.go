package handler

import (
	"net/http"

	"github.com/claytile-api/internal/transport/http/middleware"
)

// AccountHandler serves the authenticated area.
type AccountHandler struct{}

func NewAccountHandler() *AccountHandler { return &AccountHandler{} }

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, AccountEnvelope{
		Success:    true,
		Identifier: sess.Identifier,
		ExpiresAt:  sess.ExpiresAt,
	})
}
