package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/claytile-api/internal/domain"
	"go.uber.org/zap"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Envelope is the {success, error} wrapper every auth endpoint returns.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AccountEnvelope wraps the current session for the account area.
type AccountEnvelope struct {
	Success    bool   `json:"success"`
	Identifier string `json:"identifier"`
	ExpiresAt  int64  `json:"expires_at"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Success: false, Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// httpError maps a service error to a status. 5xx bodies never carry the
// underlying detail; it is logged instead.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, domain.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, domain.ErrInvalidCode.Error())
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad request")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrDelivery):
		writeError(w, http.StatusInternalServerError, domain.ErrDelivery.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		zap.L().Error("storage not configured", zap.String("path", r.URL.Path))
		writeError(w, http.StatusInternalServerError, domain.ErrStorageUnavailable.Error())
	default:
		zap.L().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
