package handler

import (
	"net/http"

	"github.com/claytile-api/internal/application/upload"
	"github.com/claytile-api/internal/transport/http/middleware"
)

// UploadHandler hands out delegated upload credentials and confirms uploads.
type UploadHandler struct {
	svc upload.Service
}

func NewUploadHandler(svc upload.Service) *UploadHandler {
	return &UploadHandler{svc: svc}
}

func (h *UploadHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req upload.AuthorizeRequest
	if !decode(w, r, &req) {
		return
	}
	var uploadedBy string
	if sess, ok := middleware.SessionFromContext(r.Context()); ok {
		uploadedBy = sess.Identifier
	}
	auth, err := h.svc.Authorize(r.Context(), req, uploadedBy)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auth)
}

func (h *UploadHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req upload.CompleteRequest
	if !decode(w, r, &req) {
		return
	}
	file, err := h.svc.Complete(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}
