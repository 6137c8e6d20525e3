package handler

import (
	"net/http"
	"time"

	"github.com/claytile-api/internal/application/auth"
	"github.com/claytile-api/internal/transport/http/middleware"
)

// CookieOptions controls the session cookie attributes.
type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

// AuthHandler handles the passcode login endpoints.
type AuthHandler struct {
	svc    auth.Service
	cookie CookieOptions
}

func NewAuthHandler(svc auth.Service, cookie CookieOptions) *AuthHandler {
	return &AuthHandler{svc: svc, cookie: cookie}
}

func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req auth.RequestCodeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.RequestCode(r.Context(), req); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true})
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyCodeRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := h.svc.VerifyCode(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	http.SetCookie(w, h.sessionCookie(sess.Token, int(h.cookie.MaxAge/time.Second)))
	writeJSON(w, http.StatusOK, Envelope{Success: true})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(middleware.CookieName); err == nil {
		if err := h.svc.Logout(r.Context(), c.Value); err != nil {
			httpError(w, r, err)
			return
		}
	}
	http.SetCookie(w, h.sessionCookie("", -1))
	writeJSON(w, http.StatusOK, Envelope{Success: true})
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
