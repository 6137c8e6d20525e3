package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/claytile-api/internal/domain"
	"go.uber.org/zap"
)

type contextKey string

const sessionKey contextKey = "session"

// CookieName carries the opaque session token.
const CookieName = "auth-token"

// Authenticator resolves a session token to a live session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
}

// RequireSession gates browser routes: requests without a live session are
// redirected to loginPath with login=required.
func RequireSession(a Authenticator, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := authenticate(r, a)
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthorized) {
					zap.L().Error("session lookup failed", zap.Error(err))
					writeJSONError(w, http.StatusInternalServerError, "internal server error")
					return
				}
				http.Redirect(w, r, loginRedirect(loginPath), http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// RequireSessionAPI gates JSON routes with a 401 instead of a redirect.
func RequireSessionAPI(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := authenticate(r, a)
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthorized) {
					zap.L().Error("session lookup failed", zap.Error(err))
					writeJSONError(w, http.StatusInternalServerError, "internal server error")
					return
				}
				writeJSONError(w, http.StatusUnauthorized, "login required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// OptionalSession attaches the session when one is present and live, and
// lets the request through either way.
func OptionalSession(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sess, err := authenticate(r, a); err == nil {
				r = r.WithContext(WithSession(r.Context(), sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(r *http.Request, a Authenticator) (*domain.Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, domain.ErrUnauthorized
	}
	return a.Authenticate(r.Context(), c.Value)
}

func loginRedirect(loginPath string) string {
	u, err := url.Parse(loginPath)
	if err != nil {
		return "/?login=required"
	}
	q := u.Query()
	q.Set("login", "required")
	u.RawQuery = q.Encode()
	return u.String()
}

// WithSession stores sess in ctx.
func WithSession(ctx context.Context, sess *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext extracts the session placed by one of the gates.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*domain.Session)
	return s, ok
}
