package http

import (
	"github.com/claytile-api/internal/application/auth"
	"github.com/claytile-api/internal/application/upload"
	appmiddleware "github.com/claytile-api/internal/transport/http/middleware"
)

// Deps holds all infrastructure dependencies for the router. Codes and
// Sessions are required; a nil Objects or Signer leaves the upload endpoints
// answering "storage not configured", and a nil Limiter falls back to an
// in-memory per-IP limiter.
type Deps struct {
	Codes     auth.CodeStore
	Sessions  auth.SessionStore
	Files     upload.FileStore
	Mailer    auth.Mailer
	SMSSender auth.SMSSender
	Publisher auth.Publisher
	Objects   upload.ObjectStore
	Signer    upload.GrantSigner
	Limiter   appmiddleware.Limiter
}
