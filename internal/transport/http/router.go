package http

import (
	"context"
	"net/http"

	"github.com/claytile-api/internal/application/auth"
	"github.com/claytile-api/internal/application/upload"
	"github.com/claytile-api/internal/config"
	"github.com/claytile-api/internal/transport/http/handler"
	appmiddleware "github.com/claytile-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds background
// work owned by the router, such as limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(appmiddleware.RequestLogger(zap.L()))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: !wildcard(cfg.AllowedOrigins),
		MaxAge:           300,
	}))

	limiter := deps.Limiter
	if limiter == nil {
		limiter = appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst)
	}
	sensitiveRL := appmiddleware.RateLimit(limiter)

	authSvc := auth.NewService(auth.ServiceDeps{
		Codes:      deps.Codes,
		Sessions:   deps.Sessions,
		Mailer:     deps.Mailer,
		SMSSender:  deps.SMSSender,
		Publisher:  deps.Publisher,
		CodeTTL:    cfg.CodeTTL,
		SessionTTL: cfg.SessionTTL,
	})
	uploadSvc := upload.NewService(upload.ServiceDeps{
		Store:     deps.Objects,
		Signer:    deps.Signer,
		Files:     deps.Files,
		Publisher: deps.Publisher,
		Policy: upload.Policy{
			AllowedContentTypes: cfg.Upload.AllowedContentTypes,
			MaxBytes:            cfg.Upload.MaxBytes,
			PartSize:            cfg.Upload.PartSize,
			RandomSuffix:        cfg.Upload.RandomSuffix,
			URLExpiry:           cfg.Upload.URLExpiry,
		},
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc, handler.CookieOptions{
		Secure: cfg.Production(),
		MaxAge: cfg.SessionTTL,
	})
	accountH := handler.NewAccountHandler()
	uploadH := handler.NewUploadHandler(uploadSvc)

	uploadGate := appmiddleware.OptionalSession(authSvc)
	if cfg.Upload.RequireSession {
		uploadGate = appmiddleware.RequireSessionAPI(authSvc)
	}

	r.Get("/health-check/{action}", healthH.Ping)
	r.Post("/health-check/{action}", healthH.Ping)

	r.Route("/api", func(r chi.Router) {
		r.With(sensitiveRL).Post("/auth", authH.RequestCode)
		r.With(sensitiveRL).Post("/auth/verify", authH.VerifyCode)
		r.Post("/auth/logout", authH.Logout)

		r.Group(func(r chi.Router) {
			r.Use(uploadGate)
			r.Post("/uploads/authorize", uploadH.Authorize)
			r.Post("/uploads/complete", uploadH.Complete)
		})
	})

	r.With(appmiddleware.RequireSession(authSvc, cfg.LoginPath)).Get("/account", accountH.Get)

	return r
}

// Credentialed CORS is not allowed with a wildcard origin.
func wildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
