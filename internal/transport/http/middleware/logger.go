package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request with status, size and latency.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
					zap.String("ip", realIP(r)),
				}
				if id := chimiddleware.GetReqID(r.Context()); id != "" {
					fields = append(fields, zap.String("request_id", id))
				}
				switch {
				case ww.Status() >= 500:
					log.Error("request", fields...)
				case ww.Status() >= 400:
					log.Warn("request", fields...)
				default:
					log.Info("request", fields...)
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
