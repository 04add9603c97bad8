// Package router wires the regulator's admin HTTP surface: a small chi
// mux exposing liveness, Prometheus metrics, and a read-only domain
// status listing.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/PuneetDabral/crawlreg/handler"
	appmw "github.com/PuneetDabral/crawlreg/middleware"
)

// New returns a configured chi Router serving the admin endpoints.
func New(admin *handler.Admin, metrics http.Handler, appLogger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(appmw.SecureHeaders)
	r.Use(requestLogger(appLogger))

	r.Get("/healthz", admin.Healthz)
	r.Get("/metrics", metrics.ServeHTTP)

	r.Route("/v1/admin", func(r chi.Router) {
		r.Get("/domains", admin.Domains)
	})

	return r
}

func requestLogger(appLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", chimw.GetReqID(r.Context())).
				Int("status", rw.Status()).
				Dur("duration", time.Since(start)).
				Msg("admin request completed")
		})
	}
}
