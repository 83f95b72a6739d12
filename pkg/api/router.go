package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ankisyncd/ankisyncd-go/internal/logger"
)

// NewRouter builds the sync server's HTTP router: a thin middleware stack in
// front of the Request Dispatcher, plus a health endpoint and, when metrics
// is non-nil, a Prometheus scrape endpoint.
func NewRouter(deps *Deps, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	dispatcher := NewDispatcher(deps)
	r.Handle("/*", dispatcher)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debugf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
