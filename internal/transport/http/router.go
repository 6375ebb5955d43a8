package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"quizroom-service/internal/app"
	"quizroom-service/internal/metrics"
)

// NewRouter mounts the room socket, the solo session API, practice question
// sets, room reads, health and metrics.
func NewRouter(registry *app.Registry, solo *app.SoloService, wsOpts WSOptions, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	ws := NewWSHandler(registry, wsOpts, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws.ServeWS)

	soloHandler := NewSoloHandler(solo, log)
	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/quiz", soloHandler.Routes)
		api.Post("/questions/generate", soloHandler.handlePractice)
		api.Route("/rooms", NewRoomHandler(registry, log).Routes)
	})
	return r
}

// requestLogger logs each request and records it in the HTTP metrics under
// its route pattern.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			metrics.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("elapsed", elapsed),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
