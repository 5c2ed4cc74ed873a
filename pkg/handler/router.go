package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/metrics"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

type ctxKey struct{}

type RouterConfig struct {
	CORSAllowedOrigins []string
	// RateLimitRequests is the number of photo submissions allowed per client per minute.
	RateLimitRequests int
}

func NewRouter(h Handler, cfg RouterConfig, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID(log))
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Range", "X-Return-Audio", requestIDHeader},
		ExposedHeaders: []string{
			"X-Track-Title", "X-Track-Artist", "X-Track-Album", "X-Track-Cover",
			"Content-Range", "Content-Length", "Accept-Ranges", requestIDHeader,
		},
		MaxAge: 86400,
	}))

	r.With(httprate.LimitByRealIP(cfg.RateLimitRequests, time.Minute)).Post("/", h.Recommend)
	r.Get("/songs", h.ListSongs)
	r.Get("/songs/{name}", h.ServeSong)
	r.Get("/secondaryfornow", h.Secondary)

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Get("/stats", h.Stats)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// RequestID returns the id assigned to the request, or "" outside a routed request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func requestID(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				v4, err := uuid.NewV4()
				if err != nil {
					log.Warn("Failed to generate request id", zap.Error(err))
				} else {
					id = v4.String()
				}
			}

			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
		})
	}
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
	})
}
