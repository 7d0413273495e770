package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"payshield-service/internal/storage"
	"payshield-service/internal/util"
)

// HealthChecker reports reachability of the storage layers.
type HealthChecker interface {
	Check(ctx context.Context) storage.HealthStatus
}

// Sweeper runs one maintenance sweep on demand.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

type RouterOptions struct {
	// RequireTLS rejects plain-HTTP requests.
	RequireTLS bool
	// APIToken, when set, must be presented as a bearer token on /api routes.
	APIToken       string
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Sweeper, when set, is exposed at POST /api/v1/admin/maintenance/sweep.
	Sweeper Sweeper
}

// requireHTTPS rejects any request that wasn't made over TLS
func requireHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUpgradeRequired)
			w.Write([]byte(`{"success":false,"error":"https required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireBearer checks the Authorization header against token in constant time.
func requireBearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"success":false,"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(badges *BadgeHandler, health HealthChecker, opts RouterOptions, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if opts.RequireTLS {
		router.Use(requireHTTPS)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"https://*"}
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(opts.RequestTimeout))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 503 only when postgres is down; a degraded cache still serves reads.
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := health.Check(r.Context())
		code := http.StatusOK
		if !status.Postgres {
			code = http.StatusServiceUnavailable
		}
		badges.respondWithJSON(w, code, status)
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		if opts.APIToken != "" {
			r.Use(requireBearer(opts.APIToken))
		}
		badges.RegisterRoutes(r)
		if opts.Sweeper != nil {
			r.Post("/admin/maintenance/sweep", sweepHandler(opts.Sweeper, badges))
		}
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"error":"endpoint not found"}`))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"success":false,"error":"method not allowed"}`))
	})

	return router
}

func sweepHandler(sweeper Sweeper, badges *BadgeHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		purged, err := sweeper.Sweep(r.Context())
		if err != nil {
			badges.logger.Error("manual maintenance sweep failed", util.ErrorField(err))
			badges.respondWithJSON(w, http.StatusInternalServerError, Response{Error: "maintenance sweep failed"})
			return
		}
		badges.respondWithJSON(w, http.StatusOK, successResponse(map[string]int64{"purged": purged}, "Maintenance sweep completed"))
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					util.String("request_id", middleware.GetReqID(r.Context())),
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
					util.String("user_agent", r.UserAgent()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
