package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	apperrors "github.com/sos-echo/platform/pkg/errors"
	"github.com/sos-echo/platform/pkg/logger"
	"github.com/sos-echo/platform/services/case/internal/config"
	"github.com/sos-echo/platform/services/case/internal/metrics"
	"github.com/sos-echo/platform/services/case/internal/model"
)

type contextKey string

const userKey contextKey = "user"

// UserFromContext returns the authenticated user of the request.
func UserFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(userKey).(model.User)
	return u, ok
}

func contextWithUser(ctx context.Context, u model.User) context.Context {
	ctx = context.WithValue(ctx, userKey, u)
	return logger.ContextWithActor(ctx, logger.Actor{ID: u.ID, Role: string(u.Role)})
}

// SessionVerifier resolves a bearer token to a user.
type SessionVerifier interface {
	Verify(token string) (model.User, error)
}

// responseWriter wraps http.ResponseWriter to capture response info.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

// RequestID tags the request context with the inbound X-Request-ID or a new uuid.
func RequestID() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
		})
	}
}

// Logger logs one line per request and records HTTP metrics.
func Logger(base *slog.Logger, collector *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			duration := time.Since(start)
			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			if collector != nil {
				collector.HTTPRequest(r.Method, route, wrapper.statusCode, duration)
			}

			logger.FromContext(r.Context(), base).Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", wrapper.statusCode,
				"duration_ms", duration.Milliseconds(),
				"size", wrapper.bytesWritten,
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// Recovery turns a panic into a 500 response.
func Recovery(base *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.FromContext(r.Context(), base).Error("panic recovered",
						"error", rec,
						"stack", string(debug.Stack()),
						"method", r.Method,
						"path", r.URL.Path,
					)
					respondError(w, r, base, apperrors.Internal("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS applies the configured cross-origin policy and answers preflights.
func CORS(cfg config.CORSConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, o := range cfg.AllowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))
				w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", cfg.MaxAge))
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Auth requires a valid bearer session token and stores its user in the context.
func Auth(sessions SessionVerifier, base *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respondError(w, r, base, apperrors.Unauthorized("missing bearer token"))
				return
			}

			user, err := sessions.Verify(token)
			if err != nil {
				logger.FromContext(r.Context(), base).Debug("session verification failed", "error", err)
				respondError(w, r, base, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
