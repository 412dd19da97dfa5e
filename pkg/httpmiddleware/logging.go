package httpmiddleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// InjectLogger stores lg as the request logger, tagged with the request id
// when RequestID ran before it.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := lg
			if id := RequestIDFromContext(r.Context()); id != "" {
				l = l.With(zap.String("request_id", id))
			}
			next.ServeHTTP(w, r.WithContext(zctx.Base(r.Context(), l)))
		})
	}
}

// LogRequests logs one line per request with the matched chi route pattern.
// Server errors are logged at error level and client errors at warn level.
func LogRequests() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Pre-seed the routing context so the pattern is still readable
			// after the router returns.
			rctx := chi.NewRouteContext()
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := rctx.RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", sw.status),
				zap.Int64("bytes", sw.written),
				zap.Duration("duration", time.Since(start)),
			}

			lg := zctx.From(r.Context())
			switch {
			case sw.status >= http.StatusInternalServerError:
				lg.Error("Request", fields...)
			case sw.status >= http.StatusBadRequest:
				lg.Warn("Request", fields...)
			default:
				lg.Info("Request", fields...)
			}
		})
	}
}

// Recovery turns a handler panic into a logged 500 response.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				zctx.From(r.Context()).Error("Handler panicked",
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				w.Header().Set("Connection", "close")
				WriteError(w, http.StatusInternalServerError, "internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
