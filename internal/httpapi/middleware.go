package httpapi

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"deliveryTracking/internal/apperr"
	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/logger"
)

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := log.WithFields(r.Context(), map[string]any{
				"request_id": chimw.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))
			log.Debug(log.WithFields(ctx, map[string]any{
				"status":      ww.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
			}), "http request")
		})
	}
}

func recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					writeError(r.Context(), log, w, apperr.Newf(apperr.CodeInternal, "panic: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate requires a valid bearer token and stores its principal.
func authenticate(v auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ParseBearer(r.Header.Get("Authorization"))
			if err == nil && token == "" {
				err = apperr.New(apperr.CodeAuthentication, "missing bearer token")
			}
			var p *auth.Principal
			if err == nil {
				p, err = auth.Authenticate(v, token)
			}
			if err != nil {
				writeError(r.Context(), nil, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.RequireAdmin(r.Context()); err != nil {
			writeError(r.Context(), nil, w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := auth.RequirePrincipal(r.Context())
			if err == nil {
				err = auth.RequireRole(p, roles...)
			}
			if err != nil {
				writeError(r.Context(), nil, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
