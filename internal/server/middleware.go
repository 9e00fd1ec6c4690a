package server

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/sautiksau/bookingsync/internal/instrumentation"
)

// AdminPasswordHeader carries the admin password.
const AdminPasswordHeader = "X-Admin-Password"

var errAdminUnauthorized = errors.New("invalid admin password")

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observeMiddleware records request metrics and a span per route.
func (a *API) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := routeTemplate(r)

		ctx, span := instrumentation.StartSpan(r.Context(), r.Method+" "+route)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		duration := time.Since(start)
		a.metrics.RecordHTTPRequest(ctx, r.Method, route, rec.status, duration)
		a.logger.Debug("request served",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", rec.status),
			slog.Duration("duration", duration))
	})
}

// recoverMiddleware turns handler panics into 500 responses.
func (a *API) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				a.logger.Error("panic in handler",
					slog.Any("panic", v),
					slog.String("stack", string(debug.Stack())))
				respondError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// adminMiddleware rejects requests without a valid admin password.
func (a *API) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.checkAdmin(r.Header.Get(AdminPasswordHeader)) {
			a.unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// unauthorized audits a failed authentication and responds 401.
func (a *API) unauthorized(w http.ResponseWriter, r *http.Request) {
	action := instrumentation.NewAdminAction(instrumentation.AuditAuthFailure, r.RemoteAddr).
		WithTarget(routeTemplate(r)).
		WithSpanContext(r.Context())
	a.audit.Log(r.Context(), action.Complete(errAdminUnauthorized))
	respondError(w, http.StatusUnauthorized, "unauthorized")
}

func (a *API) checkAdmin(password string) bool {
	if len(a.adminHash) == 0 || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.adminHash, []byte(password)) == nil
}

// routeTemplate returns the matched route template so metric labels stay
// bounded.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
