package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"markbook/backend/internal/auth"
	"markbook/backend/internal/gateway/util"
)

// RequestLogger writes one structured access log line per request
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				event := logger.Info()
				switch {
				case status >= 500:
					event = logger.Error()
				case status >= 400:
					event = logger.Warn()
				}

				event.
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("http request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware authenticates the caller and stores the principal in the request context.
// No credential is 401; a malformed, expired or revoked one is 400.
func AuthMiddleware(authService *auth.AuthService, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Extract Token
			tokenStr, err := util.ExtractToken(r, cookieName)
			if err != nil {
				if errors.Is(err, util.ErrNoToken) {
					util.WriteJSONError(w, http.StatusUnauthorized, auth.MsgNoToken)
					return
				}
				util.WriteJSONError(w, http.StatusBadRequest, auth.MsgInvalidToken)
				return
			}

			// 2. Verify
			principal, err := authService.VerifyToken(r.Context(), tokenStr)
			if err != nil {
				util.HandleGRPCError(w, err)
				return
			}

			// 3. Inject principal into context
			next.ServeHTTP(w, r.WithContext(util.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole rejects callers whose role does not satisfy required.
// Must run after AuthMiddleware.
func RequireRole(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := util.PrincipalFrom(r.Context())
			if !ok {
				util.WriteJSONError(w, http.StatusUnauthorized, auth.MsgNoToken)
				return
			}
			if !auth.Allows(required, principal.Role) {
				util.WriteJSONError(w, http.StatusForbidden, auth.MsgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
