package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/solar-bridge/internal/pairing"
)

const claimsKey ctxKey = iota + 1

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// claimsFromContext returns the authenticated controller, or nil on routes
// that let unpaired requests through.
func claimsFromContext(ctx context.Context) *pairing.Claims {
	c, _ := ctx.Value(claimsKey).(*pairing.Claims) //nolint:errcheck // absent means anonymous
	return c
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="solarbridge"`)
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// requireController rejects requests without a token issued to a
// currently paired controller.
func (s *Server) requireController(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.pairing == nil {
			writeUnavailable(w, "pairing is disabled")
			return
		}
		raw := bearerToken(r)
		if raw == "" {
			writeUnauthorized(w, "controller token required")
			return
		}
		claims, err := s.pairing.Authenticate(r.Context(), raw)
		if err != nil {
			if !errors.Is(err, pairing.ErrTokenInvalid) && !errors.Is(err, pairing.ErrTokenRevoked) {
				s.logger.Error("authenticating controller failed", "error", err)
				writeInternalError(w, "failed to authenticate")
				return
			}
			s.logger.Debug("controller token rejected", "request_id", requestID(r.Context()), "error", err)
			writeUnauthorized(w, "invalid or revoked controller token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// requireAdmin is requireController restricted to admin controllers.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return s.requireController(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := claimsFromContext(r.Context()); c == nil || !c.Admin {
			writeDomainError(w, pairing.ErrNotAdmin)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// unlessUnpaired applies mw only once a controller is paired. Before that
// the accessory is open for the first pairing and for identify.
func (s *Server) unlessUnpaired(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		guarded := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.pairing == nil || !s.pairing.Paired() {
				next.ServeHTTP(w, r)
				return
			}
			guarded.ServeHTTP(w, r)
		})
	}
}
