package httptransport

import (
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"bulwark/internal/identity"
	"bulwark/pkg/requestcontext"
)

// RequestContext stamps the request-scoped time, correlation ID, client
// address, and user-agent into the context so guards read them without
// touching net/http.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		ctx = requestcontext.WithRequestID(ctx, uuid.NewString())
		ctx = requestcontext.WithClientIP(ctx, clientIP(r))
		ctx = requestcontext.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate resolves the caller's Identity from a Bearer access token and
// stores the user ID in the context. Requests without a valid token proceed
// unauthenticated; individual handlers decide whether that is acceptable.
func Authenticate(tokens *identity.TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			caller, err := tokens.ParseIdentity(raw)
			if err != nil {
				logger.DebugContext(r.Context(), "access token rejected", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := requestcontext.WithUserID(r.Context(), caller.UserID)
			ctx = withIdentity(ctx, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireServiceKey protects operational endpoints with the configured
// service key. The header is compared in constant time against a bcrypt
// verification so neither length nor prefix leaks.
func RequireServiceKey(keyHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Service-Key")
			// Burn a comparison even when unconfigured or empty so the
			// rejection timing is uniform.
			if keyHash == "" || key == "" {
				subtle.ConstantTimeCompare([]byte(key), []byte(key))
				unauthorized(w, r, logger)
				return
			}
			if err := identity.VerifyServiceKey(key, keyHash); err != nil {
				unauthorized(w, r, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	logger.WarnContext(r.Context(), "service key rejected",
		"request_id", requestcontext.RequestID(r.Context()),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"service key required"}`))
}

// clientIP extracts the originating address, preferring the leftmost
// X-Forwarded-For entry set by the edge proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
