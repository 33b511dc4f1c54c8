package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionConfig configures how a request is resolved to a Session.
type SessionConfig struct {
	Tokens      *TokenIssuer
	Revocations RevocationStore
	CookieName  string
	// LookupTimeout bounds the revocation check. When it elapses the
	// session is unresolved rather than unauthenticated.
	LookupTimeout time.Duration
}

// SessionMiddleware resolves the caller's session on every request and
// stores it in the request context. It never rejects a request; page routes
// and RequireRole decide what an unresolved or anonymous session may see.
func SessionMiddleware(cfg SessionConfig) echo.MiddlewareFunc {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 2 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := ResolveSession(c.Request(), cfg)
			c.Set("session_state", sess.State.String())
			c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), sess)))
			return next(c)
		}
	}
}

// ResolveSession maps a request to a Session:
//   - no token, or a token that fails verification: unauthenticated
//   - revocation check failed or timed out: unresolved
//   - revoked token: unauthenticated
//   - otherwise: authenticated with the token's role
func ResolveSession(r *http.Request, cfg SessionConfig) Session {
	raw := TokenFromRequest(r, cfg.CookieName)
	if raw == "" {
		return Unauthenticated()
	}
	claims, err := cfg.Tokens.Parse(raw)
	if err != nil {
		return Unauthenticated()
	}
	if cfg.Revocations == nil {
		return Authenticated(claims)
	}

	ctx, cancel := context.WithTimeout(r.Context(), cfg.LookupTimeout)
	defer cancel()
	revoked, err := cfg.Revocations.IsRevoked(ctx, claims.ID)
	if err != nil || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Unresolved()
	}
	if revoked {
		return Unauthenticated()
	}
	return Authenticated(claims)
}

// TokenFromRequest reads a Bearer token, falling back to the session cookie.
// Other Authorization schemes are ignored.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookieName == "" {
		return ""
	}
	if ck, err := r.Cookie(cookieName); err == nil {
		return ck.Value
	}
	return ""
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the resolved session. A context that never went
// through SessionMiddleware is treated as unauthenticated.
func SessionFromContext(ctx context.Context) Session {
	if s, ok := ctx.Value(sessionKey).(Session); ok {
		return s
	}
	return Unauthenticated()
}

func AccountIDFromContext(ctx context.Context) string {
	return SessionFromContext(ctx).AccountID
}

func RoleFromContext(ctx context.Context) Role {
	return SessionFromContext(ctx).Role
}
