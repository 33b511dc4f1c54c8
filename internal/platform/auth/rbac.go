package auth

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireSession rejects anonymous API callers with 401 and answers 503 while
// the session cannot be resolved.
func RequireSession() echo.MiddlewareFunc {
	return RequireRole()
}

// RequireRole returns middleware that checks the session holds one of roles.
// With no roles it only requires an authenticated session.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := SessionFromContext(c.Request().Context())
			switch sess.State {
			case SessionUnresolved:
				c.Response().Header().Set("Retry-After", strconv.Itoa(1))
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session is still being resolved")
			case SessionUnauthenticated:
				return echo.NewHTTPError(http.StatusUnauthorized, "sign in required")
			}
			if len(roles) == 0 {
				return next(c)
			}
			for _, r := range roles {
				if sess.Role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}
