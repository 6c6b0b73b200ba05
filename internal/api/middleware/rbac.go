package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/grafeo/grafeo-api/internal/core/ports"
)

// RequireRole enforces that the authenticated principal holds role. It must
// run after Auth.
func RequireRole(sessions ports.SessionAuthenticator, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := sessions.Authorize(PrincipalFrom(c), role); err != nil {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
