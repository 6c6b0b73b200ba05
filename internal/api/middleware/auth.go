package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/grafeo/grafeo-api/internal/api/metrics"
	"github.com/grafeo/grafeo-api/internal/core/domain"
	"github.com/grafeo/grafeo-api/internal/core/ports"
)

// PrincipalKey is the echo context key holding the *domain.Principal.
const PrincipalKey = "principal"

// Auth validates the bearer token, reloads the identity it names and injects
// the principal into the context.
func Auth(sessions ports.SessionAuthenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				metrics.SessionRejectionsTotal.WithLabelValues("missing").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				metrics.SessionRejectionsTotal.WithLabelValues("invalid").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			principal, err := sessions.Authenticate(c.Request().Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				return rejection(err)
			}

			c.Set(PrincipalKey, principal)
			return next(c)
		}
	}
}

func rejection(err error) error {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		metrics.SessionRejectionsTotal.WithLabelValues("expired").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, "token expired").SetInternal(err)
	case errors.Is(err, domain.ErrTokenInvalid):
		metrics.SessionRejectionsTotal.WithLabelValues("invalid").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token").SetInternal(err)
	case errors.Is(err, domain.ErrPrincipalNotFound):
		metrics.SessionRejectionsTotal.WithLabelValues("principal_not_found").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, "account no longer exists").SetInternal(err)
	}
	return err
}

// PrincipalFrom returns the principal injected by Auth, or nil.
func PrincipalFrom(c echo.Context) *domain.Principal {
	p, _ := c.Get(PrincipalKey).(*domain.Principal)
	return p
}
