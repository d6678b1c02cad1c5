package server

import (
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/harbz07/mindbridge-router/internal/core"
)

// AuthMiddleware validates the gateway bearer token on every route except
// the listed skip paths. Authentication is decided before any routing work:
// a request that fails here never reaches a provider adapter.
func AuthMiddleware(apiKey string, skipPaths []string) echo.MiddlewareFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := skip[c.Request().URL.Path]; ok {
				return next(c)
			}

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return unauthorized(c, "missing authorization header")
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				return unauthorized(c, "invalid authorization header format, expected 'Bearer <token>'")
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				return unauthorized(c, "invalid api key")
			}
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, message string) error {
	gerr := core.NewUnauthenticatedError(message)
	return c.JSON(gerr.HTTPStatusCode(), gerr.ToJSON())
}
