package echoapi

import (
	"github.com/labstack/echo/v4"
)

// adminMiddleware admits admins and superusers and resolves their grade scope
// once, for all downstream handlers.
func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !claims.IsAdmin() {
				return errHttpForbidden
			}
			ctx.Set(scopeContextKey, claims.Scope())
			return next(ctx)
		}
	}
}

// superuserMiddleware admits superusers only.
func superuserMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !claims.IsSuperuser() {
				return errHttpForbidden
			}
			ctx.Set(scopeContextKey, claims.Scope())
			return next(ctx)
		}
	}
}
