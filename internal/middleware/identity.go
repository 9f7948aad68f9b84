package middleware

// identity.go defines helper functions shared across middleware and handler
// code.  They read the claims JWTAuth stored in the Echo context; when no
// token is present or a claim is missing, the zero value is returned so
// callers can fail their own way.

import (
	"github.com/labstack/echo/v4"

	"github.com/elysium/points-auction/internal/model"
)

// CurrentMember returns the authenticated member name from context, or ""
// when the request carries no valid token.
func CurrentMember(c echo.Context) string {
	if v, ok := c.Get("member").(string); ok {
		return v
	}
	return ""
}

// CurrentRole returns the authenticated role from context, or "" when
// absent.
func CurrentRole(c echo.Context) string {
	if v, ok := c.Get("role").(string); ok {
		return v
	}
	return ""
}

// Identity builds a model.Member from the request context.
func Identity(c echo.Context) model.Member {
	return model.Member{Name: CurrentMember(c), Role: CurrentRole(c)}
}
