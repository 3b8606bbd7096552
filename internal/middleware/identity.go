package middleware

// identity.go holds the context keys written by JWTAuth and the accessors
// that handlers and the rate limiter use to read them back.

import "github.com/labstack/echo/v4"

const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxRole     = "role"
)

// UserID returns the authenticated user's id.  ok is false on routes that
// are not wrapped by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id > 0
}

// Role returns the role claim of the authenticated user, or "".
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// Username returns the username claim of the authenticated user, or "".
func Username(c echo.Context) string {
	u, _ := c.Get(ctxUsername).(string)
	return u
}
