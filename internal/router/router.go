package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/handler"
	"github.com/iliyamo/swimming-pool-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// At the moment it only exposes the health check.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the token endpoints under /api/auth and the
// authenticated /api/me.  limit guards the credential endpoints.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register, limit)
	g.POST("/login", a.Login, limit)
	// Refresh rotates the refresh token; refresh-access keeps it.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/forgot-password", a.ForgotPassword, limit)
	// Logout needs no access token when the body carries a refresh token.
	g.POST("/logout", a.Logout)

	e.GET("/api/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the unauthenticated catalog: pools, membership
// categories and types, and settings.  cache wraps the GETs whose content
// only changes through admin edits.
func RegisterPublic(e *echo.Echo, p *handler.PoolHandler, m *handler.MembershipHandler, s *handler.SettingHandler, cache echo.MiddlewareFunc) {
	pools := e.Group("/api/pools")
	pools.GET("", p.Schedules, cache)
	pools.GET("/status", p.Status, cache)
	// Availability changes with every booking and is never cached.
	pools.GET("/availability", p.Availability)
	pools.GET("/:id/bookings/stats", p.BookingStats)

	e.GET("/api/memberships/categories", m.ListCategories, cache)
	e.GET("/api/memberships/types", m.ListTypes, cache)

	e.GET("/api/settings/:key", s.Get)
}
