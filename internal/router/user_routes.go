package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/handler"
	"github.com/iliyamo/swimming-pool-reservation/internal/middleware"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// UserHandlers bundles the handlers reachable by any signed-in account.
type UserHandlers struct {
	User         *handler.UserHandler
	Reservations *handler.ReservationHandler
	Lockers      *handler.LockerHandler
	Memberships  *handler.MembershipHandler
	Payments     *handler.PaymentHandler
}

// RegisterUser registers the self-service endpoints.  All routes require a
// valid JWT; state changing ones also pass through limit.  Payment
// confirmation lives here too but is restricted to admins.
func RegisterUser(e *echo.Echo, h UserHandlers, jwtSecret string, limit echo.MiddlewareFunc) {
	auth := middleware.JWTAuth(jwtSecret)
	admin := middleware.RequireRole(model.RoleAdmin)

	u := e.Group("/api/user", auth)
	u.GET("/profile", h.User.GetProfile)
	u.PUT("/profile", h.User.UpdateProfile)
	u.PUT("/change-password", h.User.ChangePassword, limit)
	u.POST("/profile/photo", h.User.UploadPhoto, limit)
	u.GET("/dashboard", h.User.Dashboard)
	u.GET("/reservations", h.User.ListReservations)
	u.GET("/notifications", h.User.ListNotifications)
	u.PUT("/notifications/:id/read", h.User.MarkNotificationRead)

	r := e.Group("/api/reservations", auth)
	r.POST("", h.Reservations.Create, limit)
	r.GET("/user", h.Reservations.ListMine)
	r.DELETE("/:id", h.Reservations.Cancel, limit)

	l := e.Group("/api/lockers", auth)
	l.GET("/available", h.Lockers.Available)
	l.GET("/reservations/user", h.Lockers.ListMine)
	l.GET("/:id/reservation", h.Lockers.ReservationOnDate)
	l.POST("/reservations", h.Lockers.Create, limit)
	l.DELETE("/reservations/:id", h.Lockers.Cancel, limit)

	m := e.Group("/api/memberships", auth)
	m.POST("/purchase", h.Memberships.Purchase, limit)
	m.GET("/me", h.Memberships.Mine)

	p := e.Group("/api/payments", auth)
	p.GET("/user", h.Payments.ListMine)
	p.GET("/:id/receipt", h.Payments.Receipt)
	p.POST("/:id/upload-slip", h.Payments.UploadSlip, limit)
	p.PUT("/:id/confirm", h.Payments.Confirm, admin)
	p.PUT("/bulk-update", h.Payments.BulkUpdate, admin)
}
