package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/handler"
	"github.com/iliyamo/swimming-pool-reservation/internal/middleware"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// AdminHandlers bundles the handlers of the back office.
type AdminHandlers struct {
	Admin        *handler.AdminHandler
	Pools        *handler.PoolHandler
	Reservations *handler.ReservationHandler
	Lockers      *handler.LockerHandler
	Memberships  *handler.MembershipHandler
	Payments     *handler.PaymentHandler
	Settings     *handler.SettingHandler
}

// RegisterAdmin registers the admin API under /api/admin.  Every route
// requires a valid JWT and the admin role.
func RegisterAdmin(e *echo.Echo, h AdminHandlers, jwtSecret string) {
	g := e.Group(
		"/api/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/dashboard", h.Admin.Dashboard)

	g.GET("/users", h.Admin.ListUsers)
	g.POST("/users", h.Admin.CreateUser)
	g.PUT("/users/:id", h.Admin.UpdateUser)
	g.DELETE("/users/:id", h.Admin.DeleteUser)
	g.POST("/users/:id/extend-membership", h.Memberships.Extend)

	g.GET("/reservations", h.Reservations.AdminList)
	g.POST("/reservations", h.Reservations.AdminCreate)
	g.PUT("/reservations/:id", h.Reservations.AdminUpdateStatus)

	g.GET("/pools", h.Pools.AdminList)
	g.POST("/pools", h.Pools.Create)
	g.PUT("/pools/:id", h.Pools.Update)
	g.GET("/pools/:id/schedule", h.Pools.GetSchedule)
	g.PUT("/pools/:id/schedule", h.Pools.PutSchedule)

	g.GET("/settings", h.Settings.List)
	g.PUT("/settings", h.Settings.BulkPut)
	g.PUT("/settings/:key", h.Settings.Put)

	g.GET("/membership-types", h.Memberships.ListTypes)
	g.POST("/membership-types", h.Memberships.CreateType)
	g.PUT("/membership-types/:id", h.Memberships.UpdateType)

	g.GET("/memberships", h.Memberships.AdminList)
	g.GET("/memberships/pending", h.Memberships.Pending)
	g.GET("/memberships/:id", h.Memberships.Get)
	g.PUT("/memberships/:id", h.Memberships.Update)
	g.PUT("/memberships/:id/approve", h.Memberships.Approve)
	g.PUT("/memberships/:id/reject", h.Memberships.Reject)
	g.DELETE("/memberships/:id", h.Memberships.Delete)

	g.GET("/lockers", h.Lockers.AdminLockers)
	g.POST("/lockers", h.Lockers.CreateLocker)
	g.PUT("/lockers/:id", h.Lockers.UpdateLocker)
	g.DELETE("/lockers/:id", h.Lockers.DeleteLocker)
	g.GET("/locker-reservations", h.Lockers.AdminReservations)
	g.PUT("/locker-reservations/:id", h.Lockers.Review)
	g.DELETE("/locker-reservations/:id", h.Lockers.DeleteReservation)

	g.GET("/payments", h.Payments.AdminList)
	g.PUT("/payments/:id/confirm", h.Payments.Confirm)
	g.PUT("/payments/bulk-update", h.Payments.BulkUpdate)

	g.GET("/notifications", h.Admin.ListNotifications)
	g.POST("/notifications", h.Admin.CreateNotification)
	g.DELETE("/notifications/:id", h.Admin.DeleteNotification)

	g.GET("/user-categories", h.Memberships.ListCategories)
	g.PUT("/user-categories/:id", h.Memberships.UpdateCategory)
}
