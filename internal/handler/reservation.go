package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
	"github.com/iliyamo/swimming-pool-reservation/internal/service"
)

// ReservationHandler serves pool reservations for users and admins.
type ReservationHandler struct {
	Booking      *service.BookingService
	Reservations *repository.ReservationRepo
	Log          logger.ILogger
}

type reservationReq struct {
	PoolID          uint64  `json:"pool_resource_id" validate:"required"`
	ReservationDate string  `json:"reservation_date" validate:"required"`
	StartTime       string  `json:"start_time" validate:"required"`
	EndTime         string  `json:"end_time" validate:"required"`
	Notes           *string `json:"notes"`
	PaymentMethod   string  `json:"payment_method"`
	Amount          float64 `json:"amount" validate:"gte=0"`
}

func (r reservationReq) input() service.PoolReservationInput {
	return service.PoolReservationInput{
		PoolID:        r.PoolID,
		Date:          r.ReservationDate,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Notes:         r.Notes,
		Amount:        r.Amount,
		PaymentMethod: r.PaymentMethod,
	}
}

// Create handles POST /api/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req reservationReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	res, err := h.Booking.CreatePoolReservation(c.Request().Context(), uid, req.input())
	if err != nil {
		return respondError(c, h.Log, "booking", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":       "Reservation created successfully",
		"reservationId": res.ReservationID,
		"paymentId":     res.PaymentID,
	})
}

// ListMine handles GET /api/reservations/user.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Reservations.ListByUser(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, "booking", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

// Cancel handles DELETE /api/reservations/:id for the owner.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	if err := h.Booking.CancelPoolReservation(c.Request().Context(), uid, id); err != nil {
		return respondError(c, h.Log, "booking", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Reservation cancelled successfully"})
}

// ----- admin -----

func (h *ReservationHandler) AdminList(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Reservations.ListAll(ctx)
	if err != nil {
		return respondError(c, h.Log, "booking", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

type adminReservationReq struct {
	reservationReq
	UserID uint64 `json:"user_id" validate:"required"`
	Status string `json:"status" validate:"omitempty,oneof=pending confirmed"`
}

// AdminCreate books on behalf of a user through the same capacity checks
// as a self-service booking.
func (h *ReservationHandler) AdminCreate(c echo.Context) error {
	var req adminReservationReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	in := req.input()
	in.Status = req.Status
	res, err := h.Booking.CreatePoolReservation(c.Request().Context(), req.UserID, in)
	if err != nil {
		return respondError(c, h.Log, "booking", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":       "Reservation created",
		"reservationId": res.ReservationID,
		"paymentId":     res.PaymentID,
	})
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

func (h *ReservationHandler) AdminUpdateStatus(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var req statusReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	if err := h.Booking.UpdateReservationStatus(c.Request().Context(), id, req.Status); err != nil {
		return respondError(c, h.Log, "booking", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Reservation updated", "id": id, "status": req.Status})
}
