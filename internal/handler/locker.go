package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
	"github.com/iliyamo/swimming-pool-reservation/internal/service"
)

// LockerHandler serves lockers and locker reservations.
type LockerHandler struct {
	Booking            *service.BookingService
	Lockers            *repository.LockerRepo
	LockerReservations *repository.LockerReservationRepo
	Log                logger.ILogger
}

// Available handles GET /api/lockers/available?date=.  With a date only
// lockers free on that day are listed.
func (h *LockerHandler) Available(c echo.Context) error {
	date := c.QueryParam("date")
	if date != "" && !validDate(date) {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Lockers.Available(ctx, date)
	if err != nil {
		return respondError(c, h.Log, "locker", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"lockers": list})
}

// ReservationOnDate handles GET /api/lockers/:id/reservation?date= (admin).
func (h *LockerHandler) ReservationOnDate(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid locker id")
	}
	date := c.QueryParam("date")
	if date == "" {
		return badRequest(c, "Date parameter is required")
	}
	if !validDate(date) {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	v, err := h.LockerReservations.GetForLockerDate(ctx, id, date)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "No reservation found for this locker on the specified date")
		}
		return respondError(c, h.Log, "locker", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": v})
}

func (h *LockerHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.LockerReservations.ListByUser(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, "locker", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

type lockerReservationReq struct {
	LockerID        uint64  `json:"locker_id" form:"locker_id" validate:"required"`
	ReservationDate string  `json:"reservation_date" form:"reservation_date" validate:"required"`
	PaymentMethod   string  `json:"payment_method" form:"payment_method" validate:"required"`
	Amount          float64 `json:"amount" form:"amount" validate:"gte=0"`
}

// Create handles POST /api/lockers/reservations as JSON or as a multipart
// form carrying a "slip" file.
func (h *LockerHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req lockerReservationReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	slip, closer, msg := formUpload(c, "slip")
	if msg != "" {
		return badRequest(c, msg)
	}
	if closer != nil {
		defer closer.Close()
	}

	res, err := h.Booking.CreateLockerReservation(c.Request().Context(), uid, service.LockerReservationInput{
		LockerID:      req.LockerID,
		Date:          req.ReservationDate,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Amount:        req.Amount,
		Slip:          slip,
	})
	if err != nil {
		return respondError(c, h.Log, "locker", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":            "Locker reserved successfully",
		"reservation_id":     res.ReservationID,
		"paymentId":          res.PaymentID,
		"reservation_status": res.Status,
		"payment_status":     res.PaymentStatus,
		"amount":             res.Amount,
		"slip_url":           res.SlipURL,
	})
}

func (h *LockerHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	if err := h.Booking.CancelLockerReservation(c.Request().Context(), uid, id); err != nil {
		return respondError(c, h.Log, "locker", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Reservation cancelled successfully"})
}

// ----- admin -----

// AdminLockers lists every locker.  With ?date= each locker carries
// whether it is reserved that day.
func (h *LockerHandler) AdminLockers(c echo.Context) error {
	date := c.QueryParam("date")
	if date != "" && !validDate(date) {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Lockers.List(ctx, date)
	if err != nil {
		return respondError(c, h.Log, "locker", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"lockers": list})
}

type lockerReq struct {
	Code     string `json:"code" validate:"required,max=30"`
	Location string `json:"location" validate:"max=100"`
	Status   string `json:"status" validate:"omitempty,oneof=available maintenance unavailable"`
}

func (r lockerReq) model() model.Locker {
	status := r.Status
	if status == "" {
		status = model.LockerAvailable
	}
	return model.Locker{Code: strings.TrimSpace(r.Code), Location: strings.TrimSpace(r.Location), Status: status}
}

func (h *LockerHandler) CreateLocker(c echo.Context) error {
	var req lockerReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	l := req.model()
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Lockers.Create(ctx, &l); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"message": "Locker code already exists"})
		}
		return respondError(c, h.Log, "locker", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Locker created", "locker": l})
}

func (h *LockerHandler) UpdateLocker(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid locker id")
	}
	var req lockerReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	l := req.model()
	l.ID = id
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Lockers.Update(ctx, l); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"message": "Locker code already exists"})
		case errors.Is(err, repository.ErrNotFound):
			return notFoundMsg(c, "Locker not found")
		}
		return respondError(c, h.Log, "locker", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Locker updated", "locker": l})
}

func (h *LockerHandler) DeleteLocker(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid locker id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Lockers.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "Locker not found")
		}
		return respondError(c, h.Log, "locker", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Locker deleted"})
}

func (h *LockerHandler) AdminReservations(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.LockerReservations.ListAll(ctx)
	if err != nil {
		return respondError(c, h.Log, "locker", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

// Review handles PUT /api/admin/locker-reservations/:id/confirm with a
// status of confirmed or cancelled.
func (h *LockerHandler) Review(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var req statusReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	if err := h.Booking.ReviewLockerReservation(c.Request().Context(), id, req.Status); err != nil {
		return respondError(c, h.Log, "locker", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Locker reservation " + req.Status, "id": id})
}

func (h *LockerHandler) DeleteReservation(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.LockerReservations.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "Locker reservation not found")
		}
		return respondError(c, h.Log, "locker", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Locker reservation deleted"})
}
