package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/middleware"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
	"github.com/iliyamo/swimming-pool-reservation/internal/service"
)

// PaymentHandler exposes payment listings, slip uploads and admin
// confirmation.
type PaymentHandler struct {
	Service  *service.PaymentService
	Payments *repository.PaymentRepo
	Log      logger.ILogger
}

func (h *PaymentHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Payments.ListByUser(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, "payment", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": list})
}

// Receipt returns one payment.  Users only see their own.
func (h *PaymentHandler) Receipt(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid payment id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	p, err := h.Payments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "Payment not found")
		}
		return respondError(c, h.Log, "payment", err)
	}
	if p.UserID != uid && middleware.Role(c) != model.RoleAdmin {
		return notFoundMsg(c, "Payment not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"payment": p})
}

// UploadSlip handles POST /api/payments/:id/upload-slip (multipart "slip").
func (h *PaymentHandler) UploadSlip(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid payment id")
	}
	up, closer, msg := formUpload(c, "slip")
	if msg != "" {
		return badRequest(c, msg)
	}
	if up == nil {
		return badRequest(c, "slip file is required")
	}
	defer closer.Close()

	url, err := h.Service.UploadSlip(c.Request().Context(), uid, id, *up)
	if err != nil {
		return respondError(c, h.Log, "payment", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Payment slip uploaded", "slip_url": url})
}

type confirmReq struct {
	Status string `json:"status" validate:"required,oneof=completed failed refunded"`
}

// Confirm handles PUT /api/payments/:id/confirm.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid payment id")
	}
	var req confirmReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	res, err := h.Service.ConfirmPayment(c.Request().Context(), id, req.Status)
	if err != nil {
		return respondError(c, h.Log, "payment", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Payment " + req.Status, "result": res})
}

type bulkConfirmReq struct {
	PaymentIDs []uint64 `json:"paymentIds" validate:"required,min=1,dive,gt=0"`
	Status     string   `json:"status" validate:"required,oneof=completed failed"`
}

// BulkUpdate confirms or fails many pending payments at once.
func (h *PaymentHandler) BulkUpdate(c echo.Context) error {
	var req bulkConfirmReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	res, err := h.Service.BulkConfirmPayments(c.Request().Context(), req.PaymentIDs, req.Status)
	if err != nil {
		return respondError(c, h.Log, "payment", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Payments updated",
		"updated": res.Updated,
		"skipped": res.Skipped,
	})
}

// AdminList handles GET /api/admin/payments?status=&dateFilter=.
func (h *PaymentHandler) AdminList(c echo.Context) error {
	status := c.QueryParam("status")
	switch status {
	case "", model.PaymentPending, model.PaymentCompleted, model.PaymentFailed, model.PaymentRefunded:
	default:
		return badRequest(c, "invalid status filter")
	}
	period := c.QueryParam("dateFilter")
	if !repository.ValidDateFilter(period) {
		return badRequest(c, "dateFilter must be day, week, month or year")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Payments.ListFiltered(ctx, status, period)
	if err != nil {
		return respondError(c, h.Log, "payment", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": list})
}
