package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/database"
	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
	"github.com/iliyamo/swimming-pool-reservation/internal/service"
)

// MembershipHandler serves categories, membership types, purchases and
// the admin membership review.
type MembershipHandler struct {
	Tx          database.TxRunner
	Service     *service.MembershipService
	Memberships *repository.MembershipRepo
	Types       *repository.MembershipTypeRepo
	Categories  *repository.CategoryRepo
	Log         logger.ILogger
}

func (h *MembershipHandler) ListCategories(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Categories.List(ctx)
	if err != nil {
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": list})
}

func (h *MembershipHandler) ListTypes(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Types.List(ctx)
	if err != nil {
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"membership_types": list})
}

type purchaseReq struct {
	PurchaseType   string `json:"purchase_type" validate:"required,oneof=session annual"`
	PaymentMethod  string `json:"payment_method" validate:"required"`
	UserCategoryID uint64 `json:"user_category_id" validate:"required"`
}

// Purchase handles POST /api/memberships/purchase.
func (h *MembershipHandler) Purchase(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req purchaseReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	res, err := h.Service.PurchaseMembership(c.Request().Context(), uid, service.PurchaseInput{
		PurchaseType:   req.PurchaseType,
		PaymentMethod:  strings.TrimSpace(req.PaymentMethod),
		UserCategoryID: req.UserCategoryID,
	})
	if err != nil {
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":        "Membership purchase initiated, awaiting payment confirmation",
		"paymentId":      res.PaymentID,
		"membershipId":   res.MembershipID,
		"transaction_id": res.TransactionID,
		"amount":         res.Amount,
	})
}

// Mine handles GET /api/memberships/me.
func (h *MembershipHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Memberships.ListByUser(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"memberships": list})
}

// ----- admin -----

func (h *MembershipHandler) AdminList(c echo.Context) error {
	status := c.QueryParam("status")
	switch status {
	case "", model.MembershipPending, model.MembershipActive, model.MembershipExpired, model.MembershipRejected:
	default:
		return badRequest(c, "invalid status filter")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Memberships.List(ctx, status)
	if err != nil {
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"memberships": list})
}

func (h *MembershipHandler) Pending(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Memberships.List(ctx, model.MembershipPending)
	if err != nil {
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"memberships": list})
}

func (h *MembershipHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid membership id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	m, err := h.Memberships.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "Membership not found")
		}
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"membership": m})
}

func (h *MembershipHandler) Approve(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid membership id")
	}
	if err := h.Service.ApproveMembership(c.Request().Context(), id); err != nil {
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Membership approved"})
}

func (h *MembershipHandler) Reject(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid membership id")
	}
	if err := h.Service.RejectMembership(c.Request().Context(), id); err != nil {
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Membership rejected"})
}

type membershipUpdateReq struct {
	ExpiresAt time.Time `json:"expires_at" validate:"required"`
	Status    string    `json:"status" validate:"required,oneof=pending active expired rejected"`
}

// Update lets an admin correct the expiry and status of a membership.  A
// second active or pending row of the same type is refused with 409.
func (h *MembershipHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid membership id")
	}
	var req membershipUpdateReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	err := h.Tx.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := h.Memberships.GetByIDTx(ctx, tx, id); err != nil {
			return err
		}
		return h.Memberships.UpdateTx(ctx, tx, id, req.ExpiresAt, req.Status)
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return notFoundMsg(c, "Membership not found")
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"message": "User already has a " + req.Status + " membership of this type"})
		}
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Membership updated"})
}

func (h *MembershipHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid membership id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Memberships.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "Membership not found")
		}
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Membership deleted"})
}

type extendReq struct {
	MembershipTypeID uint64 `json:"membership_type_id"`
	DurationDays     int    `json:"duration_days" validate:"required,gt=0"`
}

// Extend handles POST /api/admin/users/:id/extend-membership.  Without a
// type id the annual membership is extended.
func (h *MembershipHandler) Extend(c echo.Context) error {
	userID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req extendReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	m, err := h.Service.ExtendMembership(c.Request().Context(), userID, req.MembershipTypeID, req.DurationDays)
	if err != nil {
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Membership extended", "membership": m})
}

type membershipTypeReq struct {
	Code         string  `json:"code" validate:"omitempty,max=30"`
	Name         string  `json:"name" validate:"required,max=100"`
	Description  *string `json:"description"`
	Price        float64 `json:"price" validate:"gte=0"`
	DurationDays int     `json:"duration_days" validate:"gte=0"`
}

func (h *MembershipHandler) CreateType(c echo.Context) error {
	var req membershipTypeReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	code := strings.ToLower(strings.TrimSpace(req.Code))
	if code == "" {
		code = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(req.Name)), " ", "_")
	}
	t := model.MembershipType{
		Code:         model.MembershipKind(code),
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		DurationDays: req.DurationDays,
		Price:        req.Price,
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Types.Create(ctx, &t); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"message": "Membership type code already exists"})
		}
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Membership type created", "membership_type": t})
}

func (h *MembershipHandler) UpdateType(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid membership type id")
	}
	var req membershipTypeReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	t := model.MembershipType{
		ID:           id,
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		DurationDays: req.DurationDays,
		Price:        req.Price,
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Types.Update(ctx, t); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "Membership type not found")
		}
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Membership type updated"})
}

type categoryPricesReq struct {
	PayPerSessionPrice *float64 `json:"pay_per_session_price" validate:"required,gte=0"`
	AnnualPrice        *float64 `json:"annual_price" validate:"required,gte=0"`
}

func (h *MembershipHandler) UpdateCategory(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid category id")
	}
	var req categoryPricesReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Categories.UpdatePrices(ctx, id, *req.PayPerSessionPrice, *req.AnnualPrice); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "User category not found")
		}
		return respondError(c, h.Log, "membership", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User category updated"})
}
