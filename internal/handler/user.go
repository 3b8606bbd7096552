package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/config"
	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
	"github.com/iliyamo/swimming-pool-reservation/internal/storage"
	"github.com/iliyamo/swimming-pool-reservation/internal/utils"
)

// UserHandler serves the self-service endpoints under /api/user.
type UserHandler struct {
	Cfg           config.Config
	Users         *repository.UserRepo
	Tokens        *repository.TokenRepo
	Categories    *repository.CategoryRepo
	Memberships   *repository.MembershipRepo
	Reservations  *repository.ReservationRepo
	Notifications *repository.NotificationRepo
	Blobs         storage.BlobStore
	Log           logger.ILogger
}

type profileReq struct {
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"required,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	Address   *string `json:"address" validate:"omitempty,max=255"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=72"`
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "User not found")
		}
		return respondError(c, h.Log, "user", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req profileReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	err = h.Users.UpdateProfile(ctx, uid, repository.ProfileUpdate{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     req.Phone,
		Address:   req.Address,
	})
	// MySQL reports zero affected rows when nothing changed
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return respondError(c, h.Log, "user", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Profile updated successfully"})
}

// ChangePassword checks the current password, stores the new hash and
// revokes every refresh token of the user.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req changePasswordReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "User not found")
		}
		return respondError(c, h.Log, "user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return badRequest(c, "Current password is incorrect")
	}
	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return respondError(c, h.Log, "user", err)
	}
	if err := h.Users.UpdatePassword(ctx, uid, hash); err != nil {
		return respondError(c, h.Log, "user", err)
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		h.Log.Warn("user", "revoke tokens after password change failed", map[string]interface{}{"user_id": uid, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password changed successfully"})
}

// UploadPhoto stores the multipart "photo" file and saves its URL.
func (h *UserHandler) UploadPhoto(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	up, closer, msg := formUpload(c, "photo")
	if msg != "" {
		return badRequest(c, msg)
	}
	if up == nil {
		return badRequest(c, "photo is required")
	}
	defer closer.Close()

	url, err := h.Blobs.Save(c.Request().Context(), storage.PhotoFolder, up.Filename, up.Body)
	if err != nil {
		h.Log.Error("user", "photo upload failed", map[string]interface{}{"user_id": uid, "error": err})
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Failed to upload photo"})
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Users.UpdatePhoto(ctx, uid, url); err != nil && !errors.Is(err, repository.ErrNotFound) {
		if derr := h.Blobs.Delete(context.WithoutCancel(ctx), url); derr != nil {
			h.Log.Warn("user", "orphaned photo not removed", map[string]interface{}{"url": url, "error": derr.Error()})
		}
		return respondError(c, h.Log, "user", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Profile photo updated", "profile_photo_url": url})
}

// dashboardMembership is the membership card of the dashboard.  Without an
// active membership it still carries the user's category prices.
type dashboardMembership struct {
	Type               string   `json:"type"`
	ExpiresAt          *string  `json:"expires_at"`
	Status             string   `json:"status"`
	UserCategory       *string  `json:"user_category,omitempty"`
	PayPerSessionPrice *float64 `json:"pay_per_session_price,omitempty"`
	AnnualPrice        *float64 `json:"annual_price,omitempty"`
}

func (h *UserHandler) Dashboard(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	var membership *dashboardMembership
	active, err := h.Memberships.ActiveForUser(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, "user", err)
	}
	if len(active) > 0 {
		exp := active[0].ExpiresAt.UTC().Format("2006-01-02T15:04:05Z")
		membership = &dashboardMembership{Type: active[0].TypeName, ExpiresAt: &exp, Status: active[0].Status}
	}
	cat, err := h.Categories.GetByUser(ctx, uid)
	switch {
	case err == nil:
		if membership == nil {
			membership = &dashboardMembership{Type: "No Active Membership", Status: "inactive"}
		}
		membership.UserCategory = &cat.Name
		membership.PayPerSessionPrice = &cat.PayPerSessionPrice
		membership.AnnualPrice = &cat.AnnualPrice
	case !errors.Is(err, repository.ErrNotFound):
		return respondError(c, h.Log, "user", err)
	}

	upcoming, err := h.Reservations.Upcoming(ctx, uid, 5)
	if err != nil {
		return respondError(c, h.Log, "user", err)
	}
	notes, err := h.Notifications.ListByUser(ctx, uid, 10)
	if err != nil {
		return respondError(c, h.Log, "user", err)
	}
	stats, err := h.Reservations.UsageStats(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, "user", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"membership":            membership,
		"upcoming_reservations": upcoming,
		"notifications":         notes,
		"usage_stats":           stats,
	})
}

func (h *UserHandler) ListReservations(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Reservations.ListByUser(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, "user", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

func (h *UserHandler) ListNotifications(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Notifications.ListByUser(ctx, uid, 0)
	if err != nil {
		return respondError(c, h.Log, "user", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": list})
}

func (h *UserHandler) MarkNotificationRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid notification id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Notifications.MarkRead(ctx, id, uid); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "Notification not found")
		}
		return respondError(c, h.Log, "user", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Notification marked as read"})
}

