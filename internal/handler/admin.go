package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/config"
	"github.com/iliyamo/swimming-pool-reservation/internal/database"
	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
	"github.com/iliyamo/swimming-pool-reservation/internal/service"
	"github.com/iliyamo/swimming-pool-reservation/internal/utils"
)

// AdminHandler groups the admin dashboard, user management and
// notification endpoints.
type AdminHandler struct {
	Cfg           config.Config
	Tx            database.TxRunner
	Stats         *repository.AdminRepo
	Users         *repository.UserRepo
	Memberships   *service.MembershipService
	Notifications *repository.NotificationRepo
	Log           logger.ILogger
}

func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	stats, err := h.Stats.DashboardStats(ctx)
	if err != nil {
		return respondError(c, h.Log, "admin", err)
	}
	recent, err := h.Stats.RecentActivities(ctx, 10)
	if err != nil {
		return respondError(c, h.Log, "admin", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"stats": stats, "recent_activities": recent})
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	role := c.QueryParam("role")
	if role != "" && role != model.RoleUser && role != model.RoleAdmin {
		return badRequest(c, "role must be user or admin")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Users.List(ctx, role)
	if err != nil {
		return respondError(c, h.Log, "admin", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": list})
}

type adminUserReq struct {
	Username       string  `json:"username" validate:"required,min=3,max=50"`
	Email          string  `json:"email" validate:"required,email"`
	Password       string  `json:"password" validate:"required,min=6,max=72"`
	FirstName      string  `json:"first_name" validate:"max=100"`
	LastName       string  `json:"last_name" validate:"max=100"`
	Phone          *string `json:"phone"`
	Role           string  `json:"role" validate:"omitempty,oneof=user admin"`
	UserCategoryID *uint64 `json:"user_category_id"`
}

// CreateUser lets an admin open an account.  Regular users get the same
// pending session membership as self-registered ones.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req adminUserReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return respondError(c, h.Log, "admin", err)
	}
	u := model.User{
		Username:       strings.TrimSpace(req.Username),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:   hash,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Phone:          req.Phone,
		Role:           role,
		Status:         model.UserActive,
		UserCategoryID: req.UserCategoryID,
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	err = h.Tx.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := h.Users.CreateTx(ctx, tx, &u); err != nil {
			return err
		}
		if role != model.RoleUser {
			return nil
		}
		_, err := h.Memberships.EnsurePendingSessionTx(ctx, tx, u.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return c.JSON(http.StatusConflict, echo.Map{"message": "username or email already exists"})
		}
		return respondError(c, h.Log, "admin", err)
	}
	h.Log.Info("admin", "user created", map[string]interface{}{"user_id": u.ID, "role": role})
	return c.JSON(http.StatusCreated, echo.Map{"message": "User created successfully", "userId": u.ID})
}

type adminUserUpdateReq struct {
	FirstName string  `json:"first_name" validate:"max=100"`
	LastName  string  `json:"last_name" validate:"max=100"`
	Phone     *string `json:"phone"`
	Status    string  `json:"status" validate:"required,oneof=active inactive suspended"`
}

func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req adminUserUpdateReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	p := repository.ProfileUpdate{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     req.Phone,
	}
	if err := h.Users.AdminUpdate(ctx, id, p, req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "User not found")
		}
		return respondError(c, h.Log, "admin", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User updated successfully"})
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	if self, err := getUserID(c); err == nil && self == id {
		return badRequest(c, "cannot delete your own account")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "User not found")
		}
		return respondError(c, h.Log, "admin", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully"})
}

func (h *AdminHandler) ListNotifications(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Notifications.ListAll(ctx)
	if err != nil {
		return respondError(c, h.Log, "admin", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": list})
}

type notificationReq struct {
	UserID  json.RawMessage `json:"user_id" validate:"required"`
	Title   string          `json:"title" validate:"required,max=200"`
	Message string          `json:"message" validate:"required"`
}

// target decodes user_id, which is either a positive number or "all".
func (r notificationReq) target() (id uint64, all bool, ok bool) {
	var s string
	if err := json.Unmarshal(r.UserID, &s); err == nil {
		if strings.EqualFold(s, "all") {
			return 0, true, true
		}
		id, err := strconv.ParseUint(s, 10, 64)
		return id, false, err == nil && id > 0
	}
	if err := json.Unmarshal(r.UserID, &id); err != nil || id == 0 {
		return 0, false, false
	}
	return id, false, true
}

// CreateNotification sends to one user or, with user_id "all", to every
// regular user.
func (h *AdminHandler) CreateNotification(c echo.Context) error {
	var req notificationReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	id, all, ok := req.target()
	if !ok {
		return badRequest(c, `user_id must be a user id or "all"`)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if all {
		n, err := h.Notifications.Broadcast(ctx, req.Title, req.Message)
		if err != nil {
			return respondError(c, h.Log, "admin", err)
		}
		return c.JSON(http.StatusCreated, echo.Map{"message": "Notification sent to all users", "count": n})
	}
	if _, err := h.Users.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "User not found")
		}
		return respondError(c, h.Log, "admin", err)
	}
	n := model.Notification{UserID: id, Title: req.Title, Message: req.Message}
	if err := h.Notifications.Create(ctx, &n); err != nil {
		return respondError(c, h.Log, "admin", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Notification sent", "notification": n})
}

func (h *AdminHandler) DeleteNotification(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid notification id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Notifications.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "Notification not found")
		}
		return respondError(c, h.Log, "admin", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Notification deleted"})
}
