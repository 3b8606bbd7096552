package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/config"
	"github.com/iliyamo/swimming-pool-reservation/internal/database"
	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
	"github.com/iliyamo/swimming-pool-reservation/internal/service"
	"github.com/iliyamo/swimming-pool-reservation/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg         config.Config
	Tx          database.TxRunner
	Users       *repository.UserRepo
	Tokens      *repository.TokenRepo
	Memberships *service.MembershipService
	Log         logger.ILogger
}

func NewAuthHandler(cfg config.Config, tx database.TxRunner, u *repository.UserRepo, t *repository.TokenRepo,
	m *service.MembershipService, log logger.ILogger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Tx: tx, Users: u, Tokens: t, Memberships: m, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Username       string  `json:"username" validate:"required,min=3,max=50"`
	Email          string  `json:"email" validate:"required,email"`
	Password       string  `json:"password" validate:"required,min=6,max=72"`
	FirstName      string  `json:"first_name" validate:"max=100"`
	LastName       string  `json:"last_name" validate:"max=100"`
	Phone          *string `json:"phone"`
	Address        *string `json:"address"`
	DateOfBirth    string  `json:"date_of_birth"`
	IDCard         *string `json:"id_card"`
	UserCategoryID *uint64 `json:"user_category_id"`
}

// loginReq accepts the username or the email in the username field.
type loginReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	Token   string     `json:"token"`
	User    model.User `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

// mint signs an access token and draws a refresh token for u without
// persisting anything.
func (h *AuthHandler) mint(u model.User) (authResp, model.RefreshToken, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Username, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, model.RefreshToken{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, model.RefreshToken{}, err
	}
	row := model.RefreshToken{UserID: u.ID, TokenHash: utils.HashRefreshRaw(refresh.Raw), ExpiresAt: refresh.Exp}
	return authResp{
		Token:   access.Token,
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, row, nil
}

// issue creates an access/refresh pair and stores the refresh hash.
func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
	resp, row, err := h.mint(u)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.Store(ctx, row); err != nil {
		return authResp{}, err
	}
	return resp, nil
}

// Register creates a user with role user, a pending pay-per-session
// membership and returns a token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	u := model.User{
		Username:       strings.TrimSpace(req.Username),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Phone:          req.Phone,
		Address:        req.Address,
		IDCard:         req.IDCard,
		Role:           model.RoleUser,
		Status:         model.UserActive,
		UserCategoryID: req.UserCategoryID,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return badRequest(c, "date_of_birth must be YYYY-MM-DD")
		}
		u.DateOfBirth = &dob
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return respondError(c, h.Log, "auth", err)
	}
	u.PasswordHash = hash

	ctx, cancel := requestCtx(c)
	defer cancel()

	err = h.Tx.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := h.Users.CreateTx(ctx, tx, &u); err != nil {
			return err
		}
		_, err := h.Memberships.EnsurePendingSessionTx(ctx, tx, u.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return c.JSON(http.StatusConflict, echo.Map{"message": "username or email already exists"})
		}
		return respondError(c, h.Log, "auth", err)
	}
	h.Log.Info("auth", "user registered", map[string]interface{}{"user_id": u.ID})

	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, h.Log, "auth", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User created successfully",
		"userId":  u.ID,
		"token":   resp.Token,
		"user":    resp.User,
		"access":  resp.Access,
		"refresh": resp.Refresh,
	})
}

// Login verifies the credentials of an active user and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	login := strings.TrimSpace(req.Username)
	if login == "" {
		login = strings.TrimSpace(req.Email)
	}
	if login == "" {
		return badRequest(c, "username is required")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid credentials"})
		}
		return respondError(c, h.Log, "auth", err)
	}
	if u.Status != model.UserActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid credentials"})
	}
	if utils.NeedsRehash(u.PasswordHash, h.Cfg.BcryptCost) {
		if hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost); err == nil {
			if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
				h.Log.Warn("auth", "password rehash failed", map[string]interface{}{"user_id": u.ID, "error": err.Error()})
			}
		}
	}

	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, h.Log, "auth", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh exchanges a live refresh token for a new pair.  The old token
// is revoked in the same transaction that stores the new one.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := requestCtx(c)
	defer cancel()

	current, err := h.Tokens.Active(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid refresh"})
	}
	u, err := h.Users.GetByID(ctx, current.UserID)
	if err != nil || u.Status != model.UserActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid refresh"})
	}
	resp, next, err := h.mint(u)
	if err != nil {
		return respondError(c, h.Log, "auth", err)
	}
	err = h.Tx.WithTx(ctx, func(tx *sql.Tx) error {
		return h.Tokens.RotateTx(ctx, tx, hash, next)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid refresh"})
	}
	if err != nil {
		return respondError(c, h.Log, "auth", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := requestCtx(c)
	defer cancel()

	current, err := h.Tokens.Active(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid refresh"})
	}
	u, err := h.Users.GetByID(ctx, current.UserID)
	if err != nil || u.Status != model.UserActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid refresh"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Username, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return respondError(c, h.Log, "auth", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes the refresh token in the body, or every refresh token of
// the bearer's user when no body token is given.
func (h *AuthHandler) Logout(c echo.Context) error {
	var uid uint64
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
			uid = claims.UserID
		}
	}
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := requestCtx(c)
	defer cancel()

	switch {
	case refreshToken != "":
		err := h.Tokens.Revoke(ctx, utils.HashRefreshRaw(refreshToken))
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid refresh token"})
		}
		if err != nil {
			return respondError(c, h.Log, "auth", err)
		}
	case uid > 0:
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return respondError(c, h.Log, "auth", err)
		}
	default:
		return badRequest(c, "provide Authorization header or refresh_token")
	}
	return c.NoContent(http.StatusNoContent)
}

// ForgotPassword answers with a fixed message whether or not the email is
// registered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	_ = c.Bind(&req)
	h.Log.Info("auth", "password reset requested", map[string]interface{}{"email": strings.ToLower(strings.TrimSpace(req.Email))})
	return c.JSON(http.StatusOK, echo.Map{"message": "If the email is registered, a password reset link has been sent"})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, "auth", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}
