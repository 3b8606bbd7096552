package handler

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
)

// SettingHandler reads and writes the key/value settings table.
type SettingHandler struct {
	Settings *repository.SettingRepo
	Log      logger.ILogger
}

// Get returns a setting; known keys fall back to their default value.
func (h *SettingHandler) Get(c echo.Context) error {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		return badRequest(c, "setting key is required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	s, err := h.Settings.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "Setting not found")
		}
		return respondError(c, h.Log, "setting", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"key": s.Key, "value": s.Value})
}

func (h *SettingHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Settings.List(ctx)
	if err != nil {
		return respondError(c, h.Log, "setting", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"settings": list})
}

type settingReq struct {
	Value *string `json:"value" validate:"required"`
}

func (h *SettingHandler) Put(c echo.Context) error {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" || len(key) > 100 {
		return badRequest(c, "invalid setting key")
	}
	var req settingReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	s, err := h.Settings.Upsert(ctx, key, *req.Value)
	if err != nil {
		return respondError(c, h.Log, "setting", err)
	}
	h.Log.Info("setting", "setting updated", map[string]interface{}{"key": key})
	return c.JSON(http.StatusOK, echo.Map{"message": "Setting updated", "setting": s})
}

type bulkSettingsReq struct {
	Settings map[string]string `json:"settings" validate:"required,min=1"`
}

// BulkPut upserts every key of {"settings": {...}}.  Keys are written in
// sorted order and the first failure stops the batch.
func (h *SettingHandler) BulkPut(c echo.Context) error {
	var req bulkSettingsReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	values := make(map[string]string, len(req.Settings))
	keys := make([]string, 0, len(req.Settings))
	for raw, v := range req.Settings {
		k := strings.TrimSpace(raw)
		if k == "" || len(k) > 100 {
			return badRequest(c, "invalid setting key")
		}
		values[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ctx, cancel := requestCtx(c)
	defer cancel()
	for _, k := range keys {
		if _, err := h.Settings.Upsert(ctx, k, values[k]); err != nil {
			return respondError(c, h.Log, "setting", err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Settings updated", "updated": keys})
}
