package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/swimming-pool-reservation/internal/database"
	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
	"github.com/iliyamo/swimming-pool-reservation/internal/repository"
)

// PoolHandler serves the public pool catalog and the admin pool endpoints.
type PoolHandler struct {
	Tx    database.TxRunner
	Pools *repository.PoolRepo
	Log   logger.ILogger
}

// Status handles GET /api/pools/status.
func (h *PoolHandler) Status(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	pools, err := h.Pools.List(ctx)
	if err != nil {
		return respondError(c, h.Log, "pool", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"pools": pools})
}

// Schedules handles GET /api/pools: every pool with its weekly schedule.
func (h *PoolHandler) Schedules(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Pools.ListWithSchedules(ctx)
	if err != nil {
		return respondError(c, h.Log, "pool", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"schedules": list})
}

// Availability handles GET /api/pools/availability?date=&pool_id=.  isFull
// is true when no available pool matches or any matching pool is full.
func (h *PoolHandler) Availability(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		return badRequest(c, "Date parameter is required")
	}
	if !validDate(date) {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	var poolID uint64
	if v := c.QueryParam("pool_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return badRequest(c, "invalid pool_id")
		}
		poolID = id
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	pools, err := h.Pools.Availability(ctx, date, poolID)
	if err != nil {
		return respondError(c, h.Log, "pool", err)
	}
	if len(pools) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"isFull": true, "message": "No available pool found", "pools": pools})
	}
	isFull, message := false, "Slots are available for booking"
	for _, p := range pools {
		if p.CurrentReservations >= p.Capacity {
			isFull = true
			message = fmt.Sprintf("Pool %s is full on %s, please choose another date", p.Name, date)
			break
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"isFull": isFull, "message": message, "pools": pools})
}

// BookingStats handles GET /api/pools/:id/bookings/stats?year=&month=.
func (h *PoolHandler) BookingStats(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid pool id")
	}
	year, errY := strconv.Atoi(c.QueryParam("year"))
	month, errM := strconv.Atoi(c.QueryParam("month"))
	if errY != nil || errM != nil || year < 1970 || month < 1 || month > 12 {
		return badRequest(c, "Year and month parameters are required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	pool, err := h.Pools.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "Pool not found")
		}
		return respondError(c, h.Log, "pool", err)
	}
	stats, err := h.Pools.MonthlyStats(ctx, pool, year, month)
	if err != nil {
		return respondError(c, h.Log, "pool", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"pool_id":   pool.ID,
		"pool_name": pool.Name,
		"capacity":  pool.Capacity,
		"year":      year,
		"month":     month,
		"stats":     stats,
	})
}

// ----- admin -----

type poolReq struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description"`
	Capacity    int     `json:"capacity" validate:"gt=0"`
	Status      string  `json:"status" validate:"omitempty,oneof=available maintenance closed"`
}

func (r poolReq) model() model.Pool {
	status := r.Status
	if status == "" {
		status = model.PoolAvailable
	}
	return model.Pool{Name: strings.TrimSpace(r.Name), Description: r.Description, Capacity: r.Capacity, Status: status}
}

func (h *PoolHandler) AdminList(c echo.Context) error {
	return h.Status(c)
}

func (h *PoolHandler) Create(c echo.Context) error {
	var req poolReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	p := req.model()
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Pools.Create(ctx, &p); err != nil {
		return respondError(c, h.Log, "pool", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Pool created", "pool": p})
}

func (h *PoolHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid pool id")
	}
	var req poolReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	p := req.model()
	p.ID = id
	ctx, cancel := requestCtx(c)
	defer cancel()
	if _, err := h.Pools.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "Pool not found")
		}
		return respondError(c, h.Log, "pool", err)
	}
	if err := h.Pools.Update(ctx, p); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return respondError(c, h.Log, "pool", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Pool updated", "pool": p})
}

func (h *PoolHandler) GetSchedule(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid pool id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	days, err := h.Pools.Schedule(ctx, id)
	if err != nil {
		return respondError(c, h.Log, "pool", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"pool_id": id, "schedules": days})
}

type scheduleReq struct {
	Schedules []struct {
		DayOfWeek string `json:"day_of_week" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
		OpenTime  string `json:"open_time" validate:"required"`
		CloseTime string `json:"close_time" validate:"required"`
		IsActive  *bool  `json:"is_active"`
	} `json:"schedules" validate:"required,dive"`
}

// normaliseClock accepts HH:MM or HH:MM:SS.
func normaliseClock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 5 {
		s += ":00"
	}
	if len(s) != 8 || s[2] != ':' || s[5] != ':' {
		return "", false
	}
	h, err1 := strconv.Atoi(s[0:2])
	m, err2 := strconv.Atoi(s[3:5])
	sec, err3 := strconv.Atoi(s[6:8])
	if err1 != nil || err2 != nil || err3 != nil || h > 23 || m > 59 || sec > 59 {
		return "", false
	}
	return s, true
}

// PutSchedule replaces the weekly schedule of a pool in one transaction.
func (h *PoolHandler) PutSchedule(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid pool id")
	}
	var req scheduleReq
	if msg, ok := bindValid(c, &req); !ok {
		return badRequest(c, msg)
	}
	seen := map[string]bool{}
	days := make([]model.PoolSchedule, 0, len(req.Schedules))
	for _, s := range req.Schedules {
		open, ok1 := normaliseClock(s.OpenTime)
		closing, ok2 := normaliseClock(s.CloseTime)
		if !ok1 || !ok2 || closing <= open {
			return badRequest(c, "invalid opening hours for "+s.DayOfWeek)
		}
		if seen[s.DayOfWeek] {
			return badRequest(c, "duplicate day "+s.DayOfWeek)
		}
		seen[s.DayOfWeek] = true
		active := s.IsActive == nil || *s.IsActive
		days = append(days, model.PoolSchedule{DayOfWeek: s.DayOfWeek, OpenTime: open, CloseTime: closing, IsActive: active})
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	err := h.Tx.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := h.Pools.GetForUpdateTx(ctx, tx, id); err != nil {
			return err
		}
		return h.Pools.ReplaceScheduleTx(ctx, tx, id, days)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundMsg(c, "Pool not found")
		}
		return respondError(c, h.Log, "pool", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Schedule updated", "pool_id": id, "schedules": days})
}
