package model

import "time"

// Pool status values.  Reservations are only accepted for available pools.
const (
    PoolAvailable   = "available"
    PoolMaintenance = "maintenance"
    PoolClosed      = "closed"
)

// Pool mirrors the `pool_resources` table.  Capacity is the maximum number
// of non-cancelled reservations accepted for a single date.
type Pool struct {
    ID          uint64    `json:"id"`
    Name        string    `json:"name"`
    Description *string   `json:"description"`
    Capacity    int       `json:"capacity"`
    Status      string    `json:"status"`
    CreatedAt   time.Time `json:"created_at"`
}

// PoolSchedule is one weekday entry of a pool's opening hours.  Times are
// kept as "HH:MM:SS" strings exactly as MySQL returns TIME columns.
type PoolSchedule struct {
    DayOfWeek string `json:"day_of_week"`
    OpenTime  string `json:"open_time"`
    CloseTime string `json:"close_time"`
    IsActive  bool   `json:"is_active"`
}

// PoolWithSchedules groups a pool with its weekly schedule.
type PoolWithSchedules struct {
    Pool
    Schedules []PoolSchedule `json:"schedules"`
}

// PoolAvailability reports occupancy of one pool on one date.
type PoolAvailability struct {
    ID                  uint64 `json:"id"`
    Name                string `json:"name"`
    Capacity            int    `json:"capacity"`
    CurrentReservations int    `json:"currentReservations"`
    Available           int    `json:"available"`
}

// DailyBookingStat is one row of the monthly booking statistics.
type DailyBookingStat struct {
    Date           string `json:"date"`
    TotalBookings  int    `json:"total_bookings"`
    AvailableSlots int    `json:"available_slots"`
}

// Weekdays lists valid day_of_week values in schedule order.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
