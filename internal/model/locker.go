package model

import "time"

// Locker status values.
const (
    LockerAvailable   = "available"
    LockerMaintenance = "maintenance"
    LockerUnavailable = "unavailable"
)

// Locker reservation status values.
const (
    LockerReservationPending   = "pending"
    LockerReservationConfirmed = "confirmed"
    LockerReservationCancelled = "cancelled"
)

// Locker slots always cover the whole day.
const (
    LockerDayStart = "00:00:00"
    LockerDayEnd   = "23:59:59"
)

type Locker struct {
    ID        uint64    `json:"id"`
    Code      string    `json:"code"`
    Location  string    `json:"location"`
    Status    string    `json:"status"`
    CreatedAt time.Time `json:"created_at"`
    // set by listings that are scoped to a date
    ReservedOnDate *bool `json:"is_reserved_on_selected_date,omitempty"`
}

type LockerReservation struct {
    ID              uint64    `json:"id"`
    UserID          uint64    `json:"user_id"`
    LockerID        uint64    `json:"locker_id"`
    ReservationDate string    `json:"reservation_date"`
    StartTime       string    `json:"start_time"`
    EndTime         string    `json:"end_time"`
    Status          string    `json:"status"`
    CreatedAt       time.Time `json:"created_at"`
}

// LockerReservationView joins a locker reservation with locker, user and
// payment data.
type LockerReservationView struct {
    LockerReservation
    LockerCode     string   `json:"locker_code"`
    LockerLocation string   `json:"location"`
    UserName       string   `json:"user_name,omitempty"`
    UserEmail      string   `json:"user_email,omitempty"`
    PaymentID      *uint64  `json:"payment_id,omitempty"`
    PaymentAmount  *float64 `json:"payment_amount,omitempty"`
    PaymentStatus  *string  `json:"payment_status,omitempty"`
    PaymentMethod  *string  `json:"payment_method,omitempty"`
    SlipURL        *string  `json:"slip_url,omitempty"`
}
