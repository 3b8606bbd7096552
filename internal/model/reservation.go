package model

import "time"

// Reservation status values.  cancelled and completed are terminal.
const (
    ReservationPending   = "pending"
    ReservationConfirmed = "confirmed"
    ReservationCancelled = "cancelled"
    ReservationCompleted = "completed"
)

// Reservation represents a pool booking for one date and time range.
// SlotNo is the capacity slot the booking occupies; the database enforces
// that a slot is used by at most one non-cancelled reservation per pool
// and date.
type Reservation struct {
    ID              uint64    `json:"id"`
    UserID          uint64    `json:"user_id"`
    PoolID          uint64    `json:"pool_resource_id"`
    ReservationDate string    `json:"reservation_date"` // YYYY-MM-DD
    StartTime       string    `json:"start_time"`
    EndTime         string    `json:"end_time"`
    Status          string    `json:"status"`
    Notes           *string   `json:"notes"`
    SlotNo          int       `json:"-"`
    CreatedAt       time.Time `json:"created_at"`
}

// ReservationView is a reservation joined with display data for listings.
type ReservationView struct {
    Reservation
    PoolName      string   `json:"pool_name"`
    UserName      string   `json:"user_name,omitempty"`
    UserEmail     string   `json:"user_email,omitempty"`
    PaymentID     *uint64  `json:"payment_id,omitempty"`
    PaymentAmount *float64 `json:"payment_amount,omitempty"`
    PaymentStatus *string  `json:"payment_status,omitempty"`
    PaymentMethod *string  `json:"payment_method,omitempty"`
    SlipURL       *string  `json:"slip_url,omitempty"`
}

// IsTerminal reports whether no further transitions are allowed.
func (r Reservation) IsTerminal() bool {
    return r.Status == ReservationCancelled || r.Status == ReservationCompleted
}
