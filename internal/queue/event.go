// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names.  Each event type travels on its own durable queue whose
// name doubles as the routing key on the default exchange.
const (
	PaymentConfirmedQueue   = "payment.confirmed"
	ReservationCreatedQueue = "reservation.created"
)

// PaymentConfirmedEvent is published after an admin moved a payment to
// completed, failed or refunded.  Outcome describes what happened to the
// linked membership or reservation.
type PaymentConfirmedEvent struct {
	PaymentID     uint64  `json:"payment_id"`
	UserID        uint64  `json:"user_id"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Status        string  `json:"status"`
	Outcome       string  `json:"outcome"`
	ConfirmedAt   string  `json:"confirmed_at"`
}

// ReservationCreatedEvent is published when a pool booking was accepted.
type ReservationCreatedEvent struct {
	ReservationID uint64  `json:"reservation_id"`
	UserID        uint64  `json:"user_id"`
	PoolID        uint64  `json:"pool_id"`
	PoolName      string  `json:"pool_name"`
	Date          string  `json:"reservation_date"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	PaymentID     *uint64 `json:"payment_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
}
