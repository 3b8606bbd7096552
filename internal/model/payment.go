package model

import (
    "strings"
    "time"
)

// Payment status values.  pending moves to completed or failed; only a
// completed payment can be refunded.
const (
    PaymentPending   = "pending"
    PaymentCompleted = "completed"
    PaymentFailed    = "failed"
    PaymentRefunded  = "refunded"
)

// Payment methods accepted by the API.
const (
    MethodCash         = "cash"
    MethodBankTransfer = "bank_transfer"
    MethodSystem       = "system"
    MethodCreditCard   = "credit_card"
)

// Transaction id prefixes encode where a payment originated.
const (
    TxnPrefixReservation = "RSV"
    TxnPrefixLocker      = "LKR"
    TxnPrefixMembership  = "TXN"
)

type Payment struct {
    ID                  uint64    `json:"id"`
    UserID              uint64    `json:"user_id"`
    Amount              float64   `json:"amount"`
    Status              string    `json:"status"`
    PaymentMethod       string    `json:"payment_method"`
    TransactionID       string    `json:"transaction_id"`
    SlipURL             *string   `json:"slip_url"`
    MembershipID        *uint64   `json:"membership_id,omitempty"`
    ReservationID       *uint64   `json:"reservation_id,omitempty"`
    LockerReservationID *uint64   `json:"locker_reservation_id,omitempty"`
    CreatedAt           time.Time `json:"created_at"`
    UpdatedAt           time.Time `json:"updated_at"`
}

// PaymentType classifies a payment by its transaction id prefix.
func (p Payment) PaymentType() string {
    return PaymentTypeOf(p.TransactionID)
}

// PaymentTypeOf returns reservation, locker or membership.
func PaymentTypeOf(transactionID string) string {
    switch {
    case strings.HasPrefix(transactionID, TxnPrefixReservation):
        return "reservation"
    case strings.HasPrefix(transactionID, TxnPrefixLocker):
        return "locker"
    default:
        return "membership"
    }
}

// PaymentView is a payment with user display data for admin listings.
type PaymentView struct {
    Payment
    Type      string `json:"payment_type"`
    Username  string `json:"username"`
    UserName  string `json:"user_name"`
    UserEmail string `json:"email"`
}
