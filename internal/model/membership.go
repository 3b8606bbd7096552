package model

import "time"

// MembershipKind is the stable code of a membership type.  Numeric ids are
// resolved from the membership_types table at startup.
type MembershipKind string

const (
    KindSession MembershipKind = "session"
    KindAnnual  MembershipKind = "annual"
)

// Membership status values.  At most one active and one pending row may
// exist per user and type.
const (
    MembershipPending  = "pending"
    MembershipActive   = "active"
    MembershipExpired  = "expired"
    MembershipRejected = "rejected"
)

type MembershipType struct {
    ID           uint64         `json:"id"`
    Code         MembershipKind `json:"code"`
    Name         string         `json:"name"`
    Description  *string        `json:"description"`
    DurationDays int            `json:"duration_days"`
    Price        float64        `json:"price"`
}

type Membership struct {
    ID               uint64    `json:"id"`
    UserID           uint64    `json:"user_id"`
    MembershipTypeID uint64    `json:"membership_type_id"`
    ExpiresAt        time.Time `json:"expires_at"`
    Status           string    `json:"status"`
    CreatedAt        time.Time `json:"created_at"`
}

// MembershipView adds type and user display fields for listings.
type MembershipView struct {
    Membership
    TypeName  string `json:"membership_type"`
    Username  string `json:"username"`
    UserName  string `json:"user_name"`
    UserEmail string `json:"email"`
}
