package model

import "time"

// Role values stored in users.role.
const (
    RoleUser  = "user"
    RoleAdmin = "admin"
)

// UserStatus values stored in users.status.  Only active users may log in.
const (
    UserActive    = "active"
    UserInactive  = "inactive"
    UserSuspended = "suspended"
)

// User represents an application user record as stored in the `users`
// table.  PasswordHash is never serialised.
//
// Fields:
//  ID             – primary key identifier of the user.
//  Username       – unique login name.
//  Email          – unique email address.
//  PasswordHash   – bcrypt hashed password.
//  Role           – user or admin.
//  Status         – active, inactive or suspended.
//  UserCategoryID – pricing tier, nil when the user never purchased.
type User struct {
    ID              uint64     `json:"id"`
    Username        string     `json:"username"`
    Email           string     `json:"email"`
    PasswordHash    string     `json:"-"`
    FirstName       string     `json:"first_name"`
    LastName        string     `json:"last_name"`
    Phone           *string    `json:"phone"`
    Address         *string    `json:"address"`
    DateOfBirth     *time.Time `json:"date_of_birth"`
    IDCard          *string    `json:"id_card"`
    ProfilePhotoURL *string    `json:"profile_photo_url"`
    Role            string     `json:"role"`
    Status          string     `json:"status"`
    UserCategoryID  *uint64    `json:"user_category_id"`
    CreatedAt       time.Time  `json:"created_at"`
    UpdatedAt       time.Time  `json:"updated_at"`
}

// FullName joins first and last name the way admin listings display it.
func (u User) FullName() string {
    switch {
    case u.FirstName == "":
        return u.LastName
    case u.LastName == "":
        return u.FirstName
    }
    return u.FirstName + " " + u.LastName
}

// UserCategory is a pricing tier (student, adult, senior ...).
type UserCategory struct {
    ID                 uint64  `json:"id"`
    Name               string  `json:"name"`
    Description        *string `json:"description"`
    PayPerSessionPrice float64 `json:"pay_per_session_price"`
    AnnualPrice        float64 `json:"annual_price"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token value is stored.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
