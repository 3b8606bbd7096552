package model

import "time"

type Notification struct {
    ID        uint64    `json:"id"`
    UserID    uint64    `json:"user_id"`
    Title     string    `json:"title"`
    Message   string    `json:"message"`
    IsRead    bool      `json:"is_read"`
    CreatedAt time.Time `json:"created_at"`
}

// Setting is a key/value row of the settings table.
type Setting struct {
    Key       string    `json:"key"`
    Value     string    `json:"value"`
    UpdatedAt time.Time `json:"updated_at"`
}

// Well known setting keys and their defaults.
const (
    SettingLockerPrice       = "locker_price"
    SettingBankAccountNumber = "bank_account_number"
)

// SettingDefaults are returned when a key was never stored.
var SettingDefaults = map[string]string{
    SettingLockerPrice:       "1500",
    SettingBankAccountNumber: "",
}
