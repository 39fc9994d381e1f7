package models

import "time"

// UserProfile is the display identity the external provider holds for a user.
// It is never stored locally beyond the UID.
type UserProfile struct {
	UID          string     `json:"uid"`
	DisplayName  string     `json:"displayName,omitempty"`
	PhoneNumber  string     `json:"phoneNumber,omitempty"`
	Email        string     `json:"email,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	LastSignInAt *time.Time `json:"lastSignInAt,omitempty"`
}
