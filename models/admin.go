package models

import "time"

// RoleAdmin is the only role stored in the admins table.
const RoleAdmin = "admin"

// Admin is an operator allowed to use the admin surface.
// The UID matches the subject the identity provider issues; a credential claiming
// kind=admin is honoured only when a row with its UID exists here.
type Admin struct {
	UID       string    `db:"uid" json:"uid"`
	Username  string    `db:"username" json:"username"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewAdmin creates an admin model with Role preset to "admin".
func NewAdmin(uid, username string) *Admin {
	return &Admin{UID: uid, Username: username, Role: RoleAdmin}
}
