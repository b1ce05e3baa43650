package domain

import (
	"strings"
	"time"
)

// Role enumerates what an account may do in the bot.
type Role string

const (
	RoleResident   Role = "resident"
	RoleSpecialist Role = "specialist"
	RoleManager    Role = "manager"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleResident, RoleSpecialist, RoleManager:
		return true
	}
	return false
}

// Account is a chat participant known to the system.
type Account struct {
	ID        int64
	Handle    string
	Name      string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Mention renders the account as "@handle", falling back to the display name.
func (a *Account) Mention() string {
	if a == nil {
		return ""
	}
	if a.Handle != "" {
		return "@" + a.Handle
	}
	return a.Name
}

// NormalizeHandle trims whitespace and a leading "@".
func NormalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}
