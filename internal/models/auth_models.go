package models

import "time"

// StaffUser is an operator account for the dashboard and reporting
// endpoints. Customer-facing flows never touch this table.
type StaffUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
