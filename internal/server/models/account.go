// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account is a person able to authenticate. Administrator rights are not a
// field here; they come from membership in the administrator set.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	CreatedAt    time.Time
}
