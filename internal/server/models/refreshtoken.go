package models

import "time"

// RefreshToken is the server-side record of an issued refresh credential,
// keyed by the JWT ID. Deleting the row consumes the credential.
type RefreshToken struct {
	JTI       string
	AccountID string
	Expires   time.Time
	CreatedAt time.Time
}
