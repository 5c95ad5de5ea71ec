package models

import "time"

// InternshipOffer is a publicly readable internship posting.
type InternshipOffer struct {
	ID            string
	Title         string
	Description   string
	StartDate     time.Time
	DurationWeeks int
	Skills        string
	Mission       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
