package models

import (
	"fmt"
	"time"
)

// ApplicationStatus is the review state of an internship application.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusAccepted ApplicationStatus = "accepted"
	StatusRejected ApplicationStatus = "rejected"
)

// IsTerminal reports whether no further transition is possible.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// ParseApplicationStatus converts a wire value into an ApplicationStatus.
func ParseApplicationStatus(v string) (ApplicationStatus, error) {
	s := ApplicationStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown application status %q", v)
	}
	return s, nil
}

// InternshipApplication is a candidate's submission for an offer.
// CVKey and CoverLetterKey are object storage keys of the uploaded documents.
type InternshipApplication struct {
	ID             string
	FirstName      string
	LastName       string
	Email          string
	CVKey          string
	CoverLetterKey string
	OfferID        string
	Status         ApplicationStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a *InternshipApplication) FullName() string {
	if a.FirstName == "" {
		return a.LastName
	}
	return a.FirstName + " " + a.LastName
}
