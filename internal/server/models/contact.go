package models

import "time"

// ContactMessage is a message left through the public contact form.
type ContactMessage struct {
	ID        string
	Name      string
	Email     string
	Subject   string
	Message   string
	CreatedAt time.Time
}

// NotificationFailure is a dead-letter record of an outbound notification
// that could not be delivered.
type NotificationFailure struct {
	ID        int64
	Template  string
	Recipient string
	Cause     string
	CreatedAt time.Time
}
