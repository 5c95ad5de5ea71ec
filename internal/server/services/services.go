// Package services contains server-side business logic: accounts and
// administrator login, internship offers, the application lifecycle and the
// contact form. Transports call services with the caller's auth.Identity;
// every service checks the relevant policy before touching the store.
package services

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/server/attachments"
	"github.com/gin-org/sitebackend/internal/server/notify"
	"github.com/google/uuid"
)

// Notifier delivers a templated notification. It never fails the caller; the
// outcome is reported in the result.
type Notifier interface {
	Notify(ctx context.Context, tmpl notify.Template, recipient string, data any) notify.Result
}

// Presigner hands out short-lived object storage URLs for attachments.
type Presigner interface {
	PresignUpload(ctx context.Context, kind attachments.Kind) (*attachments.Upload, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validEmail(v string) bool {
	return emailRe.MatchString(v)
}

// checkLength records a message on field when v is outside [lo, hi] runes.
// A zero lo means the field is optional.
func checkLength(v *common.ValidationError, field, value string, lo, hi int) {
	n := utf8.RuneCountInString(value)
	switch {
	case lo > 0 && n == 0:
		v.Add(field, "this field is required")
	case n < lo:
		v.Add(field, "too short")
	case hi > 0 && n > hi:
		v.Add(field, "too long")
	}
}

// validID reports whether id can name a stored record. Every table keys on UUIDs.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// lookupID returns common.ErrorNotFound for an id no record can carry, so a
// malformed path never reaches the store.
func lookupID(id string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	return nil
}

func normalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
