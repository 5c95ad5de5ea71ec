package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/logging"
	"github.com/gin-org/sitebackend/internal/server/auth"
	"github.com/gin-org/sitebackend/internal/server/models"
	"github.com/gin-org/sitebackend/internal/server/notify"
	"github.com/gin-org/sitebackend/internal/server/policy"
	"github.com/gin-org/sitebackend/internal/server/repositories/repomanager"
)

const defaultFailureListLimit = 100

// ContactInput is a message sent through the public contact form.
type ContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
}

func (in *ContactInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)

	v := &common.ValidationError{}
	checkLength(v, "name", in.Name, 2, 100)
	switch {
	case in.Email == "":
		v.Add("email", "this field is required")
	case !validEmail(in.Email):
		v.Add("email", "enter a valid email address")
	}
	checkLength(v, "subject", in.Subject, 5, 200)
	checkLength(v, "message", in.Message, 10, 5000)
	return v.OrNil()
}

// ContactService stores contact form messages and forwards them to the
// site's contact inbox.
type ContactService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	policy      *policy.Engine
	notifier    Notifier
	inbox       string
	log         logging.Logger
}

func NewContactService(db *sql.DB, m repomanager.RepositoryManager, engine *policy.Engine,
	notifier Notifier, inbox string, log logging.Logger) *ContactService {
	return &ContactService{
		db:          db,
		repomanager: m,
		policy:      engine,
		notifier:    notifier,
		inbox:       inbox,
		log:         log.With("module", "contact"),
	}
}

// Submit stores the message, then forwards it. The forward never fails the write.
func (s *ContactService) Submit(ctx context.Context, actor auth.Identity, in ContactInput) (*models.ContactMessage, error) {
	if err := s.policy.Require(ctx, actor, policy.ActionCreate, policy.ForResource(policy.ResourceContactMessages)); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	msg, err := s.repomanager.Contacts(s.db).Create(ctx, &models.ContactMessage{
		Name:    in.Name,
		Email:   in.Email,
		Subject: in.Subject,
		Message: in.Message,
	})
	if err != nil {
		return nil, err
	}

	res := s.notifier.Notify(ctx, notify.TemplateContactReceived, s.inbox, map[string]any{
		"Name":      msg.Name,
		"Email":     msg.Email,
		"Subject":   msg.Subject,
		"Message":   msg.Message,
		"CreatedAt": msg.CreatedAt.Format("02/01/2006 15:04"),
	})
	if !res.Sent() {
		s.log.Warn(ctx, "contact message not forwarded", "message_id", msg.ID, "error", res.Cause)
	}
	return msg, nil
}

func (s *ContactService) List(ctx context.Context, actor auth.Identity) ([]models.ContactMessage, error) {
	if err := s.policy.Require(ctx, actor, policy.ActionRead, policy.ForResource(policy.ResourceContactMessages)); err != nil {
		return nil, err
	}
	return s.repomanager.Contacts(s.db).List(ctx)
}

// NotificationFailures lists undelivered notifications, newest first.
// A non-positive limit selects the default.
func (s *ContactService) NotificationFailures(ctx context.Context, actor auth.Identity, limit int) ([]models.NotificationFailure, error) {
	if err := s.policy.Require(ctx, actor, policy.ActionRead, policy.ForResource(policy.ResourceNotifications)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultFailureListLimit
	}
	return s.repomanager.Notifications(s.db).ListFailures(ctx, limit)
}
