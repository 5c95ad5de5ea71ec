package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/logging"
	"github.com/gin-org/sitebackend/internal/server/attachments"
	"github.com/gin-org/sitebackend/internal/server/auth"
	"github.com/gin-org/sitebackend/internal/server/models"
	"github.com/gin-org/sitebackend/internal/server/notify"
	"github.com/gin-org/sitebackend/internal/server/policy"
	"github.com/gin-org/sitebackend/internal/server/repositories/applications"
	"github.com/gin-org/sitebackend/internal/server/repositories/repomanager"
	"github.com/prometheus/client_golang/prometheus"
)

// SubmitApplication is what a candidate sends. CVKey and CoverLetterKey are
// keys previously obtained from PresignUpload.
type SubmitApplication struct {
	FirstName      string
	LastName       string
	Email          string
	OfferID        string
	CVKey          string
	CoverLetterKey string
}

func (in *SubmitApplication) validate() *common.ValidationError {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = normalizeEmail(in.Email)
	in.OfferID = strings.TrimSpace(in.OfferID)

	v := &common.ValidationError{}
	checkLength(v, "first_name", in.FirstName, 0, 100)
	checkLength(v, "last_name", in.LastName, 1, 100)
	switch {
	case in.Email == "":
		v.Add("email", "this field is required")
	case !validEmail(in.Email):
		v.Add("email", "enter a valid email address")
	}
	switch {
	case in.OfferID == "":
		v.Add("offer", "this field is required")
	case !validID(in.OfferID):
		v.Add("offer", "unknown offer")
	}
	if in.CVKey == "" {
		v.Add("cv", "this field is required")
	} else if !attachments.ValidKey(attachments.KindCV, in.CVKey) {
		v.Add("cv", "unknown document")
	}
	if in.CoverLetterKey == "" {
		v.Add("cover_letter", "this field is required")
	} else if !attachments.ValidKey(attachments.KindCoverLetter, in.CoverLetterKey) {
		v.Add("cover_letter", "unknown document")
	}
	return v
}

// ApplicationService runs the lifecycle of internship applications:
// anyone submits, administrators review.
type ApplicationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	policy      *policy.Engine
	notifier    Notifier
	presigner   Presigner
	log         logging.Logger
	transitions *prometheus.CounterVec
}

// NewApplicationService builds the service. transitions may be nil.
func NewApplicationService(db *sql.DB, m repomanager.RepositoryManager, engine *policy.Engine,
	notifier Notifier, presigner Presigner, log logging.Logger, transitions *prometheus.CounterVec) *ApplicationService {
	return &ApplicationService{
		db:          db,
		repomanager: m,
		policy:      engine,
		notifier:    notifier,
		presigner:   presigner,
		log:         log.With("module", "applications"),
		transitions: transitions,
	}
}

func (s *ApplicationService) authorize(ctx context.Context, actor auth.Identity, a policy.Action) error {
	return s.policy.Require(ctx, actor, a, policy.ForResource(policy.ResourceApplications))
}

// Submit stores a new pending application and then confirms receipt to the
// candidate. A failed confirmation is logged and never undoes the write.
func (s *ApplicationService) Submit(ctx context.Context, actor auth.Identity, in SubmitApplication) (*models.InternshipApplication, error) {
	if err := s.authorize(ctx, actor, policy.ActionCreate); err != nil {
		return nil, err
	}

	v := in.validate()
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	offer, err := s.repomanager.Offers(s.db).Get(ctx, in.OfferID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewValidationError("offer", "unknown offer")
		}
		return nil, err
	}

	app, err := s.repomanager.Applications(s.db).Create(ctx, &models.InternshipApplication{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		OfferID:        offer.ID,
		CVKey:          in.CVKey,
		CoverLetterKey: in.CoverLetterKey,
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// The offer was deleted in between.
			return nil, common.NewValidationError("offer", "unknown offer")
		}
		return nil, err
	}

	s.notify(ctx, notify.TemplateApplicationReceived, app, offer.Title)
	return app, nil
}

// SetStatus moves a pending application to accepted or rejected. Only an
// administrator may do it, and only once: the write is a single conditional
// update, so of two concurrent reviewers exactly one succeeds and the other
// gets a *common.TransitionError.
func (s *ApplicationService) SetStatus(ctx context.Context, actor auth.Identity, id string, to models.ApplicationStatus) (*models.InternshipApplication, error) {
	if err := s.policy.Require(ctx, actor, policy.ActionMutate, policy.AdminOnly); err != nil {
		return nil, err
	}
	if !to.IsTerminal() {
		return nil, common.NewValidationError("status", fmt.Sprintf("%q is not a valid choice", to))
	}

	if err := lookupID(id); err != nil {
		return nil, err
	}

	repo := s.repomanager.Applications(s.db)
	app, err := repo.SetStatusIf(ctx, id, models.StatusPending, to)
	if err != nil {
		if !errors.Is(err, applications.ErrStatusMismatch) {
			return nil, err
		}
		current, getErr := repo.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &common.TransitionError{From: string(current.Status), To: string(to)}
	}

	if s.transitions != nil {
		s.transitions.WithLabelValues(string(to)).Inc()
	}
	s.log.Info(ctx, "application status changed", "application_id", app.ID, "status", string(to), "actor", actor.AccountID)

	title := ""
	if offer, err := s.repomanager.Offers(s.db).Get(ctx, app.OfferID); err != nil {
		s.log.Warn(ctx, "loading offer for notification", "offer_id", app.OfferID, "error", err)
	} else {
		title = offer.Title
	}

	tmpl := notify.TemplateApplicationAccepted
	if to == models.StatusRejected {
		tmpl = notify.TemplateApplicationRejected
	}
	s.notify(ctx, tmpl, app, title)

	return app, nil
}

// List returns applications newest first, optionally for one offer.
func (s *ApplicationService) List(ctx context.Context, actor auth.Identity, offerID string) ([]models.InternshipApplication, error) {
	if err := s.authorize(ctx, actor, policy.ActionRead); err != nil {
		return nil, err
	}
	if offerID != "" && !validID(offerID) {
		return nil, common.NewValidationError("offre", "unknown offer")
	}
	return s.repomanager.Applications(s.db).List(ctx, offerID)
}

func (s *ApplicationService) Get(ctx context.Context, actor auth.Identity, id string) (*models.InternshipApplication, error) {
	if err := s.authorize(ctx, actor, policy.ActionRead); err != nil {
		return nil, err
	}
	if err := lookupID(id); err != nil {
		return nil, err
	}
	return s.repomanager.Applications(s.db).Get(ctx, id)
}

func (s *ApplicationService) Delete(ctx context.Context, actor auth.Identity, id string) error {
	if err := s.authorize(ctx, actor, policy.ActionMutate); err != nil {
		return err
	}
	if err := lookupID(id); err != nil {
		return err
	}
	return s.repomanager.Applications(s.db).Delete(ctx, id)
}

// PresignUpload reserves a storage key for a document and returns a
// presigned PUT URL for it. Candidates call it before Submit.
func (s *ApplicationService) PresignUpload(ctx context.Context, actor auth.Identity, kind string) (*attachments.Upload, error) {
	if err := s.policy.Require(ctx, actor, policy.ActionCreate, policy.ForResource(policy.ResourceAttachments)); err != nil {
		return nil, err
	}
	k, err := attachments.ParseKind(kind)
	if err != nil {
		return nil, common.NewValidationError("kind", err.Error())
	}
	up, err := s.presigner.PresignUpload(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("error presigning upload: %w", err)
	}
	return up, nil
}

// AttachmentURL returns a presigned GET URL for one document of an application.
func (s *ApplicationService) AttachmentURL(ctx context.Context, actor auth.Identity, id, kind string) (string, error) {
	if err := s.policy.Require(ctx, actor, policy.ActionRead, policy.ForResource(policy.ResourceAttachments)); err != nil {
		return "", err
	}
	k, err := attachments.ParseKind(kind)
	if err != nil {
		return "", common.NewValidationError("kind", err.Error())
	}
	if err := lookupID(id); err != nil {
		return "", err
	}

	app, err := s.repomanager.Applications(s.db).Get(ctx, id)
	if err != nil {
		return "", err
	}

	key := app.CVKey
	if k == attachments.KindCoverLetter {
		key = app.CoverLetterKey
	}
	url, err := s.presigner.PresignDownload(ctx, key)
	if err != nil {
		return "", fmt.Errorf("error presigning download: %w", err)
	}
	return url, nil
}

func (s *ApplicationService) notify(ctx context.Context, tmpl notify.Template, app *models.InternshipApplication, offerTitle string) {
	res := s.notifier.Notify(ctx, tmpl, app.Email, map[string]any{
		"Name":       app.FullName(),
		"OfferTitle": offerTitle,
	})
	if !res.Sent() {
		s.log.Warn(ctx, "application notification not delivered",
			"application_id", app.ID, "template", string(tmpl), "error", res.Cause)
	}
}
