package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/server/auth"
	"github.com/gin-org/sitebackend/internal/server/models"
	"github.com/gin-org/sitebackend/internal/server/policy"
	"github.com/gin-org/sitebackend/internal/server/repositories/repomanager"
)

// OfferInput carries the editable fields of an internship offer.
type OfferInput struct {
	Title         string
	Description   string
	StartDate     time.Time
	DurationWeeks int
	Skills        string
	Mission       string
}

func (in *OfferInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)

	v := &common.ValidationError{}
	checkLength(v, "title", in.Title, 1, 200)
	if in.StartDate.IsZero() {
		v.Add("start_date", "this field is required")
	}
	if in.DurationWeeks <= 0 {
		v.Add("duration", "must be a positive number of weeks")
	}
	return v.OrNil()
}

// OfferService exposes internship offers: anyone reads, administrators write.
type OfferService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	policy      *policy.Engine
}

func NewOfferService(db *sql.DB, m repomanager.RepositoryManager, engine *policy.Engine) *OfferService {
	return &OfferService{db: db, repomanager: m, policy: engine}
}

func (s *OfferService) authorize(ctx context.Context, actor auth.Identity, a policy.Action) error {
	return s.policy.Require(ctx, actor, a, policy.ForResource(policy.ResourceOffers))
}

func (s *OfferService) List(ctx context.Context, actor auth.Identity) ([]models.InternshipOffer, error) {
	if err := s.authorize(ctx, actor, policy.ActionRead); err != nil {
		return nil, err
	}
	return s.repomanager.Offers(s.db).List(ctx)
}

func (s *OfferService) Get(ctx context.Context, actor auth.Identity, id string) (*models.InternshipOffer, error) {
	if err := s.authorize(ctx, actor, policy.ActionRead); err != nil {
		return nil, err
	}
	if err := lookupID(id); err != nil {
		return nil, err
	}
	return s.repomanager.Offers(s.db).Get(ctx, id)
}

func (s *OfferService) Create(ctx context.Context, actor auth.Identity, in OfferInput) (*models.InternshipOffer, error) {
	if err := s.authorize(ctx, actor, policy.ActionCreate); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	return s.repomanager.Offers(s.db).Create(ctx, in.toModel(""))
}

func (s *OfferService) Update(ctx context.Context, actor auth.Identity, id string, in OfferInput) (*models.InternshipOffer, error) {
	if err := s.authorize(ctx, actor, policy.ActionMutate); err != nil {
		return nil, err
	}
	if err := lookupID(id); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	return s.repomanager.Offers(s.db).Update(ctx, in.toModel(id))
}

func (s *OfferService) Delete(ctx context.Context, actor auth.Identity, id string) error {
	if err := s.authorize(ctx, actor, policy.ActionMutate); err != nil {
		return err
	}
	if err := lookupID(id); err != nil {
		return err
	}
	return s.repomanager.Offers(s.db).Delete(ctx, id)
}

func (in OfferInput) toModel(id string) *models.InternshipOffer {
	return &models.InternshipOffer{
		ID:            id,
		Title:         in.Title,
		Description:   in.Description,
		StartDate:     in.StartDate,
		DurationWeeks: in.DurationWeeks,
		Skills:        in.Skills,
		Mission:       in.Mission,
	}
}
