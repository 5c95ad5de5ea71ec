package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/logging"
	"github.com/gin-org/sitebackend/internal/server/attachments"
	"github.com/gin-org/sitebackend/internal/server/auth"
	"github.com/gin-org/sitebackend/internal/server/metrics"
	"github.com/gin-org/sitebackend/internal/server/models"
	"github.com/gin-org/sitebackend/internal/server/services"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

type AccountService interface {
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, id auth.Identity, sessionID, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Profile(ctx context.Context, id auth.Identity) (*services.Profile, error)
	ListAdministrators(ctx context.Context, actor auth.Identity) ([]models.Account, error)
	GrantAdministrator(ctx context.Context, actor auth.Identity, accountID string) error
	RevokeAdministrator(ctx context.Context, actor auth.Identity, accountID string) error
}

type OfferService interface {
	List(ctx context.Context, actor auth.Identity) ([]models.InternshipOffer, error)
	Get(ctx context.Context, actor auth.Identity, id string) (*models.InternshipOffer, error)
	Create(ctx context.Context, actor auth.Identity, in services.OfferInput) (*models.InternshipOffer, error)
	Update(ctx context.Context, actor auth.Identity, id string, in services.OfferInput) (*models.InternshipOffer, error)
	Delete(ctx context.Context, actor auth.Identity, id string) error
}

type ApplicationService interface {
	Submit(ctx context.Context, actor auth.Identity, in services.SubmitApplication) (*models.InternshipApplication, error)
	SetStatus(ctx context.Context, actor auth.Identity, id string, to models.ApplicationStatus) (*models.InternshipApplication, error)
	List(ctx context.Context, actor auth.Identity, offerID string) ([]models.InternshipApplication, error)
	Get(ctx context.Context, actor auth.Identity, id string) (*models.InternshipApplication, error)
	Delete(ctx context.Context, actor auth.Identity, id string) error
	PresignUpload(ctx context.Context, actor auth.Identity, kind string) (*attachments.Upload, error)
	AttachmentURL(ctx context.Context, actor auth.Identity, id, kind string) (string, error)
}

type ContactService interface {
	Submit(ctx context.Context, actor auth.Identity, in services.ContactInput) (*models.ContactMessage, error)
	List(ctx context.Context, actor auth.Identity) ([]models.ContactMessage, error)
	NotificationFailures(ctx context.Context, actor auth.Identity, limit int) ([]models.NotificationFailure, error)
}

// Deps are the collaborators of the router. Metrics, Registry, Health and
// Limiter may be nil.
type Deps struct {
	Accounts     AccountService
	Offers       OfferService
	Applications ApplicationService
	Contact      ContactService
	Identity     IdentityResolver

	Log               logging.Logger
	SessionCookieName string
	SecureCookies     bool

	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Health   func(ctx context.Context) error
	Limiter  *RateLimiter
	CORS     *CORS
}

type handlers struct {
	Deps
}

// NewRouter builds the API router, wrapped in d.CORS when set.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logging.Nop{}
	}
	if d.SessionCookieName == "" {
		d.SessionCookieName = common.DefaultSessionCookieName
	}
	if d.Limiter == nil {
		d.Limiter = NewRateLimiter(0, 1, nil)
	}
	h := &handlers{Deps: d}

	r := mux.NewRouter()
	r.Use(accessLogMiddleware(d.Log, d.Metrics))

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	if d.Registry != nil {
		r.Handle("/metrics", metrics.Handler(d.Registry)).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(identityMiddleware(d.Identity, d.SessionCookieName, d.Log))

	api.HandleFunc("/accounts/admin/login", h.Limiter.Wrap(h.login)).Methods(http.MethodPost)
	api.HandleFunc("/accounts/admin/logout", h.logout).Methods(http.MethodPost)
	api.HandleFunc("/accounts/token/refresh", h.refresh).Methods(http.MethodPost)
	api.HandleFunc("/accounts/admin/profile", h.profile).Methods(http.MethodGet)
	api.HandleFunc("/accounts/administrators", h.listAdministrators).Methods(http.MethodGet)
	api.HandleFunc("/accounts/administrators/{id}", h.grantAdministrator).Methods(http.MethodPost)
	api.HandleFunc("/accounts/administrators/{id}", h.revokeAdministrator).Methods(http.MethodDelete)

	api.HandleFunc("/offres", h.listOffers).Methods(http.MethodGet)
	api.HandleFunc("/offres", h.createOffer).Methods(http.MethodPost)
	api.HandleFunc("/offres/{id}", h.getOffer).Methods(http.MethodGet)
	api.HandleFunc("/offres/{id}", h.updateOffer).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/offres/{id}", h.deleteOffer).Methods(http.MethodDelete)

	api.HandleFunc("/demandes", h.Limiter.Wrap(h.submitApplication)).Methods(http.MethodPost)
	api.HandleFunc("/demandes", h.listApplications).Methods(http.MethodGet)
	api.HandleFunc("/demandes/{id}", h.getApplication).Methods(http.MethodGet)
	api.HandleFunc("/demandes/{id}", h.deleteApplication).Methods(http.MethodDelete)
	api.HandleFunc("/demandes/{id}/update_status", h.updateStatus).Methods(http.MethodPost)
	api.HandleFunc("/demandes/{id}/attachments/{kind}", h.attachmentURL).Methods(http.MethodGet)
	api.HandleFunc("/attachments/presign", h.Limiter.Wrap(h.presignUpload)).Methods(http.MethodPost)

	api.HandleFunc("/contact", h.Limiter.Wrap(h.submitContact)).Methods(http.MethodPost)
	api.HandleFunc("/contact", h.listContact).Methods(http.MethodGet)
	api.HandleFunc("/notifications/failures", h.notificationFailures).Methods(http.MethodGet)

	if d.CORS != nil {
		return d.CORS.Handler(r)
	}
	return r
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			h.Log.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
