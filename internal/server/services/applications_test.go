package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/logging"
	"github.com/gin-org/sitebackend/internal/server/attachments"
	"github.com/gin-org/sitebackend/internal/server/auth"
	"github.com/gin-org/sitebackend/internal/server/models"
	"github.com/gin-org/sitebackend/internal/server/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appFixture struct {
	rm          *fakeRepoManager
	notifier    *fakeNotifier
	presigner   *fakePresigner
	transitions *prometheus.CounterVec
	svc         *ApplicationService
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()
	rm := newFakeRepoManager()
	rm.admins = newFakeAdminsRepo(adminID)
	rm.offers = newFakeOffersRepo(testOffer())

	f := &appFixture{
		rm:        rm,
		notifier:  newFakeNotifier(),
		presigner: &fakePresigner{},
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_transitions_total",
		}, []string{"to"}),
	}
	f.svc = NewApplicationService(nil, rm, newEngine(rm), f.notifier, f.presigner, logging.Nop{}, f.transitions)
	return f
}

func validSubmission() SubmitApplication {
	now := time.Now()
	return SubmitApplication{
		FirstName:      "Awa",
		LastName:       "Diallo",
		Email:          "Awa.Diallo@Example.com",
		OfferID:        testOfferID,
		CVKey:          attachments.NewKey(attachments.KindCV, now),
		CoverLetterKey: attachments.NewKey(attachments.KindCoverLetter, now),
	}
}

func (f *appFixture) submit(t *testing.T) *models.InternshipApplication {
	t.Helper()
	app, err := f.svc.Submit(context.Background(), auth.Anonymous(), validSubmission())
	require.NoError(t, err)
	return app
}

func TestSubmit_AnonymousCreatesPendingAndNotifies(t *testing.T) {
	f := newAppFixture(t)

	app, err := f.svc.Submit(context.Background(), auth.Anonymous(), validSubmission())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, app.Status)
	assert.Equal(t, "awa.diallo@example.com", app.Email)
	assert.Equal(t, testOfferID, app.OfferID)

	calls := f.notifier.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, notify.TemplateApplicationReceived, calls[0].Template)
	assert.Equal(t, "awa.diallo@example.com", calls[0].Recipient)
	assert.Equal(t, "Awa Diallo", calls[0].Data["Name"])
	assert.Equal(t, "Stage développeur Go", calls[0].Data["OfferTitle"])

	// No administrator lookup is needed for a public create.
	assert.Equal(t, 0, f.rm.admins.lookups)
}

func TestSubmit_NotificationFailureKeepsApplication(t *testing.T) {
	f := newAppFixture(t)
	f.notifier.result = notify.Result{Status: notify.StatusFailed, Cause: common.ErrNotificationFailed}

	app, err := f.svc.Submit(context.Background(), auth.Anonymous(), validSubmission())
	require.NoError(t, err)

	stored, err := f.rm.applications.Get(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestSubmit_WithRealDispatcherAndUnreachableTransport(t *testing.T) {
	f := newAppFixture(t)
	failures := f.rm.notifications
	f.svc.notifier = notify.NewDispatcher(unreachableTransport{}, failures, logging.Nop{}, nil)

	app, err := f.svc.Submit(context.Background(), auth.Anonymous(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, app.Status)

	require.Len(t, failures.failures, 1)
	assert.Equal(t, string(notify.TemplateApplicationReceived), failures.failures[0].Template)
}

type unreachableTransport struct{}

func (unreachableTransport) Probe(context.Context) error { return errors.New("connection refused") }
func (unreachableTransport) Send(context.Context, notify.Message) error {
	return errors.New("must not be called")
}

func TestSubmit_Validation(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*SubmitApplication)
		field string
	}{
		{"missing email", func(s *SubmitApplication) { s.Email = "" }, "email"},
		{"bad email", func(s *SubmitApplication) { s.Email = "not-an-email" }, "email"},
		{"missing last name", func(s *SubmitApplication) { s.LastName = "  " }, "last_name"},
		{"missing offer", func(s *SubmitApplication) { s.OfferID = "" }, "offer"},
		{"unknown offer", func(s *SubmitApplication) { s.OfferID = missingID }, "offer"},
		{"offer id not a uuid", func(s *SubmitApplication) { s.OfferID = "1" }, "offer"},
		{"missing cv", func(s *SubmitApplication) { s.CVKey = "" }, "cv"},
		{"foreign cv key", func(s *SubmitApplication) { s.CVKey = "users/2025/1/1/x" }, "cv"},
		{"cover letter under cv prefix", func(s *SubmitApplication) {
			s.CoverLetterKey = attachments.NewKey(attachments.KindCV, time.Now())
		}, "cover_letter"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAppFixture(t)
			in := validSubmission()
			tc.mut(&in)

			_, err := f.svc.Submit(context.Background(), auth.Anonymous(), in)
			require.ErrorIs(t, err, common.ErrValidation)

			var ve *common.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tc.field)
			assert.Equal(t, 0, f.rm.applications.writeCount())
			assert.Empty(t, f.notifier.calls())
		})
	}
}

func TestSubmit_StoreFault(t *testing.T) {
	f := newAppFixture(t)
	f.rm.applications.err = storeUnavailable()

	_, err := f.svc.Submit(context.Background(), auth.Anonymous(), validSubmission())
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Empty(t, f.notifier.calls())
}

func TestSetStatus_AdminAcceptsPending(t *testing.T) {
	f := newAppFixture(t)
	app := f.submit(t)

	got, err := f.svc.SetStatus(context.Background(), auth.Authenticated(adminID), app.ID, models.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
	assert.True(t, got.UpdatedAt.After(app.UpdatedAt), "updated_at %v not after %v", got.UpdatedAt, app.UpdatedAt)
	assert.Equal(t, app.CreatedAt, got.CreatedAt)
	assert.Equal(t, models.StatusAccepted, f.rm.applications.status(app.ID))

	calls := f.notifier.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, notify.TemplateApplicationAccepted, calls[1].Template)
	assert.Equal(t, "Stage développeur Go", calls[1].Data["OfferTitle"])
	assert.InDelta(t, 1, testutil.ToFloat64(f.transitions.WithLabelValues("accepted")), 0)
}

func TestSetStatus_RejectSendsRejectedTemplate(t *testing.T) {
	f := newAppFixture(t)
	app := f.submit(t)

	_, err := f.svc.SetStatus(context.Background(), auth.Authenticated(adminID), app.ID, models.StatusRejected)
	require.NoError(t, err)

	calls := f.notifier.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, notify.TemplateApplicationRejected, calls[1].Template)
}

func TestSetStatus_NonAdminDeniedWithoutWrite(t *testing.T) {
	for _, id := range []auth.Identity{auth.Anonymous(), auth.Authenticated(userID)} {
		f := newAppFixture(t)
		app := f.submit(t)
		writes := f.rm.applications.writeCount()

		_, err := f.svc.SetStatus(context.Background(), id, app.ID, models.StatusAccepted)
		require.ErrorIs(t, err, common.ErrAuthorizationDenied)

		var ae *common.AuthorizationError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "must be an administrator to perform this action", ae.Reason)

		assert.Equal(t, models.StatusPending, f.rm.applications.status(app.ID))
		assert.Equal(t, writes, f.rm.applications.writeCount())
	}
}

func TestSetStatus_SecondTransitionRejected(t *testing.T) {
	f := newAppFixture(t)
	app := f.submit(t)
	admin := auth.Authenticated(adminID)

	_, err := f.svc.SetStatus(context.Background(), admin, app.ID, models.StatusAccepted)
	require.NoError(t, err)

	_, err = f.svc.SetStatus(context.Background(), admin, app.ID, models.StatusRejected)
	require.ErrorIs(t, err, common.ErrInvalidTransition)

	var te *common.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "accepted", te.From)
	assert.Equal(t, "rejected", te.To)
	assert.Equal(t, models.StatusAccepted, f.rm.applications.status(app.ID))
}

func TestSetStatus_BackToPendingIsValidationError(t *testing.T) {
	f := newAppFixture(t)
	app := f.submit(t)

	_, err := f.svc.SetStatus(context.Background(), auth.Authenticated(adminID), app.ID, models.StatusPending)
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, models.StatusPending, f.rm.applications.status(app.ID))
}

func TestSetStatus_UnknownApplication(t *testing.T) {
	f := newAppFixture(t)

	_, err := f.svc.SetStatus(context.Background(), auth.Authenticated(adminID), missingID, models.StatusAccepted)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSetStatus_MembershipFaultIsNotADenial(t *testing.T) {
	f := newAppFixture(t)
	app := f.submit(t)
	f.rm.admins.err = storeUnavailable()

	_, err := f.svc.SetStatus(context.Background(), auth.Authenticated(adminID), app.ID, models.StatusAccepted)
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, common.ErrAuthorizationDenied)
	assert.Equal(t, models.StatusPending, f.rm.applications.status(app.ID))
}

func TestSetStatus_ConcurrentReviewersExactlyOneWins(t *testing.T) {
	f := newAppFixture(t)
	app := f.submit(t)
	admin := auth.Authenticated(adminID)

	targets := []models.ApplicationStatus{models.StatusAccepted, models.StatusRejected}
	errs := make([]error, len(targets))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, to := range targets {
		wg.Add(1)
		go func(i int, to models.ApplicationStatus) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.SetStatus(context.Background(), admin, app.ID, to)
		}(i, to)
	}
	close(start)
	wg.Wait()

	var ok, conflicts int
	var winner models.ApplicationStatus
	for i, err := range errs {
		switch {
		case err == nil:
			ok++
			winner = targets[i]
		case errors.Is(err, common.ErrInvalidTransition):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, winner, f.rm.applications.status(app.ID))
}

func TestApplicationReads_AdminOnly(t *testing.T) {
	f := newAppFixture(t)
	app := f.submit(t)
	ctx := context.Background()

	_, err := f.svc.List(ctx, auth.Anonymous(), "")
	require.ErrorIs(t, err, common.ErrAuthorizationDenied)
	_, err = f.svc.Get(ctx, auth.Authenticated(userID), app.ID)
	require.ErrorIs(t, err, common.ErrAuthorizationDenied)
	err = f.svc.Delete(ctx, auth.Authenticated(userID), app.ID)
	require.ErrorIs(t, err, common.ErrAuthorizationDenied)

	admin := auth.Authenticated(adminID)
	list, err := f.svc.List(ctx, admin, testOfferID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := f.svc.Get(ctx, admin, app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, got.ID)

	require.NoError(t, f.svc.Delete(ctx, admin, app.ID))
	_, err = f.svc.Get(ctx, admin, app.ID)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestApplications_MalformedIDs(t *testing.T) {
	f := newAppFixture(t)
	f.submit(t)
	ctx := context.Background()
	admin := auth.Authenticated(adminID)
	writes := f.rm.applications.writeCount()

	_, err := f.svc.Get(ctx, admin, "abc")
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.ErrorIs(t, f.svc.Delete(ctx, admin, "abc"), common.ErrorNotFound)
	_, err = f.svc.SetStatus(ctx, admin, "abc", models.StatusAccepted)
	require.ErrorIs(t, err, common.ErrorNotFound)
	_, err = f.svc.AttachmentURL(ctx, admin, "abc", "cv")
	require.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.svc.List(ctx, admin, "1")
	var ve *common.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "offre")

	assert.Equal(t, writes, f.rm.applications.writeCount())
}

func TestPresignUpload(t *testing.T) {
	f := newAppFixture(t)

	up, err := f.svc.PresignUpload(context.Background(), auth.Anonymous(), "cv")
	require.NoError(t, err)
	assert.True(t, attachments.ValidKey(attachments.KindCV, up.Key))

	_, err = f.svc.PresignUpload(context.Background(), auth.Anonymous(), "photo")
	require.ErrorIs(t, err, common.ErrValidation)

	f.presigner.err = errBoom{}
	_, err = f.svc.PresignUpload(context.Background(), auth.Anonymous(), "cover_letter")
	require.ErrorContains(t, err, "error presigning upload")
}

func TestAttachmentURL(t *testing.T) {
	f := newAppFixture(t)
	app := f.submit(t)

	_, err := f.svc.AttachmentURL(context.Background(), auth.Anonymous(), app.ID, "cv")
	require.ErrorIs(t, err, common.ErrAuthorizationDenied)

	url, err := f.svc.AttachmentURL(context.Background(), auth.Authenticated(adminID), app.ID, "cover_letter")
	require.NoError(t, err)
	assert.Equal(t, app.CoverLetterKey, f.presigner.downloadKey)
	assert.Contains(t, url, app.CoverLetterKey)

	_, err = f.svc.AttachmentURL(context.Background(), auth.Authenticated(adminID), missingID, "cv")
	require.ErrorIs(t, err, common.ErrorNotFound)
}
