package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/dbx"
	"github.com/gin-org/sitebackend/internal/server/attachments"
	"github.com/gin-org/sitebackend/internal/server/models"
	"github.com/gin-org/sitebackend/internal/server/notify"
	"github.com/gin-org/sitebackend/internal/server/policy"
	"github.com/gin-org/sitebackend/internal/server/repositories/accounts"
	"github.com/gin-org/sitebackend/internal/server/repositories/administrators"
	"github.com/gin-org/sitebackend/internal/server/repositories/applications"
	"github.com/gin-org/sitebackend/internal/server/repositories/contacts"
	"github.com/gin-org/sitebackend/internal/server/repositories/notifications"
	"github.com/gin-org/sitebackend/internal/server/repositories/offers"
	"github.com/gin-org/sitebackend/internal/server/repositories/refreshtokens"
	"github.com/gin-org/sitebackend/internal/server/repositories/repomanager"
	"github.com/gin-org/sitebackend/internal/server/sessions"
)

// -------- test fakes --------

type fakeAccountsRepo struct {
	mu      sync.Mutex
	byID    map[string]*models.Account
	nextID  int
	err     error
	created []*models.Account
}

func newFakeAccountsRepo() *fakeAccountsRepo {
	return &fakeAccountsRepo{byID: map[string]*models.Account{}}
}

func (f *fakeAccountsRepo) put(a *models.Account) *models.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[a.ID] = a
	return a
}

func (f *fakeAccountsRepo) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, existing := range f.byID {
		if existing.Username == a.Username {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	cp := *a
	cp.ID = fakeID(1, f.nextID)
	cp.CreatedAt = time.Now()
	f.byID[cp.ID] = &cp
	f.created = append(f.created, &cp)
	return &cp, nil
}

func (f *fakeAccountsRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccountsRepo) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.byID {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccountsRepo) ExistsSuperuser(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, a := range f.byID {
		if a.IsSuperuser {
			return true, nil
		}
	}
	return false, nil
}

type fakeAdminsRepo struct {
	mu      sync.Mutex
	members map[string]bool
	err     error
	lookups int
}

func newFakeAdminsRepo(ids ...string) *fakeAdminsRepo {
	f := &fakeAdminsRepo{members: map[string]bool{}}
	for _, id := range ids {
		f.members[id] = true
	}
	return f
}

func (f *fakeAdminsRepo) Add(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.members[accountID] = true
	return nil
}

func (f *fakeAdminsRepo) Remove(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.members, accountID)
	return nil
}

func (f *fakeAdminsRepo) IsMember(ctx context.Context, accountID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return false, f.err
	}
	return f.members[accountID], nil
}

func (f *fakeAdminsRepo) List(ctx context.Context) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Account, 0, len(f.members))
	for id := range f.members {
		out = append(out, models.Account{ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAdminsRepo) LockMembers(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]string, 0, len(f.members))
	for id := range f.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeAdminsRepo) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[id]
}

type fakeRefreshRepo struct {
	mu        sync.Mutex
	tokens    map[string]models.RefreshToken
	createErr error
	deleted   []string
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, jti, accountID string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[jti] = models.RefreshToken{JTI: jti, AccountID: accountID, Expires: expires, CreatedAt: time.Now()}
	return nil
}

func (f *fakeRefreshRepo) Consume(ctx context.Context, jti string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[jti]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(f.tokens, jti)
	return &t, nil
}

func (f *fakeRefreshRepo) DeleteForAccount(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for jti, t := range f.tokens {
		if t.AccountID == accountID {
			delete(f.tokens, jti)
		}
	}
	f.deleted = append(f.deleted, accountID)
	return nil
}

func (f *fakeRefreshRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

type fakeOffersRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.InternshipOffer
	nextID int
	err    error
}

func newFakeOffersRepo(offers ...models.InternshipOffer) *fakeOffersRepo {
	f := &fakeOffersRepo{byID: map[string]*models.InternshipOffer{}}
	for i := range offers {
		o := offers[i]
		f.byID[o.ID] = &o
	}
	return f
}

func (f *fakeOffersRepo) Create(ctx context.Context, o *models.InternshipOffer) (*models.InternshipOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	cp := *o
	cp.ID = fakeID(2, f.nextID)
	f.byID[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeOffersRepo) Get(ctx context.Context, id string) (*models.InternshipOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	o, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOffersRepo) List(ctx context.Context) ([]models.InternshipOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.InternshipOffer, 0, len(f.byID))
	for _, o := range f.byID {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeOffersRepo) Update(ctx context.Context, o *models.InternshipOffer) (*models.InternshipOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.byID[o.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	cp := *o
	f.byID[o.ID] = &cp
	return &cp, nil
}

func (f *fakeOffersRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

// fakeApplicationsRepo applies SetStatusIf under a mutex, which gives it the
// same compare-and-set semantics as the conditional UPDATE.
type fakeApplicationsRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.InternshipApplication
	nextID int
	err    error
	writes int
	clock  time.Time
}

func newFakeApplicationsRepo() *fakeApplicationsRepo {
	return &fakeApplicationsRepo{
		byID:  map[string]*models.InternshipApplication{},
		clock: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

// tick advances the fake clock by one second per write, like now() in
// separate statements.
func (f *fakeApplicationsRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeApplicationsRepo) Create(ctx context.Context, a *models.InternshipApplication) (*models.InternshipApplication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	f.writes++
	cp := *a
	cp.ID = fakeID(3, f.nextID)
	cp.Status = models.StatusPending
	cp.CreatedAt = f.tick()
	cp.UpdatedAt = cp.CreatedAt
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeApplicationsRepo) Get(ctx context.Context, id string) (*models.InternshipApplication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeApplicationsRepo) List(ctx context.Context, offerID string) ([]models.InternshipApplication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.InternshipApplication
	for _, a := range f.byID {
		if offerID == "" || a.OfferID == offerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeApplicationsRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	f.writes++
	delete(f.byID, id)
	return nil
}

func (f *fakeApplicationsRepo) SetStatusIf(ctx context.Context, id string, from, to models.ApplicationStatus) (*models.InternshipApplication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.byID[id]
	if !ok || a.Status != from {
		return nil, applications.ErrStatusMismatch
	}
	f.writes++
	a.Status = to
	a.UpdatedAt = f.tick()
	cp := *a
	return &cp, nil
}

func (f *fakeApplicationsRepo) status(id string) models.ApplicationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].Status
}

func (f *fakeApplicationsRepo) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

type fakeContactsRepo struct {
	mu   sync.Mutex
	msgs []models.ContactMessage
	err  error
}

func (f *fakeContactsRepo) Create(ctx context.Context, m *models.ContactMessage) (*models.ContactMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	cp := *m
	cp.ID = "msg-" + strconv.Itoa(len(f.msgs)+1)
	cp.CreatedAt = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	f.msgs = append(f.msgs, cp)
	return &cp, nil
}

func (f *fakeContactsRepo) List(ctx context.Context) ([]models.ContactMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.ContactMessage(nil), f.msgs...), nil
}

type fakeNotificationsRepo struct {
	mu        sync.Mutex
	failures  []models.NotificationFailure
	lastLimit int
}

func (f *fakeNotificationsRepo) RecordFailure(ctx context.Context, nf *models.NotificationFailure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, *nf)
	return nil
}

func (f *fakeNotificationsRepo) ListFailures(ctx context.Context, limit int) ([]models.NotificationFailure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	return append([]models.NotificationFailure(nil), f.failures...), nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	accounts      *fakeAccountsRepo
	admins        *fakeAdminsRepo
	refresh       *fakeRefreshRepo
	offers        *fakeOffersRepo
	applications  *fakeApplicationsRepo
	contacts      *fakeContactsRepo
	notifications *fakeNotificationsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		accounts:      newFakeAccountsRepo(),
		admins:        newFakeAdminsRepo(),
		refresh:       newFakeRefreshRepo(),
		offers:        newFakeOffersRepo(),
		applications:  newFakeApplicationsRepo(),
		contacts:      &fakeContactsRepo{},
		notifications: &fakeNotificationsRepo{},
	}
}

func (m *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository             { return m.accounts }
func (m *fakeRepoManager) Administrators(dbx.DBTX) administrators.Repository { return m.admins }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository   { return m.refresh }
func (m *fakeRepoManager) Offers(dbx.DBTX) offers.Repository                 { return m.offers }
func (m *fakeRepoManager) Applications(dbx.DBTX) applications.Repository     { return m.applications }
func (m *fakeRepoManager) Contacts(dbx.DBTX) contacts.Repository             { return m.contacts }
func (m *fakeRepoManager) Notifications(dbx.DBTX) notifications.Repository   { return m.notifications }

type sentNotification struct {
	Template  notify.Template
	Recipient string
	Data      map[string]any
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentNotification
	result notify.Result
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{result: notify.Result{Status: notify.StatusSent}}
}

func (f *fakeNotifier) Notify(ctx context.Context, tmpl notify.Template, recipient string, data any) notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, _ := data.(map[string]any)
	f.sent = append(f.sent, sentNotification{Template: tmpl, Recipient: recipient, Data: m})
	return f.result
}

func (f *fakeNotifier) calls() []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentNotification(nil), f.sent...)
}

type fakeSessions struct {
	mu        sync.Mutex
	created   []*sessions.Session
	deleted   []string
	revoked   map[string]time.Duration
	createErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{revoked: map[string]time.Duration{}}
}

func (f *fakeSessions) Create(ctx context.Context, accountID string, ttl time.Duration) (*sessions.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	s := &sessions.Session{ID: "sess-" + strconv.Itoa(len(f.created)+1), AccountID: accountID, ExpiresAt: time.Now().Add(ttl)}
	f.created = append(f.created, s)
	return s, nil
}

func (f *fakeSessions) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSessions) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = ttl
	return nil
}

type fakePresigner struct {
	upload      *attachments.Upload
	err         error
	downloadKey string
}

func (f *fakePresigner) PresignUpload(ctx context.Context, kind attachments.Kind) (*attachments.Upload, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.upload != nil {
		return f.upload, nil
	}
	key := attachments.NewKey(kind, time.Now())
	return &attachments.Upload{Key: key, URL: "https://s3.test/" + key, ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (f *fakePresigner) PresignDownload(ctx context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.downloadKey = key
	return "https://s3.test/" + key + "?sig=1", nil
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// -------- helpers --------

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newEngine(rm *fakeRepoManager) *policy.Engine {
	return policy.NewEngine(policy.MembershipFunc(func(ctx context.Context, id string) (bool, error) {
		return rm.admins.IsMember(ctx, id)
	}), nil)
}

const (
	adminID     = "0a000000-0000-4000-8000-000000000001"
	userID      = "0a000000-0000-4000-8000-000000000002"
	testOfferID = "0f000000-0000-4000-8000-000000000001"
	missingID   = "0e000000-0000-4000-8000-000000000404"
)

// fakeID builds a well-formed UUID so fake records pass the same id checks
// as real ones.
func fakeID(kind, n int) string {
	return fmt.Sprintf("%08d-0000-4000-8000-%012d", kind, n)
}

func testOffer() models.InternshipOffer {
	return models.InternshipOffer{
		ID:            testOfferID,
		Title:         "Stage développeur Go",
		StartDate:     time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		DurationWeeks: 12,
	}
}

func storeUnavailable() error {
	return common.Unavailable("db error", errBoom{})
}
