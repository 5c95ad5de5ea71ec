// Package server wires the site backend together: configuration, logging,
// PostgreSQL and migrations, the Redis session store, policies, notification
// transport, object storage, services, and the HTTP and gRPC listeners. It
// also handles graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-org/sitebackend/internal/logging"
	"github.com/gin-org/sitebackend/internal/server/attachments"
	"github.com/gin-org/sitebackend/internal/server/auth"
	"github.com/gin-org/sitebackend/internal/server/config"
	"github.com/gin-org/sitebackend/internal/server/httpapi"
	"github.com/gin-org/sitebackend/internal/server/metrics"
	"github.com/gin-org/sitebackend/internal/server/notify"
	"github.com/gin-org/sitebackend/internal/server/policy"
	"github.com/gin-org/sitebackend/internal/server/repositories/repomanager"
	"github.com/gin-org/sitebackend/internal/server/services"
	"github.com/gin-org/sitebackend/internal/server/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	gs "github.com/gin-org/sitebackend/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	redis  *goredis.Client
	api    httpapi.Deps
}

// OpenDatabase connects to PostgreSQL through pgx and applies the embedded
// migrations.
func OpenDatabase(ctx context.Context, dsn string, rm repomanager.RepositoryManager) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}
	return db, nil
}

// NewPolicyEngine builds the policy engine over the administrator set.
// decisions may be nil.
func NewPolicyEngine(db *sql.DB, rm repomanager.RepositoryManager, decisions *prometheus.CounterVec) *policy.Engine {
	return policy.NewEngine(policy.MembershipFunc(func(ctx context.Context, accountID string) (bool, error) {
		return rm.Administrators(db).IsMember(ctx, accountID)
	}), decisions)
}

// NewTokenIssuer builds the JWT issuer from the configuration.
func NewTokenIssuer(c *config.Config) *auth.TokenIssuer {
	return auth.NewTokenIssuer([]byte(c.SecretKey), c.TokenIssuer, c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
}

func newTransport(c *config.Config, logger logging.Logger) notify.Transport {
	if c.MailBackend == "smtp" {
		return notify.NewSMTPTransport(notify.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.MailFrom,
			UseTLS:   c.SMTPUseTLS,
			Timeout:  c.SMTPTimeout,
		})
	}
	return notify.NewLogTransport(logger)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	rm := repomanager.NewPostgresRepositoryManager()
	db, err := OpenDatabase(ctx, c.DatabaseDSN, rm)
	if err != nil {
		return nil, err
	}

	rdb, err := sessions.Connect(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis init error: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	engine := NewPolicyEngine(db, rm, m.AuthorizationDecisions)
	tokens := NewTokenIssuer(c)
	store := sessions.NewStore(rdb)

	dispatcher := notify.NewDispatcher(newTransport(c, logger), rm.Notifications(db), logger, m.Notifications)
	presigner := attachments.NewPresigner(attachments.Config{
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
		TTL:          c.S3PresignTTL,
	})

	deps := httpapi.Deps{
		Accounts:     services.NewAccountService(db, rm, tokens, store, engine, c),
		Offers:       services.NewOfferService(db, rm, engine),
		Applications: services.NewApplicationService(db, rm, engine, dispatcher, presigner, logger, m.StatusTransitions),
		Contact:      services.NewContactService(db, rm, engine, dispatcher, c.ContactEmail, logger),
		Identity:     auth.NewAuthenticator(tokens, store, rm.Accounts(db)),

		Log:               logger,
		SessionCookieName: c.SessionCookieName,
		SecureCookies:     c.SecureCookies,

		Metrics:  m,
		Registry: registry,
		Limiter:  httpapi.NewRateLimiter(c.SubmissionRatePerMinute, c.SubmissionBurst, m),
		CORS:     httpapi.NewCORS(c.CORSAllowedOrigins, c.CORSAllowAllOrigins, c.CORSAllowCredentials),
		Health: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	}

	return &App{config: c, logger: logger, db: db, redis: rdb, api: deps}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, httpapi.NewRouter(app.api))
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or a listener fails, then
// releases the database and Redis connections.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.redis.Close(); err != nil {
		app.logger.Error(ctx, "closing redis", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
