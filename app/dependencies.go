package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/arthurmvo/Coffee-Shop/authz"
	"github.com/arthurmvo/Coffee-Shop/config"
	"github.com/arthurmvo/Coffee-Shop/handlers"
	"github.com/arthurmvo/Coffee-Shop/internal/observability"
	"github.com/arthurmvo/Coffee-Shop/middleware"
	"github.com/arthurmvo/Coffee-Shop/repositories"
	"github.com/arthurmvo/Coffee-Shop/repositories/sqldb"
	"github.com/arthurmvo/Coffee-Shop/services/drinks"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *sqldb.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *sqldb.RepositoryFactory

	// Repositories
	Drinks    repositories.DrinkRepository
	TxManager repositories.TransactionManager

	// Auth
	KeyStore       *authz.KeyStore
	Verifier       *authz.Verifier
	Guard          *authz.Guard
	AuthMiddleware *middleware.AuthMiddleware

	// Services
	DrinkService *drinks.Service

	stopBackground context.CancelFunc
}

// Option overrides a piece of the default wiring
type Option func(*options)

type options struct {
	db        *sqldb.DB
	keySource authz.KeySource
}

// WithDB uses an already opened database instead of opening cfg.Database
func WithDB(db *sqldb.DB) Option {
	return func(o *options) { o.db = db }
}

// WithKeySource replaces the configured JWKS source
func WithKeySource(src authz.KeySource) Option {
	return func(o *options) { o.keySource = src }
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg, o.db); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initMetrics(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := deps.initAuth(ctx, cfg, o.keySource); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	deps.DrinkService = drinks.NewService(deps.Drinks, deps.TxManager, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the database (unless one was supplied) and makes sure
// the drinks table exists
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config, db *sqldb.DB) error {
	if db != nil {
		d.RepoFactory = sqldb.NewRepositoryFactoryFromDB(db, d.Logger)
	} else {
		factory, err := sqldb.NewRepositoryFactory(cfg, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create repository factory: %w", err)
		}
		d.RepoFactory = factory
	}
	d.DB = d.RepoFactory.GetDB()

	if err := d.RepoFactory.InitSchema(ctx); err != nil {
		_ = d.RepoFactory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Drinks = repos.Drinks
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initMetrics(cfg *config.Config) error {
	if !cfg.Observability.MetricsEnabled {
		return nil
	}
	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	d.Metrics = metrics
	return nil
}

// initAuth builds the key store, verifier and guard. A key set that cannot be
// loaded at startup is not fatal: the store fetches again on the first token
// carrying an unknown kid.
func (d *Dependencies) initAuth(ctx context.Context, cfg *config.Config, src authz.KeySource) error {
	if src == nil {
		src = NewKeySource(&cfg.Auth)
	}

	var recorder authz.MetricsRecorder
	if d.Metrics != nil {
		recorder = d.Metrics
	}

	d.KeyStore = authz.NewKeyStore(authz.KeyStoreConfig{
		Source:             src,
		RefreshTimeout:     cfg.Auth.KeyRefreshTimeout,
		MinRefreshInterval: cfg.Auth.KeyMinRefreshInterval,
		Recorder:           recorder,
		Logger:             d.Logger,
	})
	if err := d.KeyStore.Init(ctx); err != nil {
		d.Logger.Warn("signing keys not loaded at startup", zap.Error(err))
	}

	verifier, err := authz.NewVerifier(authz.VerifierConfig{
		Policy: cfg.Auth.Policy(),
		Keys:   d.KeyStore,
		Logger: d.Logger,
	})
	if err != nil {
		return err
	}
	d.Verifier = verifier

	guard, err := authz.NewGuard(authz.GuardConfig{
		Verifier:     verifier,
		ErrorHandler: handlers.NewAuthErrorHandler(d.Logger),
		Recorder:     recorder,
		Logger:       d.Logger,
	})
	if err != nil {
		return err
	}
	d.Guard = guard
	d.AuthMiddleware = middleware.NewAuthMiddleware(guard, d.Logger)

	d.Logger.Info("auth initialized",
		zap.String("issuer", cfg.Auth.Issuer),
		zap.String("audience", cfg.Auth.Audience))
	return nil
}

// NewKeySource picks the key set source: a local JWKS file when configured,
// otherwise the issuer's JWKS endpoint
func NewKeySource(cfg *config.AuthConfig) authz.KeySource {
	if cfg.JWKSFile != "" {
		return authz.NewFileKeySource(cfg.JWKSFile)
	}
	return authz.NewRemoteKeySource(cfg.JWKSEndpoint(), nil)
}

// StartBackground starts the periodic key refresh when configured. It stops
// when ctx is done or on Close.
func (d *Dependencies) StartBackground(ctx context.Context) {
	interval := d.Config.Auth.KeyRefreshInterval
	if interval <= 0 || d.KeyStore == nil || d.stopBackground != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	d.stopBackground = cancel
	go d.KeyStore.Run(ctx, interval)

	d.Logger.Info("background key refresh started", zap.Duration("interval", interval))
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopBackground != nil {
		d.stopBackground()
		d.stopBackground = nil
	}

	if d.Metrics != nil {
		if err := d.Metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down metrics: %w", err))
		}
		d.Metrics = nil
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
		d.RepoFactory = nil
	}

	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}
	return nil
}
