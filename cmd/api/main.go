package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"helpdesk-integration-layer/internal/application"
	"helpdesk-integration-layer/internal/application/webhook_handlers"
	"helpdesk-integration-layer/internal/config"
	"helpdesk-integration-layer/internal/domain"
	"helpdesk-integration-layer/internal/infrastructure/api"
	"helpdesk-integration-layer/internal/infrastructure/encryption"
	"helpdesk-integration-layer/internal/infrastructure/gmail"
	"helpdesk-integration-layer/internal/infrastructure/imap"
	"helpdesk-integration-layer/internal/infrastructure/metrics"
	securitymiddleware "helpdesk-integration-layer/internal/infrastructure/middleware"
	"helpdesk-integration-layer/internal/infrastructure/oauthvendor"
	"helpdesk-integration-layer/internal/infrastructure/pubsub"
	"helpdesk-integration-layer/internal/infrastructure/repository"
	shopifyinfra "helpdesk-integration-layer/internal/infrastructure/shopify"
	"helpdesk-integration-layer/internal/infrastructure/woocommerce"
	"helpdesk-integration-layer/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// stores bundles the persistence chosen by STORE_DRIVER and OAUTH_STATE_DRIVER
type stores struct {
	credentials ports.CredentialRepository
	states      ports.OAuthStateRepository
	records     ports.WebhookRecordRepository
	closers     []func(context.Context) error
}

func (s *stores) close(ctx context.Context, logger zerolog.Logger) {
	for _, c := range s.closers {
		if err := c(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger = logger.Level(cfg.ParsedLogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	encryptionService, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	st, err := openStores(ctx, cfg, encryptionService, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to open stores")
	}

	clock := application.SystemClock{}
	collector := metrics.NewCollector()

	// Vendor adapters
	shopifyClient := shopifyinfra.NewClient(shopifyinfra.Config{
		APIKey:      cfg.ShopifyAPIKey,
		APISecret:   cfg.ShopifyAPISecret,
		RedirectURI: cfg.AppURL + "/auth/shopify/callback",
		APIVersion:  cfg.ShopifyAPIVersion,
		Timeout:     cfg.VendorTimeout,
	}, logger)
	mailbox := gmail.NewMailbox(gmail.Config{Timeout: cfg.VendorTimeout}, logger)
	googleProvider := oauthvendor.NewGoogleProvider(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.AppURL+"/auth/gmail/callback",
		cfg.VendorTimeout,
		mailbox.AccountInfo,
		logger,
	)
	microsoftProvider := oauthvendor.NewMicrosoftProvider(
		cfg.MicrosoftClientID,
		cfg.MicrosoftClientSecret,
		cfg.MicrosoftTenantID,
		cfg.AppURL+"/auth/outlook/callback",
		cfg.VendorTimeout,
		logger,
	)

	// Expiring platforms always get a refresher; an unconfigured one reports not_configured
	refreshers := map[domain.Platform]ports.TokenRefresher{
		domain.PlatformGmail:   googleProvider,
		domain.PlatformOutlook: microsoftProvider,
	}
	providers := map[domain.Platform]ports.AuthorizationProvider{}
	callbacks := map[domain.Platform]api.CallbackVerifier{}
	if cfg.ShopifyEnabled() {
		providers[domain.PlatformShopify] = shopifyClient
		callbacks[domain.PlatformShopify] = shopifyClient
	}
	if cfg.GmailEnabled() {
		providers[domain.PlatformGmail] = googleProvider
	}
	if cfg.OutlookEnabled() {
		providers[domain.PlatformOutlook] = microsoftProvider
	}
	logger.Info().
		Bool("shopify", cfg.ShopifyEnabled()).
		Bool("gmail", cfg.GmailEnabled()).
		Bool("outlook", cfg.OutlookEnabled()).
		Str("store", cfg.StoreDriver).
		Str("stateStore", cfg.StateDriver).
		Msg("Integrations configured")

	// Application services
	manager := application.NewCredentialManager(
		st.credentials,
		refreshers,
		clock,
		collector,
		application.ManagerConfig{RefreshSkew: cfg.TokenRefreshSkew},
		logger,
	)
	oauthService := application.NewOAuthService(
		manager,
		st.states,
		providers,
		shopifyClient,
		clock,
		application.RandomNonceGenerator{},
		collector,
		application.OAuthConfig{
			StateTTL:       cfg.OAuthStateTTL,
			WebhookBaseURL: cfg.AppURL + "/webhooks/shopify",
		},
		logger,
	)
	connectService := application.NewConnectService(manager, shopifyClient, map[domain.Platform]ports.CredentialVerifier{
		domain.PlatformWooCommerce: woocommerce.NewVerifier(cfg.VendorTimeout, logger),
		domain.PlatformIMAP:        imap.NewVerifier(cfg.VendorTimeout, logger),
	}, logger)
	mailboxService := application.NewMailboxService(manager, mailbox, logger)
	storeService := application.NewStoreService(manager, shopifyClient, logger)

	// Webhook intake
	eventHub := pubsub.NewWebhookPubSub(logger)
	dispatcher := application.NewWebhookDispatcher(logger)
	dispatcher.RegisterHandler(webhook_handlers.NewOrderHandler(st.credentials, st.records, clock, logger))
	dispatcher.RegisterHandler(webhook_handlers.NewCustomerHandler(logger))
	dispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(st.credentials, manager, logger))
	webhookService := application.NewWebhookService(
		shopifyinfra.NewWebhookVerifier(cfg.ShopifyWebhookSecret),
		dispatcher,
		eventHub,
		clock,
		collector,
		logger,
	)

	handler := api.NewHandler(api.Services{
		Credentials: manager,
		OAuth:       oauthService,
		Connect:     connectService,
		Mailbox:     mailboxService,
		Store:       storeService,
		Webhooks:    webhookService,
		Events:      eventHub,
		Callbacks:   callbacks,
	}, cfg.FrontendURL, logger)

	router := api.NewRouter(handler, api.RouterConfig{
		Authenticator:  securitymiddleware.NewAuthenticator(cfg.JWTSecret, logger),
		Metrics:        collector.Handler(),
		Recorder:       collector,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger)

	go sweepStates(ctx, st.states, clock, cfg.StateSweepInterval, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Starting API server")
		logger.Info().Msg("Swagger documentation available at " + cfg.AppURL + "/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
	st.close(shutdownCtx, logger)
}

func openStores(ctx context.Context, cfg *config.Config, enc ports.EncryptionService, logger zerolog.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, client.Disconnect)
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return nil, err
		}

		db := client.Database(cfg.MongoDatabase)
		credentials := repository.NewMongoCredentialRepository(db, enc)
		states := repository.NewMongoOAuthStateRepository(db)
		if err := credentials.EnsureIndexes(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to ensure credential indexes")
		}
		if err := states.EnsureIndexes(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to ensure oauth state indexes")
		}
		st.credentials = credentials
		st.states = states
		st.records = repository.NewMongoWebhookRecordRepository(db)

	case config.StorePostgres:
		db, err := repository.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func(context.Context) error { return db.Close() })
		st.credentials = repository.NewPostgresCredentialRepository(db, enc)
		st.states = repository.NewPostgresOAuthStateRepository(db)
		st.records = repository.NewPostgresWebhookRecordRepository(db)

	default:
		logger.Warn().Msg("Using in-memory store; integrations are lost on restart")
		mem := repository.NewMemoryStore()
		st.credentials = mem
		st.states = mem
		st.records = mem
	}

	if cfg.StateDriver == config.StateRedis {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func(context.Context) error { return client.Close() })
		st.states = repository.NewRedisOAuthStateRepository(client)
	}

	return st, nil
}

// sweepStates drops expired OAuth nonces until ctx ends
func sweepStates(ctx context.Context, states ports.OAuthStateRepository, clock ports.Clock, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			application.PurgeExpiredStates(ctx, states, clock, logger)
		}
	}
}
