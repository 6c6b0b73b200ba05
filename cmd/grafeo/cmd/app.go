package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/grafeo/grafeo-api/internal/core/ports"
	"github.com/grafeo/grafeo-api/internal/core/service"
	"github.com/grafeo/grafeo-api/internal/infrastructure/db/mongo"
	redisdb "github.com/grafeo/grafeo-api/internal/infrastructure/db/redis"
	"github.com/grafeo/grafeo-api/internal/infrastructure/federated"
	"github.com/grafeo/grafeo-api/internal/infrastructure/scheduler"
	"github.com/grafeo/grafeo-api/internal/pkg/config"
	"github.com/grafeo/grafeo-api/pkg/logger"
)

// app holds every long-lived collaborator shared by the subcommands.
type app struct {
	mongoClient *mongodriver.Client
	db          *mongodriver.Database
	redis       *redis.Client

	sessions *service.SessionService
	auth     *service.AuthService
	users    *service.UserService
	demos    *service.DemoService
	sweeper  *scheduler.Sweeper
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	client, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	a.mongoClient, a.db = client, db
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.redis = rdb
	if rdb == nil {
		log.Warn().Msg("REDIS_ADDR not set; demo sweep runs without a cross-replica lock")
	}

	samples := mongo.NewSampleRepository(db)
	identities := mongo.NewIdentityRepository(db, samples, cfg.Mongo.Transactions)
	if err := mongo.EnsureIndexes(ctx, identities, samples); err != nil {
		a.Close(ctx)
		return nil, err
	}

	verifier, err := newFederatedVerifier(ctx, cfg.Federated, logger.Component("federated"))
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	codec, err := service.NewTokenCodec(service.TokenCodecConfig{
		Secret: cfg.JWT.Secret,
		TTL:    cfg.JWT.TTL,
		Issuer: cfg.JWT.Issuer,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.demos = service.NewDemoService(identities, samples, codec, service.DemoConfig{
		TTL:              cfg.Demo.TTL,
		ProvisionTimeout: cfg.Demo.ProvisionTimeout,
		PurgeConcurrency: cfg.Demo.PurgeConcurrency,
		EmailDomain:      cfg.Demo.EmailDomain,
	}, logger.Component("demo"))

	credentials := service.NewCredentialService(identities, verifier, cfg.Federated.Timeout, logger.Component("credentials"))
	a.sessions = service.NewSessionService(codec, identities)
	a.auth = service.NewAuthService(identities, credentials, a.demos, codec, logger.Component("auth"))
	a.users = service.NewUserService(identities, a.sessions, a.demos.TTL(), logger.Component("users"))

	var lock scheduler.Locker
	if rdb != nil {
		lock = redisdb.NewLock(rdb, scheduler.LockName)
	}
	a.sweeper = scheduler.NewSweeper(a.demos, lock, cfg.Demo.SweepInterval, logger.Get())

	return a, nil
}

// newFederatedVerifier builds the configured provider behind the
// positive-result cache.
func newFederatedVerifier(ctx context.Context, cfg config.FederatedConfig, log zerolog.Logger) (ports.FederatedVerifier, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	var provider federated.Provider
	switch cfg.Provider {
	case "oidc":
		oidc, err := federated.NewOIDC(ctx, federated.OIDCConfig{
			JWKSURL:    cfg.OIDCJWKSURL,
			Issuer:     cfg.OIDCIssuer,
			Audience:   cfg.OIDCAudience,
			HTTPClient: httpClient,
		}, log)
		if err != nil {
			return nil, err
		}
		provider = oidc
	default:
		if cfg.FacebookAppID == "" || cfg.FacebookAppSecret == "" {
			log.Warn().Msg("FACEBOOK_APP_ID or FACEBOOK_APP_SECRET not set; federated sign-in will be rejected")
		}
		provider = federated.NewFacebook(federated.FacebookConfig{
			AppID:      cfg.FacebookAppID,
			AppSecret:  cfg.FacebookAppSecret,
			GraphURL:   cfg.FacebookGraphURL,
			HTTPClient: httpClient,
			Log:        log,
		})
	}

	log.Info().Str("provider", provider.Name()).Msg("federated verifier configured")
	return federated.NewCachedVerifier(provider, cfg.CacheSize, cfg.CacheTTL), nil
}

// Close releases every connection opened by buildApp.
func (a *app) Close(ctx context.Context) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close")
		}
	}
	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(ctx); err != nil {
			log.Warn().Err(err).Msg("mongodb disconnect")
		}
	}
}
