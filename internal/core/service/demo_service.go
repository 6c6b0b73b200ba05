package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/grafeo/grafeo-api/internal/core/domain"
	"github.com/grafeo/grafeo-api/internal/core/ports"
)

const (
	defaultDemoTTL          = 10 * time.Minute
	defaultProvisionTimeout = time.Minute
	defaultPurgeConcurrency = 4
	defaultDemoEmailDomain  = "demo.grafeo.app"
	demoUsernamePrefix      = "demo_"
	demoDisplayName         = "Demo User"
	maxDemoUsernameAttempts = 5
	sweepSingleFlightKey    = "sweep"
)

// DemoConfig controls the lifetime of demo identities.
type DemoConfig struct {
	TTL              time.Duration
	ProvisionTimeout time.Duration
	PurgeConcurrency int
	EmailDomain      string
}

// DemoService creates disposable demo identities and purges them once their
// TTL has elapsed. It is the only component that deletes identities.
type DemoService struct {
	repo   ports.IdentityRepository
	seeder ports.SampleSeeder
	codec  *TokenCodec
	cfg    DemoConfig
	log    zerolog.Logger
	now    func() time.Time
	suffix func() string

	sweeps singleflight.Group
}

func NewDemoService(
	repo ports.IdentityRepository,
	seeder ports.SampleSeeder,
	codec *TokenCodec,
	cfg DemoConfig,
	log zerolog.Logger,
) *DemoService {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultDemoTTL
	}
	if cfg.ProvisionTimeout <= 0 {
		cfg.ProvisionTimeout = defaultProvisionTimeout
	}
	if cfg.PurgeConcurrency <= 0 {
		cfg.PurgeConcurrency = defaultPurgeConcurrency
	}
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = defaultDemoEmailDomain
	}
	return &DemoService{
		repo:   repo,
		seeder: seeder,
		codec:  codec,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		suffix: randomSuffix,
	}
}

// TTL is the lifetime of a demo identity measured from its creation.
func (s *DemoService) TTL() time.Duration {
	return s.cfg.TTL
}

// GenerateDemoUser creates a demo identity, seeds its sample data and returns
// it with a session token. The identity becomes visible to the sweep only
// after seeding has completed.
func (s *DemoService) GenerateDemoUser(ctx context.Context) (*ports.DemoSession, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("generate demo user: hash: %w", err)
	}

	created, err := s.createUnique(ctx, string(hash))
	if err != nil {
		return nil, err
	}

	if err := s.seeder.Seed(ctx, created.ID); err != nil {
		s.discard(created.ID)
		return nil, fmt.Errorf("generate demo user: seed: %w", err)
	}

	if err := s.repo.Activate(ctx, created.ID); err != nil {
		s.discard(created.ID)
		return nil, fmt.Errorf("generate demo user: activate: %w", err)
	}
	created.Provisioning = false

	token, err := s.codec.MintFor(created)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("identity_id", created.ID).
		Str("username", created.Username).
		Time("expires_at", created.ExpiresAt(s.cfg.TTL)).
		Msg("demo identity created")

	return &ports.DemoSession{Identity: created, Token: token}, nil
}

func (s *DemoService) createUnique(ctx context.Context, passwordHash string) (*domain.Identity, error) {
	for attempt := 1; attempt <= maxDemoUsernameAttempts; attempt++ {
		username := demoUsernamePrefix + s.suffix()
		email := username + "@" + s.cfg.EmailDomain

		taken, err := s.claimed(ctx, username, email)
		if err != nil {
			return nil, err
		}
		if taken {
			s.log.Debug().Str("username", username).Int("attempt", attempt).Msg("demo username collision")
			continue
		}

		now := s.now().UTC()
		created, err := s.repo.Create(ctx, &domain.Identity{
			Name:         demoDisplayName,
			Username:     username,
			Email:        email,
			PasswordHash: passwordHash,
			Roles:        []string{domain.RoleUser},
			Demo:         true,
			Provisioning: true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			s.log.Debug().Str("username", username).Int("attempt", attempt).Msg("demo username claimed concurrently")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("generate demo user: create: %w", err)
		}
		return created, nil
	}
	return nil, domain.ErrDemoUsernameExhausted
}

func (s *DemoService) claimed(ctx context.Context, username, email string) (bool, error) {
	exists, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil || exists {
		return exists, err
	}
	return s.repo.ExistsByEmail(ctx, email)
}

// discard removes a half-provisioned identity. It runs detached from the
// request context so a disconnected client does not leave orphans behind;
// anything it misses is picked up by the sweep after the provisioning timeout.
func (s *DemoService) discard(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProvisionTimeout)
	defer cancel()
	if err := s.repo.DeleteCascade(ctx, id); err != nil && !errors.Is(err, domain.ErrIdentityNotFound) {
		s.log.Warn().Err(err).Int64("identity_id", id).Msg("failed to discard demo identity")
	}
}

// Sweep purges every expired demo identity. Concurrent callers share the
// cycle already in flight. Individual purge failures are logged and left for
// the next cycle; only a failed enumeration is returned as an error.
func (s *DemoService) Sweep(ctx context.Context) (ports.SweepReport, error) {
	v, err, _ := s.sweeps.Do(sweepSingleFlightKey, func() (any, error) {
		return s.sweep(ctx)
	})
	if err != nil {
		return ports.SweepReport{}, err
	}
	return v.(ports.SweepReport), nil
}

func (s *DemoService) sweep(ctx context.Context) (ports.SweepReport, error) {
	start := s.now()
	report := ports.SweepReport{}

	demos, err := s.repo.ListByDemoFlag(ctx, true)
	if err != nil {
		return report, fmt.Errorf("sweep: list demo identities: %w", err)
	}
	report.Scanned = len(demos)

	var purged, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.PurgeConcurrency)

	for _, identity := range demos {
		if !s.purgeable(identity, start) {
			continue
		}
		report.Expired++

		id := identity.ID
		g.Go(func() error {
			err := s.repo.DeleteCascade(gctx, id)
			switch {
			case err == nil, errors.Is(err, domain.ErrIdentityNotFound):
				purged.Add(1)
			default:
				failed.Add(1)
				s.log.Warn().Err(err).Int64("identity_id", id).Msg("demo purge failed, will retry next cycle")
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Purged = int(purged.Load())
	report.Failed = int(failed.Load())
	report.Duration = s.now().Sub(start)

	if report.Expired > 0 {
		s.log.Info().
			Int("scanned", report.Scanned).
			Int("purged", report.Purged).
			Int("failed", report.Failed).
			Dur("duration", report.Duration).
			Msg("demo sweep completed")
	}
	return report, nil
}

// purgeable reports whether identity is an expired demo identity. Identities
// still being seeded are skipped until they outlive the provisioning timeout.
func (s *DemoService) purgeable(identity *domain.Identity, now time.Time) bool {
	if !identity.Expired(now, s.cfg.TTL) {
		return false
	}
	if identity.Provisioning {
		return !now.Before(identity.ExpiresAt(s.cfg.TTL + s.cfg.ProvisionTimeout))
	}
	return true
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
