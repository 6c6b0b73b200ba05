package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/grafeo/grafeo-api/internal/core/domain"
	"github.com/grafeo/grafeo-api/internal/core/ports"
)

// AuthService implements every sign-in path and local sign-up.
type AuthService struct {
	repo        ports.IdentityRepository
	credentials *CredentialService
	demos       ports.DemoLifecycle
	codec       *TokenCodec
	log         zerolog.Logger
	now         func() time.Time
}

func NewAuthService(
	repo ports.IdentityRepository,
	credentials *CredentialService,
	demos ports.DemoLifecycle,
	codec *TokenCodec,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		repo:        repo,
		credentials: credentials,
		demos:       demos,
		codec:       codec,
		log:         log,
		now:         time.Now,
	}
}

func (s *AuthService) SignIn(ctx context.Context, usernameOrEmail, password string) (string, *domain.Identity, error) {
	identity, err := s.credentials.VerifyLocal(ctx, usernameOrEmail, password)
	if err != nil {
		return "", nil, err
	}

	token, err := s.codec.MintFor(identity)
	if err != nil {
		return "", nil, err
	}
	return token, identity, nil
}

// SignUp registers a local account. The existence checks give friendly
// early failures; the store's unique constraint remains the authority.
func (s *AuthService) SignUp(ctx context.Context, in ports.SignUpInput) (*domain.Identity, error) {
	name := strings.TrimSpace(in.Name)
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	password := strings.TrimSpace(in.Password)
	if username == "" || email == "" || password == "" {
		return nil, domain.ErrInvalidIdentity
	}

	taken, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: username %q", domain.ErrDuplicateIdentity, username)
	}
	taken, err = s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: email %q", domain.ErrDuplicateIdentity, email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &domain.Identity{
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Roles:        []string{domain.RoleUser},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			return nil, err
		}
		return nil, fmt.Errorf("sign up: %w", err)
	}

	s.log.Info().Int64("identity_id", created.ID).Str("username", created.Username).Msg("identity registered")
	return created, nil
}

func (s *AuthService) FederatedSignIn(ctx context.Context, in ports.FederatedLoginInput) (string, *domain.Identity, error) {
	identity, err := s.credentials.FederatedLogin(ctx, in)
	if err != nil {
		return "", nil, err
	}

	token, err := s.codec.MintFor(identity)
	if err != nil {
		return "", nil, err
	}
	return token, identity, nil
}

func (s *AuthService) DemoSignIn(ctx context.Context) (string, *domain.Identity, error) {
	session, err := s.demos.GenerateDemoUser(ctx)
	if err != nil {
		return "", nil, err
	}
	return session.Token, session.Identity, nil
}
