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

// UserService serves the current-user endpoints and availability checks.
type UserService struct {
	repo     ports.IdentityRepository
	sessions ports.SessionAuthenticator
	demoTTL  time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewUserService(repo ports.IdentityRepository, sessions ports.SessionAuthenticator, demoTTL time.Duration, log zerolog.Logger) *UserService {
	return &UserService{repo: repo, sessions: sessions, demoTTL: demoTTL, log: log, now: time.Now}
}

// Me returns the principal's summary with a freshly minted token, giving
// clients a sliding session.
func (s *UserService) Me(ctx context.Context, principal *domain.Principal) (*ports.UserSummary, error) {
	if principal == nil {
		return nil, domain.ErrPrincipalNotFound
	}

	token, err := s.sessions.Refresh(principal)
	if err != nil {
		return nil, err
	}

	summary := &ports.UserSummary{
		ID:          principal.ID,
		Username:    principal.Username,
		Email:       principal.Email,
		Name:        principal.Name,
		Demo:        principal.Demo,
		SocialLogin: principal.Federated,
		AccessToken: token,
	}
	if principal.Demo {
		identity, err := s.repo.FindByID(ctx, principal.ID)
		if err != nil {
			if errors.Is(err, domain.ErrIdentityNotFound) {
				return nil, domain.ErrPrincipalNotFound
			}
			return nil, fmt.Errorf("me: %w", err)
		}
		summary.DemoExpiresAt = identity.ExpiresAt(s.demoTTL)
	}
	return summary, nil
}

// UpdateProfile changes name, username, email and, for local accounts, the
// password. Demo and federated identities cannot change their credentials.
func (s *UserService) UpdateProfile(ctx context.Context, principal *domain.Principal, in ports.ProfileInput) (*domain.Identity, error) {
	if principal == nil {
		return nil, domain.ErrPrincipalNotFound
	}

	identity, err := s.repo.FindByID(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, domain.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	updated := *identity
	updated.Name = strings.TrimSpace(in.Name)
	updated.Username = strings.TrimSpace(in.Username)
	updated.Email = strings.TrimSpace(in.Email)

	credentialsChanged := domain.Fold(updated.Username) != domain.Fold(identity.Username) ||
		domain.Fold(updated.Email) != domain.Fold(identity.Email) ||
		in.Password != ""
	if identity.Demo && credentialsChanged {
		return nil, domain.ErrForbidden
	}

	if password := strings.TrimSpace(in.Password); password != "" {
		if identity.IsFederated() {
			return nil, domain.ErrForbidden
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		updated.PasswordHash = string(hash)
	}
	updated.UpdatedAt = s.now().UTC()

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	saved, err := s.repo.Update(ctx, &updated)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			return nil, err
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.log.Info().Int64("identity_id", saved.ID).Msg("profile updated")
	return saved, nil
}

func (s *UserService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	exists, err := s.repo.ExistsByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return false, fmt.Errorf("username availability: %w", err)
	}
	return !exists, nil
}

func (s *UserService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	exists, err := s.repo.ExistsByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return false, fmt.Errorf("email availability: %w", err)
	}
	return !exists, nil
}
