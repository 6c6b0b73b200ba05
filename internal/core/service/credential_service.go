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

const defaultFederatedTimeout = 5 * time.Second

// dummyHash is compared against when the account does not exist so that an
// unknown username costs as much as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("grafeo-dummy-password"), bcrypt.DefaultCost)

// CredentialService verifies local passwords and federated provider tokens.
type CredentialService struct {
	repo             ports.IdentityRepository
	federated        ports.FederatedVerifier
	federatedTimeout time.Duration
	log              zerolog.Logger
	now              func() time.Time
}

func NewCredentialService(
	repo ports.IdentityRepository,
	federated ports.FederatedVerifier,
	federatedTimeout time.Duration,
	log zerolog.Logger,
) *CredentialService {
	if federatedTimeout <= 0 {
		federatedTimeout = defaultFederatedTimeout
	}
	return &CredentialService{
		repo:             repo,
		federated:        federated,
		federatedTimeout: federatedTimeout,
		log:              log,
		now:              time.Now,
	}
}

// VerifyLocal checks a username-or-email and password pair. Every credential
// failure is reported as domain.ErrAuthenticationFailed.
func (s *CredentialService) VerifyLocal(ctx context.Context, usernameOrEmail, password string) (*domain.Identity, error) {
	login := strings.TrimSpace(usernameOrEmail)
	if login == "" || password == "" {
		return nil, domain.ErrAuthenticationFailed
	}

	identity, err := s.repo.FindByUsernameOrEmail(ctx, login)
	switch {
	case errors.Is(err, domain.ErrIdentityNotFound):
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, domain.ErrAuthenticationFailed
	case err != nil:
		return nil, fmt.Errorf("verify local: %w", err)
	}

	hash := []byte(identity.PasswordHash)
	if identity.IsFederated() || len(hash) == 0 {
		hash = dummyHash
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || identity.IsFederated() {
		return nil, domain.ErrAuthenticationFailed
	}
	return identity, nil
}

// VerifyFederated asks the identity provider whether token is valid for
// subjectID. A rejection is (false, nil); an unreachable provider is
// domain.ErrFederatedProviderUnavailable.
func (s *CredentialService) VerifyFederated(ctx context.Context, token, subjectID string) (bool, error) {
	if s.federated == nil {
		return false, domain.ErrFederatedProviderUnavailable
	}
	if strings.TrimSpace(token) == "" || strings.TrimSpace(subjectID) == "" {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.federatedTimeout)
	defer cancel()

	ok, err := s.federated.Verify(ctx, token, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrFederatedProviderUnavailable) {
			return false, err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return false, fmt.Errorf("%w: %v", domain.ErrFederatedProviderUnavailable, err)
		}
		return false, fmt.Errorf("verify federated: %w", err)
	}
	return ok, nil
}

// FederatedLogin verifies the provider token, then creates or resyncs the
// identity bound to the provider subject.
func (s *CredentialService) FederatedLogin(ctx context.Context, in ports.FederatedLoginInput) (*domain.Identity, error) {
	subjectID := strings.TrimSpace(in.SubjectID)
	email := strings.TrimSpace(in.Email)
	name := strings.TrimSpace(in.Name)
	if subjectID == "" || email == "" {
		return nil, domain.ErrFederatedTokenRejected
	}

	ok, err := s.VerifyFederated(ctx, in.Token, subjectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrFederatedTokenRejected
	}

	existing, err := s.repo.FindBySubjectID(ctx, subjectID)
	switch {
	case err == nil:
		return s.resync(ctx, existing, email)
	case !errors.Is(err, domain.ErrIdentityNotFound):
		return nil, fmt.Errorf("federated login: %w", err)
	}

	if err := s.ensureEmailUnclaimed(ctx, email, 0); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &domain.Identity{
		Name:        name,
		Username:    email,
		Email:       email,
		FederatedID: subjectID,
		Roles:       []string{domain.RoleUser},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if errors.Is(err, domain.ErrDuplicateIdentity) {
		// A concurrent first login for the same subject may have won the race.
		if winner, findErr := s.repo.FindBySubjectID(ctx, subjectID); findErr == nil {
			return s.resync(ctx, winner, email)
		}
		return nil, domain.ErrEmailAlreadyInUse
	}
	if err != nil {
		return nil, fmt.Errorf("federated login: create: %w", err)
	}

	s.log.Info().Int64("identity_id", created.ID).Msg("federated identity created")
	return created, nil
}

// resync mirrors a provider-side email change onto the stored email and
// username. A new email claimed by someone else is refused rather than merged.
func (s *CredentialService) resync(ctx context.Context, identity *domain.Identity, email string) (*domain.Identity, error) {
	if identity.Email == email && identity.Username == email {
		return identity, nil
	}
	if err := s.ensureEmailUnclaimed(ctx, email, identity.ID); err != nil {
		return nil, err
	}

	updated := *identity
	updated.Email = email
	updated.Username = email
	updated.UpdatedAt = s.now().UTC()

	saved, err := s.repo.Update(ctx, &updated)
	if errors.Is(err, domain.ErrDuplicateIdentity) {
		return nil, domain.ErrEmailAlreadyInUse
	}
	if err != nil {
		return nil, fmt.Errorf("federated resync: %w", err)
	}

	s.log.Info().Int64("identity_id", saved.ID).Msg("federated identity resynced")
	return saved, nil
}

// ensureEmailUnclaimed fails when email is used as a username or email by an
// identity other than ownerID.
func (s *CredentialService) ensureEmailUnclaimed(ctx context.Context, email string, ownerID int64) error {
	for _, find := range []func(context.Context, string) (*domain.Identity, error){
		s.repo.FindByUsername,
		s.repo.FindByEmail,
	} {
		other, err := find(ctx, email)
		if errors.Is(err, domain.ErrIdentityNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if other.ID != ownerID {
			return domain.ErrEmailAlreadyInUse
		}
	}
	return nil
}
