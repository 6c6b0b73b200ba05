package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/grafeo/grafeo-api/internal/core/domain"
	"github.com/grafeo/grafeo-api/internal/core/ports"
)

// SessionService resolves bearer tokens into principals.
type SessionService struct {
	codec *TokenCodec
	repo  ports.IdentityRepository
}

func NewSessionService(codec *TokenCodec, repo ports.IdentityRepository) *SessionService {
	return &SessionService{codec: codec, repo: repo}
}

// Authenticate verifies the token and reloads the identity it names. A token
// whose identity was deleted after minting (e.g. a purged demo account) is
// rejected with domain.ErrPrincipalNotFound even though its signature holds.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*domain.Principal, error) {
	id, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}

	identity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, domain.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return domain.NewPrincipal(identity), nil
}

func (s *SessionService) Authorize(principal *domain.Principal, role string) error {
	if principal == nil || !principal.HasRole(role) {
		return domain.ErrForbidden
	}
	return nil
}

// Refresh re-mints a token for an authenticated principal.
func (s *SessionService) Refresh(principal *domain.Principal) (string, error) {
	if principal == nil {
		return "", domain.ErrPrincipalNotFound
	}
	return s.codec.Mint(principal.ID)
}
