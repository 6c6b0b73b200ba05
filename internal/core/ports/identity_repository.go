package ports

import (
	"context"

	"github.com/grafeo/grafeo-api/internal/core/domain"
)

// IdentityRepository is the persistence gateway for identities.
// Username and email comparisons are case-insensitive. Lookups that find
// nothing return domain.ErrIdentityNotFound.
type IdentityRepository interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	FindByID(ctx context.Context, id int64) (*domain.Identity, error)
	FindByUsername(ctx context.Context, username string) (*domain.Identity, error)
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	// FindByUsernameOrEmail resolves a sign-in login. A username match takes
	// precedence over an email match.
	FindByUsernameOrEmail(ctx context.Context, login string) (*domain.Identity, error)
	FindBySubjectID(ctx context.Context, subjectID string) (*domain.Identity, error)

	// Create assigns an id and persists the identity. It fails with
	// domain.ErrDuplicateIdentity when the username or email is already
	// claimed; this result is authoritative regardless of prior checks.
	Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)
	// Update overwrites mutable fields. Uniqueness violations surface as
	// domain.ErrDuplicateIdentity.
	Update(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)
	// Activate clears the provisioning flag, making a demo identity eligible
	// for the expiry sweep.
	Activate(ctx context.Context, id int64) error

	// DeleteCascade removes the identity and every record it owns. Returns
	// domain.ErrIdentityNotFound when the identity is already gone.
	DeleteCascade(ctx context.Context, id int64) error
	ListByDemoFlag(ctx context.Context, demo bool) ([]*domain.Identity, error)
}

// SampleSeeder creates placeholder owned records for a demo identity.
type SampleSeeder interface {
	Seed(ctx context.Context, ownerID int64) error
}

// FederatedVerifier confirms a provider token is valid and bound to subjectID.
// A rejected token yields (false, nil); transport failures yield
// domain.ErrFederatedProviderUnavailable.
type FederatedVerifier interface {
	Verify(ctx context.Context, token, subjectID string) (bool, error)
}
