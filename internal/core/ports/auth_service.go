package ports

import (
	"context"
	"time"

	"github.com/grafeo/grafeo-api/internal/core/domain"
)

// SignUpInput carries the fields of a local account registration.
type SignUpInput struct {
	Name     string
	Username string
	Email    string
	Password string
}

// FederatedLoginInput carries a provider token and the profile it asserts.
type FederatedLoginInput struct {
	Token     string
	SubjectID string
	Email     string
	Name      string
}

// AuthService issues session tokens for every sign-in path.
type AuthService interface {
	SignIn(ctx context.Context, usernameOrEmail, password string) (string, *domain.Identity, error)
	SignUp(ctx context.Context, input SignUpInput) (*domain.Identity, error)
	FederatedSignIn(ctx context.Context, input FederatedLoginInput) (string, *domain.Identity, error)
	DemoSignIn(ctx context.Context) (string, *domain.Identity, error)
}

// SessionAuthenticator turns a bearer token into a principal.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Principal, error)
	Authorize(principal *domain.Principal, role string) error
	Refresh(principal *domain.Principal) (string, error)
}

// ProfileInput carries a profile update. An empty Password keeps the current one.
type ProfileInput struct {
	Name     string
	Username string
	Email    string
	Password string
}

// UserSummary is the current-user view, including a re-minted token.
type UserSummary struct {
	ID            int64
	Username      string
	Email         string
	Name          string
	Demo          bool
	SocialLogin   bool
	AccessToken   string
	DemoExpiresAt time.Time
}

// UserService covers current-user reads, profile updates and availability checks.
type UserService interface {
	Me(ctx context.Context, principal *domain.Principal) (*UserSummary, error)
	UpdateProfile(ctx context.Context, principal *domain.Principal, input ProfileInput) (*domain.Identity, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	EmailAvailable(ctx context.Context, email string) (bool, error)
}
