package domain

import "errors"

var (
	ErrAuthenticationFailed = errors.New("bad credentials")
	ErrTokenInvalid         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrPrincipalNotFound    = errors.New("principal not found")
	ErrForbidden            = errors.New("access forbidden")

	ErrDuplicateIdentity = errors.New("username or email already taken")
	ErrEmailAlreadyInUse = errors.New("email already used")
	ErrIdentityNotFound  = errors.New("identity not found")
	ErrInvalidIdentity   = errors.New("identity must carry exactly one of password or federated subject")

	ErrFederatedTokenRejected       = errors.New("federated token rejected")
	ErrFederatedProviderUnavailable = errors.New("federated provider unavailable")

	ErrDemoUsernameExhausted = errors.New("could not allocate a demo username")
)
