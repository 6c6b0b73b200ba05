package domain

import (
	"strings"
	"time"
)

const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// Identity models an account. It is either local (PasswordHash set) or
// federated (FederatedID set), never both.
type Identity struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FederatedID  string    `json:"-"`
	Roles        []string  `json:"roles"`
	Demo         bool      `json:"demo"`
	Provisioning bool      `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks the local/federated credential invariant.
func (i *Identity) Validate() error {
	if i == nil {
		return ErrInvalidIdentity
	}
	hasPassword := i.PasswordHash != ""
	hasSubject := i.FederatedID != ""
	if hasPassword == hasSubject {
		return ErrInvalidIdentity
	}
	if strings.TrimSpace(i.Username) == "" || strings.TrimSpace(i.Email) == "" {
		return ErrInvalidIdentity
	}
	return nil
}

// IsFederated reports whether the credential authority is an external provider.
func (i *Identity) IsFederated() bool {
	return i.FederatedID != ""
}

// HasRole reports whether role is in the identity's role set.
func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ExpiresAt is the instant a demo identity becomes eligible for purge.
func (i *Identity) ExpiresAt(ttl time.Duration) time.Time {
	return i.CreatedAt.Add(ttl)
}

// Expired reports whether a demo identity's TTL has elapsed at now.
// Non-demo identities never expire.
func (i *Identity) Expired(now time.Time, ttl time.Duration) bool {
	if !i.Demo {
		return false
	}
	return !now.Before(i.ExpiresAt(ttl))
}

// Fold returns the case-insensitive comparison key for usernames and emails.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
