package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/grafeo/grafeo-api/internal/core/domain"
)

const defaultTokenTTL = 24 * time.Hour

// TokenCodecConfig is fixed at startup and never mutated afterwards.
type TokenCodecConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// TokenCodec mints and verifies HS256 session tokens. It holds no mutable
// state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token codec: empty signing secret")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &TokenCodec{secret: secret, ttl: ttl, issuer: cfg.Issuer, now: time.Now}, nil
}

// Mint signs a token for the given identity id.
func (c *TokenCodec) Mint(id int64) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(id, 10),
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return signed, nil
}

// MintFor signs a token for an identity already loaded by the caller.
func (c *TokenCodec) MintFor(identity *domain.Identity) (string, error) {
	if identity == nil {
		return "", domain.ErrInvalidIdentity
	}
	return c.Mint(identity.ID)
}

// Verify returns the identity id carried by token. The signature is checked
// before any claim, so an expired token with a bad signature is reported as
// domain.ErrTokenInvalid. Only exp is enforced in time; iat is informational
// so replicas with slightly skewed clocks accept each other's tokens.
func (c *TokenCodec) Verify(token string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, domain.ErrTokenExpired
		}
		return 0, domain.ErrTokenInvalid
	}
	if !parsed.Valid {
		return 0, domain.ErrTokenInvalid
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrTokenInvalid
	}
	return id, nil
}

// TTL is the validity window applied to every minted token.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}
