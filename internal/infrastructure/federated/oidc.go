package federated

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/grafeo/grafeo-api/internal/core/domain"
)

const (
	defaultJWKSRefreshLimit = 30 * time.Second
	maxJWKSBodySize         = 1 << 20
)

// OIDCConfig configures ID token verification against a JWKS endpoint.
type OIDCConfig struct {
	JWKSURL    string
	Issuer     string
	Audience   string
	HTTPClient *http.Client
	// RefreshLimit is the minimum gap between two key set fetches triggered
	// by unknown key ids. Defaults to 30s.
	RefreshLimit time.Duration
}

// OIDC verifies provider-signed ID tokens. The key set is refetched when a
// token carries an unknown kid, bounded by the caller's context.
type OIDC struct {
	jwksURL      string
	issuer       string
	audience     string
	client       *http.Client
	refreshLimit time.Duration
	log          zerolog.Logger
	now          func() time.Time

	fetches singleflight.Group

	mu        sync.RWMutex
	keys      *keyfunc.JWKS
	fetchedAt time.Time
}

// NewOIDC fetches the key set once; the provider being unreachable at startup
// is a configuration error.
func NewOIDC(ctx context.Context, cfg OIDCConfig, log zerolog.Logger) (*OIDC, error) {
	if cfg.JWKSURL == "" {
		return nil, errors.New("oidc: empty JWKS URL")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	limit := cfg.RefreshLimit
	if limit <= 0 {
		limit = defaultJWKSRefreshLimit
	}

	o := &OIDC{
		jwksURL:      cfg.JWKSURL,
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		client:       client,
		refreshLimit: limit,
		log:          log,
		now:          time.Now,
	}
	if err := o.refresh(ctx); err != nil {
		return nil, fmt.Errorf("oidc: %w", err)
	}
	return o, nil
}

func (o *OIDC) Name() string {
	return "oidc"
}

// Verify checks the ID token signature, expiry, issuer and audience and that
// its subject is subjectID. A kid missing from the cached key set triggers a
// refetch; if that refetch fails the provider is reported unavailable.
func (o *OIDC) Verify(ctx context.Context, token, subjectID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: oidc: %v", domain.ErrFederatedProviderUnavailable, err)
	}

	claims, err := o.parse(token)
	if errors.Is(err, keyfunc.ErrKIDNotFound) {
		refreshed, rerr := o.refreshStale(ctx)
		if rerr != nil {
			return false, fmt.Errorf("%w: oidc: %v", domain.ErrFederatedProviderUnavailable, rerr)
		}
		if refreshed {
			claims, err = o.parse(token)
		}
	}
	if err != nil {
		return false, nil
	}
	return claims.Subject == subjectID, nil
}

func (o *OIDC) parse(token string) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "EdDSA"}),
		jwt.WithExpirationRequired(),
	}
	if o.issuer != "" {
		opts = append(opts, jwt.WithIssuer(o.issuer))
	}
	if o.audience != "" {
		opts = append(opts, jwt.WithAudience(o.audience))
	}

	o.mu.RLock()
	keys := o.keys
	o.mu.RUnlock()

	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, keys.Keyfunc, opts...); err != nil {
		return nil, err
	}
	return claims, nil
}

// refreshStale refetches the key set unless it was fetched within the refresh
// limit. Concurrent callers share one fetch. It reports whether a new key set
// is in place.
func (o *OIDC) refreshStale(ctx context.Context) (bool, error) {
	o.mu.RLock()
	fresh := o.now().Sub(o.fetchedAt) < o.refreshLimit
	o.mu.RUnlock()
	if fresh {
		return false, nil
	}

	_, err, _ := o.fetches.Do(o.jwksURL, func() (any, error) {
		return nil, o.refresh(ctx)
	})
	if err != nil {
		o.log.Warn().Err(err).Str("jwks_url", o.jwksURL).Msg("jwks refresh failed")
		return false, err
	}
	return true, nil
}

func (o *OIDC) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBodySize))
	if err != nil {
		return fmt.Errorf("read jwks: %w", err)
	}
	keys, err := keyfunc.NewJSON(json.RawMessage(body))
	if err != nil {
		return fmt.Errorf("parse jwks: %w", err)
	}

	o.mu.Lock()
	o.keys = keys
	o.fetchedAt = o.now()
	o.mu.Unlock()
	return nil
}
