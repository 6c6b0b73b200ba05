package federated

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/grafeo/grafeo-api/internal/api/metrics"
	"github.com/grafeo/grafeo-api/internal/core/domain"
)

// Provider is a named federated verifier.
type Provider interface {
	Name() string
	Verify(ctx context.Context, token, subjectID string) (bool, error)
}

// CachedVerifier remembers positive verifications for a short time so that
// repeated logins with the same provider token skip the network round trip.
// Rejections and failures are never cached.
type CachedVerifier struct {
	next  Provider
	cache *expirable.LRU[string, struct{}]
}

// NewCachedVerifier wraps next. A non-positive size disables caching but
// keeps the verification metrics.
func NewCachedVerifier(next Provider, size int, ttl time.Duration) *CachedVerifier {
	v := &CachedVerifier{next: next}
	if size > 0 && ttl > 0 {
		v.cache = expirable.NewLRU[string, struct{}](size, nil, ttl)
	}
	return v
}

func (v *CachedVerifier) Verify(ctx context.Context, token, subjectID string) (bool, error) {
	key := cacheKey(token, subjectID)
	if v.cache != nil {
		if _, ok := v.cache.Get(key); ok {
			metrics.FederatedVerificationsTotal.WithLabelValues(v.next.Name(), "cached").Inc()
			return true, nil
		}
	}

	ok, err := v.next.Verify(ctx, token, subjectID)
	switch {
	case errors.Is(err, domain.ErrFederatedProviderUnavailable):
		metrics.FederatedVerificationsTotal.WithLabelValues(v.next.Name(), "unavailable").Inc()
		return false, err
	case err != nil:
		return false, err
	case !ok:
		metrics.FederatedVerificationsTotal.WithLabelValues(v.next.Name(), "rejected").Inc()
		return false, nil
	}

	metrics.FederatedVerificationsTotal.WithLabelValues(v.next.Name(), "valid").Inc()
	if v.cache != nil {
		v.cache.Add(key, struct{}{})
	}
	return true, nil
}

// cacheKey hashes the pair; raw provider tokens are never stored.
func cacheKey(token, subjectID string) string {
	sum := sha256.Sum256([]byte(subjectID + "\x00" + token))
	return hex.EncodeToString(sum[:])
}
