package federated

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/grafeo/grafeo-api/internal/core/domain"
)

type countingProvider struct {
	ok    bool
	err   error
	calls int
}

func (p *countingProvider) Name() string { return "stub" }

func (p *countingProvider) Verify(ctx context.Context, token, subjectID string) (bool, error) {
	p.calls++
	return p.ok, p.err
}

func TestCachedVerifier_CachesPositiveResults(t *testing.T) {
	p := &countingProvider{ok: true}
	v := NewCachedVerifier(p, 16, time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := v.Verify(context.Background(), "tok", "123")
		if err != nil || !ok {
			t.Fatalf("expected valid, got %v %v", ok, err)
		}
	}
	if p.calls != 1 {
		t.Fatalf("expected one provider call, got %d", p.calls)
	}

	// A different subject with the same token is a different key.
	if _, err := v.Verify(context.Background(), "tok", "456"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 2 {
		t.Fatalf("expected a second provider call, got %d", p.calls)
	}
}

func TestCachedVerifier_DoesNotCacheFailures(t *testing.T) {
	rejected := &countingProvider{ok: false}
	v := NewCachedVerifier(rejected, 16, time.Minute)
	for i := 0; i < 2; i++ {
		if ok, _ := v.Verify(context.Background(), "tok", "123"); ok {
			t.Fatalf("expected rejection")
		}
	}
	if rejected.calls != 2 {
		t.Fatalf("expected rejections to reach the provider every time, got %d", rejected.calls)
	}

	down := &countingProvider{err: domain.ErrFederatedProviderUnavailable}
	v = NewCachedVerifier(down, 16, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := v.Verify(context.Background(), "tok", "123"); !errors.Is(err, domain.ErrFederatedProviderUnavailable) {
			t.Fatalf("expected ErrFederatedProviderUnavailable, got %v", err)
		}
	}
	if down.calls != 2 {
		t.Fatalf("expected failures to reach the provider every time, got %d", down.calls)
	}
}

func TestCachedVerifier_Disabled(t *testing.T) {
	p := &countingProvider{ok: true}
	v := NewCachedVerifier(p, 0, time.Minute)
	for i := 0; i < 2; i++ {
		_, _ = v.Verify(context.Background(), "tok", "123")
	}
	if p.calls != 2 {
		t.Fatalf("expected caching disabled, got %d calls", p.calls)
	}
}
