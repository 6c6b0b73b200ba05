package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/grafeo/grafeo-api/internal/core/domain"
)

func TestNewTokenCodec_EmptySecret(t *testing.T) {
	if _, err := NewTokenCodec(TokenCodecConfig{}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestNewTokenCodec_DefaultTTL(t *testing.T) {
	c, err := NewTokenCodec(TokenCodecConfig{Secret: "s"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TTL() != 24*time.Hour {
		t.Fatalf("expected 24h default, got %v", c.TTL())
	}
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	c := newTestCodec()

	token, err := c.Mint(42)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	id, err := c.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected 42, got %d", id)
	}
}

func TestTokenCodec_Expired(t *testing.T) {
	c, _ := NewTokenCodec(TokenCodecConfig{Secret: "s", TTL: time.Hour})
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return issued }

	token, err := c.Mint(7)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	c.now = func() time.Time { return issued.Add(59 * time.Minute) }
	if _, err := c.Verify(token); err != nil {
		t.Fatalf("expected valid token before expiry, got %v", err)
	}

	c.now = func() time.Time { return issued.Add(61 * time.Minute) }
	if _, err := c.Verify(token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenCodec_AcceptsTokenMintedByFastClock(t *testing.T) {
	minter := newTestCodec()
	verifier := newTestCodec()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	minter.now = func() time.Time { return now.Add(2 * time.Second) }
	verifier.now = func() time.Time { return now }

	token, err := minter.Mint(7)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	id, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("expected token from a clock 2s ahead to verify, got %v", err)
	}
	if id != 7 {
		t.Fatalf("expected 7, got %d", id)
	}
}

func TestTokenCodec_WrongSecret(t *testing.T) {
	a, _ := NewTokenCodec(TokenCodecConfig{Secret: "one"})
	b, _ := NewTokenCodec(TokenCodecConfig{Secret: "two"})

	token, _ := a.Mint(1)
	if _, err := b.Verify(token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenCodec_ExpiredWithBadSignatureIsInvalid(t *testing.T) {
	a, _ := NewTokenCodec(TokenCodecConfig{Secret: "one", TTL: time.Minute})
	b, _ := NewTokenCodec(TokenCodecConfig{Secret: "two", TTL: time.Minute})
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return issued }
	b.now = func() time.Time { return issued.Add(time.Hour) }

	token, _ := a.Mint(1)
	if _, err := b.Verify(token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenCodec_Malformed(t *testing.T) {
	c := newTestCodec()
	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := c.Verify(token); !errors.Is(err, domain.ErrTokenInvalid) {
			t.Fatalf("%q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}

func TestTokenCodec_TamperedPayload(t *testing.T) {
	c := newTestCodec()
	token, _ := c.Mint(1)
	other, _ := c.Mint(2)

	parts := strings.Split(token, ".")
	otherParts := strings.Split(other, ".")
	forged := parts[0] + "." + otherParts[1] + "." + parts[2]

	if _, err := c.Verify(forged); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenCodec_RejectsOtherAlgorithms(t *testing.T) {
	c := newTestCodec()
	claims := jwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    "grafeo",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.Verify(token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenCodec_RequiresExpiry(t *testing.T) {
	c := newTestCodec()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "1",
		Issuer:  "grafeo",
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.Verify(token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenCodec_WrongIssuer(t *testing.T) {
	a, _ := NewTokenCodec(TokenCodecConfig{Secret: "s", Issuer: "someone-else"})
	b, _ := NewTokenCodec(TokenCodecConfig{Secret: "s", Issuer: "grafeo"})

	token, _ := a.Mint(1)
	if _, err := b.Verify(token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenCodec_MintForNil(t *testing.T) {
	c := newTestCodec()
	if _, err := c.MintFor(nil); !errors.Is(err, domain.ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
}
