package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/grafeo/grafeo-api/internal/core/domain"
	"github.com/grafeo/grafeo-api/internal/core/ports"
)

func newTestAuthService(repo *memRepo, fed *stubFederated) *AuthService {
	codec := newTestCodec()
	creds := NewCredentialService(repo, fed, 0, nopLog)
	demos := newTestDemoService(repo, DemoConfig{})
	return NewAuthService(repo, creds, demos, codec, nopLog)
}

func signUpInput(username, email string) ports.SignUpInput {
	return ports.SignUpInput{Name: "Alice", Username: username, Email: email, Password: "secret1"}
}

func TestAuthService_SignUp_Success(t *testing.T) {
	repo := newMemRepo()
	svc := newTestAuthService(repo, nil)

	created, err := svc.SignUp(context.Background(), ports.SignUpInput{
		Name:     " Alice ",
		Username: " alice ",
		Email:    "alice@example.com",
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == 0 || created.Username != "alice" || created.Name != "Alice" {
		t.Fatalf("unexpected identity: %+v", created)
	}
	if !created.HasRole(domain.RoleUser) || created.Demo || created.IsFederated() {
		t.Fatalf("expected plain local ROLE_USER identity: %+v", created)
	}
	if bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret1")) != nil {
		t.Fatalf("password was not hashed correctly")
	}
}

func TestAuthService_SignUp_Validation(t *testing.T) {
	svc := newTestAuthService(newMemRepo(), nil)

	for _, in := range []ports.SignUpInput{
		{Username: "", Email: "a@example.com", Password: "secret1"},
		{Username: "alice", Email: " ", Password: "secret1"},
		{Username: "alice", Email: "a@example.com", Password: ""},
	} {
		if _, err := svc.SignUp(context.Background(), in); !errors.Is(err, domain.ErrInvalidIdentity) {
			t.Fatalf("%+v: expected ErrInvalidIdentity, got %v", in, err)
		}
	}
}

func TestAuthService_SignUp_Duplicate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestAuthService(repo, nil)
	if _, err := svc.SignUp(context.Background(), signUpInput("alice", "alice@example.com")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []ports.SignUpInput{
		signUpInput("ALICE", "other@example.com"),
		signUpInput("bob", "Alice@Example.com"),
	}
	for _, in := range cases {
		if _, err := svc.SignUp(context.Background(), in); !errors.Is(err, domain.ErrDuplicateIdentity) {
			t.Fatalf("%+v: expected ErrDuplicateIdentity, got %v", in, err)
		}
	}
}

func TestAuthService_SignUp_ConcurrentSameUsername(t *testing.T) {
	repo := newMemRepo()
	svc := newTestAuthService(repo, nil)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SignUp(context.Background(), signUpInput("alice", "alice@example.com"))
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case !errors.Is(err, domain.ErrDuplicateIdentity):
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one sign-up to win, got %d", succeeded)
	}
	if repo.count() != 1 {
		t.Fatalf("expected one stored identity, got %d", repo.count())
	}
}

func TestAuthService_SignIn(t *testing.T) {
	repo := newMemRepo()
	svc := newTestAuthService(repo, nil)
	created, _ := svc.SignUp(context.Background(), signUpInput("alice", "alice@example.com"))

	token, identity, err := svc.SignIn(context.Background(), "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.ID != created.ID {
		t.Fatalf("expected identity %d, got %d", created.ID, identity.ID)
	}
	if id, err := svc.codec.Verify(token); err != nil || id != created.ID {
		t.Fatalf("token does not carry the identity: %d (%v)", id, err)
	}

	if _, _, err := svc.SignIn(context.Background(), "alice", "wrong"); !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestAuthService_FederatedSignIn(t *testing.T) {
	repo := newMemRepo()
	svc := newTestAuthService(repo, &stubFederated{ok: true})

	token, identity, err := svc.FederatedSignIn(context.Background(), federatedInput("fb-1", "fed@example.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id, err := svc.codec.Verify(token); err != nil || id != identity.ID {
		t.Fatalf("token does not carry the identity: %d (%v)", id, err)
	}

	// A second login with the same subject reuses the identity.
	_, again, err := svc.FederatedSignIn(context.Background(), federatedInput("fb-1", "fed@example.com"))
	if err != nil || again.ID != identity.ID {
		t.Fatalf("expected same identity, got %+v (%v)", again, err)
	}
}

func TestAuthService_DemoSignIn(t *testing.T) {
	repo := newMemRepo()
	svc := newTestAuthService(repo, nil)

	token, identity, err := svc.DemoSignIn(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !identity.Demo || token == "" {
		t.Fatalf("expected demo identity with token")
	}
}
