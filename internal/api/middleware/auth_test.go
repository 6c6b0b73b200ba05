package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/grafeo/grafeo-api/internal/core/domain"
)

type stubSessions struct {
	authenticateFn func(ctx context.Context, token string) (*domain.Principal, error)
}

func (s *stubSessions) Authenticate(ctx context.Context, token string) (*domain.Principal, error) {
	return s.authenticateFn(ctx, token)
}

func (s *stubSessions) Authorize(principal *domain.Principal, role string) error {
	if principal == nil || !principal.HasRole(role) {
		return domain.ErrForbidden
	}
	return nil
}

func (s *stubSessions) Refresh(principal *domain.Principal) (string, error) {
	return "refreshed", nil
}

func runAuth(t *testing.T, header string, sessions *stubSessions) (*httptest.ResponseRecorder, echo.Context, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := Auth(sessions)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, c, called
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	sessions := &stubSessions{
		authenticateFn: func(ctx context.Context, token string) (*domain.Principal, error) {
			if token != "abc" {
				t.Fatalf("unexpected token %q", token)
			}
			return &domain.Principal{ID: 7, Username: "alice", Roles: []string{domain.RoleUser}}, nil
		},
	}

	rec, c, called := runAuth(t, "Bearer abc", sessions)
	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	p := PrincipalFrom(c)
	if p == nil || p.ID != 7 || p.Username != "alice" {
		t.Fatalf("principal not set: %+v", p)
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	sessions := &stubSessions{
		authenticateFn: func(ctx context.Context, token string) (*domain.Principal, error) {
			t.Fatalf("should not authenticate")
			return nil, nil
		},
	}

	rec, _, called := runAuth(t, "", sessions)
	if called {
		t.Fatalf("should not reach next")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_InvalidHeaderFormat(t *testing.T) {
	sessions := &stubSessions{
		authenticateFn: func(ctx context.Context, token string) (*domain.Principal, error) {
			t.Fatalf("should not authenticate")
			return nil, nil
		},
	}

	for _, header := range []string{"Token abc", "Bearer", "Bearer   "} {
		rec, _, called := runAuth(t, header, sessions)
		if called {
			t.Fatalf("%q: should not reach next", header)
		}
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestAuthMiddleware_RejectedTokens(t *testing.T) {
	cases := []error{
		domain.ErrTokenInvalid,
		domain.ErrTokenExpired,
		domain.ErrPrincipalNotFound,
	}
	for _, want := range cases {
		sessions := &stubSessions{
			authenticateFn: func(ctx context.Context, token string) (*domain.Principal, error) {
				return nil, want
			},
		}

		rec, _, called := runAuth(t, "Bearer abc", sessions)
		if called {
			t.Fatalf("%v: should not reach next", want)
		}
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%v: expected 401, got %d", want, rec.Code)
		}
	}
}

func TestAuthMiddleware_StoreErrorPassesThrough(t *testing.T) {
	storeErr := errors.New("mongo down")
	sessions := &stubSessions{
		authenticateFn: func(ctx context.Context, token string) (*domain.Principal, error) {
			return nil, storeErr
		},
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer abc")
	c := e.NewContext(req, httptest.NewRecorder())

	err := Auth(sessions)(func(c echo.Context) error { return nil })(c)
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}
