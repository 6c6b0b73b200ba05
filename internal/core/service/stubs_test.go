package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/grafeo/grafeo-api/internal/core/domain"
)

// memRepo is an in-memory ports.IdentityRepository with the same
// case-insensitive uniqueness the Mongo indexes enforce.
type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*domain.Identity
	samples map[int64]int

	findErr   error
	listErr   error
	deleteErr map[int64]error
	creates   int
	deletes   int
}

func newMemRepo() *memRepo {
	return &memRepo{
		byID:      make(map[int64]*domain.Identity),
		samples:   make(map[int64]int),
		deleteErr: make(map[int64]error),
	}
}

func clone(i *domain.Identity) *domain.Identity {
	cp := *i
	cp.Roles = append([]string(nil), i.Roles...)
	return &cp
}

func (r *memRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.FindByUsername(ctx, username)
	return err == nil, ignoreNotFound(err)
}

func (r *memRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	return err == nil, ignoreNotFound(err)
}

func ignoreNotFound(err error) error {
	if err == domain.ErrIdentityNotFound {
		return nil
	}
	return err
}

func (r *memRepo) find(match func(*domain.Identity) bool) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, i := range r.byID {
		if match(i) {
			return clone(i), nil
		}
	}
	return nil, domain.ErrIdentityNotFound
}

func (r *memRepo) FindByID(_ context.Context, id int64) (*domain.Identity, error) {
	return r.find(func(i *domain.Identity) bool { return i.ID == id })
}

func (r *memRepo) FindByUsername(_ context.Context, username string) (*domain.Identity, error) {
	return r.find(func(i *domain.Identity) bool { return domain.Fold(i.Username) == domain.Fold(username) })
}

func (r *memRepo) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	return r.find(func(i *domain.Identity) bool { return domain.Fold(i.Email) == domain.Fold(email) })
}

func (r *memRepo) FindByUsernameOrEmail(ctx context.Context, login string) (*domain.Identity, error) {
	identity, err := r.FindByUsername(ctx, login)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		return r.FindByEmail(ctx, login)
	}
	return identity, err
}

func (r *memRepo) FindBySubjectID(_ context.Context, subjectID string) (*domain.Identity, error) {
	if subjectID == "" {
		return nil, domain.ErrIdentityNotFound
	}
	return r.find(func(i *domain.Identity) bool { return i.FederatedID == subjectID })
}

// conflicts must be called with mu held.
func (r *memRepo) conflicts(candidate *domain.Identity) bool {
	for _, i := range r.byID {
		if i.ID == candidate.ID {
			continue
		}
		if domain.Fold(i.Username) == domain.Fold(candidate.Username) ||
			domain.Fold(i.Email) == domain.Fold(candidate.Email) ||
			(candidate.FederatedID != "" && i.FederatedID == candidate.FederatedID) {
			return true
		}
	}
	return false
}

func (r *memRepo) Create(_ context.Context, identity *domain.Identity) (*domain.Identity, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++

	doc := clone(identity)
	doc.ID = 0
	if r.conflicts(doc) {
		return nil, domain.ErrDuplicateIdentity
	}
	r.nextID++
	doc.ID = r.nextID
	r.byID[doc.ID] = doc
	return clone(doc), nil
}

func (r *memRepo) Update(_ context.Context, identity *domain.Identity) (*domain.Identity, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[identity.ID]; !ok {
		return nil, domain.ErrIdentityNotFound
	}
	if r.conflicts(identity) {
		return nil, domain.ErrDuplicateIdentity
	}
	r.byID[identity.ID] = clone(identity)
	return clone(identity), nil
}

func (r *memRepo) Activate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byID[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	i.Provisioning = false
	return nil
}

func (r *memRepo) DeleteCascade(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	if err := r.deleteErr[id]; err != nil {
		return err
	}
	if _, ok := r.byID[id]; !ok {
		return domain.ErrIdentityNotFound
	}
	delete(r.samples, id)
	delete(r.byID, id)
	return nil
}

func (r *memRepo) ListByDemoFlag(_ context.Context, demo bool) ([]*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*domain.Identity
	for _, i := range r.byID {
		if i.Demo == demo {
			out = append(out, clone(i))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

// Seed makes memRepo its own ports.SampleSeeder.
func (r *memRepo) Seed(_ context.Context, ownerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[ownerID] += 3
	return nil
}

// put stores identity as-is, bypassing id allocation.
func (r *memRepo) put(identity *domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if identity.ID > r.nextID {
		r.nextID = identity.ID
	}
	r.byID[identity.ID] = clone(identity)
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type stubSeeder struct {
	err error
}

func (s *stubSeeder) Seed(context.Context, int64) error { return s.err }

type stubFederated struct {
	ok    bool
	err   error
	calls int
}

func (f *stubFederated) Verify(ctx context.Context, token, subjectID string) (bool, error) {
	f.calls++
	return f.ok, f.err
}

func newTestCodec() *TokenCodec {
	c, err := NewTokenCodec(TokenCodecConfig{Secret: "test-secret", Issuer: "grafeo"})
	if err != nil {
		panic(err)
	}
	return c
}

var nopLog = zerolog.Nop()
