package ports

import (
	"context"
	"time"

	"github.com/grafeo/grafeo-api/internal/core/domain"
)

// DemoSession is a freshly generated demo identity with its session token.
type DemoSession struct {
	Identity *domain.Identity
	Token    string
}

// SweepReport summarises one purge cycle.
type SweepReport struct {
	Scanned  int
	Expired  int
	Purged   int
	Failed   int
	Duration time.Duration
}

// DemoLifecycle creates disposable demo identities and purges expired ones.
type DemoLifecycle interface {
	GenerateDemoUser(ctx context.Context) (*DemoSession, error)
	Sweep(ctx context.Context) (SweepReport, error)
}
