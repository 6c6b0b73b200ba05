package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Requires a running Redis; set REDIS_TEST_ADDR to enable.
func TestLock_MutualExclusion(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	ctx := context.Background()
	client, err := Connect(ctx, Config{Addr: addr})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	name := "test-" + uuid.NewString()
	a := NewLock(client, name)
	b := NewLock(client, name)

	ok, err := a.Acquire(ctx, time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected a to acquire, got %v %v", ok, err)
	}
	ok, err = b.Acquire(ctx, time.Minute)
	if err != nil || ok {
		t.Fatalf("expected b to be refused, got %v %v", ok, err)
	}

	// b does not own the lock, so its release is a no-op.
	if err := b.Release(ctx); err != nil {
		t.Fatalf("release b: %v", err)
	}
	if ok, _ := b.Acquire(ctx, time.Minute); ok {
		t.Fatalf("b released a lock it did not hold")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("release a: %v", err)
	}
	ok, err = b.Acquire(ctx, time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected b to acquire after release, got %v %v", ok, err)
	}
	_ = b.Release(ctx)
}

func TestConnect_EmptyAddrDisablesRedis(t *testing.T) {
	client, err := Connect(context.Background(), Config{})
	if err != nil || client != nil {
		t.Fatalf("expected nil client and no error, got %v %v", client, err)
	}
}
