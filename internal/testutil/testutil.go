package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/catclicker/catclicker/internal/ledger"
	"github.com/catclicker/catclicker/internal/policy"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetLedgerSchema drops the ledger tables so EnsureSchema starts clean.
func ResetLedgerSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS user_clicks, countries"); err != nil {
		return fmt.Errorf("drop ledger tables: %w", err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// NewPolicyStore builds a policy store from the default policy after
// applying mutate. It fails the test on invalid policies.
func NewPolicyStore(t testing.TB, mutate func(p *policy.Policy), opts ...policy.Option) *policy.Store {
	t.Helper()
	p := policy.Default()
	if mutate != nil {
		mutate(&p)
	}
	store, err := policy.NewStore(p, opts...)
	if err != nil {
		t.Fatalf("invalid test policy: %v", err)
	}
	return store
}

// SeedLedger records one submission per entry of clicks, each under its
// own session, in map-independent order given by codes.
func SeedLedger(t testing.TB, l ledger.Ledger, codes []string, clicks map[string]int64) {
	t.Helper()
	for _, code := range codes {
		_, err := l.Record(ledger.Submission{
			CountryCode: code,
			CountryName: code,
			SessionID:   UniqueID("seed-" + code),
			Clicks:      clicks[code],
		})
		if err != nil {
			t.Fatalf("seed %s: %v", code, err)
		}
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
