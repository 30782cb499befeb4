package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"quickplan/internal/plan"
	"quickplan/internal/plan/plantest"
)

func openTestStore(t *testing.T) plan.Store {
	t.Helper()
	store, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "quickplan.db")})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreContract(t *testing.T) {
	plantest.RunStoreContract(t, openTestStore)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quickplan.db")
	ctx := context.Background()

	first, err := Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("first Open returned error: %v", err)
	}
	if err := first.CreatePlan(ctx, &plan.Plan{Name: "kept", URLID: "keptPlan"}); err != nil {
		t.Fatalf("CreatePlan returned error: %v", err)
	}
	_ = first.Close()

	second, err := Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("second Open returned error: %v", err)
	}
	defer second.Close()

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw handle: %v", err)
	}
	defer raw.Close()

	var applied int
	if err := raw.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected 1 applied migration, got %d", applied)
	}
	if _, err := second.GetPlanByURLID(ctx, "keptPlan"); err != nil {
		t.Fatalf("data should survive reopen: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
